package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

/**
 * @brief Backend data of a full-screen program. Pipelines are built lazily, one per
 * attachment format the program is drawn into.
 */
type VulkanShader struct {
	Stages           []VulkanShaderStage
	PushConstantSize uint32
	Pipelines        map[vk.Format]*VulkanPipeline
}

func NewShaderModule(context *VulkanContext, config *metadata.ShaderStageConfig) (VulkanShaderStage, error) {
	stage := VulkanShaderStage{}
	if len(config.SPIRV.Code) == 0 {
		err := fmt.Errorf("stage '%s' has no SPIR-V, compile shaders with SPIR-V output enabled", config.FileName)
		core.LogError("%s", err)
		return stage, err
	}

	var flag vk.ShaderStageFlagBits
	switch config.Stage {
	case gputypes.ShaderStageVertex:
		flag = vk.ShaderStageVertexBit
	case gputypes.ShaderStageFragment:
		flag = vk.ShaderStageFragmentBit
	default:
		return stage, fmt.Errorf("stage '%s': unsupported shader stage %v", config.FileName, config.Stage)
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(config.SPIRV.Code) * 4),
		PCode:    config.SPIRV.Code,
	}

	var handle vk.ShaderModule
	if res := vk.CreateShaderModule(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		err := vulkanError(fmt.Sprintf("vkCreateShaderModule(%s)", config.FileName), res)
		core.LogError("%s", err)
		return stage, err
	}
	stage.Handle = handle

	entry := config.EntryPoint
	if entry == "" {
		entry = metadata.SHADER_ENTRY_POINT
	}
	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  flag,
		Module: handle,
		PName:  VulkanSafeString(entry),
	}
	return stage, nil
}

func (s *VulkanShader) Destroy(context *VulkanContext) {
	for format, p := range s.Pipelines {
		_ = p.Destroy(context)
		delete(s.Pipelines, format)
	}
	for i := range s.Stages {
		if s.Stages[i].Handle != vk.NullShaderModule {
			vk.DestroyShaderModule(context.Device.LogicalDevice, s.Stages[i].Handle, context.Allocator)
			s.Stages[i].Handle = vk.NullShaderModule
		}
	}
	s.Stages = nil
}

// Pipeline returns the pipeline drawing into renderpass, creating it on first use.
func (s *VulkanShader) Pipeline(context *VulkanContext, renderpass *VulkanRenderpass) (*VulkanPipeline, error) {
	if p, ok := s.Pipelines[renderpass.Format]; ok {
		return p, nil
	}
	stages := make([]vk.PipelineShaderStageCreateInfo, len(s.Stages))
	for i := range s.Stages {
		stages[i] = s.Stages[i].ShaderStageCreateInfo
	}
	p, err := NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           renderpass,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{context.DescriptorSetLayout},
		Stages:               stages,
		PushConstantSize:     s.PushConstantSize,
	})
	if err != nil {
		return nil, err
	}
	s.Pipelines[renderpass.Format] = p
	return p, nil
}
