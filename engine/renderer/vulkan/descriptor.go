package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
)

const (
	BINDING_INDEX_COLOR   = 0
	BINDING_INDEX_DEPTH   = 1
	BINDING_INDEX_SAMPLER = 2

	// Upper bound of full-screen draws in one frame.
	MAX_DRAWS_PER_FRAME = 64
)

/**
 * @brief Creates the one set layout every full-screen program uses: the color
 * texture, the depth texture and the sampler, all read by the fragment stage.
 */
func DescriptorSetLayoutCreate(context *VulkanContext) (vk.DescriptorSetLayout, error) {
	stage := vk.ShaderStageFlags(vk.ShaderStageFragmentBit)
	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: BINDING_INDEX_COLOR, DescriptorType: vk.DescriptorTypeSampledImage, DescriptorCount: 1, StageFlags: stage},
		{Binding: BINDING_INDEX_DEPTH, DescriptorType: vk.DescriptorTypeSampledImage, DescriptorCount: 1, StageFlags: stage},
		{Binding: BINDING_INDEX_SAMPLER, DescriptorType: vk.DescriptorTypeSampler, DescriptorCount: 1, StageFlags: stage},
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		err := vulkanError("vkCreateDescriptorSetLayout", res)
		core.LogError("%s", err)
		return vk.NullDescriptorSetLayout, err
	}
	return layout, nil
}

// DescriptorPoolCreate sizes a pool for one frame worth of draws.
func DescriptorPoolCreate(context *VulkanContext) (vk.DescriptorPool, error) {
	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: 2 * MAX_DRAWS_PER_FRAME},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: MAX_DRAWS_PER_FRAME},
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       MAX_DRAWS_PER_FRAME,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		err := vulkanError("vkCreateDescriptorPool", res)
		core.LogError("%s", err)
		return vk.NullDescriptorPool, err
	}
	return pool, nil
}

func SamplerCreate(context *VulkanContext, filter vk.Filter) (vk.Sampler, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               filter,
		MinFilter:               filter,
		MipmapMode:              vk.SamplerMipmapModeNearest,
		AddressModeU:            vk.SamplerAddressModeClampToEdge,
		AddressModeV:            vk.SamplerAddressModeClampToEdge,
		AddressModeW:            vk.SamplerAddressModeClampToEdge,
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  0,
		BorderColor:             vk.BorderColorFloatOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}

	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		err := vulkanError("vkCreateSampler", res)
		core.LogError("%s", err)
		return vk.NullSampler, err
	}
	return sampler, nil
}

/**
 * @brief Allocates a set from the current frame's pool and points it at the given
 * views. The set lives until the pool is reset at the start of the same frame slot.
 */
func DescriptorSetWrite(context *VulkanContext, color, depth vk.ImageView) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	err := lockPool.SafeCall(DescriptorManagement, func() error {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     context.DescriptorPools[context.CurrentFrame],
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{context.DescriptorSetLayout},
		}
		if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocInfo, &set); res != vk.Success {
			return vulkanError("vkAllocateDescriptorSets", res)
		}

		writes := []vk.WriteDescriptorSet{
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      BINDING_INDEX_COLOR,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeSampledImage,
				PImageInfo:      []vk.DescriptorImageInfo{{ImageView: color, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}},
			},
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      BINDING_INDEX_DEPTH,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeSampledImage,
				PImageInfo:      []vk.DescriptorImageInfo{{ImageView: depth, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}},
			},
			{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      BINDING_INDEX_SAMPLER,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeSampler,
				PImageInfo:      []vk.DescriptorImageInfo{{Sampler: context.Sampler}},
			},
		}
		vk.UpdateDescriptorSets(context.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
	if err != nil {
		core.LogError("%s", err)
		return vk.NullDescriptorSet, err
	}
	return set, nil
}
