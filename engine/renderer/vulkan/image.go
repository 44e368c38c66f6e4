package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Width  uint32
	Height uint32
	// Layout the image is left in between command buffers.
	Layout vk.ImageLayout
}

/**
 * @brief Creates a device local 2D image usable as a color attachment, a sampled
 * texture and a transfer source and destination, plus a view over it.
 */
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format) (*VulkanImage, error) {
	img := &VulkanImage{
		Format: format,
		Width:  width,
		Height: height,
		Layout: vk.ImageLayoutUndefined,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:   1,
		ArrayLayers: 1,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit |
			vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	err := lockPool.SafeCall(ImageManagement, func() error {
		var handle vk.Image
		if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
			return vulkanError("vkCreateImage", res)
		}
		img.Handle = handle

		var memReqs vk.MemoryRequirements
		vk.GetImageMemoryRequirements(context.Device.LogicalDevice, handle, &memReqs)
		memReqs.Deref()

		memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(vk.MemoryPropertyDeviceLocalBit))
		if memoryType < 0 {
			return fmt.Errorf("required memory type not found, image not valid")
		}

		allocInfo := vk.MemoryAllocateInfo{
			SType:           vk.StructureTypeMemoryAllocateInfo,
			AllocationSize:  memReqs.Size,
			MemoryTypeIndex: uint32(memoryType),
		}
		var memory vk.DeviceMemory
		if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
			return vulkanError("vkAllocateMemory", res)
		}
		img.Memory = memory

		if res := vk.BindImageMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
			return vulkanError("vkBindImageMemory", res)
		}
		return nil
	})
	if err != nil {
		core.LogError("failed to create %dx%d image: %s", width, height, err)
		img.ImageDestroy(context)
		return nil, err
	}

	view, err := createImageView(context, img.Handle, format)
	if err != nil {
		img.ImageDestroy(context)
		return nil, err
	}
	img.View = view
	return img, nil
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		err := vulkanError("vkCreateImageView", res)
		core.LogError("%s", err)
		return vk.NullImageView, err
	}
	return view, nil
}

func (img *VulkanImage) ImageDestroy(context *VulkanContext) {
	_ = lockPool.SafeCall(ImageManagement, func() error {
		if img.View != vk.NullImageView {
			vk.DestroyImageView(context.Device.LogicalDevice, img.View, context.Allocator)
			img.View = vk.NullImageView
		}
		if img.Memory != vk.NullDeviceMemory {
			vk.FreeMemory(context.Device.LogicalDevice, img.Memory, context.Allocator)
			img.Memory = vk.NullDeviceMemory
		}
		if img.Handle != vk.NullImage {
			vk.DestroyImage(context.Device.LogicalDevice, img.Handle, context.Allocator)
			img.Handle = vk.NullImage
		}
		return nil
	})
}

/**
 * @brief Records a barrier moving the image from its tracked layout to newLayout.
 */
func (img *VulkanImage) ImageTransitionLayout(commandBuffer *VulkanCommandBuffer, newLayout vk.ImageLayout) {
	recordTransition(commandBuffer, img.Handle, img.Layout, newLayout)
	img.Layout = newLayout
}

func recordTransition(commandBuffer *VulkanCommandBuffer, image vk.Image, oldLayout, newLayout vk.ImageLayout) {
	srcAccess, srcStage := layoutAccess(oldLayout)
	dstAccess, dstStage := layoutAccess(newLayout)

	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	vk.CmdPipelineBarrier(
		commandBuffer.Handle,
		srcStage, dstStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier})
}

// layoutAccess returns the accesses and stages that touch an image in the given layout.
func layoutAccess(layout vk.ImageLayout) (vk.AccessFlags, vk.PipelineStageFlags) {
	switch layout {
	case vk.ImageLayoutTransferDstOptimal:
		return vk.AccessFlags(vk.AccessTransferWriteBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.AccessFlags(vk.AccessTransferReadBit), vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.AccessFlags(vk.AccessShaderReadBit), vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	case vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutPresentSrc:
		return vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	default:
		return 0, vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
	}
}
