package vulkan

import (
	"fmt"

	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// Every supported target format is 4 bytes per pixel.
const TARGET_BYTES_PER_PIXEL = 4

/**
 * @brief Backend storage of a render target. Image and Framebuffer are nil while
 * the target has a zero size.
 */
type VulkanTarget struct {
	Format      vk.Format
	Image       *VulkanImage
	Framebuffer *VulkanFramebuffer
}

func vulkanFormat(format gputypes.TextureFormat) (vk.Format, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case gputypes.TextureFormatR32Float:
		return vk.FormatR32Sfloat, nil
	default:
		return vk.FormatUndefined, fmt.Errorf("unsupported render target format %v", format)
	}
}

func (vr *VulkanRenderer) RenderTargetCreate(target *metadata.RenderTarget) error {
	format, err := vulkanFormat(target.Format)
	if err != nil {
		err = fmt.Errorf("render target '%s': %w", target.Name, err)
		core.LogError("%s", err)
		return err
	}
	internal := &VulkanTarget{Format: format}
	target.InternalData = internal
	if target.Width == 0 || target.Height == 0 {
		return nil
	}
	return vr.allocateTarget(target.Name, internal, target.Width, target.Height)
}

func (vr *VulkanRenderer) RenderTargetResize(target *metadata.RenderTarget, width, height uint32) error {
	internal, ok := target.InternalData.(*VulkanTarget)
	if !ok {
		return fmt.Errorf("render target '%s' was not created by the vulkan renderer", target.Name)
	}
	if width == 0 || height == 0 {
		return core.ErrInvalidTargetSize
	}
	if internal.Image != nil && internal.Image.Width == width && internal.Image.Height == height {
		return nil
	}

	// Frames in flight may still sample the old image.
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		return vulkanError("vkDeviceWaitIdle", res)
	}
	vr.releaseTarget(internal)
	if err := vr.allocateTarget(target.Name, internal, width, height); err != nil {
		return err
	}
	target.Width, target.Height = width, height
	target.Generation++
	return nil
}

func (vr *VulkanRenderer) RenderTargetDestroy(target *metadata.RenderTarget) {
	internal, ok := target.InternalData.(*VulkanTarget)
	if !ok || vr.context.Device == nil {
		target.InternalData = nil
		return
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
	vr.releaseTarget(internal)
	target.InternalData = nil
}

func (vr *VulkanRenderer) RenderTargetWrite(target *metadata.RenderTarget, pixels []uint8) error {
	internal, ok := target.InternalData.(*VulkanTarget)
	if !ok || internal.Image == nil {
		return fmt.Errorf("render target '%s' has no storage", target.Name)
	}
	want := int(internal.Image.Width * internal.Image.Height * TARGET_BYTES_PER_PIXEL)
	if len(pixels) != want {
		return fmt.Errorf("render target '%s': got %d bytes, want %d", target.Name, len(pixels), want)
	}
	return vr.uploadImage(internal.Image, pixels)
}

func (vr *VulkanRenderer) RenderTargetRead(target *metadata.RenderTarget) ([]uint8, error) {
	internal, ok := target.InternalData.(*VulkanTarget)
	if !ok || internal.Image == nil {
		return nil, fmt.Errorf("render target '%s' has no storage", target.Name)
	}
	// Make sure every submitted pass that writes the target has finished.
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); res != vk.Success {
		return nil, vulkanError("vkDeviceWaitIdle", res)
	}
	return vr.readImage(internal.Image)
}

func (vr *VulkanRenderer) allocateTarget(name string, internal *VulkanTarget, width, height uint32) error {
	renderpass, ok := vr.context.TargetRenderpasses[internal.Format]
	if !ok {
		return fmt.Errorf("render target '%s': no render pass for format %d", name, internal.Format)
	}
	img, err := ImageCreate(vr.context, width, height, internal.Format)
	if err != nil {
		return err
	}
	if err := vr.transitionImmediate(img, vk.ImageLayoutShaderReadOnlyOptimal); err != nil {
		img.ImageDestroy(vr.context)
		return err
	}
	fb, err := FramebufferCreate(vr.context, renderpass, width, height, []vk.ImageView{img.View})
	if err != nil {
		img.ImageDestroy(vr.context)
		return err
	}
	internal.Image = img
	internal.Framebuffer = fb
	core.LogDebug("render target '%s' allocated (%dx%d)", name, width, height)
	return nil
}

func (vr *VulkanRenderer) releaseTarget(internal *VulkanTarget) {
	if internal.Framebuffer != nil {
		internal.Framebuffer.Destroy(vr.context)
		internal.Framebuffer = nil
	}
	if internal.Image != nil {
		internal.Image.ImageDestroy(vr.context)
		internal.Image = nil
	}
}

// transitionImmediate moves img to layout with a single use command buffer.
func (vr *VulkanRenderer) transitionImmediate(img *VulkanImage, layout vk.ImageLayout) error {
	pool := vr.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return err
	}
	img.ImageTransitionLayout(cb, layout)
	return cb.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue)
}

func (vr *VulkanRenderer) uploadImage(img *VulkanImage, pixels []byte) error {
	staging, err := BufferCreate(vr.context, uint64(len(pixels)), vk.BufferUsageTransferSrcBit)
	if err != nil {
		return err
	}
	defer staging.Destroy(vr.context)
	if err := staging.LoadData(vr.context, pixels); err != nil {
		return err
	}

	pool := vr.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return err
	}
	img.ImageTransitionLayout(cb, vk.ImageLayoutTransferDstOptimal)
	vk.CmdCopyBufferToImage(cb.Handle, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{imageCopyRegion(img.Width, img.Height)})
	img.ImageTransitionLayout(cb, vk.ImageLayoutShaderReadOnlyOptimal)
	return cb.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue)
}

func (vr *VulkanRenderer) readImage(img *VulkanImage) ([]byte, error) {
	size := uint64(img.Width) * uint64(img.Height) * TARGET_BYTES_PER_PIXEL
	staging, err := BufferCreate(vr.context, size, vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(vr.context)

	pool := vr.context.Device.GraphicsCommandPool
	cb, err := AllocateAndBeginSingleUse(vr.context, pool)
	if err != nil {
		return nil, err
	}
	img.ImageTransitionLayout(cb, vk.ImageLayoutTransferSrcOptimal)
	vk.CmdCopyImageToBuffer(cb.Handle, img.Handle, vk.ImageLayoutTransferSrcOptimal, staging.Handle, 1, []vk.BufferImageCopy{imageCopyRegion(img.Width, img.Height)})
	img.ImageTransitionLayout(cb, vk.ImageLayoutShaderReadOnlyOptimal)
	if err := cb.EndSingleUse(vr.context, pool, vr.context.Device.GraphicsQueue); err != nil {
		return nil, err
	}
	return staging.ReadData(vr.context, size)
}

func imageCopyRegion(width, height uint32) vk.BufferImageCopy {
	return vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
}
