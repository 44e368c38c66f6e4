package vulkan

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/platform"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

var _ metadata.RendererBackend = (*VulkanRenderer)(nil)

type VulkanRenderer struct {
	platform                *platform.Platform
	FrameNumber             uint64
	context                 *VulkanContext
	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	// Enables the validation layers and the debug report callback.
	Validation bool

	// Bound in place of a missing color or depth input.
	dummyColor *VulkanImage
	dummyDepth *VulkanImage

	frameActive  bool
	displayDrawn bool
	drawCalls    uint64

	// Frame slot whose readback buffer holds the last presented image, -1 before the first frame.
	presentedFrame   int
	presentedExtents [MAX_FRAMES_IN_FLIGHT]vk.Extent2D
	presentedFormat  vk.Format
}

func New(p *platform.Platform, validation bool) *VulkanRenderer {
	return &VulkanRenderer{
		platform:    p,
		FrameNumber: 0,
		context: &VulkanContext{
			FramebufferWidth:   0,
			FramebufferHeight:  0,
			Allocator:          nil,
			TargetRenderpasses: map[vk.Format]*VulkanRenderpass{},
		},
		Validation:     validation,
		presentedFrame: -1,
	}
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	if vr.platform == nil || vr.platform.Window == nil {
		return fmt.Errorf("vulkan renderer needs a window")
	}
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError("%s", err)
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return err
	}

	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	if err := vr.createInstance(appName); err != nil {
		return err
	}

	// Debugger
	if vr.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if err := vk.Error(vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg)); err != nil {
			core.LogError("vk.CreateDebugReportCallback failed with %s", err)
			return err
		}
		vr.context.debugMessenger = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	// Surface
	core.LogDebug("Creating Vulkan surface...")
	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		return err
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	// Device creation
	if err := DeviceCreate(vr.context); err != nil {
		core.LogError("Failed to create device!")
		return err
	}
	filter := vr.samplerFilter()

	// Swapchain
	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height

	rp, err := RenderpassCreate(vr.context, sc.ImageFormat.Format, vk.ImageLayoutPresentSrc, 0.0, 0.0, 0.0, 1.0)
	if err != nil {
		return err
	}
	vr.context.DisplayRenderpass = rp

	for _, format := range []vk.Format{vk.FormatR8g8b8a8Unorm, vk.FormatR32Sfloat} {
		rp, err := RenderpassCreate(vr.context, format, vk.ImageLayoutShaderReadOnlyOptimal, 0.0, 0.0, 0.0, 0.0)
		if err != nil {
			return err
		}
		vr.context.TargetRenderpasses[format] = rp
	}

	// Swapchain framebuffers.
	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}

	// Create command buffers.
	if err := vr.createCommandBuffers(); err != nil {
		return err
	}

	// Create sync objects.
	if err := vr.createSyncObjects(); err != nil {
		return err
	}

	if vr.context.DescriptorSetLayout, err = DescriptorSetLayoutCreate(vr.context); err != nil {
		return err
	}
	vr.context.DescriptorPools = make([]vk.DescriptorPool, MAX_FRAMES_IN_FLIGHT)
	for i := range vr.context.DescriptorPools {
		if vr.context.DescriptorPools[i], err = DescriptorPoolCreate(vr.context); err != nil {
			return err
		}
	}
	if vr.context.Sampler, err = SamplerCreate(vr.context, filter); err != nil {
		return err
	}

	if err := vr.createReadbackBuffers(); err != nil {
		return err
	}

	if vr.dummyColor, err = vr.createDummyImage(vk.FormatR8g8b8a8Unorm); err != nil {
		return err
	}
	if vr.dummyDepth, err = vr.createDummyImage(vk.FormatR32Sfloat); err != nil {
		return err
	}

	core.LogInfo("Vulkan renderer initialized successfully for '%s'.", appName)
	return nil
}

func (vr *VulkanRenderer) createInstance(appName string) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("cartofx"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	// Obtain a list of required extensions
	requiredExtensions := []string{"VK_KHR_surface"} // Generic surface extension
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)

	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= vk.InstanceCreateFlags(1)
	}

	validationLayers := []string{}
	if vr.Validation {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogDebug("Required extensions: %v", requiredExtensions)

		// Validation layers should only be enabled on non-release builds.
		layer := "VK_LAYER_KHRONOS_validation"
		found, err := hasInstanceLayer(layer)
		if err != nil {
			return err
		}
		if !found {
			err := fmt.Errorf("required validation layer is missing: %s", layer)
			core.LogError("%s", err)
			return err
		}
		core.LogInfo("All required validation layers are present.")
		validationLayers = append(validationLayers, layer)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)
	createInfo.EnabledLayerCount = uint32(len(validationLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(validationLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := vulkanError("vkCreateInstance", res)
		core.LogError("%s", err)
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError("%s", err)
		return err
	}
	core.LogInfo("Vulkan Instance created.")
	return nil
}

func hasInstanceLayer(name string) (bool, error) {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false, vulkanError("vkEnumerateInstanceLayerProperties", res)
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false, vulkanError("vkEnumerateInstanceLayerProperties", res)
	}
	for i := range layers {
		layers[i].Deref()
		if CString(layers[i].LayerName[:]) == name {
			return true, nil
		}
	}
	return false, nil
}

// Linear filtering of R32 float images is optional in Vulkan. Color and depth share
// one sampler, so both fall back to nearest when depth cannot be filtered.
func (vr *VulkanRenderer) samplerFilter() vk.Filter {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(vr.context.Device.PhysicalDevice, vk.FormatR32Sfloat, &props)
	props.Deref()
	if props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit) == 0 {
		core.LogWarn("device cannot linearly filter R32 float images, sampling with nearest filtering")
		return vk.FilterNearest
	}
	return vk.FilterLinear
}

func (vr *VulkanRenderer) Shutdown() error {
	if vr.context.Device == nil {
		return nil
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	// Destroy in the opposite order of creation.
	for _, img := range []*VulkanImage{vr.dummyColor, vr.dummyDepth} {
		if img != nil {
			img.ImageDestroy(vr.context)
		}
	}
	vr.dummyColor, vr.dummyDepth = nil, nil

	for _, b := range vr.context.Readback {
		if b != nil {
			b.Destroy(vr.context)
		}
	}
	vr.context.Readback = nil
	vr.presentedFrame = -1

	if vr.context.Sampler != vk.NullSampler {
		vk.DestroySampler(vr.context.Device.LogicalDevice, vr.context.Sampler, vr.context.Allocator)
		vr.context.Sampler = vk.NullSampler
	}
	for _, pool := range vr.context.DescriptorPools {
		if pool != vk.NullDescriptorPool {
			vk.DestroyDescriptorPool(vr.context.Device.LogicalDevice, pool, vr.context.Allocator)
		}
	}
	vr.context.DescriptorPools = nil
	if vr.context.DescriptorSetLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(vr.context.Device.LogicalDevice, vr.context.DescriptorSetLayout, vr.context.Allocator)
		vr.context.DescriptorSetLayout = vk.NullDescriptorSetLayout
	}

	// Sync objects
	for i := range vr.context.InFlightFences {
		if vr.context.ImageAvailableSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.ImageAvailableSemaphores[i], vr.context.Allocator)
			vr.context.ImageAvailableSemaphores[i] = vk.NullSemaphore
		}
		if vr.context.QueueCompleteSemaphores[i] != vk.NullSemaphore {
			vk.DestroySemaphore(vr.context.Device.LogicalDevice, vr.context.QueueCompleteSemaphores[i], vr.context.Allocator)
			vr.context.QueueCompleteSemaphores[i] = vk.NullSemaphore
		}
		if vr.context.InFlightFences[i] != nil {
			vr.context.InFlightFences[i].FenceDestroy(vr.context)
		}
	}
	vr.context.ImageAvailableSemaphores = nil
	vr.context.QueueCompleteSemaphores = nil
	vr.context.InFlightFences = nil
	vr.context.ImagesInFlight = nil

	// Command buffers
	for _, cb := range vr.context.GraphicsCommandBuffers {
		if cb != nil && cb.Handle != nil {
			cb.Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
	}
	vr.context.GraphicsCommandBuffers = nil

	// Swapchain, its framebuffers go with it.
	if vr.context.Swapchain != nil {
		vr.context.Swapchain.SwapchainDestroy(vr.context)
		vr.context.Swapchain = nil
	}

	// Renderpasses
	if vr.context.DisplayRenderpass != nil {
		vr.context.DisplayRenderpass.RenderpassDestroy(vr.context)
		vr.context.DisplayRenderpass = nil
	}
	for format, rp := range vr.context.TargetRenderpasses {
		rp.RenderpassDestroy(vr.context)
		delete(vr.context.TargetRenderpasses, format)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)
	vr.context.Device = nil

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.context.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

func (vr *VulkanRenderer) Resized(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	// The size the next swapchain will be created with, or the current one.
	pendingWidth, pendingHeight := vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	if pendingWidth == 0 || pendingHeight == 0 {
		pendingWidth, pendingHeight = vr.context.FramebufferWidth, vr.context.FramebufferHeight
	}
	if width == pendingWidth && height == pendingHeight {
		return nil
	}
	// Update the "framebuffer size generation", a counter which indicates when the
	// framebuffer size has been updated.
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++

	core.LogDebug("Vulkan renderer backend->resized: w/h/gen: %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

func (vr *VulkanRenderer) BeginFrame(frame *metadata.FrameContext) error {
	device := vr.context.Device
	vr.FrameNumber = frame.FrameNumber

	// Check if recreating swap chain and boot out.
	if vr.context.RecreatingSwapchain {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			err := vulkanError("vkDeviceWaitIdle", res)
			core.LogError("%s", err)
			return err
		}
		core.LogInfo("Recreating swapchain, booting.")
		return core.ErrSwapchainBooting
	}

	// Check if the framebuffer has been resized. If so, a new swapchain must be created.
	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			err := vulkanError("vkDeviceWaitIdle", res)
			core.LogError("%s", err)
			return err
		}
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		core.LogInfo("Resized, booting.")
		return core.ErrSwapchainBooting
	}

	// Wait for the execution of the current frame to complete. The fence being free will allow this one to move on.
	if err := vr.context.InFlightFences[vr.context.CurrentFrame].FenceWait(vr.context, math.MaxUint64); err != nil {
		return err
	}

	// Acquire the next image from the swap chain. Pass along the semaphore that should signaled when this completes.
	// This same semaphore will later be waited on by the queue submission to ensure this image is available.
	imageIndex, result := vr.context.Swapchain.SwapchainAcquireNextImageIndex(
		vr.context, math.MaxUint64, vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame], vk.NullFence)
	switch result {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		if err := vr.recreateSwapchain(); err != nil {
			return err
		}
		return core.ErrSwapchainBooting
	default:
		err := vulkanError("vkAcquireNextImageKHR", result)
		core.LogError("%s", err)
		return err
	}
	vr.context.ImageIndex = imageIndex

	// Sets allocated by the last use of this slot are no longer referenced.
	if res := vk.ResetDescriptorPool(device.LogicalDevice, vr.context.DescriptorPools[vr.context.CurrentFrame], 0); res != vk.Success {
		return vulkanError("vkResetDescriptorPool", res)
	}

	// Begin recording commands.
	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.CurrentFrame]
	if err := commandBuffer.Reset(); err != nil {
		return err
	}
	if err := commandBuffer.Begin(false, false, false); err != nil {
		return err
	}
	vr.frameActive = true
	vr.displayDrawn = false
	return nil
}

func (vr *VulkanRenderer) EndFrame(frame *metadata.FrameContext) error {
	if !vr.frameActive {
		return fmt.Errorf("EndFrame called without a frame being recorded")
	}
	vr.frameActive = false
	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.CurrentFrame]

	// Nothing composited this frame, present a cleared image.
	if !vr.displayDrawn {
		vr.context.DisplayRenderpass.RenderpassBegin(commandBuffer, vr.context.Swapchain.Framebuffers[vr.context.ImageIndex])
		vr.context.DisplayRenderpass.RenderpassEnd(commandBuffer)
	}
	vr.recordReadback(commandBuffer)

	if err := commandBuffer.End(); err != nil {
		return err
	}

	// Make sure the previous frame is not using this image (i.e. its fence is being waited on)
	if inFlight := vr.context.ImagesInFlight[vr.context.ImageIndex]; inFlight != nil {
		if err := inFlight.FenceWait(vr.context, math.MaxUint64); err != nil {
			return err
		}
	}

	// Mark the image fence as in-use by this frame.
	fence := vr.context.InFlightFences[vr.context.CurrentFrame]
	vr.context.ImagesInFlight[vr.context.ImageIndex] = fence

	// Reset the fence for use on the next frame
	if err := fence.FenceReset(vr.context); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{commandBuffer.Handle},
		// The semaphore(s) to be signaled when the queue is complete.
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vr.context.QueueCompleteSemaphores[vr.context.CurrentFrame]},
		// Wait semaphore ensures that the operation cannot begin until the image is available.
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vr.context.ImageAvailableSemaphores[vr.context.CurrentFrame]},
		// Offscreen passes may run before the image is available, only the display writes wait.
		PWaitDstStageMask: []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
	}

	err := lockPool.SafeQueueCall(uint32(vr.context.Device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(vr.context.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); res != vk.Success {
			return vulkanError("vkQueueSubmit", res)
		}
		return nil
	})
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	commandBuffer.UpdateSubmitted()

	vr.presentedFrame = int(vr.context.CurrentFrame)
	vr.presentedExtents[vr.context.CurrentFrame] = vr.context.Swapchain.Extent
	vr.presentedFormat = vr.context.Swapchain.ImageFormat.Format

	// Give the image back to the swapchain.
	needsRecreate, err := vr.context.Swapchain.SwapchainPresent(
		vr.context,
		vr.context.Device.PresentQueue,
		vr.context.QueueCompleteSemaphores[vr.presentedFrame],
		vr.context.ImageIndex)
	if err != nil {
		return err
	}
	if needsRecreate {
		if vr.cachedFramebufferWidth == 0 || vr.cachedFramebufferHeight == 0 {
			vr.cachedFramebufferWidth = vr.context.FramebufferWidth
			vr.cachedFramebufferHeight = vr.context.FramebufferHeight
		}
		vr.context.FramebufferSizeGeneration++
	}
	return nil
}

// recordReadback copies the swapchain image into the readback buffer of the current frame slot.
func (vr *VulkanRenderer) recordReadback(commandBuffer *VulkanCommandBuffer) {
	swapImage := vr.context.Swapchain.Images[vr.context.ImageIndex]
	extent := vr.context.Swapchain.Extent
	readback := vr.context.Readback[vr.context.CurrentFrame]

	recordTransition(commandBuffer, swapImage, vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferSrcOptimal)
	vk.CmdCopyImageToBuffer(commandBuffer.Handle, swapImage, vk.ImageLayoutTransferSrcOptimal, readback.Handle, 1,
		[]vk.BufferImageCopy{imageCopyRegion(extent.Width, extent.Height)})
	recordTransition(commandBuffer, swapImage, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutPresentSrc)
}

func (vr *VulkanRenderer) DrawFullscreen(draw *metadata.FullscreenDraw) error {
	if !vr.frameActive {
		return fmt.Errorf("draw '%s': no frame is being recorded", draw.Label)
	}
	shader, ok := draw.Shader.InternalData.(*VulkanShader)
	if !ok {
		return fmt.Errorf("draw '%s': shader '%s' is not initialized", draw.Label, draw.Shader.Name)
	}

	var (
		renderpass  *VulkanRenderpass
		framebuffer *VulkanFramebuffer
	)
	if draw.Output == nil {
		renderpass = vr.context.DisplayRenderpass
		framebuffer = vr.context.Swapchain.Framebuffers[vr.context.ImageIndex]
	} else {
		out, ok := draw.Output.InternalData.(*VulkanTarget)
		if !ok || out.Framebuffer == nil {
			return fmt.Errorf("draw '%s': output '%s' has no storage", draw.Label, draw.Output.Name)
		}
		if draw.Output == draw.Color || draw.Output == draw.Depth {
			return fmt.Errorf("draw '%s': output '%s' is also bound as an input", draw.Label, draw.Output.Name)
		}
		renderpass = vr.context.TargetRenderpasses[out.Format]
		framebuffer = out.Framebuffer
	}

	pipeline, err := shader.Pipeline(vr.context, renderpass)
	if err != nil {
		return fmt.Errorf("draw '%s': %w", draw.Label, err)
	}
	set, err := DescriptorSetWrite(vr.context, vr.inputView(draw.Color, vr.dummyColor), vr.inputView(draw.Depth, vr.dummyDepth))
	if err != nil {
		return fmt.Errorf("draw '%s': %w", draw.Label, err)
	}

	commandBuffer := vr.context.GraphicsCommandBuffers[vr.context.CurrentFrame]
	renderpass.RenderpassBegin(commandBuffer, framebuffer)
	pipeline.Bind(commandBuffer, vk.PipelineBindPointGraphics)

	// Dynamic state
	viewport := vk.Viewport{
		X:        0.0,
		Y:        0.0,
		Width:    float32(framebuffer.Width),
		Height:   float32(framebuffer.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: framebuffer.Width, Height: framebuffer.Height},
	}
	vk.CmdSetViewport(commandBuffer.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(commandBuffer.Handle, 0, 1, []vk.Rect2D{scissor})

	vk.CmdBindDescriptorSets(commandBuffer.Handle, vk.PipelineBindPointGraphics, pipeline.PipelineLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	pipeline.PushConstants(commandBuffer, draw.Shader.PackUniforms(draw.Uniforms))
	vk.CmdDraw(commandBuffer.Handle, FULLSCREEN_VERTEX_COUNT, 1, 0, 0)
	renderpass.RenderpassEnd(commandBuffer)

	if draw.Output == nil {
		vr.displayDrawn = true
	}
	vr.drawCalls++
	return nil
}

func (vr *VulkanRenderer) inputView(target *metadata.RenderTarget, fallback *VulkanImage) vk.ImageView {
	if target == nil {
		return fallback.View
	}
	if t, ok := target.InternalData.(*VulkanTarget); ok && t.Image != nil {
		return t.Image.View
	}
	return fallback.View
}

// DrawCalls is the number of full-screen draws recorded since Initialize.
func (vr *VulkanRenderer) DrawCalls() uint64 {
	return vr.drawCalls
}

func (vr *VulkanRenderer) DisplayRead() (*image.RGBA, error) {
	if vr.presentedFrame < 0 {
		return nil, fmt.Errorf("nothing has been presented yet")
	}
	if err := vr.context.InFlightFences[vr.presentedFrame].FenceWait(vr.context, math.MaxUint64); err != nil {
		return nil, err
	}

	extent := vr.presentedExtents[vr.presentedFrame]
	pixels, err := vr.context.Readback[vr.presentedFrame].ReadData(vr.context, uint64(extent.Width)*uint64(extent.Height)*TARGET_BYTES_PER_PIXEL)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, int(extent.Width), int(extent.Height)))
	switch vr.presentedFormat {
	case vk.FormatB8g8r8a8Unorm, vk.FormatB8g8r8a8Srgb:
		for i := 0; i+3 < len(pixels); i += 4 {
			img.Pix[i+0] = pixels[i+2]
			img.Pix[i+1] = pixels[i+1]
			img.Pix[i+2] = pixels[i+0]
			img.Pix[i+3] = pixels[i+3]
		}
	case vk.FormatR8g8b8a8Unorm, vk.FormatR8g8b8a8Srgb:
		copy(img.Pix, pixels)
	default:
		return nil, fmt.Errorf("cannot read back display format %d", vr.presentedFormat)
	}
	return img, nil
}

func (vr *VulkanRenderer) ShaderCreate(shader *metadata.Shader) error {
	internal := &VulkanShader{
		PushConstantSize: shader.PushConstantSize,
		Pipelines:        map[vk.Format]*VulkanPipeline{},
	}
	for _, cfg := range shader.Stages {
		stage, err := NewShaderModule(vr.context, cfg)
		if err != nil {
			internal.Destroy(vr.context)
			return fmt.Errorf("shader '%s': %w", shader.Name, err)
		}
		internal.Stages = append(internal.Stages, stage)
	}
	shader.InternalData = internal
	shader.State = metadata.SHADER_STATE_INITIALIZED
	return nil
}

func (vr *VulkanRenderer) ShaderDestroy(shader *metadata.Shader) {
	internal, ok := shader.InternalData.(*VulkanShader)
	if ok && vr.context.Device != nil {
		// Frames in flight may still use the pipelines.
		vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)
		internal.Destroy(vr.context)
	}
	shader.InternalData = nil
	shader.State = metadata.SHADER_STATE_NOT_CREATED
}

func (vr *VulkanRenderer) createCommandBuffers() error {
	if len(vr.context.GraphicsCommandBuffers) == 0 {
		vr.context.GraphicsCommandBuffers = make([]*VulkanCommandBuffer, MAX_FRAMES_IN_FLIGHT)
	}
	for i := range vr.context.GraphicsCommandBuffers {
		if vr.context.GraphicsCommandBuffers[i] != nil && vr.context.GraphicsCommandBuffers[i].Handle != nil {
			vr.context.GraphicsCommandBuffers[i].Free(vr.context, vr.context.Device.GraphicsCommandPool)
		}
		vr.context.GraphicsCommandBuffers[i] = nil
		cb, err := NewVulkanCommandBuffer(vr.context, vr.context.Device.GraphicsCommandPool, true)
		if err != nil {
			return err
		}
		vr.context.GraphicsCommandBuffers[i] = cb
	}

	core.LogDebug("Vulkan command buffers created.")
	return nil
}

func (vr *VulkanRenderer) createSyncObjects() error {
	vr.context.ImageAvailableSemaphores = make([]vk.Semaphore, MAX_FRAMES_IN_FLIGHT)
	vr.context.QueueCompleteSemaphores = make([]vk.Semaphore, MAX_FRAMES_IN_FLIGHT)
	vr.context.InFlightFences = make([]*VulkanFence, MAX_FRAMES_IN_FLIGHT)

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	for i := 0; i < MAX_FRAMES_IN_FLIGHT; i++ {
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.ImageAvailableSemaphores[i]); res != vk.Success {
			err := vulkanError("vkCreateSemaphore", res)
			core.LogError("%s", err)
			return err
		}
		if res := vk.CreateSemaphore(vr.context.Device.LogicalDevice, &semaphoreCreateInfo, vr.context.Allocator, &vr.context.QueueCompleteSemaphores[i]); res != vk.Success {
			err := vulkanError("vkCreateSemaphore", res)
			core.LogError("%s", err)
			return err
		}

		// Create the fence in a signaled state, indicating that the first frame has already been "rendered".
		// This will prevent the application from waiting indefinitely for the first frame to render since it
		// cannot be rendered until a frame is "rendered" before it.
		f, err := NewFence(vr.context, true)
		if err != nil {
			return err
		}
		vr.context.InFlightFences[i] = f
	}

	// These are stored in pointers because the initial state should be nil, and will be nil when not in use.
	// Actual fences are not owned by this list.
	vr.context.ImagesInFlight = make([]*VulkanFence, vr.context.Swapchain.ImageCount)
	return nil
}

func (vr *VulkanRenderer) createReadbackBuffers() error {
	extent := vr.context.Swapchain.Extent
	size := uint64(extent.Width) * uint64(extent.Height) * TARGET_BYTES_PER_PIXEL
	for _, b := range vr.context.Readback {
		if b != nil {
			b.Destroy(vr.context)
		}
	}
	vr.context.Readback = make([]*VulkanBuffer, MAX_FRAMES_IN_FLIGHT)
	for i := range vr.context.Readback {
		b, err := BufferCreate(vr.context, size, vk.BufferUsageTransferDstBit)
		if err != nil {
			return err
		}
		vr.context.Readback[i] = b
	}
	vr.presentedFrame = -1
	return nil
}

func (vr *VulkanRenderer) createDummyImage(format vk.Format) (*VulkanImage, error) {
	img, err := ImageCreate(vr.context, 1, 1, format)
	if err != nil {
		return nil, err
	}
	if err := vr.uploadImage(img, make([]byte, TARGET_BYTES_PER_PIXEL)); err != nil {
		img.ImageDestroy(vr.context)
		return nil, err
	}
	return img, nil
}

func (vr *VulkanRenderer) regenerateFramebuffers() error {
	swapchain := vr.context.Swapchain
	swapchain.Framebuffers = make([]*VulkanFramebuffer, swapchain.ImageCount)
	for i := range swapchain.Views {
		fb, err := FramebufferCreate(vr.context, vr.context.DisplayRenderpass, swapchain.Extent.Width, swapchain.Extent.Height, []vk.ImageView{swapchain.Views[i]})
		if err != nil {
			core.LogError("failed to execute framebuffer create function")
			return err
		}
		swapchain.Framebuffers[i] = fb
	}
	return nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	// If already being recreated, do not try again.
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreate_swapchain called when already recreating. Booting.")
		return nil
	}

	width, height := vr.cachedFramebufferWidth, vr.cachedFramebufferHeight
	if width == 0 || height == 0 {
		width, height = vr.context.FramebufferWidth, vr.context.FramebufferHeight
	}
	// Detect if the window is too small to be drawn to
	if width == 0 || height == 0 {
		core.LogDebug("recreate_swapchain called when window is < 1 in a dimension. Booting.")
		return nil
	}

	// Mark as recreating if the dimensions are valid.
	vr.context.RecreatingSwapchain = true
	defer func() { vr.context.RecreatingSwapchain = false }()

	// Wait for any operations to complete.
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	oldFormat := vr.context.Swapchain.ImageFormat.Format
	sc, err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height)
	if errors.Is(err, core.ErrSwapchainBooting) {
		// Minimized, keep the generation mismatch so the next frame tries again.
		return nil
	}
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	if sc.ImageFormat.Format != oldFormat {
		vr.context.DisplayRenderpass.RenderpassDestroy(vr.context)
		rp, err := RenderpassCreate(vr.context, sc.ImageFormat.Format, vk.ImageLayoutPresentSrc, 0.0, 0.0, 0.0, 1.0)
		if err != nil {
			return err
		}
		vr.context.DisplayRenderpass = rp
	}

	// Sync the framebuffer size with the cached sizes.
	vr.context.FramebufferWidth = sc.Extent.Width
	vr.context.FramebufferHeight = sc.Extent.Height
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	// Update framebuffer size generation.
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.regenerateFramebuffers(); err != nil {
		return err
	}
	if err := vr.createReadbackBuffers(); err != nil {
		return err
	}
	vr.context.ImagesInFlight = make([]*VulkanFence, sc.ImageCount)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("ERROR: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE WARNING: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		core.LogDebug("DEBUG: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("INFORMATION: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
