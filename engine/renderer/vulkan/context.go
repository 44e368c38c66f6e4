package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
)

const MAX_FRAMES_IN_FLIGHT = 2

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match FramebufferSizeLastGeneration,
	// a new swapchain should be generated.
	FramebufferSizeGeneration uint64
	// The generation of the framebuffer when it was last created. Set to FramebufferSizeGeneration
	// when updated.
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	Swapchain *VulkanSwapchain
	// Renders the composite into the swapchain images.
	DisplayRenderpass *VulkanRenderpass
	// Offscreen render passes keyed by attachment format.
	TargetRenderpasses map[vk.Format]*VulkanRenderpass

	GraphicsCommandBuffers []*VulkanCommandBuffer

	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore

	InFlightFences []*VulkanFence
	// Holds pointers to fences which exist and are owned elsewhere.
	ImagesInFlight []*VulkanFence

	// One pool per frame in flight, reset when the frame starts over.
	DescriptorPools     []vk.DescriptorPool
	DescriptorSetLayout vk.DescriptorSetLayout
	Sampler             vk.Sampler

	// Host copy of the last composited frame, one per frame in flight.
	Readback []*VulkanBuffer

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}
