package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/cartofx/engine/core"
)

// VulkanBuffer is a host visible, coherent buffer used to stage uploads and readbacks.
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
}

func BufferCreate(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits) (*VulkanBuffer, error) {
	buf := &VulkanBuffer{Size: size}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := vulkanError("vkCreateBuffer", res)
		core.LogError("%s", err)
		return nil, err
	}
	buf.Handle = handle

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if memoryType < 0 {
		buf.Destroy(context)
		err := fmt.Errorf("unable to create vulkan buffer because the required memory type index was not found")
		core.LogError("%s", err)
		return nil, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
		buf.Destroy(context)
		err := vulkanError("vkAllocateMemory", res)
		core.LogError("%s", err)
		return nil, err
	}
	buf.Memory = memory

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		buf.Destroy(context)
		return nil, vulkanError("vkBindBufferMemory", res)
	}
	return buf, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	b.Size = 0
}

// LoadData copies data to the start of the buffer.
func (b *VulkanBuffer) LoadData(context *VulkanContext, data []byte) error {
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("buffer holds %d bytes, got %d", b.Size, len(data))
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(len(data)), 0, &ptr); res != vk.Success {
		return vulkanError("vkMapMemory", res)
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// ReadData copies the first n bytes of the buffer out.
func (b *VulkanBuffer) ReadData(context *VulkanContext, n uint64) ([]byte, error) {
	if n > b.Size {
		return nil, fmt.Errorf("buffer holds %d bytes, asked for %d", b.Size, n)
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, 0, vk.DeviceSize(n), 0, &ptr); res != vk.Success {
		return nil, vulkanError("vkMapMemory", res)
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(ptr), n))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return out, nil
}
