package renderer

import (
	"fmt"
	"strings"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/platform"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
	"github.com/spaghettifunk/cartofx/engine/renderer/vulkan"
)

func ParseBackendType(name string) (metadata.RendererBackendType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "vulkan":
		return metadata.RENDERER_BACKEND_TYPE_VULKAN, nil
	case "software":
		return metadata.RENDERER_BACKEND_TYPE_SOFTWARE, nil
	default:
		return 0, fmt.Errorf("unknown renderer backend '%s'", name)
	}
}

/**
 * @brief Creates an uninitialized backend of the given type.
 * @param p The platform owning the window. Required by Vulkan, ignored by the software backend.
 * @param validation Enables the Vulkan validation layers.
 */
func NewBackend(backendType metadata.RendererBackendType, p *platform.Platform, validation bool) (metadata.RendererBackend, error) {
	switch backendType {
	case metadata.RENDERER_BACKEND_TYPE_VULKAN:
		if p == nil {
			err := fmt.Errorf("the vulkan backend needs a platform window")
			core.LogError("%s", err)
			return nil, err
		}
		return vulkan.New(p, validation), nil
	case metadata.RENDERER_BACKEND_TYPE_SOFTWARE:
		return software.New(), nil
	default:
		err := fmt.Errorf("unsupported renderer backend %s", backendType)
		core.LogError("%s", err)
		return nil, err
	}
}

// NeedsSPIRV reports whether programs must carry SPIR-V for the backend.
func NeedsSPIRV(backendType metadata.RendererBackendType) bool {
	return backendType == metadata.RENDERER_BACKEND_TYPE_VULKAN
}
