package core

import (
	"errors"
	"fmt"
)

var (
	ErrSwapchainBooting    = errors.New("swapchain resized or recreated, booting")
	ErrShaderNotFound      = errors.New("shader source not found")
	ErrInvalidTargetSize   = errors.New("render target size must be positive")
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrQueueFull           = errors.New("queue is full")
	ErrQueueEmpty          = errors.New("queue is empty")
	ErrSceneNotReady       = errors.New("scene is not ready")
	ErrUnknown             = errors.New("unknown")
)

// ShaderLoadError reports which shader program could not be built.
type ShaderLoadError struct {
	Shader string
	Err    error
}

func (e *ShaderLoadError) Error() string {
	return fmt.Sprintf("failed to load shader '%s': %v", e.Shader, e.Err)
}

func (e *ShaderLoadError) Unwrap() error {
	return e.Err
}
