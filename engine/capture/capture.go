// Package capture renders the compositor without a window and writes the result to disk.
package capture

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HugoSmits86/nativewebp"

	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
	"github.com/spaghettifunk/cartofx/engine/systems"
)

const (
	FORMAT_PNG  = "png"
	FORMAT_WEBP = "webp"

	DEFAULT_SCENE_TIMEOUT = 30 * time.Second
	// Frame time fed to the passes, 60 frames per second.
	DEFAULT_DELTA_TIME = 1.0 / 60.0
)

type Options struct {
	Config *config.Config
	// Output size. Zero uses the configured window size.
	Width  uint32
	Height uint32
	// Frames drawn once the scene is ready; the last one is returned.
	Frames int
	// Shader sources, nil for the configured directory or the bundled programs.
	Shaders fs.FS
	// How long to wait for the scene.
	Timeout time.Duration
}

/**
 * @brief Builds the viewer on the software backend, waits for the scene and draws
 * opts.Frames frames through the configured passes.
 * @returns The last displayed image.
 */
func Render(ctx context.Context, opts Options) (*image.RGBA, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("capture.Render - a configuration is required")
	}
	cfg := *opts.Config
	// Nothing is watching for edits between frames here.
	hotReload := false
	cfg.Shaders.HotReload = &hotReload

	frames := opts.Frames
	if frames <= 0 {
		frames = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_SCENE_TIMEOUT
	}

	sm, err := systems.NewSystemManager(&systems.SystemManagerConfig{
		Config:   &cfg,
		Shaders:  opts.Shaders,
		Width:    opts.Width,
		Height:   opts.Height,
		SkipFade: true,
	}, software.New())
	if err != nil {
		return nil, err
	}
	if err := sm.Initialize(); err != nil {
		_ = sm.Shutdown()
		return nil, err
	}
	defer func() {
		if err := sm.Shutdown(); err != nil {
			core.LogWarn("capture shutdown: %s", err)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sm.RendererSystem.WaitScene(waitCtx); err != nil {
		return nil, fmt.Errorf("scene not ready: %w", err)
	}

	frame := &metadata.FrameContext{}
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame.DeltaTime = DEFAULT_DELTA_TIME
		frame.Elapsed += DEFAULT_DELTA_TIME
		if err := sm.DrawFrame(frame); err != nil {
			return nil, err
		}
	}
	core.LogDebug("captured %d frames at %dx%d", frames, frame.Width, frame.Height)
	return sm.RendererSystem.Display()
}

// FormatFromPath picks the encoder from the file extension.
func FormatFromPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FORMAT_PNG, nil
	case ".webp":
		return FORMAT_WEBP, nil
	default:
		return "", fmt.Errorf("unsupported output '%s', use .png or .webp", path)
	}
}

func Encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case FORMAT_PNG:
		return png.Encode(w, img)
	case FORMAT_WEBP:
		// lossless
		return nativewebp.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported image format '%s'", format)
	}
}

// WriteFile encodes img in the format named by the path's extension.
func WriteFile(path string, img image.Image) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Encode(f, img, format); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
