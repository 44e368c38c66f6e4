package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/cartofx/engine/capture"
	"github.com/spaghettifunk/cartofx/engine/core"
)

type renderOpts struct {
	output  string
	width   uint32
	height  uint32
	frames  int
	timeout time.Duration
}

func newRenderCmd(root *rootOptions) *cobra.Command {
	opts := renderOpts{
		output:  "frame.png",
		frames:  1,
		timeout: capture.DEFAULT_SCENE_TIMEOUT,
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the scene headless to a PNG or WebP file",
		Long:  "Runs the configured passes on the software backend, without a window, and writes the last frame.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := capture.FormatFromPath(opts.output); err != nil {
				return err
			}
			img, err := capture.Render(cmd.Context(), capture.Options{
				Config:  root.config,
				Width:   opts.width,
				Height:  opts.height,
				Frames:  opts.frames,
				Timeout: opts.timeout,
			})
			if err != nil {
				return err
			}
			if err := capture.WriteFile(opts.output, img); err != nil {
				return err
			}
			core.LogInfo("wrote %s (%dx%d)", opts.output, img.Rect.Dx(), img.Rect.Dy())
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "out", "o", opts.output, "output file, .png or .webp")
	cmd.Flags().Uint32Var(&opts.width, "width", 0, "output width, 0 for the configured window width")
	cmd.Flags().Uint32Var(&opts.height, "height", 0, "output height, 0 for the configured window height")
	cmd.Flags().IntVar(&opts.frames, "frames", opts.frames, "frames to draw before writing")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "how long to wait for the scene")
	return cmd
}
