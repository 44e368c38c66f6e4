package cmd

import (
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/cartofx/engine"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/testbed"
)

type viewOptions struct {
	backend    string
	validation bool
	fps        float64
	frames     uint64
}

func newViewCmd(root *rootOptions) *cobra.Command {
	opts := viewOptions{}

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Open the map viewer window",
		Long:  "Opens a window showing the scene through the configured passes. Keys toggle passes, Escape quits.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.config
			if opts.backend != "" {
				cfg.Renderer.Backend = opts.backend
			}
			if opts.validation {
				cfg.Renderer.Validation = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			viewer := testbed.NewViewer(cfg, opts.fps, opts.frames)
			e, err := engine.New(viewer.Game)
			if err != nil {
				return err
			}
			if err := e.Initialize(); err != nil {
				_ = e.Shutdown()
				return err
			}
			runErr := e.Run(cmd.Context())
			if err := e.Shutdown(); err != nil {
				core.LogError("shutdown: %s", err)
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&opts.backend, "backend", "", "renderer backend: vulkan or software (overrides the configuration)")
	cmd.Flags().BoolVar(&opts.validation, "validation", false, "enable the Vulkan validation layers")
	cmd.Flags().Float64Var(&opts.fps, "fps", 0, "frame rate cap, 0 for uncapped")
	cmd.Flags().Uint64Var(&opts.frames, "frames", 0, "quit after this many frames, 0 to run until closed")
	return cmd
}
