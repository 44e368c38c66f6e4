// Package cmd is the cartofx command line.
package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/postfx"
)

// layerParamFlag overrides one pass tunable on every configured layer of its kind.
type layerParamFlag struct {
	name  string
	kind  postfx.EffectKind
	param string
	usage string
	value float64
}

type rootOptions struct {
	configPath string
	logLevel   string
	params     []*layerParamFlag

	// Loaded in PersistentPreRunE, shared by the subcommands.
	config *config.Config
}

func newLayerParamFlags() []*layerParamFlag {
	return []*layerParamFlag{
		{name: "fxaa-search-steps", kind: postfx.EFFECT_KIND_FXAA, param: postfx.FXAA_PARAM_SEARCH_STEPS, usage: "FXAA edge search steps"},
		{name: "fxaa-blur-close", kind: postfx.EFFECT_KIND_FXAA, param: postfx.FXAA_PARAM_BLUR_CLOSE_DISTANCE, usage: "FXAA blur at close distance"},
		{name: "fxaa-blur-far", kind: postfx.EFFECT_KIND_FXAA, param: postfx.FXAA_PARAM_BLUR_FAR_DISTANCE, usage: "FXAA blur at far distance"},
		{name: "dof-max-blur", kind: postfx.EFFECT_KIND_DOF, param: postfx.DOF_PARAM_MAX_BLUR, usage: "depth of field maximum blur"},
		{name: "dof-focus-range", kind: postfx.EFFECT_KIND_DOF, param: postfx.DOF_PARAM_FOCUS_RANGE, usage: "depth of field focus range"},
		{name: "bloom-threshold", kind: postfx.EFFECT_KIND_BLOOM, param: postfx.BLOOM_PARAM_THRESHOLD, usage: "bloom luminance threshold"},
		{name: "bloom-intensity", kind: postfx.EFFECT_KIND_BLOOM, param: postfx.BLOOM_PARAM_INTENSITY, usage: "bloom intensity"},
	}
}

/**
 * @brief Builds the command tree: view, render and shaders share the --config,
 * --log-level and pass parameter flags.
 */
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{params: newLayerParamFlags()}

	root := &cobra.Command{
		Use:           "cartofx",
		Short:         "Layered post-processing for the map viewer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides the configuration)")
	for _, p := range opts.params {
		pf.Float64Var(&p.value, p.name, 0, p.usage)
	}

	root.AddCommand(newViewCmd(opts))
	root.AddCommand(newRenderCmd(opts))
	root.AddCommand(newShadersCmd(opts))
	return root
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	level := cfg.Log.Level
	if o.logLevel != "" {
		level = o.logLevel
	}
	if err := core.SetLogLevel(strings.ToLower(level)); err != nil {
		return err
	}
	for _, p := range o.params {
		if cmd.Flags().Changed(p.name) {
			cfg.SetLayerParam(p.kind.String(), p.param, p.value)
		}
	}
	o.config = cfg
	return nil
}

// Execute runs the command line until it finishes or ctx is cancelled.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
