package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/wgsl"
	"github.com/spaghettifunk/cartofx/engine/systems"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newShadersCmd(root *rootOptions) *cobra.Command {
	var spirvDir string

	cmd := &cobra.Command{
		Use:   "shaders",
		Short: "Validate the pass programs and print what they declare",
		Long: "Compiles every program in the shader directory (or the bundled ones), prints each stage, " +
			"its parameters and bindings, and optionally writes the SPIR-V the Vulkan backend would use.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, dir := systems.ShaderSources(root.config.Shaders.Dir)
			if dir == "" {
				dir = "bundled"
			}
			progs, compileErr := wgsl.CompileFS(sources, wgsl.Options{EmitSPIRV: spirvDir != ""})

			rows := make([][]string, 0, len(progs))
			for _, p := range progs {
				rows = append(rows, []string{p.Name, stageName(p.Stage), describeParameters(p), describeBindings(p)})
			}
			t := table.New().
				Border(lipgloss.RoundedBorder()).
				Headers("Program", "Stage", "Parameters", "Bindings").
				Rows(rows...).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return headerStyle.Padding(0, 1)
					}
					return cellStyle
				})
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n%s\n", root.config.Shaders.Dir, dir, t.Render())

			if spirvDir != "" {
				if err := writeSPIRV(spirvDir, progs); err != nil {
					return err
				}
			}
			if compileErr != nil {
				return fmt.Errorf("some programs failed to compile:\n%w", compileErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&spirvDir, "spirv", "", "write <program>.spv files to this directory")
	return cmd
}

func stageName(stage gputypes.ShaderStage) string {
	switch stage {
	case gputypes.ShaderStageVertex:
		return "vertex"
	case gputypes.ShaderStageFragment:
		return "fragment"
	case gputypes.ShaderStageCompute:
		return "compute"
	default:
		return fmt.Sprintf("stage(%d)", stage)
	}
}

func describeParameters(p *wgsl.Program) string {
	if len(p.Parameters) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(p.Parameters))
	for _, u := range p.Parameters {
		parts = append(parts, fmt.Sprintf("%s@%d", u.Name, u.Offset))
	}
	return fmt.Sprintf("%s (%d bytes)", strings.Join(parts, " "), p.ParameterBlockSize)
}

func describeBindings(p *wgsl.Program) string {
	if len(p.Bindings) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(p.Bindings))
	for _, b := range p.Bindings {
		parts = append(parts, fmt.Sprintf("%d:%d %s", b.Group, b.Binding, b.Name))
	}
	return strings.Join(parts, ", ")
}

func writeSPIRV(dir string, progs []*wgsl.Program) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, p := range progs {
		path := filepath.Join(dir, p.Name+".spv")
		if err := os.WriteFile(path, wgsl.WordsToBytes(p.SPIRV.Code), 0o644); err != nil {
			return err
		}
		core.LogDebug("wrote %s (%d words)", path, len(p.SPIRV.Code))
	}
	core.LogInfo("wrote %d SPIR-V modules to %s", len(progs), dir)
	return nil
}
