package wgsl

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// ResourceBinding is a texture or sampler slot declared by a program.
type ResourceBinding struct {
	Name    string
	Group   uint32
	Binding uint32
}

// Program is a single compiled stage together with what was reflected from it.
type Program struct {
	Name       string
	Stage      gputypes.ShaderStage
	EntryPoint string
	Source     gputypes.ShaderSourceWGSL
	// Empty unless Options.EmitSPIRV was set.
	SPIRV gputypes.ShaderSourceSPIRV
	// Members of the push constant block, ordered by offset.
	Parameters         []metadata.ShaderUniform
	ParameterBlockSize uint32
	Bindings           []ResourceBinding
}

type Options struct {
	// Entry point to look for, defaults to "main".
	EntryPoint string
	EmitSPIRV  bool
	Debug      bool
}

// CompileError carries the stage of the toolchain that failed.
type CompileError struct {
	Name  string
	Phase string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Name, e.Phase, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

/**
 * @brief Parses, lowers and validates WGSL source, then reflects the entry point,
 * the push constant parameter block and the resource bindings.
 * @param name The program name used in errors.
 * @param source The WGSL text.
 * @param opts Compile options.
 */
func Compile(name, source string, opts Options) (*Program, error) {
	entry := opts.EntryPoint
	if entry == "" {
		entry = metadata.SHADER_ENTRY_POINT
	}

	ast, err := naga.Parse(source)
	if err != nil {
		return nil, &CompileError{Name: name, Phase: "parse", Err: err}
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, &CompileError{Name: name, Phase: "lower", Err: err}
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, &CompileError{Name: name, Phase: "validate", Err: err}
	}
	if len(verrs) > 0 {
		joined := make([]error, 0, len(verrs))
		for _, v := range verrs {
			joined = append(joined, v)
		}
		return nil, &CompileError{Name: name, Phase: "validate", Err: errors.Join(joined...)}
	}

	prog := &Program{
		Name:       name,
		EntryPoint: entry,
		Source:     gputypes.ShaderSourceWGSL{Code: source},
	}
	if prog.Stage, err = entryStage(module, entry); err != nil {
		return nil, &CompileError{Name: name, Phase: "reflect", Err: err}
	}
	if err := reflectGlobals(module, prog); err != nil {
		return nil, &CompileError{Name: name, Phase: "reflect", Err: err}
	}

	if opts.EmitSPIRV {
		code, err := naga.GenerateSPIRV(module, spirv.Options{Version: spirv.Version1_3, Debug: opts.Debug})
		if err != nil {
			return nil, &CompileError{Name: name, Phase: "spirv", Err: err}
		}
		words, err := BytesToWords(code)
		if err != nil {
			return nil, &CompileError{Name: name, Phase: "spirv", Err: err}
		}
		prog.SPIRV = gputypes.ShaderSourceSPIRV{Code: words}
	}
	return prog, nil
}

// SOURCE_EXTENSION is the suffix of every program file.
const SOURCE_EXTENSION = ".wgsl"

/**
 * @brief Compiles every .wgsl file at the root of fsys, in name order. Programs are
 * named after their file without the extension. A failing file does not stop the others.
 * @returns The programs that compiled and the joined errors of those that did not.
 */
func CompileFS(fsys fs.FS, opts Options) ([]*Program, error) {
	files, err := fs.Glob(fsys, "*"+SOURCE_EXTENSION)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s programs found", SOURCE_EXTENSION)
	}
	sort.Strings(files)

	var progs []*Program
	var errs []error
	for _, file := range files {
		src, err := fs.ReadFile(fsys, file)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		prog, err := Compile(strings.TrimSuffix(file, SOURCE_EXTENSION), string(src), opts)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		progs = append(progs, prog)
	}
	return progs, errors.Join(errs...)
}

func entryStage(module *ir.Module, entry string) (gputypes.ShaderStage, error) {
	for _, ep := range module.EntryPoints {
		if ep.Name != entry {
			continue
		}
		switch ep.Stage {
		case ir.StageVertex:
			return gputypes.ShaderStageVertex, nil
		case ir.StageFragment:
			return gputypes.ShaderStageFragment, nil
		case ir.StageCompute:
			return gputypes.ShaderStageCompute, nil
		default:
			return 0, fmt.Errorf("entry point '%s' has an unsupported stage", entry)
		}
	}
	return 0, fmt.Errorf("entry point '%s' not found", entry)
}

func reflectGlobals(module *ir.Module, prog *Program) error {
	for _, gv := range module.GlobalVariables {
		if gv.Binding != nil {
			prog.Bindings = append(prog.Bindings, ResourceBinding{
				Name:    gv.Name,
				Group:   gv.Binding.Group,
				Binding: gv.Binding.Binding,
			})
		}
		if gv.Space != ir.SpacePushConstant && gv.Space != ir.SpaceImmediate {
			continue
		}
		if prog.ParameterBlockSize != 0 {
			return fmt.Errorf("more than one push constant block declared")
		}
		if int(gv.Type) >= len(module.Types) {
			return fmt.Errorf("push constant '%s' references unknown type %d", gv.Name, gv.Type)
		}
		st, ok := module.Types[gv.Type].Inner.(ir.StructType)
		if !ok {
			return fmt.Errorf("push constant '%s' must be a struct of f32", gv.Name)
		}
		for _, m := range st.Members {
			if int(m.Type) >= len(module.Types) {
				return fmt.Errorf("parameter '%s' references unknown type %d", m.Name, m.Type)
			}
			scalar, ok := module.Types[m.Type].Inner.(ir.ScalarType)
			if !ok || scalar.Kind != ir.ScalarFloat || scalar.Width != 4 {
				return fmt.Errorf("parameter '%s' must be f32", m.Name)
			}
			prog.Parameters = append(prog.Parameters, metadata.ShaderUniform{
				Name:   m.Name,
				Offset: m.Offset,
				Size:   4,
			})
		}
		prog.ParameterBlockSize = st.Span
	}
	sort.Slice(prog.Parameters, func(i, j int) bool { return prog.Parameters[i].Offset < prog.Parameters[j].Offset })
	sort.Slice(prog.Bindings, func(i, j int) bool {
		if prog.Bindings[i].Group != prog.Bindings[j].Group {
			return prog.Bindings[i].Group < prog.Bindings[j].Group
		}
		return prog.Bindings[i].Binding < prog.Bindings[j].Binding
	})
	return nil
}

// BytesToWords reinterprets a little endian SPIR-V blob as 32-bit words.
func BytesToWords(code []byte) ([]uint32, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("SPIR-V size %d is not a multiple of 4", len(code))
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words, nil
}

// WordsToBytes is the inverse of BytesToWords.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[i*4:], w)
	}
	return out
}
