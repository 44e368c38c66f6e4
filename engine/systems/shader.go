package systems

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/cartofx/engine/assets"
	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/wgsl"
)

const VERTEX_STAGE_FILE = "passthrough.vert"

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief Generate SPIR-V for every stage. Needed by the Vulkan backend. */
	EmitSPIRV bool
	/** @brief Emit debug names in generated SPIR-V. */
	Debug bool
}

/**
 * @brief Builds full-screen programs from WGSL sources and keeps one instance per name.
 */
type ShaderSystem struct {
	// This system's configuration.
	Config *ShaderSystemConfig
	// A lookup table for shader name->shader
	Lookup map[string]*metadata.Shader

	mu      sync.Mutex
	assets  *assets.AssetManager
	backend metadata.RendererBackend
}

func NewShaderSystem(config *ShaderSystemConfig, am *assets.AssetManager, backend metadata.RendererBackend) (*ShaderSystem, error) {
	if am == nil || backend == nil {
		err := fmt.Errorf("NewShaderSystem - asset manager and renderer backend are required")
		core.LogError("%s", err)
		return nil, err
	}
	if config == nil {
		config = &ShaderSystemConfig{}
	}
	return &ShaderSystem{
		Config:  config,
		Lookup:  make(map[string]*metadata.Shader),
		assets:  am,
		backend: backend,
	}, nil
}

/**
 * @brief Returns the program built from passthrough.vert and <name>.frag, building it
 * on first use. Failures are *core.ShaderLoadError naming the stage file.
 */
func (s *ShaderSystem) Acquire(name string) (*metadata.Shader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sh, ok := s.Lookup[name]; ok {
		return sh, nil
	}
	sh, err := s.build(name)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	sh.ID = core.IdentifierAquireNewID(sh)
	s.Lookup[name] = sh
	core.LogDebug("shader '%s' created with %d parameters", name, len(sh.Uniforms))
	return sh, nil
}

/**
 * @brief Rebuilds a cached program from its current sources. The *metadata.Shader
 * handed out by Acquire stays the same. If the new program fails to build or lacks
 * one of the required uniforms, the old one is kept.
 */
func (s *ShaderSystem) Reload(name string, required []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.Lookup[name]
	if !ok {
		return nil
	}
	fresh, err := s.build(name)
	if err != nil {
		core.LogError("%s", err)
		return err
	}
	for _, u := range required {
		if !fresh.HasUniform(u) {
			s.backend.ShaderDestroy(fresh)
			err := &core.ShaderLoadError{Shader: name + ".frag", Err: fmt.Errorf("no uniform '%s'", u)}
			core.LogError("%s", err)
			return err
		}
	}

	id := current.ID
	s.backend.ShaderDestroy(current)
	*current = *fresh
	current.ID = id
	core.LogInfo("shader '%s' reloaded", name)
	return nil
}

// Names lists the cached programs.
func (s *ShaderSystem) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.Lookup))
	for n := range s.Lookup {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (s *ShaderSystem) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, sh := range s.Lookup {
		s.backend.ShaderDestroy(sh)
		_ = core.IdentifierReleaseID(sh.ID)
		delete(s.Lookup, name)
	}
	return nil
}

func (s *ShaderSystem) build(name string) (*metadata.Shader, error) {
	vert, err := s.compileStage(VERTEX_STAGE_FILE, gputypes.ShaderStageVertex)
	if err != nil {
		return nil, err
	}
	fragFile := name + ".frag"
	frag, err := s.compileStage(fragFile, gputypes.ShaderStageFragment)
	if err != nil {
		return nil, err
	}

	sh := &metadata.Shader{
		Name:             name,
		State:            metadata.SHADER_STATE_UNINITIALIZED,
		Stages:           []*metadata.ShaderStageConfig{stageConfig(VERTEX_STAGE_FILE, vert), stageConfig(fragFile, frag)},
		Uniforms:         make(map[string]metadata.ShaderUniform, len(frag.Parameters)),
		PushConstantSize: frag.ParameterBlockSize,
	}
	for _, u := range frag.Parameters {
		sh.Uniforms[u.Name] = u
	}
	if err := s.backend.ShaderCreate(sh); err != nil {
		return nil, &core.ShaderLoadError{Shader: fragFile, Err: err}
	}
	return sh, nil
}

func (s *ShaderSystem) compileStage(file string, stage gputypes.ShaderStage) (*wgsl.Program, error) {
	res, err := s.assets.LoadAsset(file, metadata.ResourceTypeShader, nil)
	if err != nil {
		return nil, &core.ShaderLoadError{Shader: file, Err: err}
	}
	prog, err := wgsl.Compile(file, res.Data.(string), wgsl.Options{EmitSPIRV: s.Config.EmitSPIRV, Debug: s.Config.Debug})
	if err != nil {
		return nil, &core.ShaderLoadError{Shader: file, Err: err}
	}
	if prog.Stage != stage {
		return nil, &core.ShaderLoadError{Shader: file, Err: fmt.Errorf("expected a %v entry point, found %v", stage, prog.Stage)}
	}
	return prog, nil
}

func stageConfig(file string, prog *wgsl.Program) *metadata.ShaderStageConfig {
	return &metadata.ShaderStageConfig{
		Stage:      prog.Stage,
		FileName:   file,
		EntryPoint: prog.EntryPoint,
		Source:     prog.Source,
		SPIRV:      prog.SPIRV,
	}
}
