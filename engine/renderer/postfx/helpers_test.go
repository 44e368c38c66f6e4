package postfx

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
	"github.com/spaghettifunk/cartofx/engine/renderer/software"
)

// testShaders builds programs for the software backend without touching WGSL.
type testShaders struct {
	backend  *software.Backend
	cache    map[string]*metadata.Shader
	missing  map[string]bool
	stripped map[string]string
	reloads  []string
}

func newTestShaders(backend *software.Backend) *testShaders {
	return &testShaders{
		backend:  backend,
		cache:    map[string]*metadata.Shader{},
		missing:  map[string]bool{},
		stripped: map[string]string{},
	}
}

func (s *testShaders) uniformsFor(name string) []string {
	if name == COMPOSITE_SHADER_NAME {
		return []string{UNIFORM_FADE}
	}
	kind, err := ParseEffectKind(name)
	if err != nil {
		return nil
	}
	var out []string
	for _, u := range RequiredUniforms(kind) {
		if s.stripped[name] != u {
			out = append(out, u)
		}
	}
	return out
}

func (s *testShaders) Acquire(name string) (*metadata.Shader, error) {
	if s.missing[name] {
		return nil, fmt.Errorf("open %s.frag.wgsl: file does not exist", name)
	}
	if sh, ok := s.cache[name]; ok {
		return sh, nil
	}
	sh := &metadata.Shader{
		Name: name,
		Stages: []*metadata.ShaderStageConfig{
			{Stage: gputypes.ShaderStageVertex, FileName: "passthrough.vert"},
			{Stage: gputypes.ShaderStageFragment, FileName: name + ".frag"},
		},
		Uniforms: map[string]metadata.ShaderUniform{},
	}
	for i, u := range s.uniformsFor(name) {
		sh.Uniforms[u] = metadata.ShaderUniform{Name: u, Offset: uint32(i * 4), Size: 4}
	}
	sh.PushConstantSize = uint32(len(sh.Uniforms) * 4)
	if err := s.backend.ShaderCreate(sh); err != nil {
		return nil, err
	}
	s.cache[name] = sh
	return sh, nil
}

func (s *testShaders) Reload(name string, required []string) error {
	s.reloads = append(s.reloads, name)
	return nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *software.Backend, *testShaders) {
	t.Helper()
	backend := software.New()
	require.NoError(t, backend.Initialize("postfx-test", 8, 8))
	shaders := newTestShaders(backend)
	p, err := NewPipeline(backend, shaders)
	require.NoError(t, err)
	t.Cleanup(p.Destroy)
	return p, backend, shaders
}

func pushAll(t *testing.T, p *Pipeline, kinds ...EffectKind) []Effect {
	t.Helper()
	out := make([]Effect, 0, len(kinds))
	for _, k := range kinds {
		e, err := p.PushLayer(k)
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

// requireContinuity checks that every pass reads what the one before it produced.
func requireContinuity(t *testing.T, p *Pipeline) {
	t.Helper()
	prev := p.Pool().Color()
	for i, e := range p.Layers() {
		pass := e.Pass()
		require.Samef(t, prev, pass.Input(), "pass %d (%s) input", i, e.Kind())
		require.Same(t, p.Pool().Depth(), pass.Depth())
		require.NotSame(t, pass.Input(), pass.Output())
		prev = pass.EffectiveOutput()
	}
	require.Same(t, prev, p.FinalOutput())
	require.Same(t, prev, p.Composite().Source())
}

func sceneImage(w, h int) (*image.RGBA, []float32) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	depth := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / max(w-1, 1)),
				G: uint8(y * 255 / max(h-1, 1)),
				B: uint8((x * y) % 256),
				A: 255,
			})
			depth[y*w+x] = float32(x) / float32(w)
		}
	}
	return img, depth
}

func renderFrame(t *testing.T, p *Pipeline, backend *software.Backend) *image.RGBA {
	t.Helper()
	w, h := p.Pool().Size()
	require.NoError(t, backend.Resized(w, h))
	frame := metadata.NewFrameContext(w, h)
	require.NoError(t, backend.BeginFrame(frame))
	require.NoError(t, p.Render(frame))
	require.NoError(t, backend.EndFrame(frame))
	img, err := backend.DisplayRead()
	require.NoError(t, err)
	return img
}
