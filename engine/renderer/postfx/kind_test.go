package postfx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEffectKind(t *testing.T) {
	tests := []struct {
		in      string
		want    EffectKind
		wantErr bool
	}{
		{"fxaa", EFFECT_KIND_FXAA, false},
		{" DOF ", EFFECT_KIND_DOF, false},
		{"bloom", EFFECT_KIND_BLOOM, false},
		{"uv", EFFECT_KIND_UV, false},
		{"passthrough", EFFECT_KIND_PASSTHROUGH, false},
		{"ssao", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEffectKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.String(), got.ShaderName())
		})
	}
}

func TestEffectParameterNames(t *testing.T) {
	assert.Empty(t, EffectParameterNames(EFFECT_KIND_UV))
	assert.Equal(t, []string{"max_blur", "focus_range"}, EffectParameterNames(EFFECT_KIND_DOF))
	assert.NotContains(t, EffectParameterNames(EFFECT_KIND_FXAA), UNIFORM_RESOLUTION_X)
	assert.Contains(t, RequiredUniforms(EFFECT_KIND_BLOOM), UNIFORM_RESOLUTION_Y)

	names := EffectParameterNames(EFFECT_KIND_BLOOM)
	names[0] = "changed"
	assert.Equal(t, BLOOM_PARAM_THRESHOLD, EffectParameterNames(EFFECT_KIND_BLOOM)[0])
}

func TestSetParameterByName(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_FXAA, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM, EFFECT_KIND_UV)

	for _, e := range layers {
		for _, name := range EffectParameterNames(e.Kind()) {
			require.NoError(t, e.SetParameter(name, 3), "%s.%s", e.Kind(), name)
			v, ok := e.Pass().Uniform(name)
			require.True(t, ok)
			assert.Equal(t, float32(3), v)
		}
		assert.Error(t, e.SetParameter("nope", 1))
	}

	fxaa := layers[0].(*FXAA)
	assert.Equal(t, 3, fxaa.Parameters().SearchSteps)
	assert.Error(t, fxaa.SetParameter(FXAA_PARAM_SEARCH_STEPS, 0))
}

func TestDefaultParametersAreUploaded(t *testing.T) {
	p, _, _ := newTestPipeline(t)
	layers := pushAll(t, p, EFFECT_KIND_DOF, EFFECT_KIND_BLOOM)

	dof := layers[0].(*DOF)
	assert.Equal(t, float32(0.03), dof.Parameters().MaxBlur)
	v, _ := dof.Uniform(DOF_PARAM_FOCUS_RANGE)
	assert.Equal(t, float32(0.986), v)

	bloom := layers[1].(*Bloom)
	bloom.SetParameters(BloomParameters{Threshold: 0.5, Knee: 0.2, BlurStep: 2, Intensity: 1})
	v, _ = bloom.Uniform(BLOOM_PARAM_BLUR_STEP)
	assert.Equal(t, float32(2), v)
	assert.Equal(t, float32(0.5), bloom.Parameters().Threshold)
}
