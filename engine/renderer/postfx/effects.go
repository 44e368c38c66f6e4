package postfx

import (
	"fmt"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const (
	FXAA_PARAM_SEARCH_STEPS        = "search_steps"
	FXAA_PARAM_EDGE_THRESHOLD_MIN  = "edge_threshold_min"
	FXAA_PARAM_EDGE_THRESHOLD_MAX  = "edge_threshold_max"
	FXAA_PARAM_BLUR_CLOSE_DISTANCE = "blur_close_distance"
	FXAA_PARAM_BLUR_FAR_DISTANCE   = "blur_far_distance"

	DOF_PARAM_MAX_BLUR    = "max_blur"
	DOF_PARAM_FOCUS_RANGE = "focus_range"

	BLOOM_PARAM_THRESHOLD = "threshold"
	BLOOM_PARAM_KNEE      = "knee"
	BLOOM_PARAM_BLUR_STEP = "blur_step"
	BLOOM_PARAM_INTENSITY = "intensity"
)

type effectFactory func(base *EffectPass) Effect

var effectFactories = map[EffectKind]effectFactory{
	EFFECT_KIND_PASSTHROUGH: func(base *EffectPass) Effect { return &Passthrough{EffectPass: base} },
	EFFECT_KIND_UV:          func(base *EffectPass) Effect { return &UV{EffectPass: base} },
	EFFECT_KIND_FXAA: func(base *EffectPass) Effect {
		e := &FXAA{EffectPass: base}
		e.SetParameters(DefaultFXAAParameters())
		e.setResolution(base.width, base.height)
		return e
	},
	EFFECT_KIND_DOF: func(base *EffectPass) Effect {
		e := &DOF{EffectPass: base}
		e.SetParameters(DefaultDOFParameters())
		return e
	},
	EFFECT_KIND_BLOOM: func(base *EffectPass) Effect {
		e := &Bloom{EffectPass: base}
		e.SetParameters(DefaultBloomParameters())
		e.setResolution(base.width, base.height)
		return e
	},
}

// Passthrough copies its input unchanged.
type Passthrough struct {
	*EffectPass
}

// UV writes the texture coordinates as color, for checking the full-screen geometry.
type UV struct {
	*EffectPass
}

/** FXAA */

type FXAAParameters struct {
	SearchSteps       int     `toml:"search_steps"`
	EdgeThresholdMin  float32 `toml:"edge_threshold_min"`
	EdgeThresholdMax  float32 `toml:"edge_threshold_max"`
	BlurCloseDistance float32 `toml:"blur_close_distance"`
	BlurFarDistance   float32 `toml:"blur_far_distance"`
}

func DefaultFXAAParameters() FXAAParameters {
	return FXAAParameters{
		SearchSteps:       8,
		EdgeThresholdMin:  0.0312,
		EdgeThresholdMax:  0.125,
		BlurCloseDistance: 1.0,
		BlurFarDistance:   1.5,
	}
}

type FXAA struct {
	*EffectPass
	params FXAAParameters
}

// Resize also refreshes the resolution the edge search steps are measured against.
func (e *FXAA) Resize(width, height uint32) {
	e.EffectPass.Resize(width, height)
	e.setResolution(width, height)
}

func (e *FXAA) Parameters() FXAAParameters {
	return e.params
}

func (e *FXAA) SetParameters(params FXAAParameters) {
	e.SetSearchSteps(params.SearchSteps)
	e.SetEdgeThresholdMin(params.EdgeThresholdMin)
	e.SetEdgeThresholdMax(params.EdgeThresholdMax)
	e.SetBlurCloseDistance(params.BlurCloseDistance)
	e.SetBlurFarDistance(params.BlurFarDistance)
}

func (e *FXAA) SetSearchSteps(steps int) {
	e.params.SearchSteps = steps
	e.setUniform(FXAA_PARAM_SEARCH_STEPS, float32(steps))
}

func (e *FXAA) SetEdgeThresholdMin(v float32) {
	e.params.EdgeThresholdMin = v
	e.setUniform(FXAA_PARAM_EDGE_THRESHOLD_MIN, v)
}

func (e *FXAA) SetEdgeThresholdMax(v float32) {
	e.params.EdgeThresholdMax = v
	e.setUniform(FXAA_PARAM_EDGE_THRESHOLD_MAX, v)
}

func (e *FXAA) SetBlurCloseDistance(v float32) {
	e.params.BlurCloseDistance = v
	e.setUniform(FXAA_PARAM_BLUR_CLOSE_DISTANCE, v)
}

func (e *FXAA) SetBlurFarDistance(v float32) {
	e.params.BlurFarDistance = v
	e.setUniform(FXAA_PARAM_BLUR_FAR_DISTANCE, v)
}

func (e *FXAA) SetParameter(name string, value float64) error {
	switch name {
	case FXAA_PARAM_SEARCH_STEPS:
		if value < 1 {
			return fmt.Errorf("fxaa %s must be at least 1, got %v", name, value)
		}
		e.SetSearchSteps(int(value))
	case FXAA_PARAM_EDGE_THRESHOLD_MIN:
		e.SetEdgeThresholdMin(float32(value))
	case FXAA_PARAM_EDGE_THRESHOLD_MAX:
		e.SetEdgeThresholdMax(float32(value))
	case FXAA_PARAM_BLUR_CLOSE_DISTANCE:
		e.SetBlurCloseDistance(float32(value))
	case FXAA_PARAM_BLUR_FAR_DISTANCE:
		e.SetBlurFarDistance(float32(value))
	default:
		return e.EffectPass.SetParameter(name, value)
	}
	return nil
}

/** Depth of field */

type DOFParameters struct {
	MaxBlur    float32 `toml:"max_blur"`
	FocusRange float32 `toml:"focus_range"`
}

func DefaultDOFParameters() DOFParameters {
	return DOFParameters{
		MaxBlur:    0.03,
		FocusRange: 0.986,
	}
}

type DOF struct {
	*EffectPass
	params DOFParameters
}

func (e *DOF) Parameters() DOFParameters {
	return e.params
}

func (e *DOF) SetParameters(params DOFParameters) {
	e.SetMaxBlur(params.MaxBlur)
	e.SetFocusRange(params.FocusRange)
}

func (e *DOF) SetMaxBlur(v float32) {
	e.params.MaxBlur = v
	e.setUniform(DOF_PARAM_MAX_BLUR, v)
}

func (e *DOF) SetFocusRange(v float32) {
	e.params.FocusRange = v
	e.setUniform(DOF_PARAM_FOCUS_RANGE, v)
}

func (e *DOF) SetParameter(name string, value float64) error {
	switch name {
	case DOF_PARAM_MAX_BLUR:
		e.SetMaxBlur(float32(value))
	case DOF_PARAM_FOCUS_RANGE:
		e.SetFocusRange(float32(value))
	default:
		return e.EffectPass.SetParameter(name, value)
	}
	return nil
}

/** Bloom */

type BloomParameters struct {
	Threshold float32 `toml:"threshold"`
	Knee      float32 `toml:"knee"`
	BlurStep  float32 `toml:"blur_step"`
	Intensity float32 `toml:"intensity"`
}

func DefaultBloomParameters() BloomParameters {
	return BloomParameters{
		Threshold: 0.9,
		Knee:      0.1,
		BlurStep:  1.0,
		Intensity: 2.0,
	}
}

type Bloom struct {
	*EffectPass
	params BloomParameters
}

func (e *Bloom) Resize(width, height uint32) {
	e.EffectPass.Resize(width, height)
	e.setResolution(width, height)
}

func (e *Bloom) Parameters() BloomParameters {
	return e.params
}

func (e *Bloom) SetParameters(params BloomParameters) {
	e.SetThreshold(params.Threshold)
	e.SetKnee(params.Knee)
	e.SetBlurStep(params.BlurStep)
	e.SetIntensity(params.Intensity)
}

func (e *Bloom) SetThreshold(v float32) {
	e.params.Threshold = v
	e.setUniform(BLOOM_PARAM_THRESHOLD, v)
}

func (e *Bloom) SetKnee(v float32) {
	e.params.Knee = v
	e.setUniform(BLOOM_PARAM_KNEE, v)
}

func (e *Bloom) SetBlurStep(v float32) {
	e.params.BlurStep = v
	e.setUniform(BLOOM_PARAM_BLUR_STEP, v)
}

func (e *Bloom) SetIntensity(v float32) {
	e.params.Intensity = v
	e.setUniform(BLOOM_PARAM_INTENSITY, v)
}

func (e *Bloom) SetParameter(name string, value float64) error {
	switch name {
	case BLOOM_PARAM_THRESHOLD:
		e.SetThreshold(float32(value))
	case BLOOM_PARAM_KNEE:
		e.SetKnee(float32(value))
	case BLOOM_PARAM_BLUR_STEP:
		e.SetBlurStep(float32(value))
	case BLOOM_PARAM_INTENSITY:
		e.SetIntensity(float32(value))
	default:
		return e.EffectPass.SetParameter(name, value)
	}
	return nil
}

// checkUniforms reports the first uniform the kind needs that the shader does not declare.
func checkUniforms(kind EffectKind, shader *metadata.Shader) error {
	for _, name := range RequiredUniforms(kind) {
		if !shader.HasUniform(name) {
			return fmt.Errorf("shader '%s' has no uniform '%s'", shader.Name, name)
		}
	}
	return nil
}
