package postfx

import (
	"fmt"
	"strings"
)

// EffectKind is the stable tag passes are pushed and looked up by.
type EffectKind uint8

const (
	EFFECT_KIND_PASSTHROUGH EffectKind = iota
	EFFECT_KIND_UV
	EFFECT_KIND_FXAA
	EFFECT_KIND_DOF
	EFFECT_KIND_BLOOM
	EFFECT_KIND_MAX
)

var effectKindNames = [EFFECT_KIND_MAX]string{
	EFFECT_KIND_PASSTHROUGH: "passthrough",
	EFFECT_KIND_UV:          "uv",
	EFFECT_KIND_FXAA:        "fxaa",
	EFFECT_KIND_DOF:         "dof",
	EFFECT_KIND_BLOOM:       "bloom",
}

func (k EffectKind) String() string {
	if k >= EFFECT_KIND_MAX {
		return fmt.Sprintf("effect(%d)", uint8(k))
	}
	return effectKindNames[k]
}

// ShaderName is the program the pass runs: passthrough.vert plus <kind>.frag.
func (k EffectKind) ShaderName() string {
	return k.String()
}

func ParseEffectKind(name string) (EffectKind, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for k, s := range effectKindNames {
		if s == n {
			return EffectKind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown effect kind '%s'", name)
}

// Tunable parameters per kind, in the order their setters are documented.
var effectParameters = map[EffectKind][]string{
	EFFECT_KIND_FXAA: {
		FXAA_PARAM_SEARCH_STEPS,
		FXAA_PARAM_EDGE_THRESHOLD_MIN,
		FXAA_PARAM_EDGE_THRESHOLD_MAX,
		FXAA_PARAM_BLUR_CLOSE_DISTANCE,
		FXAA_PARAM_BLUR_FAR_DISTANCE,
	},
	EFFECT_KIND_DOF: {
		DOF_PARAM_MAX_BLUR,
		DOF_PARAM_FOCUS_RANGE,
	},
	EFFECT_KIND_BLOOM: {
		BLOOM_PARAM_THRESHOLD,
		BLOOM_PARAM_KNEE,
		BLOOM_PARAM_BLUR_STEP,
		BLOOM_PARAM_INTENSITY,
	},
}

// Uniforms the pass derives from its viewport rather than from parameters.
var derivedUniforms = map[EffectKind][]string{
	EFFECT_KIND_FXAA:  {UNIFORM_RESOLUTION_X, UNIFORM_RESOLUTION_Y},
	EFFECT_KIND_BLOOM: {UNIFORM_RESOLUTION_X, UNIFORM_RESOLUTION_Y},
}

// EffectParameterNames lists the tunables of a kind. Kinds without parameters return nil.
func EffectParameterNames(kind EffectKind) []string {
	names := effectParameters[kind]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// RequiredUniforms lists every uniform the shader of a kind must declare.
func RequiredUniforms(kind EffectKind) []string {
	return append(EffectParameterNames(kind), derivedUniforms[kind]...)
}
