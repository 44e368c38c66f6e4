package metadata

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
)

/**
 * @brief Represents the current state of a given shader.
 */
type ShaderState int

const (
	/** @brief The shader has not yet gone through the creation process, and is unusable.*/
	SHADER_STATE_NOT_CREATED ShaderState = iota
	/** @brief The shader source compiled and was reflected, but the backend has not built it yet.*/
	SHADER_STATE_UNINITIALIZED
	/** @brief The shader is created and initialized, and is ready for use.*/
	SHADER_STATE_INITIALIZED
)

const SHADER_ENTRY_POINT = "main"

/**
 * @brief One stage of a full-screen program.
 */
type ShaderStageConfig struct {
	Stage gputypes.ShaderStage
	/** @brief File name without extension, e.g. "fxaa.frag". */
	FileName   string
	EntryPoint string
	Source     gputypes.ShaderSourceWGSL
	SPIRV      gputypes.ShaderSourceSPIRV
}

/**
 * @brief A scalar f32 member of the fragment parameter block.
 */
type ShaderUniform struct {
	Name   string
	Offset uint32
	Size   uint32
}

/**
 * @brief Represents a full-screen shader program on the frontend.
 */
type Shader struct {
	/** @brief The shader identifier */
	ID uint32
	/** @brief Program name, e.g. "fxaa". */
	Name  string
	State ShaderState
	/** @brief Vertex stage first, then fragment. */
	Stages []*ShaderStageConfig
	/** @brief Parameter block members keyed by name. */
	Uniforms map[string]ShaderUniform
	/** @brief Size in bytes of the push constant parameter block, 0 when the program has none. */
	PushConstantSize uint32
	/** @brief Backend specific data. */
	InternalData interface{}
}

func (s *Shader) HasUniform(name string) bool {
	_, ok := s.Uniforms[name]
	return ok
}

/**
 * @brief Lays out the given values in the parameter block as little endian f32s.
 * Values without a matching uniform are ignored and missing ones are zero.
 */
func (s *Shader) PackUniforms(values map[string]float32) []byte {
	if s.PushConstantSize == 0 {
		return nil
	}
	block := make([]byte, s.PushConstantSize)
	for name, v := range values {
		u, ok := s.Uniforms[name]
		if !ok || u.Offset+4 > s.PushConstantSize {
			continue
		}
		binary.LittleEndian.PutUint32(block[u.Offset:], math.Float32bits(v))
	}
	return block
}
