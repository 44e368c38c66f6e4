package loaders

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spaghettifunk/cartofx/engine/core"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const SHADER_SOURCE_EXTENSION = ".wgsl"

// ShaderLoader reads WGSL source text from a file system.
type ShaderLoader struct {
	Sources fs.FS
}

// Load reads "<path>.wgsl", where path is a stage file name such as "fxaa.frag".
func (sl *ShaderLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	file := path + SHADER_SOURCE_EXTENSION
	data, err := fs.ReadFile(sl.Sources, file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", core.ErrShaderNotFound, file)
		}
		return nil, err
	}
	return &metadata.Resource{
		Name:     path,
		Type:     metadata.ResourceTypeShader,
		FullPath: file,
		DataSize: uint64(len(data)),
		Data:     string(data),
	}, nil
}

func (sl *ShaderLoader) Unload(r *metadata.Resource) error {
	r.Data = nil
	r.DataSize = 0
	return nil
}
