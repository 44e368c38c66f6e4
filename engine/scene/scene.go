// Package scene provides the images the compositor post-processes: a color
// image and a matching depth buffer per frame.
package scene

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/spaghettifunk/cartofx/engine/assets"
	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

const (
	DEPTH_NEAR = 0.95
	DEPTH_FAR  = 1.0
)

// Frame is one rendered scene. Depth has one sample per pixel in row order,
// 0 nearest and 1 farthest.
type Frame struct {
	Color *image.RGBA
	Depth []float32
}

type Source interface {
	Name() string
	Render(width, height int) (*Frame, error)
}

type Options struct {
	// Image to show. Empty selects the procedural map.
	Path string
	// Optional grayscale depth image for Path.
	DepthPath string
	Seed      int64
	// Artificial build time, to exercise the loading placeholder.
	Delay  time.Duration
	Assets *assets.AssetManager
}

// Build creates the scene described by opts. It may take a while and is meant
// to run on a worker.
func Build(opts Options) (Source, error) {
	if opts.Delay > 0 {
		time.Sleep(opts.Delay)
	}
	var src Source
	if opts.Path == "" {
		src = NewProceduralScene(opts.Seed)
	} else {
		if opts.Assets == nil {
			return nil, fmt.Errorf("an asset manager is required to load '%s'", opts.Path)
		}
		color, err := loadImage(opts.Assets, opts.Path)
		if err != nil {
			return nil, err
		}
		var depth *image.RGBA
		if opts.DepthPath != "" {
			if depth, err = loadImage(opts.Assets, opts.DepthPath); err != nil {
				return nil, err
			}
		}
		src = NewImageScene(opts.Path, color, depth)
	}
	return NewCache(src), nil
}

func loadImage(am *assets.AssetManager, path string) (*image.RGBA, error) {
	if !assets.IsImage(path) {
		return nil, fmt.Errorf("'%s' is not a supported image", path)
	}
	res, err := am.LoadAsset(path, metadata.ResourceTypeImage, nil)
	if err != nil {
		return nil, err
	}
	return res.Data.(*metadata.ImageResourceData).Image, nil
}

// Cache keeps the last frame of a static source and only re-renders on size changes.
type Cache struct {
	mu     sync.Mutex
	source Source
	last   *Frame
}

func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

func (c *Cache) Name() string {
	return c.source.Name()
}

func (c *Cache) Render(width, height int) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && c.last.Color.Rect.Dx() == width && c.last.Color.Rect.Dy() == height {
		return c.last, nil
	}
	f, err := c.source.Render(width, height)
	if err != nil {
		return nil, err
	}
	c.last = f
	return f, nil
}

// RampDepth fills a depth buffer that goes from far at the top row to near at the bottom.
func RampDepth(width, height int) []float32 {
	depth := make([]float32, width*height)
	for y := 0; y < height; y++ {
		t := float32(y) / float32(max(height-1, 1))
		d := DEPTH_FAR - (DEPTH_FAR-DEPTH_NEAR)*t
		row := depth[y*width : (y+1)*width]
		for x := range row {
			row[x] = d
		}
	}
	return depth
}
