package scene

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/cartofx/engine/renderer/metadata"
)

// inlineJobs runs every job on its own goroutine, like a worker pool would.
type inlineJobs struct{}

func (inlineJobs) Submit(jt metadata.JobTask) error {
	go func() {
		results := make(chan interface{}, 1)
		if err := jt.OnStart(jt.InputParams, results); err != nil {
			jt.OnFailure(err)
			return
		}
		jt.OnComplete(<-results)
	}()
	return nil
}

func TestProceduralSceneIsDeterministic(t *testing.T) {
	a, err := NewProceduralScene(7).Render(64, 48)
	require.NoError(t, err)
	b, err := NewProceduralScene(7).Render(64, 48)
	require.NoError(t, err)

	assert.Equal(t, a.Color.Pix, b.Color.Pix)
	assert.Equal(t, a.Depth, b.Depth)
	assert.Len(t, a.Depth, 64*48)
	assert.Equal(t, image.Rect(0, 0, 64, 48), a.Color.Rect)
	for _, d := range a.Depth {
		assert.True(t, d >= DEPTH_NEAR-BUILDING_DEPTH_OFFSET && d <= DEPTH_FAR, "depth %v out of range", d)
	}

	_, err = NewProceduralScene(7).Render(0, 10)
	assert.Error(t, err)
}

func TestImageSceneScales(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < len(src.Pix); i += 4 {
		src.Pix[i], src.Pix[i+3] = 200, 255
	}
	depth := image.NewRGBA(image.Rect(0, 0, 4, 4))
	s := NewImageScene("flat", src, depth)

	f, err := s.Render(8, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 2), f.Color.Rect)
	c := f.Color.RGBAAt(3, 1)
	assert.InDelta(t, 200, int(c.R), 1)
	assert.InDelta(t, 255, int(c.A), 1)
	assert.Equal(t, uint8(0), c.G)
	// black depth map is nearest
	assert.InDelta(t, DEPTH_NEAR, f.Depth[5], 1e-6)

	f, err = NewImageScene("ramp", src, nil).Render(4, 3)
	require.NoError(t, err)
	assert.InDelta(t, DEPTH_FAR, f.Depth[0], 1e-6)
	assert.InDelta(t, DEPTH_NEAR, f.Depth[len(f.Depth)-1], 1e-6)
}

type countingSource struct{ renders int }

func (c *countingSource) Name() string { return "counting" }
func (c *countingSource) Render(w, h int) (*Frame, error) {
	c.renders++
	return &Frame{Color: image.NewRGBA(image.Rect(0, 0, w, h)), Depth: make([]float32, w*h)}, nil
}

func TestCacheRerendersOnResize(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src)
	for i := 0; i < 3; i++ {
		_, err := c.Render(10, 10)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.renders)
	_, err := c.Render(20, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, src.renders)
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder(32, 32, 0.5)
	assert.Equal(t, image.Rect(0, 0, 32, 32), img.Rect)
	// corners stay background
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(31, 31))
}

func TestLoaderHandsOffOnce(t *testing.T) {
	l := NewLoader()
	_, done, err := l.Poll()
	assert.False(t, done)
	assert.NoError(t, err)

	release := make(chan struct{})
	require.NoError(t, l.Start(inlineJobs{}, func() (Source, error) {
		<-release
		return NewCache(&countingSource{}), nil
	}))
	assert.Error(t, l.Start(inlineJobs{}, nil))

	_, done, _ = l.Poll()
	assert.False(t, done)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	src, err := l.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "counting", src.Name())

	again, done, err := l.Poll()
	assert.True(t, done)
	assert.NoError(t, err)
	assert.Same(t, src, again)
}

func TestLoaderReportsFailure(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.Start(inlineJobs{}, func() (Source, error) {
		return nil, errors.New("no shapefile")
	}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := l.Wait(ctx)
	assert.EqualError(t, err, "no shapefile")
}

func TestBuildProcedural(t *testing.T) {
	src, err := Build(Options{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, "procedural-3", src.Name())

	_, err = Build(Options{Path: "map.png"})
	assert.Error(t, err)
}
