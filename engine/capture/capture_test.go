package capture

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/webp"

	"github.com/spaghettifunk/cartofx/engine/config"
	"github.com/spaghettifunk/cartofx/shaders"
)

func renderTest(t *testing.T, cfg *config.Config) Options {
	t.Helper()
	return Options{
		Config:  cfg,
		Width:   20,
		Height:  12,
		Frames:  2,
		Shaders: shaders.FS,
		Timeout: 10 * time.Second,
	}
}

func TestRenderDrawsTheScene(t *testing.T) {
	img, err := Render(context.Background(), renderTest(t, config.Default()))
	require.NoError(t, err)
	assert.Equal(t, 20, img.Rect.Dx())
	assert.Equal(t, 12, img.Rect.Dy())

	lit := false
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 || img.Pix[i+1] != 0 || img.Pix[i+2] != 0 {
			lit = true
			break
		}
	}
	assert.True(t, lit, "expected a non-black frame")
}

func TestRenderRequiresConfig(t *testing.T) {
	_, err := Render(context.Background(), Options{})
	assert.Error(t, err)
}

func TestRenderLeavesConfigUntouched(t *testing.T) {
	cfg := config.Default()
	_, err := Render(context.Background(), renderTest(t, cfg))
	require.NoError(t, err)
	require.NotNil(t, cfg.Shaders.HotReload)
	assert.True(t, *cfg.Shaders.HotReload)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("out/frame.PNG")
	require.NoError(t, err)
	assert.Equal(t, FORMAT_PNG, f)

	f, err = FormatFromPath("frame.webp")
	require.NoError(t, err)
	assert.Equal(t, FORMAT_WEBP, f)

	_, err = FormatFromPath("frame.gif")
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	img, err := Render(context.Background(), renderTest(t, config.Default()))
	require.NoError(t, err)
	dir := t.TempDir()

	pngPath := filepath.Join(dir, "frame.png")
	require.NoError(t, WriteFile(pngPath, img))
	data, err := os.ReadFile(pngPath)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	webpPath := filepath.Join(dir, "nested", "frame.webp")
	require.NoError(t, WriteFile(webpPath, img))
	data, err = os.ReadFile(webpPath)
	require.NoError(t, err)
	decoded, err = webp.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds().Size(), decoded.Bounds().Size())

	assert.Error(t, WriteFile(filepath.Join(dir, "frame.bmp"), img))
}
