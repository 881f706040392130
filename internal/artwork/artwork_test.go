package artwork

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	quads := []color.RGBA{
		{R: 200, G: 60, B: 60, A: 255},
		{R: 60, G: 180, B: 200, A: 255},
		{R: 220, G: 180, B: 70, A: 255},
		{R: 90, G: 70, B: 190, A: 255},
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			q := 0
			if x >= w/2 {
				q = 1
			}
			if y >= h/2 {
				q += 2
			}
			img.Set(x, y, quads[q])
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDefaultPalette(t *testing.T) {
	p := DefaultPalette()
	require.NotNil(t, p)
	assert.Equal(t, "#8BA4E8", p.Primary)
	assert.Len(t, p.Gradient, gradientSteps)
}

func TestPaletteFromNilImage(t *testing.T) {
	p := PaletteFrom(nil)
	require.NotNil(t, p)
	assert.Equal(t, DefaultPalette().Primary, p.Primary)
}

func TestPaletteFromImageAlwaysUsable(t *testing.T) {
	p := PaletteFrom(testImage(200, 200))
	require.NotNil(t, p)

	require.Len(t, p.Gradient, gradientSteps)
	for _, hex := range []string{p.Primary, p.Secondary, p.Accent, p.Dim} {
		assert.True(t, strings.HasPrefix(hex, "#"), "color %q not hex", hex)
		assert.Len(t, hex, 7)
	}
}

func TestRenderHalfBlockDimensions(t *testing.T) {
	lines := RenderHalfBlock(testImage(64, 64), 8, 4)
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Contains(t, line, "▀")
	}
}

func TestRenderHalfBlockRejectsTinyTargets(t *testing.T) {
	img := testImage(64, 64)
	assert.Nil(t, RenderHalfBlock(img, 3, 4))
	assert.Nil(t, RenderHalfBlock(img, 8, 1))
	assert.Nil(t, RenderHalfBlock(nil, 8, 4))
}

func TestRenderHalfBlockTransparentPixels(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	lines := RenderHalfBlock(img, 8, 4)
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Equal(t, "", strings.TrimSpace(line))
	}
}

func TestFetchFromFileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, testImage(32, 32)), 0o644))

	img, err := Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
}

func TestFetchFromMissingFile(t *testing.T) {
	_, err := Fetch(context.Background(), "file:///nowhere/cover.png")
	assert.Error(t, err)
}

func TestFetchOverHTTP(t *testing.T) {
	data := encodePNG(t, testImage(24, 24))
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer ts.Close()

	img, err := Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
}

func TestFetchRejectsBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, err := Fetch(context.Background(), ts.URL)
	assert.ErrorContains(t, err, "status 404")
}

func TestFetchEmptyURL(t *testing.T) {
	_, err := Fetch(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchHonorsContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, ts.URL)
	assert.Error(t, err)
}
