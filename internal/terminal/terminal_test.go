package terminal

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectInsideKitty(t *testing.T) {
	t.Setenv("TERM", "xterm-kitty")
	t.Setenv("KITTY_WINDOW_ID", "")

	caps := Detect(false)
	assert.True(t, caps.KittyGraphics)
}

func TestDetectViaWindowID(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "3")

	caps := Detect(false)
	assert.True(t, caps.KittyGraphics)
}

func TestDetectPlainTerminal(t *testing.T) {
	t.Setenv("TERM", "xterm-256color")
	t.Setenv("KITTY_WINDOW_ID", "")

	assert.False(t, Detect(false).KittyGraphics)
	assert.True(t, Detect(true).KittyGraphics)
}

func TestKittyImageNil(t *testing.T) {
	assert.Equal(t, "", KittyImage(nil, 8, 4))
	assert.Equal(t, "", KittyImage(image.NewRGBA(image.Rect(0, 0, 0, 0)), 8, 4))
}

func TestKittyImageFraming(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}

	out := KittyImage(img, 8, 4)
	require.NotEmpty(t, out)
	assert.True(t, strings.HasPrefix(out, "\x1b_Ga=T,f=100,c=8,r=4,"))
	assert.True(t, strings.HasSuffix(out, "\x1b\\"))
	assert.Contains(t, out, "m=0;")
}

func TestKittyImageChunksLargePayloads(t *testing.T) {
	// noise compresses poorly, so the base64 payload spans many chunks
	img := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x*31 + y*17) % 251),
				G: uint8((x*13 + y*41) % 241),
				B: uint8((x*7 + y*29) % 239),
				A: 255,
			})
		}
	}

	out := KittyImage(img, 40, 20)
	require.NotEmpty(t, out)
	assert.Contains(t, out, "m=1;")
	assert.Contains(t, out, "\x1b_Gm=")
	assert.True(t, strings.HasSuffix(out, "\x1b\\"))
}
