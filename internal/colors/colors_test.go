package colors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientEndpointsMatchInputs(t *testing.T) {
	grad := Gradient("#FF0000", "#0000FF", 10)
	require.Len(t, grad, 10)

	// lch round trips can be off by a channel unit or two
	r, g, b := HexToRGB(grad[0])
	assert.InDelta(t, 255, r, 3)
	assert.InDelta(t, 0, g, 3)
	assert.InDelta(t, 0, b, 3)

	r, g, b = HexToRGB(grad[9])
	assert.InDelta(t, 0, r, 3)
	assert.InDelta(t, 0, g, 3)
	assert.InDelta(t, 255, b, 3)
}

func TestGradientClampsSteps(t *testing.T) {
	grad := Gradient("#112233", "#445566", 1)
	assert.Len(t, grad, 2)
}

func TestBlendOfColorWithItself(t *testing.T) {
	blended := Blend("#8BA4E8", "#8BA4E8", 0.5)
	r1, g1, b1 := HexToRGB("#8BA4E8")
	r2, g2, b2 := HexToRGB(blended)
	assert.InDelta(t, r1, r2, 2)
	assert.InDelta(t, g1, g2, 2)
	assert.InDelta(t, b1, b2, 2)
}

func TestLightnessOrdering(t *testing.T) {
	white := Lightness("#FFFFFF")
	grey := Lightness("#808080")
	black := Lightness("#000000")

	assert.Greater(t, white, grey)
	assert.Greater(t, grey, black)
	assert.InDelta(t, 100.0, white, 0.5)
	assert.InDelta(t, 0.0, black, 0.5)
}

func TestSmoothnessPrefersNearbyColors(t *testing.T) {
	near := Smoothness("#3355AA", "#3366BB", 20)
	far := Smoothness("#FF0000", "#00FFFF", 20)
	assert.Less(t, near, far)
}

func TestGlowAndDim(t *testing.T) {
	r0, g0, b0 := HexToRGB("#405060")

	r, g, b := HexToRGB(Glow("#405060", 0.5))
	assert.GreaterOrEqual(t, r, r0)
	assert.GreaterOrEqual(t, g, g0)
	assert.GreaterOrEqual(t, b, b0)

	r, g, b = HexToRGB(Dim("#405060", 0.5))
	assert.LessOrEqual(t, r, r0)
	assert.LessOrEqual(t, g, g0)
	assert.LessOrEqual(t, b, b0)
}

func TestGlowClampsAtWhite(t *testing.T) {
	assert.Equal(t, "#FFFFFF", Glow("#FFFFFF", 1.0))
}

func TestHexToRGBFallsBackToWhite(t *testing.T) {
	r, g, b := HexToRGB("not-a-color")
	assert.Equal(t, 255, r)
	assert.Equal(t, 255, g)
	assert.Equal(t, 255, b)

	r, _, _ = HexToRGB("#ZZ1122")
	assert.Equal(t, 255, r)
}

func TestGradientTextKeepsEveryRune(t *testing.T) {
	grad := Gradient("#FF0000", "#0000FF", 5)
	out := GradientText("hello", grad, false)
	for _, r := range "hello" {
		assert.Contains(t, out, string(r))
	}

	assert.Equal(t, "plain", GradientText("plain", nil, true))
	assert.Equal(t, "", GradientText("", grad, false))
}

func TestFormatTime(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{-5, "0:00"},
		{0, "0:00"},
		{9, "0:09"},
		{61, "1:01"},
		{600, "10:00"},
		{3661, "61:01"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatTime(tc.seconds), "seconds=%d", tc.seconds)
	}
}

func TestGradientStopsAreValidHex(t *testing.T) {
	for _, stop := range Gradient("#8BA4E8", "#E8A4C8", 20) {
		require.True(t, strings.HasPrefix(stop, "#"))
		require.Len(t, stop, 7)
	}
}
