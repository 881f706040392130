// Package colors does gradient and blending math in LCH space, which
// keeps interpolated colors perceptually even instead of washing out
// through grey the way naive RGB interpolation does.
package colors

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Gradient interpolates between two hex colors in LCH space, taking the
// shortest path around the hue wheel. Distant color pairs get a double
// smoothstep so the transition eases at both ends instead of banding.
func Gradient(from, to string, steps int) []string {
	if steps < 2 {
		steps = 2
	}

	start := toLCH(HexToRGB(from))
	end := toLCH(HexToRGB(to))
	dh := hueDelta(start.h, end.h)

	// big perceptual distances need extra easing
	smooth := math.Abs(end.c-start.c) > 30 ||
		math.Abs(end.l-start.l) > 30 ||
		math.Abs(dh) > 60

	out := make([]string, steps)
	for i := 0; i < steps; i++ {
		t := float64(i) / float64(steps-1)
		if smooth {
			t = smoothstep(smoothstep(t))
		}
		v := lch{
			l: start.l + t*(end.l-start.l),
			c: start.c + t*(end.c-start.c),
			h: wrapHue(start.h + t*dh),
		}
		out[i] = RGBToHex(v.rgb())
	}
	return out
}

// Smoothness reports the largest perceptual jump a gradient between two
// colors would contain, using the redmean approximation. Lower is
// smoother; values past ~50 band visibly.
func Smoothness(from, to string, steps int) float64 {
	if steps < 2 {
		steps = 2
	}

	grad := Gradient(from, to, steps)
	maxJump := 0.0
	for i := 1; i < len(grad); i++ {
		r1, g1, b1 := HexToRGB(grad[i-1])
		r2, g2, b2 := HexToRGB(grad[i])

		rmean := (r1 + r2) / 2
		dr, dg, db := r1-r2, g1-g2, b1-b2
		dist := math.Sqrt(float64((2+rmean/256)*dr*dr + 4*dg*dg + (2+(255-rmean)/256)*db*db))
		if dist > maxJump {
			maxJump = dist
		}
	}
	return maxJump
}

// Lightness returns the perceptual L component of a color, 0 to 100.
func Lightness(hex string) float64 {
	return toLCH(HexToRGB(hex)).l
}

// Blend mixes two colors at t in LCH space.
func Blend(from, to string, t float64) string {
	start := toLCH(HexToRGB(from))
	end := toLCH(HexToRGB(to))
	dh := hueDelta(start.h, end.h)

	v := lch{
		l: start.l + t*(end.l-start.l),
		c: start.c + t*(end.c-start.c),
		h: wrapHue(start.h + t*dh),
	}
	return RGBToHex(v.rgb())
}

// Glow brightens a color multiplicatively. Intensity 0 is a no-op.
func Glow(hex string, intensity float64) string {
	r, g, b := HexToRGB(hex)
	boost := 1.0 + intensity*0.6
	return RGBToHex(
		int(float64(r)*boost),
		int(float64(g)*boost),
		int(float64(b)*boost),
	)
}

// Dim scales a color's channels down by factor.
func Dim(hex string, factor float64) string {
	r, g, b := HexToRGB(hex)
	return RGBToHex(
		int(float64(r)*factor),
		int(float64(g)*factor),
		int(float64(b)*factor),
	)
}

// GradientText renders each rune of text in the matching gradient
// stop, spreading the gradient across the whole string.
func GradientText(text string, gradient []string, bold bool) string {
	if text == "" {
		return ""
	}
	if len(gradient) == 0 {
		return text
	}

	runes := []rune(text)
	var out strings.Builder
	for i, r := range runes {
		idx := 0
		if len(runes) > 1 {
			idx = i * (len(gradient) - 1) / (len(runes) - 1)
		}
		if idx >= len(gradient) {
			idx = len(gradient) - 1
		}

		style := lipgloss.NewStyle().Foreground(lipgloss.Color(gradient[idx]))
		if bold {
			style = style.Bold(true)
		}
		out.WriteString(style.Render(string(r)))
	}
	return out.String()
}

// FormatTime renders seconds as m:ss.
func FormatTime(seconds int64) string {
	if seconds < 0 {
		return "0:00"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// HexToRGB parses #RRGGBB. Malformed input falls back to white so a
// bad palette never crashes rendering.
func HexToRGB(hex string) (int, int, int) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) != 6 {
		return 255, 255, 255
	}

	parse := func(s string) int {
		v, err := strconv.ParseInt(s, 16, 64)
		if err != nil {
			return 255
		}
		return int(v)
	}
	return parse(hex[0:2]), parse(hex[2:4]), parse(hex[4:6])
}

func RGBToHex(r, g, b int) string {
	return fmt.Sprintf("#%02X%02X%02X", clampChannel(r), clampChannel(g), clampChannel(b))
}

func clampChannel(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

// hueDelta returns the signed shortest arc from hue a to hue b.
func hueDelta(a, b float64) float64 {
	d := b - a
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return d
}

func wrapHue(h float64) float64 {
	if h < 0 {
		return h + 360
	}
	if h >= 360 {
		return h - 360
	}
	return h
}

// smoothstep is the classic 3t^2 - 2t^3 ease.
func smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

type lch struct {
	l, c, h float64
}

// toLCH converts sRGB through XYZ and Lab to LCH (D65 illuminant).
func toLCH(r, g, b int) lch {
	linear := func(v int) float64 {
		f := float64(v) / 255.0
		if f > 0.04045 {
			return math.Pow((f+0.055)/1.055, 2.4)
		}
		return f / 12.92
	}
	rf, gf, bf := linear(r), linear(g), linear(b)

	x := (rf*0.4124564 + gf*0.3575761 + bf*0.1804375) / 0.95047
	y := rf*0.2126729 + gf*0.7151522 + bf*0.0721750
	z := (rf*0.0193339 + gf*0.1191920 + bf*0.9503041) / 1.08883

	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx, fy, fz := f(x), f(y), f(z)

	labA := 500.0 * (fx - fy)
	labB := 200.0 * (fy - fz)

	h := math.Atan2(labB, labA) * 180.0 / math.Pi
	if h < 0 {
		h += 360
	}

	return lch{
		l: 116.0*fy - 16.0,
		c: math.Sqrt(labA*labA + labB*labB),
		h: h,
	}
}

func (v lch) rgb() (int, int, int) {
	hRad := v.h * math.Pi / 180.0
	labA := v.c * math.Cos(hRad)
	labB := v.c * math.Sin(hRad)

	fy := (v.l + 16.0) / 116.0
	fx := labA/500.0 + fy
	fz := fy - labB/200.0

	inv := func(t float64) float64 {
		t3 := t * t * t
		if t3 > 0.008856 {
			return t3
		}
		return (t - 16.0/116.0) / 7.787
	}

	x := inv(fx) * 0.95047
	y := inv(fy)
	z := inv(fz) * 1.08883

	gamma := func(t float64) float64 {
		if t > 0.0031308 {
			return 1.055*math.Pow(t, 1.0/2.4) - 0.055
		}
		return 12.92 * t
	}

	rf := gamma(x*3.2404542 + y*-1.5371385 + z*-0.4985314)
	gf := gamma(x*-0.9692660 + y*1.8760108 + z*0.0415560)
	bf := gamma(x*0.0556434 + y*-0.2040259 + z*1.0572252)

	return clampChannel(int(rf*255.0 + 0.5)),
		clampChannel(int(gf*255.0 + 0.5)),
		clampChannel(int(bf*255.0 + 0.5))
}
