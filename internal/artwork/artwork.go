// Package artwork fetches album art and turns it into the color
// palette the viewer paints with.
package artwork

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/EdlinOrg/prominentcolor"
	"github.com/charmbracelet/lipgloss"
	"github.com/nfnt/resize"

	"karolbroda.com/skald/internal/colors"
)

const gradientSteps = 20

var httpClient = &http.Client{Timeout: 10 * time.Second}

// Palette is the set of display colors derived from one cover image.
type Palette struct {
	Primary   string
	Secondary string
	Accent    string
	Dim       string
	Gradient  []string
}

// Fetch loads an image from an http(s) or file URL. MPRIS players hand
// out file URLs for local libraries, so both schemes matter.
func Fetch(ctx context.Context, artworkURL string) (image.Image, error) {
	if artworkURL == "" {
		return nil, errors.New("empty artwork url")
	}

	if path, ok := strings.CutPrefix(artworkURL, "file://"); ok {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open artwork file: %w", err)
		}
		defer f.Close()

		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("failed to decode artwork file: %w", err)
		}
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artworkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create artwork request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("artwork fetch returned status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artwork: %w", err)
	}
	return img, nil
}

// candidate is one extracted color with the metrics selection uses.
type candidate struct {
	r, g, b    uint32
	sat        float64
	brightness float64
	score      float64
}

func (c candidate) same(o candidate) bool {
	return c.r == o.r && c.g == o.g && c.b == o.b
}

// PaletteFrom extracts the dominant colors of a cover and picks three
// that read well on a dark terminal. Anything that goes wrong falls
// back to the defaults so the viewer always has colors.
func PaletteFrom(img image.Image) *Palette {
	if img == nil {
		return DefaultPalette()
	}

	extracted, err := prominentcolor.KmeansWithAll(5, img, prominentcolor.ArgumentDefault, prominentcolor.DefaultSize, nil)
	if err != nil || len(extracted) < 3 {
		return DefaultPalette()
	}

	cands := make([]candidate, len(extracted))
	for i, item := range extracted {
		cands[i] = scoreColor(item.Color.R, item.Color.G, item.Color.B)
	}

	// the primary is the most vivid color that is neither murky nor
	// washed out; secondary and accent relax the thresholds stepwise
	primary := pick(cands, nil, func(c candidate) bool {
		return c.brightness > 0.3 && c.sat > 0.2
	})
	secondary := pick(cands, []candidate{primary}, func(c candidate) bool {
		return c.brightness > 0.3 && c.sat > 0.15
	})
	accent := pick(cands, []candidate{primary, secondary}, func(c candidate) bool {
		return c.brightness > 0.25 && c.sat > 0.1
	})

	chosen := []candidate{primary, secondary, accent}
	sort.SliceStable(chosen, func(i, j int) bool {
		return chosen[i].brightness > chosen[j].brightness
	})

	// brightest up top, darkest as the secondary body color
	primaryHex := normalize(chosen[0])
	accentHex := normalize(chosen[1])
	secondaryHex := normalize(chosen[2])

	gradStart, gradEnd := gradientPair(primaryHex, secondaryHex, accentHex)

	return &Palette{
		Primary:   primaryHex,
		Secondary: secondaryHex,
		Accent:    accentHex,
		Dim:       "#6272A4",
		Gradient:  colors.Gradient(gradStart, gradEnd, gradientSteps),
	}
}

func scoreColor(r, g, b uint32) candidate {
	rf := float64(r) / 255.0
	gf := float64(g) / 255.0
	bf := float64(b) / 255.0

	max := math.Max(math.Max(rf, gf), bf)
	min := math.Min(math.Min(rf, gf), bf)

	sat := 0.0
	if max > 0 {
		sat = (max - min) / max
	}

	// saturated colors near 60% brightness pop without glaring
	return candidate{
		r: r, g: g, b: b,
		sat:        sat,
		brightness: max,
		score:      sat * (1.0 - math.Abs(max-0.6)),
	}
}

// pick returns the highest scoring candidate that passes the filter and
// is not one of the already taken colors. When everything fails the
// filter it settles for the best remaining candidate.
func pick(cands []candidate, taken []candidate, acceptable func(candidate) bool) candidate {
	best := candidate{score: -1}
	fallback := candidate{score: -1}

	for _, c := range cands {
		skip := false
		for _, t := range taken {
			if c.same(t) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		if c.score > fallback.score {
			fallback = c
		}
		if acceptable(c) && c.score > best.score {
			best = c
		}
	}

	if best.score < 0 {
		return fallback
	}
	return best
}

// normalize lifts colors too dark to read and tames ones bright enough
// to bloom on light terminal themes.
func normalize(c candidate) string {
	r, g, b := c.r, c.g, c.b

	if c.brightness > 0 && c.brightness < 0.4 {
		factor := 0.4 / c.brightness
		if factor > 2.5 {
			factor = 2.5
		}
		r = uint32(math.Min(255, float64(r)*factor))
		g = uint32(math.Min(255, float64(g)*factor))
		b = uint32(math.Min(255, float64(b)*factor))
	}

	if c.brightness > 0.85 {
		avg := float64(r+g+b) / 3
		r = uint32(avg + (float64(r)-avg)*0.7)
		g = uint32(avg + (float64(g)-avg)*0.7)
		b = uint32(avg + (float64(b)-avg)*0.7)
	}

	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

// gradientPair tries every ordering of the three palette colors and
// keeps the smoothest, preferring a brighter start when two pairs are
// within a hair of each other.
func gradientPair(primary, secondary, accent string) (string, string) {
	type pair struct {
		start, end string
		smoothness float64
	}

	pairs := []pair{
		{start: primary, end: secondary},
		{start: primary, end: accent},
		{start: secondary, end: primary},
		{start: secondary, end: accent},
		{start: accent, end: primary},
		{start: accent, end: secondary},
	}
	for i := range pairs {
		pairs[i].smoothness = colors.Smoothness(pairs[i].start, pairs[i].end, gradientSteps)
	}

	best := 0
	for i := 1; i < len(pairs); i++ {
		if pairs[i].smoothness < pairs[best].smoothness {
			best = i
		}
	}

	for i := range pairs {
		if i == best {
			continue
		}
		if pairs[i].smoothness-pairs[best].smoothness < 5 &&
			colors.Lightness(pairs[i].start) > colors.Lightness(pairs[best].start) {
			best = i
		}
	}

	return pairs[best].start, pairs[best].end
}

func DefaultPalette() *Palette {
	return &Palette{
		Primary:   "#8BA4E8",
		Secondary: "#E8A4C8",
		Accent:    "#B8A8E8",
		Dim:       "#6272A4",
		Gradient:  colors.Gradient("#8BA4E8", "#E8A4C8", gradientSteps),
	}
}

// RenderHalfBlock draws an image as colored half-block characters, two
// pixels per terminal row. Returns nil when the target is too small to
// show anything recognizable.
func RenderHalfBlock(img image.Image, width, height int) []string {
	if img == nil || width < 4 || height < 2 {
		return nil
	}

	resized := resize.Resize(uint(width), uint(height*2), img, resize.Lanczos3)
	bounds := resized.Bounds()

	lines := make([]string, height)
	for y := 0; y < height; y++ {
		var line strings.Builder
		topY := y * 2
		bottomY := topY + 1

		for x := 0; x < bounds.Dx(); x++ {
			tr, tg, tb, ta := resized.At(bounds.Min.X+x, bounds.Min.Y+topY).RGBA()

			br, bg, bb, ba := tr, tg, tb, ta
			if bottomY < bounds.Dy() {
				br, bg, bb, ba = resized.At(bounds.Min.X+x, bounds.Min.Y+bottomY).RGBA()
			}

			if ta>>8 < 128 && ba>>8 < 128 {
				line.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", tr>>8, tg>>8, tb>>8))).
				Background(lipgloss.Color(fmt.Sprintf("#%02X%02X%02X", br>>8, bg>>8, bb>>8)))
			line.WriteString(style.Render("▀"))
		}
		lines[y] = line.String()
	}

	return lines
}
