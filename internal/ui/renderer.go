package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"karolbroda.com/skald/internal/artwork"
	"karolbroda.com/skald/internal/colors"
)

const (
	glyphWidth  = 5
	glyphHeight = 5
	glyphGap    = 1
)

// segment is one wrapped display row of a lyric line. offset is the
// rune position of the row within the normalized line (fields joined
// by single spaces), used to map the karaoke boundary onto wrapped
// rows.
type segment struct {
	text   string
	offset int
}

// cell is one rasterized pixel with enough provenance for coloring:
// the index of the rune it belongs to and its absolute pixel column.
type cell struct {
	on   bool
	char int
	x    int
}

// lineRenderer turns lyric text into rows of half-block characters.
// The focus line gets the palette gradient with reveal, glow, shimmer
// and karaoke dimming; context lines render in flat grey.
type lineRenderer struct {
	palette *artwork.Palette
	anim    *animState
	width   int
}

func newLineRenderer(palette *artwork.Palette, anim *animState, width int) *lineRenderer {
	return &lineRenderer{palette: palette, anim: anim, width: width}
}

// focus renders the active lyric line. sungRunes is the karaoke
// boundary in runes of the normalized line; negative paints the whole
// line bright.
func (r *lineRenderer) focus(text string, sungRunes int) []string {
	var out []string
	for _, seg := range r.wrap(text) {
		runes := []rune(seg.text)
		boundary := -1
		if sungRunes >= 0 {
			boundary = sungRunes - seg.offset
			if boundary < 0 {
				boundary = 0
			}
		}
		grid, pixelWidth := rasterize(runes)
		out = append(out, r.paint(grid, pixelWidth, func(c cell) string {
			return r.focusColor(c, len(runes), pixelWidth, boundary)
		})...)
	}
	return out
}

// context renders a neighboring line at the given brightness.
func (r *lineRenderer) context(text string, brightness float64) []string {
	color := contextColor(brightness)
	var out []string
	for _, seg := range r.wrap(text) {
		grid, pixelWidth := rasterize([]rune(seg.text))
		out = append(out, r.paint(grid, pixelWidth, func(cell) string {
			return color
		})...)
	}
	return out
}

// wrap splits text into rows that fit the screen, tracking each row's
// rune offset within the normalized line. Oversized words are cut to
// the row width; the offset bookkeeping still counts their full length
// so later rows stay aligned with the word clock.
func (r *lineRenderer) wrap(text string) []segment {
	maxChars := (r.width - 8) / (glyphWidth + glyphGap)
	if maxChars < 5 {
		maxChars = 5
	}

	words := strings.Fields(text)
	var segs []segment
	cur := ""
	curOffset := 0
	next := 0
	for _, word := range words {
		wordLen := len([]rune(word))
		test := cur
		if test != "" {
			test += " "
		}
		test += word

		if len([]rune(test)) <= maxChars {
			if cur == "" {
				curOffset = next
			}
			cur = test
		} else {
			if cur != "" {
				segs = append(segs, segment{text: cur, offset: curOffset})
			}
			if wordLen > maxChars {
				word = string([]rune(word)[:maxChars])
			}
			cur = word
			curOffset = next
		}
		next += wordLen + 1
	}
	if cur != "" {
		segs = append(segs, segment{text: cur, offset: curOffset})
	}
	return segs
}

// rasterize lays the runes out as a pixel grid of glyphHeight rows and
// returns the grid with its pixel width.
func rasterize(runes []rune) ([][]cell, int) {
	pixelWidth := len(runes) * glyphWidth
	if len(runes) > 1 {
		pixelWidth += (len(runes) - 1) * glyphGap
	}

	grid := make([][]cell, glyphHeight)
	for row := range grid {
		grid[row] = make([]cell, 0, pixelWidth)
	}

	x := 0
	for i, ch := range runes {
		g, ok := glyphs[ch]
		if !ok {
			g = glyphs[' ']
		}
		for row := 0; row < glyphHeight; row++ {
			for col := 0; col < glyphWidth; col++ {
				grid[row] = append(grid[row], cell{on: glyphBit(g, row, col), char: i, x: x + col})
			}
		}
		x += glyphWidth
		if i < len(runes)-1 {
			for row := 0; row < glyphHeight; row++ {
				grid[row] = append(grid[row], cell{char: i, x: x})
			}
			x += glyphGap
		}
	}
	return grid, pixelWidth
}

// paint folds the pixel grid into half-block terminal rows centered on
// the screen. colorAt supplies the foreground for lit columns, keyed by
// the top cell.
func (r *lineRenderer) paint(grid [][]cell, pixelWidth int, colorAt func(cell) string) []string {
	termRows := (glyphHeight + 1) / 2
	rows := make([]string, termRows)

	pad := (r.width - pixelWidth) / 2
	if pad < 0 {
		pad = 0
	}
	padding := strings.Repeat(" ", pad)

	for termRow := 0; termRow < termRows; termRow++ {
		top := termRow * 2
		bottom := top + 1

		var line strings.Builder
		line.WriteString(padding)
		for col := 0; col < pixelWidth && col < len(grid[0]); col++ {
			topCell := grid[top][col]
			topOn := topCell.on
			bottomOn := bottom < glyphHeight && grid[bottom][col].on
			if !topOn && !bottomOn {
				line.WriteString(" ")
				continue
			}

			style := lipgloss.NewStyle().Foreground(lipgloss.Color(colorAt(topCell)))
			switch {
			case topOn && bottomOn:
				line.WriteString(style.Render("█"))
			case topOn:
				line.WriteString(style.Render("▀"))
			default:
				line.WriteString(style.Render("▄"))
			}
		}
		rows[termRow] = line.String()
	}
	return rows
}

// focusColor picks the color for one lit focus pixel. Runes at or past
// the karaoke boundary stay dim until sung; the rest get the palette
// gradient with the reveal wave, glow burst and shimmer applied.
func (r *lineRenderer) focusColor(c cell, totalChars, pixelWidth, sungBoundary int) string {
	pos := 0.0
	if pixelWidth > 1 {
		pos = float64(c.x) / float64(pixelWidth-1)
	}
	base := colors.Blend(r.palette.Primary, r.palette.Accent, pos)

	if sungBoundary >= 0 && c.char >= sungBoundary {
		return colors.Dim(base, 0.35)
	}

	if r.anim.glow > 0.05 {
		base = colors.Glow(base, r.anim.glow*0.5)
	}
	shimmer := math.Sin(r.anim.shimmer+float64(c.x)*0.05)*0.5 + 0.5
	if shimmer > 0.5 {
		base = colors.Glow(base, (shimmer-0.5)*0.25)
	}

	// the reveal sweeps left to right, one wave step per rune
	wave := 0.03
	if totalChars > 20 {
		wave = 0.8 / float64(totalChars)
	}
	revealT := easeOutQuart(r.anim.reveal) - float64(c.char)*wave
	if r.anim.reveal >= 1.0 {
		revealT = 1.0
	}
	fade := easeOutCubic(revealT)

	red, green, blue := colors.HexToRGB(base)
	return colors.RGBToHex(fadeChannel(red, fade), fadeChannel(green, fade), fadeChannel(blue, fade))
}

// fadeChannel scales a channel by the reveal fade with a floor that
// keeps unrevealed pixels faintly visible.
func fadeChannel(v int, fade float64) int {
	v = int(float64(v) * fade)
	if v < 15 {
		v = 15
	}
	return v
}

func contextColor(brightness float64) string {
	grey := int(80 * brightness)
	if grey < 25 {
		grey = 25
	}
	if grey > 80 {
		grey = 80
	}
	return colors.RGBToHex(grey, grey, grey)
}
