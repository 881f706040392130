package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	figure "github.com/common-nighthawk/go-figure"

	"karolbroda.com/skald/internal/artwork"
	"karolbroda.com/skald/internal/colors"
	"karolbroda.com/skald/internal/terminal"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	palette := m.palette
	if palette == nil {
		palette = artwork.DefaultPalette()
	}

	if !m.st.Active {
		return m.idleScreen(palette, width, height)
	}
	return m.mainScreen(palette, width, height)
}

func (m Model) idleScreen(palette *artwork.Palette, width, height int) string {
	banner := figure.NewFigure("skald", "", true).Slicify()

	rows := make([]string, 0, height)
	top := height/2 - len(banner)/2 - 2
	if top < 0 {
		top = 0
	}
	for i := 0; i < top; i++ {
		rows = append(rows, "")
	}

	for _, line := range banner {
		rows = append(rows, centerText(colors.GradientText(line, palette.Gradient, false), len([]rune(line)), width))
	}
	rows = append(rows, "")

	wait := "awaiting music"
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Italic(true)
	rows = append(rows, centerText(dim.Render(wait), len(wait), width))

	pulse := []string{"·", "•", "●", "•"}
	idx := (m.tickCount / 4) % len(pulse)
	pulseStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	rows = append(rows, centerText(pulseStyle.Render(pulse[idx]), 1, width))

	for len(rows) < height {
		rows = append(rows, "")
	}
	return strings.Join(rows[:height], "\n")
}

func (m Model) mainScreen(palette *artwork.Palette, width, height int) string {
	var rows []string

	if !m.hideHeader {
		rows = append(rows, m.header(palette, width)...)
	}

	body := height - len(rows)
	var section []string
	switch {
	case m.st.Fetching:
		frame := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary)).Render(m.spin.View())
		note := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render(" searching lyrics")
		section = statusRows(body, width, frame+note)
	case m.st.Instrumental:
		section = statusRows(body, width, colors.GradientText("♪ instrumental ♪", palette.Gradient, true))
	case m.st.NoLyrics:
		note := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render("no lyrics found")
		section = statusRows(body, width, note)
	case m.st.Lyrics != nil && len(m.st.Lyrics.Lines) > 0:
		section = m.slidingLyrics(palette, body, width)
	case m.st.Lyrics != nil && m.st.Lyrics.Plain != "":
		section = m.plainLyrics(palette, body, width)
	default:
		note := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Render("♪")
		section = statusRows(body, width, note)
	}
	rows = append(rows, section...)

	for len(rows) < height {
		rows = append(rows, "")
	}
	if len(rows) > height {
		rows = rows[:height]
	}
	return strings.Join(rows, "\n")
}

func (m Model) header(palette *artwork.Palette, width int) []string {
	rows := []string{""}

	artWidth, artHeight := 12, 6
	if width < 80 {
		artWidth, artHeight = 8, 4
	}
	if width < 50 || m.height < 25 {
		artWidth, artHeight = 0, 0
	}

	useKitty := m.term != nil && m.term.KittyGraphics && artWidth > 0 && m.cover != nil

	var art []string
	if useKitty {
		encoded := terminal.KittyImage(m.cover, artWidth, artHeight)
		if encoded == "" {
			useKitty = false
			art = artwork.RenderHalfBlock(m.cover, artWidth, artHeight)
		} else {
			rows = append(rows, "  "+encoded)
			// the image occupies the cells below its escape sequence
			for i := 0; i < artHeight-1; i++ {
				rows = append(rows, "  ")
			}
		}
	} else {
		art = artwork.RenderHalfBlock(m.cover, artWidth, artHeight)
	}

	info := m.trackInfo(palette, width)

	if useKitty {
		for _, line := range info {
			rows = append(rows, "  "+line)
		}
	} else {
		count := len(info)
		if artHeight > count {
			count = artHeight
		}
		for i := 0; i < count; i++ {
			var line strings.Builder
			if artWidth > 0 && i < len(art) {
				line.WriteString("  ")
				line.WriteString(art[i])
				line.WriteString("  ")
			} else if artWidth > 0 {
				line.WriteString(strings.Repeat(" ", artWidth+4))
			}
			if i < len(info) {
				line.WriteString(info[i])
			}
			rows = append(rows, line.String())
		}
	}

	rows = append(rows, "")

	if m.st.Track.DurationMs > 0 && m.st.HasPosition {
		rows = append(rows, m.progress(palette, width))
	}

	rows = append(rows, "")
	return rows
}

func (m Model) trackInfo(palette *artwork.Palette, width int) []string {
	trk := m.st.Track

	maxWidth := width - 20
	if maxWidth < 20 {
		maxWidth = 20
	}

	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary)).Bold(true)
	artistStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Secondary))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))

	rows := []string{
		titleStyle.Render(truncate(trk.Title, maxWidth)),
		artistStyle.Render(truncate(trk.Artist, maxWidth)),
	}
	if trk.Album != "" {
		rows = append(rows, dimStyle.Render(truncate(trk.Album, maxWidth)))
	}
	rows = append(rows, dimStyle.Render(truncate(m.statusLine(), maxWidth)))
	return rows
}

// statusLine summarizes where the reading and the lyrics came from and
// any live timing adjustment.
func (m Model) statusLine() string {
	parts := []string{"via " + m.st.Track.Source}
	if !m.st.Track.Playing {
		parts = append(parts, "paused")
	}
	if m.st.Lyrics != nil && m.st.Lyrics.Provider != "" {
		parts = append(parts, m.st.Lyrics.Provider)
	}
	if m.st.WordLyrics != nil {
		parts = append(parts, "word sync")
	}
	if m.offsetHint > 0 || m.st.OffsetMs != 0 {
		parts = append(parts, fmt.Sprintf("offset %+dms", m.st.OffsetMs))
	}
	return strings.Join(parts, " · ")
}

func (m Model) progress(palette *artwork.Palette, width int) string {
	durationSec := m.st.Track.DurationMs / 1000
	if durationSec <= 0 {
		return ""
	}

	barWidth := width - 20
	if barWidth < 20 {
		barWidth = 20
	}

	filled := int(float64(barWidth) * clamp01(m.st.Position/float64(durationSec)))

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Primary))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim)).Faint(true)

	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled:
			bar.WriteString(filledStyle.Render("━"))
		case i == filled:
			bar.WriteString(filledStyle.Render("●"))
		default:
			bar.WriteString(emptyStyle.Render("─"))
		}
	}

	timeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
	return fmt.Sprintf("  %s  %s  %s",
		timeStyle.Render(colors.FormatTime(int64(m.st.Position))),
		bar.String(),
		timeStyle.Render(colors.FormatTime(durationSec)))
}

func (m Model) slidingLyrics(palette *artwork.Palette, height, width int) []string {
	lines := m.st.Lyrics.Lines
	focusIdx := m.st.LineIndex
	if focusIdx < 0 {
		focusIdx = 0
	}
	if focusIdx >= len(lines) {
		focusIdx = len(lines) - 1
	}

	renderer := newLineRenderer(palette, &m.anim, width)
	slideT := m.anim.slide()

	out := make([]string, height)

	contextCount := 2
	if height < 20 {
		contextCount = 1
	}

	type block struct {
		rows  []string
		focus bool
	}

	var blocks []block
	focusPos := -1
	for off := -contextCount - 1; off <= contextCount+1; off++ {
		idx := focusIdx + off
		if idx < 0 || idx >= len(lines) {
			continue
		}

		text := lines[idx].Text
		if text == "" {
			text = "···"
		}

		if off == 0 {
			focusPos = len(blocks)
			blocks = append(blocks, block{rows: renderer.focus(text, m.focusKaraoke(idx, text)), focus: true})
			continue
		}

		var brightness float64
		switch {
		case off == -1 && slideT < 1.0:
			brightness = lerp(0.7, 0.4, slideT)
		case off == 1 && slideT < 1.0:
			brightness = lerp(0.35, 0.5, slideT)
		default:
			dist := off
			if dist < 0 {
				dist = -dist
			}
			brightness = 0.5 - float64(dist-1)*0.1
			if brightness < 0.3 {
				brightness = 0.3
			}
		}
		blocks = append(blocks, block{rows: renderer.context(text, brightness)})
	}
	if focusPos < 0 {
		return out
	}

	focusHeight := len(blocks[focusPos].rows)
	centerY := (height - focusHeight) / 2
	if centerY < 0 {
		centerY = 0
	}

	spacing := 2
	positions := make([]int, len(blocks))
	positions[focusPos] = centerY

	y := centerY
	for i := focusPos - 1; i >= 0; i-- {
		y -= len(blocks[i].rows) + spacing
		positions[i] = y
	}
	y = centerY + focusHeight + spacing
	for i := focusPos + 1; i < len(blocks); i++ {
		positions[i] = y
		y += len(blocks[i].rows) + spacing
	}

	slide := int(slideT * float64(focusHeight+spacing))

	// context first so the focus line wins overlaps mid-slide
	for pass := 0; pass < 2; pass++ {
		for i := 0; i < len(blocks); i++ {
			b := blocks[i]
			if b.focus != (pass == 1) {
				continue
			}
			for j, row := range b.rows {
				at := positions[i] - slide + j
				if at < 0 || at >= height {
					continue
				}
				if out[at] == "" || b.focus {
					out[at] = row
				}
			}
		}
	}

	return out
}

// focusKaraoke resolves the karaoke boundary for the focus line, in
// runes of its normalized text.
func (m Model) focusKaraoke(idx int, text string) int {
	if m.st.WordLyrics == nil || !m.st.HasPosition {
		return -1
	}

	lines := m.st.Lyrics.Lines
	start := lines[idx].Time
	end := 0.0
	if idx+1 < len(lines) {
		end = lines[idx+1].Time
	}
	return sungRunes(text, start, end, m.st.WordLyrics, m.st.WordPosition)
}

// plainLyrics shows unsynced text as a static centered block.
func (m Model) plainLyrics(palette *artwork.Palette, height, width int) []string {
	text := strings.Split(strings.TrimSpace(m.st.Lyrics.Plain), "\n")
	limit := height - 2
	if limit < 1 {
		limit = 1
	}
	if len(text) > limit {
		text = text[:limit]
	}

	style := lipgloss.NewStyle().Foreground(lipgloss.Color(palette.Dim))
	rows := make([]string, 0, height)
	top := (height - len(text)) / 2
	for i := 0; i < top; i++ {
		rows = append(rows, "")
	}
	for _, line := range text {
		line = strings.TrimSpace(line)
		rows = append(rows, centerText(style.Render(line), len([]rune(line)), width))
	}
	return rows
}

func statusRows(height, width int, text string) []string {
	rows := make([]string, 0, height)
	for i := 0; i < height/2-1; i++ {
		rows = append(rows, "")
	}
	rows = append(rows, centerText(text, lipgloss.Width(text), width))
	return rows
}

func centerText(text string, visualWidth, screenWidth int) string {
	padding := (screenWidth - visualWidth) / 2
	if padding < 0 {
		padding = 0
	}
	return strings.Repeat(" ", padding) + text
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
