package ui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/skald/internal/artwork"
	"karolbroda.com/skald/internal/engine"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m.handleTick()

	case eventMsg:
		return m.handleEvent(engine.Event(msg))

	case eventsClosedMsg:
		m.quitting = true
		return m, tea.Quit

	case artMsg:
		return m.handleArt(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		m.eng.Unsubscribe(m.subID)
		return m, tea.Quit

	case "up", "k", "+", "=":
		return m.bumpOffset(1), nil

	case "down", "j", "-", "_":
		return m.bumpOffset(-1), nil

	case "left", "h":
		return m.bumpOffset(-10), nil

	case "right", "l":
		return m.bumpOffset(10), nil

	case "0":
		if err := m.eng.ClearOffset(); err == nil {
			m.st.OffsetMs = 0
			m.offsetHint = offsetHintTicks
		}
		return m, nil

	case "i":
		_ = m.eng.MarkInstrumental(!m.st.Instrumental)
		return m, nil

	case "r":
		_ = m.eng.Refetch()
		return m, nil

	case " ":
		return m, control(m.eng.TogglePlayback)

	case "n":
		return m, control(m.eng.Next)

	case "p":
		return m, control(m.eng.Previous)

	case "tab":
		m.hideHeader = !m.hideHeader
		return m, nil
	}

	return m, nil
}

// bumpOffset applies a step adjustment and surfaces the new total in
// the header for a moment. The engine echoes the change back through an
// offset event; updating the snapshot here just avoids a one-tick lag.
func (m Model) bumpOffset(steps int) Model {
	if total, err := m.eng.BumpOffset(steps); err == nil {
		m.st.OffsetMs = total
		m.offsetHint = offsetHintTicks
	}
	return m
}

func (m Model) handleTick() (tea.Model, tea.Cmd) {
	m.tickCount++
	if m.offsetHint > 0 {
		m.offsetHint--
	}

	m.st = m.eng.Snapshot()
	m.noteFocus()
	m.anim.step(m.tickCount)

	return m, m.tick()
}

func (m Model) handleEvent(ev engine.Event) (tea.Model, tea.Cmd) {
	m.st = ev.State
	cmds := []tea.Cmd{waitForEvent(m.events)}

	switch ev.Kind {
	case engine.EventTrack:
		m.anim.reset()
		m.lastFocus = -1
		if m.st.ArtworkURL == "" {
			m.cover = nil
			m.coverURL = ""
			m.palette = artwork.DefaultPalette()
		}
	case engine.EventIdle:
		m.cover = nil
		m.coverURL = ""
		m.palette = artwork.DefaultPalette()
	}
	m.noteFocus()

	if m.st.Active && m.st.ArtworkURL != "" && m.st.ArtworkURL != m.coverURL {
		m.coverURL = m.st.ArtworkURL
		cmds = append(cmds, fetchArt(m.coverURL))
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleArt(msg artMsg) (tea.Model, tea.Cmd) {
	// a fetch that finished after the track moved on is stale
	if msg.url != m.coverURL {
		return m, nil
	}

	m.cover = msg.img
	if msg.palette != nil {
		m.palette = msg.palette
	} else {
		m.palette = artwork.DefaultPalette()
	}
	return m, nil
}

// noteFocus fires the line transition when the focus index moved.
func (m *Model) noteFocus() {
	focus := m.st.LineIndex
	if !m.st.Active {
		focus = -1
	}
	if focus == m.lastFocus {
		return
	}
	if focus >= 0 {
		m.anim.lineChanged()
	}
	m.lastFocus = focus
}
