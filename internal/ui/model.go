package ui

import (
	"context"
	"image"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"karolbroda.com/skald/internal/artwork"
	"karolbroda.com/skald/internal/engine"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/terminal"
)

// Engine is the slice of the engine surface the viewer drives. The
// real engine satisfies it; tests substitute a fake.
type Engine interface {
	Snapshot() engine.State
	Subscribe() (string, <-chan engine.Event)
	Unsubscribe(id string)
	BumpOffset(steps int) (int64, error)
	ClearOffset() error
	MarkInstrumental(instrumental bool) error
	Refetch() error
	TogglePlayback(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

const (
	defaultTickRate = 100 * time.Millisecond
	// offsetHintTicks keeps the offset readout visible for a couple of
	// seconds after an adjustment.
	offsetHintTicks = 25
	controlTimeout  = 3 * time.Second
	artTimeout      = 10 * time.Second
)

type Options struct {
	HideHeader bool
	Terminal   *terminal.Capabilities
	TickRate   time.Duration
}

type tickMsg time.Time

type eventMsg engine.Event

type eventsClosedMsg struct{}

// artMsg carries a finished artwork fetch. A nil img means the fetch
// failed; url lets stale responses be dropped after a track change.
type artMsg struct {
	url     string
	img     image.Image
	palette *artwork.Palette
}

type Model struct {
	eng    Engine
	subID  string
	events <-chan engine.Event

	st       engine.State
	palette  *artwork.Palette
	cover    image.Image
	coverURL string

	anim      animState
	spin      spinner.Model
	tickRate  time.Duration
	tickCount int
	lastFocus int

	term       *terminal.Capabilities
	width      int
	height     int
	hideHeader bool
	offsetHint int
	quitting   bool
}

func New(eng Engine, opts Options) Model {
	if opts.TickRate <= 0 {
		opts.TickRate = defaultTickRate
	}
	if opts.Terminal == nil {
		opts.Terminal = terminal.Detect(false)
	}

	id, events := eng.Subscribe()
	return Model{
		eng:        eng,
		subID:      id,
		events:     events,
		st:         eng.Snapshot(),
		palette:    artwork.DefaultPalette(),
		spin:       spinner.New(spinner.WithSpinner(spinner.MiniDot)),
		tickRate:   opts.TickRate,
		lastFocus:  -1,
		term:       opts.Terminal,
		hideHeader: opts.HideHeader,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), waitForEvent(m.events), m.spin.Tick)
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.tickRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the engine's event channel; a closed channel
// means the engine shut down and the viewer should follow.
func waitForEvent(events <-chan engine.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

func fetchArt(url string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), artTimeout)
		defer cancel()

		img, err := artwork.Fetch(ctx, url)
		if err != nil {
			return artMsg{url: url}
		}
		return artMsg{url: url, img: img, palette: artwork.PaletteFrom(img)}
	}
}

// control runs a playback command off the update loop so a slow
// adapter cannot freeze the interface.
func control(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		_ = op(ctx)
		return nil
	}
}

// sungRunes maps the word clock onto the focus line: how many runes of
// the line's normalized text (fields joined by single spaces) are
// already sung. Returns -1 when the word track has nothing to say
// about this line, which paints it fully bright.
func sungRunes(lineText string, start, end float64, word *lyrics.Candidate, position float64) int {
	if word == nil || len(word.Words) == 0 {
		return -1
	}

	total, sung := 0, 0
	for _, w := range word.Words {
		if w.Time < start {
			continue
		}
		if end > start && w.Time >= end {
			break
		}
		total++
		if w.Time <= position {
			sung++
		}
	}
	if total == 0 {
		return -1
	}

	fields := strings.Fields(lineText)
	if len(fields) == 0 {
		return -1
	}

	// the word track rarely matches the display fields one to one, so
	// map the sung fraction onto whole display words
	k := sung * len(fields) / total
	if k > len(fields) {
		k = len(fields)
	}
	return len([]rune(strings.Join(fields[:k], " ")))
}
