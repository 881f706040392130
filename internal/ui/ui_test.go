package ui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/skald/internal/artwork"
	"karolbroda.com/skald/internal/engine"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/terminal"
	"karolbroda.com/skald/internal/track"
)

type fakeEngine struct {
	mu        sync.Mutex
	st        engine.State
	events    chan engine.Event
	bumps     []int
	offset    int64
	cleared   int
	marked    []bool
	refetched int
	toggled   int
	nexts     int
	prevs     int
	unsubbed  int
}

func newFakeEngine(st engine.State) *fakeEngine {
	return &fakeEngine{st: st, events: make(chan engine.Event, 8)}
}

func (f *fakeEngine) Snapshot() engine.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeEngine) Subscribe() (string, <-chan engine.Event) {
	return "viewer", f.events
}

func (f *fakeEngine) Unsubscribe(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubbed++
}

func (f *fakeEngine) BumpOffset(steps int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bumps = append(f.bumps, steps)
	f.offset += int64(steps) * 50
	return f.offset, nil
}

func (f *fakeEngine) ClearOffset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	f.offset = 0
	return nil
}

func (f *fakeEngine) MarkInstrumental(v bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marked = append(f.marked, v)
	return nil
}

func (f *fakeEngine) Refetch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refetched++
	return nil
}

func (f *fakeEngine) TogglePlayback(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggled++
	return nil
}

func (f *fakeEngine) Next(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nexts++
	return nil
}

func (f *fakeEngine) Previous(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prevs++
	return nil
}

func playingState() engine.State {
	return engine.State{
		Active: true,
		Track: track.Reading{
			Source:     "mpris",
			Title:      "Xtal",
			Artist:     "Aphex Twin",
			Album:      "Selected Ambient Works 85-92",
			DurationMs: 294000,
			Playing:    true,
		},
		Lyrics: &lyrics.Candidate{
			Provider: "lrclib",
			Lines: []lyrics.Line{
				{Time: 0, Text: "first line"},
				{Time: 5, Text: "second line"},
				{Time: 10, Text: "third line"},
			},
		},
		HasPosition:  true,
		Position:     6,
		LinePosition: 6,
		WordPosition: 6,
		LineIndex:    1,
		WordIndex:    -1,
	}
}

func testModel(t *testing.T, st engine.State) (Model, *fakeEngine) {
	t.Helper()
	eng := newFakeEngine(st)
	m := New(eng, Options{Terminal: &terminal.Capabilities{}})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model, ok := next.(Model)
	require.True(t, ok)
	return model, eng
}

func press(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestIdleViewShowsBanner(t *testing.T) {
	m, _ := testModel(t, engine.State{})

	view := m.View()
	assert.Contains(t, view, "awaiting music")
}

func TestActiveViewShowsTrackAndLyrics(t *testing.T) {
	m, _ := testModel(t, playingState())

	view := m.View()
	assert.Contains(t, view, "Xtal")
	assert.Contains(t, view, "Aphex Twin")
	assert.Contains(t, view, "via mpris")
	assert.Contains(t, view, "▀", "synced lines should render as pixel text")
}

func TestFetchingViewShowsSearchNote(t *testing.T) {
	st := playingState()
	st.Lyrics = nil
	st.Fetching = true
	m, _ := testModel(t, st)

	assert.Contains(t, m.View(), "searching lyrics")
}

func TestInstrumentalView(t *testing.T) {
	st := playingState()
	st.Lyrics = nil
	st.Instrumental = true
	m, _ := testModel(t, st)

	assert.Contains(t, m.View(), "instrumental")
}

func TestNoLyricsView(t *testing.T) {
	st := playingState()
	st.Lyrics = nil
	st.NoLyrics = true
	m, _ := testModel(t, st)

	assert.Contains(t, m.View(), "no lyrics found")
}

func TestPlainLyricsFallback(t *testing.T) {
	st := playingState()
	st.Lyrics = &lyrics.Candidate{Provider: "netease", Plain: "just some words\nwithout timestamps"}
	m, _ := testModel(t, st)

	view := m.View()
	assert.Contains(t, view, "just some words")
	assert.Contains(t, view, "without timestamps")
}

func TestOffsetKeys(t *testing.T) {
	m, eng := testModel(t, playingState())

	m, _ = press(t, m, runeKey("+"))
	m, _ = press(t, m, runeKey("j"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyRight})
	assert.Equal(t, []int{1, -1, -10, 10}, eng.bumps)

	// the readout surfaces in the header while the hint is fresh
	assert.Contains(t, m.View(), "offset +0ms")

	m, _ = press(t, m, runeKey("0"))
	assert.Equal(t, 1, eng.cleared)
	_ = m
}

func TestQuitKeysStopTheViewer(t *testing.T) {
	for _, msg := range []tea.Msg{runeKey("q"), tea.KeyMsg{Type: tea.KeyEsc}, tea.KeyMsg{Type: tea.KeyCtrlC}} {
		m, eng := testModel(t, playingState())
		m, cmd := press(t, m, msg)

		require.NotNil(t, cmd)
		assert.Equal(t, tea.QuitMsg{}, cmd())
		assert.Equal(t, 1, eng.unsubbed)
		assert.Empty(t, m.View())
	}
}

func TestInstrumentalToggleKey(t *testing.T) {
	m, eng := testModel(t, playingState())

	m, _ = press(t, m, runeKey("i"))
	require.Equal(t, []bool{true}, eng.marked)

	// once the engine reports the flag, the same key clears it
	st := playingState()
	st.Instrumental = true
	m, _ = press(t, m, eventMsg(engine.Event{Kind: engine.EventInstrumental, State: st}))
	m, _ = press(t, m, runeKey("i"))
	assert.Equal(t, []bool{true, false}, eng.marked)
	_ = m
}

func TestRefetchKey(t *testing.T) {
	m, eng := testModel(t, playingState())

	_, _ = press(t, m, runeKey("r"))
	assert.Equal(t, 1, eng.refetched)
}

func TestPlaybackKeys(t *testing.T) {
	m, eng := testModel(t, playingState())

	var cmd tea.Cmd
	m, cmd = press(t, m, runeKey(" "))
	require.NotNil(t, cmd)
	cmd()
	m, cmd = press(t, m, runeKey("n"))
	require.NotNil(t, cmd)
	cmd()
	_, cmd = press(t, m, runeKey("p"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, 1, eng.toggled)
	assert.Equal(t, 1, eng.nexts)
	assert.Equal(t, 1, eng.prevs)
}

func TestHeaderToggleKey(t *testing.T) {
	m, _ := testModel(t, playingState())
	require.Contains(t, m.View(), "Xtal")

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.NotContains(t, m.View(), "Xtal")
}

func TestEventUpdatesViewAndRearms(t *testing.T) {
	m, _ := testModel(t, engine.State{})

	st := playingState()
	st.Track.Title = "Ageispolis"
	m, cmd := press(t, m, eventMsg(engine.Event{Kind: engine.EventTrack, State: st}))

	require.NotNil(t, cmd, "event handling must re-arm the listener")
	assert.Contains(t, m.View(), "Ageispolis")
}

func TestEventsClosedQuits(t *testing.T) {
	m, eng := testModel(t, playingState())

	close(eng.events)
	msg := waitForEvent(eng.events)()
	require.IsType(t, eventsClosedMsg{}, msg)

	_, cmd := press(t, m, msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestTickPullsSnapshotAndRearms(t *testing.T) {
	m, eng := testModel(t, playingState())

	eng.mu.Lock()
	eng.st.LineIndex = 2
	eng.mu.Unlock()

	m, cmd := press(t, m, tickMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, 2, m.st.LineIndex)
	assert.Equal(t, 2, m.lastFocus)
	assert.Greater(t, m.anim.glow, 0.0, "line change should fire the glow burst")
}

func TestStaleArtIsDropped(t *testing.T) {
	m, _ := testModel(t, playingState())
	m.coverURL = "file:///current.png"

	m, _ = press(t, m, artMsg{url: "file:///old.png", palette: artwork.DefaultPalette()})
	assert.Nil(t, m.cover)
}

func TestSungRunes(t *testing.T) {
	word := &lyrics.Candidate{
		Provider: "musixmatch",
		Words: []lyrics.Word{
			{Time: 1, Text: "hello"},
			{Time: 2, Text: "world"},
			{Time: 3, Text: "again"},
			{Time: 4, Text: "next"},
		},
	}

	line := "hello world again"

	assert.Equal(t, 0, sungRunes(line, 1, 4, word, 0.5), "nothing sung before the first word")
	assert.Equal(t, len("hello"), sungRunes(line, 1, 4, word, 1.0))
	assert.Equal(t, len("hello world"), sungRunes(line, 1, 4, word, 2.5))
	assert.Equal(t, len("hello world again"), sungRunes(line, 1, 4, word, 3.5))

	assert.Equal(t, -1, sungRunes(line, 1, 4, nil, 2), "no word track")
	assert.Equal(t, -1, sungRunes(line, 10, 12, word, 11), "no words inside the line window")

	// open-ended last line counts everything from its start
	assert.Equal(t, len(line), sungRunes(line, 1, 0, word, 4))
}

func TestWrapTracksRuneOffsets(t *testing.T) {
	// width 38 allows five glyphs per row
	r := newLineRenderer(artwork.DefaultPalette(), &animState{}, 38)

	segs := r.wrap("aa bb cc")
	require.Len(t, segs, 2)
	assert.Equal(t, "aa bb", segs[0].text)
	assert.Equal(t, 0, segs[0].offset)
	assert.Equal(t, "cc", segs[1].text)
	assert.Equal(t, 6, segs[1].offset, "offset counts runes of the normalized line")
}

func TestWrapCutsOversizedWords(t *testing.T) {
	r := newLineRenderer(artwork.DefaultPalette(), &animState{}, 38)

	segs := r.wrap("extraordinary day")
	require.Len(t, segs, 2)
	assert.Equal(t, "extra", segs[0].text)
	assert.Equal(t, "day", segs[1].text)
	assert.Equal(t, 14, segs[1].offset, "offsets keep counting the uncut word")
}

func TestFocusRendersHalfBlockRows(t *testing.T) {
	r := newLineRenderer(artwork.DefaultPalette(), &animState{reveal: 1, transition: 1}, 120)

	rows := r.focus("Hi", -1)
	require.Len(t, rows, 3)
	joined := strings.Join(rows, "")
	assert.True(t, strings.ContainsAny(joined, "█▀▄"))
}

func TestFocusColorKaraokeBoundary(t *testing.T) {
	r := newLineRenderer(artwork.DefaultPalette(), &animState{reveal: 1}, 120)

	px := cell{on: true, char: 3, x: 20}
	bright := r.focusColor(px, 5, 29, -1)
	dimmed := r.focusColor(px, 5, 29, 2)
	assert.NotEqual(t, bright, dimmed, "unsung runes render dimmer than sung ones")

	sung := r.focusColor(cell{on: true, char: 1, x: 8}, 5, 29, 2)
	assert.NotEqual(t, dimmed, sung)
}

func TestContextColorClamps(t *testing.T) {
	assert.Equal(t, "#505050", contextColor(1.0))
	assert.Equal(t, "#191919", contextColor(0.0))
	assert.Equal(t, "#505050", contextColor(4.0))
}
