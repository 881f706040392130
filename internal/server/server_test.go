package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/clock"
	"karolbroda.com/skald/internal/engine"
	"karolbroda.com/skald/internal/logging"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/poller"
	"karolbroda.com/skald/internal/race"
	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/source/bridge"
	"karolbroda.com/skald/internal/track"
)

// testAdapter is a scriptable now-playing source with playback control.
type testAdapter struct {
	mu      sync.Mutex
	reading *track.Reading
	toggles int
}

func (a *testAdapter) set(r *track.Reading) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reading = r
}

func (a *testAdapter) Available(ctx context.Context) bool { return true }

func (a *testAdapter) Current(ctx context.Context) (*track.Reading, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.reading == nil {
		return nil, nil
	}
	r := *a.reading
	return &r, nil
}

func (a *testAdapter) TogglePlayback(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.toggles++
	return nil
}

func (a *testAdapter) Next(ctx context.Context) error     { return nil }
func (a *testAdapter) Previous(ctx context.Context) error { return nil }

func (a *testAdapter) toggleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.toggles
}

type stubProvider struct {
	name    string
	byTitle map[string]*lyrics.Candidate
}

func (p *stubProvider) Name() string     { return p.name }
func (p *stubProvider) WordSynced() bool { return false }

func (p *stubProvider) Fetch(ctx context.Context, req lyrics.Request) (*lyrics.Candidate, error) {
	return p.byTitle[req.Title].Clone(), nil
}

func syncedCandidate(provider, title string) *lyrics.Candidate {
	return &lyrics.Candidate{
		Provider: provider,
		Artist:   "Test Artist",
		Title:    title,
		Lines:    []lyrics.Line{{Time: 1, Text: "la"}, {Time: 5, Text: "laa"}},
	}
}

func playing(src, title string, position float64) *track.Reading {
	return &track.Reading{
		Source: src, Artist: "Test Artist", Title: title,
		Playing: true, Position: position, HasPosition: true,
	}
}

type serverFixture struct {
	t       *testing.T
	ts      *httptest.Server
	srv     *Server
	eng     *engine.Engine
	adapter *testAdapter
	bridge  *bridge.Adapter
}

func newServerFixture(t *testing.T, caps source.Capabilities, providers []race.Ranked) *serverFixture {
	t.Helper()

	reg := source.NewRegistry()
	adapter := &testAdapter{}
	require.NoError(t, reg.Register(source.Config{
		Name: "player", Priority: 1, Enabled: true, PausedTimeout: 10 * time.Minute,
	}, caps, adapter))

	br := bridge.New(15 * time.Second)
	require.NoError(t, reg.Register(source.Config{
		Name: bridge.Name, Priority: 4, Enabled: true, PausedTimeout: 10 * time.Minute,
	}, source.CapMetadata, br))

	store := cache.NewMemory()
	p := poller.New(reg, poller.Options{
		FastInterval: 5 * time.Millisecond,
		IdleInterval: 10 * time.Millisecond,
		Logger:       logging.Discard(),
	})
	racer := race.New(providers, store, race.Options{
		RaceTimeout: 500 * time.Millisecond,
		Logger:      logging.Discard(),
	})

	eng := engine.New(reg, p, racer, store, clock.New(clock.Options{}), engine.Options{Logger: logging.Discard()})
	srv := New(eng, br, Options{Logger: logging.Discard()})

	ctx, cancel := context.WithCancel(context.Background())
	go eng.Run(ctx)
	srv.Start(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	return &serverFixture{t: t, ts: ts, srv: srv, eng: eng, adapter: adapter, bridge: br}
}

func (f *serverFixture) waitActive(title string) {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		st := f.eng.Snapshot()
		return st.Active && st.Track.Title == title
	}, 2*time.Second, 10*time.Millisecond, "track %s never became active", title)
}

func (f *serverFixture) waitLyrics() {
	f.t.Helper()
	require.Eventually(f.t, func() bool {
		return f.eng.Snapshot().Lyrics != nil
	}, 2*time.Second, 10*time.Millisecond, "lyrics never arrived")
}

func (f *serverFixture) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(f.ts.URL, "http") + path
}

func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp.StatusCode, decoded
}

func defaultProviders() []race.Ranked {
	stub := &stubProvider{name: "lrclib", byTitle: map[string]*lyrics.Candidate{
		"Xtal": syncedCandidate("lrclib", "Xtal"),
	}}
	return []race.Ranked{{Provider: stub, Priority: 0}}
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	status, body := doJSON(t, http.MethodGet, f.ts.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "skald", body["service"])
}

func TestStateReflectsActiveTrack(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 12.0))
	f.waitActive("Xtal")

	status, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/state", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["active"])

	tr, ok := body["track"].(map[string]any)
	require.True(t, ok, "state must embed the track")
	assert.Equal(t, "Xtal", tr["title"])
	assert.Equal(t, "player", tr["source"])
}

func TestLyricsWithoutTrackIs404(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	status, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/lyrics", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "no active track", body["error"])
}

func TestLyricsServesRaceWinner(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitLyrics()

	status, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/lyrics", nil)
	assert.Equal(t, http.StatusOK, status)

	lyr, ok := body["lyrics"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "lrclib", lyr["provider"])
	assert.Equal(t, false, body["fetching"])
}

func TestCandidatesListCachedProviders(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitLyrics()

	status, body := doJSON(t, http.MethodGet, f.ts.URL+"/api/lyrics/candidates", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
}

func TestOffsetEndpointBumpsAndClears(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitLyrics()

	status, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/offset", map[string]int{"steps": 2})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(100), body["offset_ms"])

	status, _ = doJSON(t, http.MethodPost, f.ts.URL+"/api/offset", map[string]int{"steps": 0})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doJSON(t, http.MethodDelete, f.ts.URL+"/api/offset", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["offset_ms"])
	assert.Equal(t, int64(0), f.eng.Snapshot().OffsetMs)
}

func TestOffsetWithoutTrackIs404(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	status, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/offset", map[string]int{"steps": 1})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestInstrumentalEndpoint(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitLyrics()

	status, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/instrumental", map[string]bool{"instrumental": true})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["instrumental"])

	require.Eventually(t, func() bool {
		return f.eng.Snapshot().Instrumental
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProviderEndpointValidation(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitLyrics()

	status, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/provider",
		map[string]string{"kind": "sideways", "name": "lrclib"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, f.ts.URL+"/api/provider",
		map[string]string{"kind": "line", "name": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/provider",
		map[string]string{"kind": "line", "name": "lrclib"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "lrclib", body["provider"])
}

func TestOverrideEndpointRoundTrip(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	status, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/source/override",
		map[string]string{"source": "bogus"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doJSON(t, http.MethodPost, f.ts.URL+"/api/source/override",
		map[string]string{"source": "player"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "player", body["override"])
	assert.Equal(t, "player", f.eng.Snapshot().Override)

	status, _ = doJSON(t, http.MethodDelete, f.ts.URL+"/api/source/override", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "", f.eng.Snapshot().Override)
}

func TestPlaybackRoutesAndCapabilityErrors(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata|source.CapPlaybackControl, defaultProviders())

	// nothing playing yet
	status, _ := doJSON(t, http.MethodPost, f.ts.URL+"/api/playback/toggle", nil)
	assert.Equal(t, http.StatusNotFound, status)

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitActive("Xtal")

	status, _ = doJSON(t, http.MethodPost, f.ts.URL+"/api/playback/toggle", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, f.adapter.toggleCount())

	// the adapter never declared seek
	status, _ = doJSON(t, http.MethodPost, f.ts.URL+"/api/playback/seek",
		map[string]int64{"position_ms": 5000})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = doJSON(t, http.MethodPost, f.ts.URL+"/api/playback/seek",
		map[string]int64{"position_ms": -1})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCORSPreflightAllowsAnyOrigin(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	req, err := http.NewRequest(http.MethodOptions, f.ts.URL+"/api/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestEventSocketSendsSnapshotThenStreams(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	f.adapter.set(playing("player", "Xtal", 0))
	f.waitActive("Xtal")

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("/ws"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello engine.Event
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, engine.EventTrack, hello.Kind, "first frame is a snapshot")
	assert.Equal(t, "Xtal", hello.State.Track.Title)

	// a live change must stream through
	f.adapter.set(playing("player", "Second Song", 0))
	for {
		var ev engine.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Kind == engine.EventTrack && ev.State.Track.Title == "Second Song" {
			break
		}
	}
}

func TestBridgeIngestFeedsArbitration(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL("/ws/source"), nil)
	require.NoError(t, err)

	pos := 5.0
	require.NoError(t, conn.WriteJSON(bridge.Payload{
		Artist:      "Test Artist",
		Title:       "Xtal",
		Playing:     true,
		PositionSec: &pos,
	}))

	require.Eventually(t, func() bool {
		st := f.eng.Snapshot()
		return st.Active && st.Track.Source == bridge.Name && st.Track.Title == "Xtal"
	}, 2*time.Second, 10*time.Millisecond, "bridge push never reached arbitration")

	// a dropped helper clears the reading and the engine goes idle
	conn.Close()
	require.Eventually(t, func() bool {
		return !f.eng.Snapshot().Active
	}, 2*time.Second, 10*time.Millisecond, "bridge reading must clear on disconnect")
}

func TestSourceSocketWithoutBridgeIs503(t *testing.T) {
	f := newServerFixture(t, source.CapMetadata, defaultProviders())

	bare := New(f.eng, nil, Options{Logger: logging.Discard()})
	ts := httptest.NewServer(bare.Handler())
	defer ts.Close()

	status, body := doJSON(t, http.MethodGet, ts.URL+"/ws/source", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "bridge source is disabled", body["error"])
}
