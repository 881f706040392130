// Package engine wires the poller, arbiter, race and clock into one
// canonical now-playing state with an event stream on top. All mutation
// funnels through the engine mutex so readers always see a complete
// state, never a half-updated one.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"karolbroda.com/skald/internal/arbiter"
	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/clock"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/poller"
	"karolbroda.com/skald/internal/race"
	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/track"
)

var (
	ErrNoActiveSource  = errors.New("no active source")
	ErrNoActiveTrack   = errors.New("no active track")
	ErrNoCapability    = errors.New("source does not support this operation")
	ErrUnknownProvider = errors.New("unknown provider")
)

type EventKind string

const (
	EventTrack        EventKind = "track"
	EventPlayback     EventKind = "playback"
	EventSeek         EventKind = "seek"
	EventLyrics       EventKind = "lyrics"
	EventWordSync     EventKind = "wordsync"
	EventInstrumental EventKind = "instrumental"
	EventNoLyrics     EventKind = "nolyrics"
	EventIdle         EventKind = "idle"
	EventOffset       EventKind = "offset"
	EventArt          EventKind = "art"
	EventSource       EventKind = "source"
)

// Event carries the full state after the change it announces, so
// consumers never have to query back.
type Event struct {
	Kind  EventKind `json:"kind"`
	Seq   uint64    `json:"seq"`
	State State     `json:"state"`
}

// State is a copy of everything a display surface needs. Candidate
// pointers are clones owned by the snapshot; consumers must treat them
// as read-only because one event value fans out to every subscriber.
type State struct {
	Active       bool              `json:"active"`
	Seq          uint64            `json:"seq"`
	Track        track.Reading     `json:"track"`
	Fetching     bool              `json:"fetching"`
	Lyrics       *lyrics.Candidate `json:"lyrics,omitempty"`
	WordLyrics   *lyrics.Candidate `json:"word_lyrics,omitempty"`
	Instrumental bool              `json:"instrumental"`
	NoLyrics     bool              `json:"no_lyrics"`
	OffsetMs     int64             `json:"offset_ms"`
	ArtworkURL   string            `json:"artwork_url,omitempty"`
	Override     string            `json:"override,omitempty"`

	HasPosition bool `json:"has_position"`
	// Position is the raw interpolated playback position in seconds.
	// LinePosition and WordPosition add the per-selection offsets and
	// are what highlighting should index with.
	Position     float64 `json:"position"`
	LinePosition float64 `json:"line_position"`
	WordPosition float64 `json:"word_position"`
	LineIndex    int     `json:"line_index"`
	WordIndex    int     `json:"word_index"`
}

type Options struct {
	WordCompensation time.Duration
	OffsetStep       time.Duration
	Logger           *slog.Logger
}

func (o *Options) withDefaults() {
	if o.OffsetStep <= 0 {
		o.OffsetStep = 50 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// current is the engine's mutable view of the playing track.
type current struct {
	active       bool
	reading      track.Reading
	key          track.Key
	fetching     bool
	line         *lyrics.Candidate
	word         *lyrics.Candidate
	instrumental bool
	noLyrics     bool
	prefs        cache.Prefs
}

type Engine struct {
	registry *source.Registry
	poll     *poller.Poller
	racer    *race.Engine
	store    *cache.Store
	clk      *clock.Clock
	opts     Options
	log      *slog.Logger

	// raceSink never changes, every race forwards into it and stale
	// events are dropped by sequence number.
	raceSink chan race.Event

	mu         sync.RWMutex
	runCtx     context.Context
	seq        uint64
	override   string
	cur        current
	raceCancel context.CancelFunc
	subs       map[string]chan Event
	providers  map[string]bool
}

func New(registry *source.Registry, poll *poller.Poller, racer *race.Engine, store *cache.Store, clk *clock.Clock, opts Options) *Engine {
	opts.withDefaults()

	known := make(map[string]bool)
	for _, name := range racer.Providers() {
		known[name] = true
	}

	return &Engine{
		registry:  registry,
		poll:      poll,
		racer:     racer,
		store:     store,
		clk:       clk,
		opts:      opts,
		log:       opts.Logger,
		raceSink:  make(chan race.Event, 32),
		runCtx:    context.Background(),
		subs:      make(map[string]chan Event),
		providers: known,
	}
}

// Run drives the engine until ctx is cancelled. It owns the poll loop.
func (e *Engine) Run(ctx context.Context) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()

	go e.poll.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return
		case snap, ok := <-e.poll.Cycles():
			if !ok {
				e.shutdown()
				return
			}
			e.handleCycle(snap)
		case ev := <-e.raceSink:
			e.handleRaceEvent(ev)
		}
	}
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.raceCancel != nil {
		e.raceCancel()
		e.raceCancel = nil
	}
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) handleCycle(snap poller.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]arbiter.Entry, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		reg, ok := e.registry.Get(r.Source)
		if !ok {
			continue
		}
		entries = append(entries, arbiter.Entry{
			Reading:       r,
			Priority:      reg.Config.Priority,
			PausedTimeout: reg.Config.PausedTimeout,
		})
	}

	winner, ok := arbiter.Select(entries, e.override, snap.At)
	if !ok {
		if e.cur.active {
			e.goIdleLocked()
		}
		return
	}

	if !e.cur.active || arbiter.Changed(e.cur.reading, winner) {
		e.trackChangedLocked(winner)
		return
	}

	wasPlaying := e.cur.reading.Playing
	e.cur.reading = winner

	if winner.HasPosition {
		upd := e.clk.Observe(winner.Source, winner.Position, winner.Playing)
		if upd.Snapped {
			e.log.Debug("position snapped", "delta", upd.Delta, "source", winner.Source)
			e.emitLocked(EventSeek)
		}
	} else {
		e.clk.SetPlaying(winner.Playing)
	}

	if wasPlaying != winner.Playing {
		e.emitLocked(EventPlayback)
	}
}

// trackChangedLocked starts over for a new canonical track: fresh
// sequence number, fresh clock anchor, superseded race cancelled and a
// new one started.
func (e *Engine) trackChangedLocked(winner track.Reading) {
	e.cur = current{
		active:   true,
		reading:  winner,
		key:      winner.Key(),
		fetching: true,
	}

	e.clk.Reset()
	if winner.HasPosition {
		e.clk.Observe(winner.Source, winner.Position, winner.Playing)
	} else {
		e.clk.SetPlaying(winner.Playing)
	}

	prefs, err := e.store.Prefs(e.cur.key)
	if err != nil {
		e.log.Warn("failed to load prefs", "error", err)
		prefs = cache.Prefs{}
	}
	e.cur.prefs = prefs

	e.startRaceLocked()
	e.log.Info("track changed",
		"seq", e.seq, "source", winner.Source,
		"artist", winner.Artist, "title", winner.Title)
	e.emitLocked(EventTrack)
}

// startRaceLocked supersedes any in-flight race and launches one for
// the current track. Each start takes a fresh sequence number so
// events a cancelled race already queued can never pass for the new
// one's.
func (e *Engine) startRaceLocked() {
	if e.raceCancel != nil {
		e.raceCancel()
	}
	e.seq++

	rctx, cancel := context.WithCancel(e.runCtx)
	e.raceCancel = cancel
	e.cur.fetching = true
	e.cur.line = nil
	e.cur.word = nil
	e.cur.instrumental = false
	e.cur.noLyrics = false

	req := lyrics.Request{
		Artist:       e.cur.reading.Artist,
		Title:        e.cur.reading.Title,
		Album:        e.cur.reading.Album,
		DurationSecs: e.cur.reading.DurationMs / 1000,
	}

	events := e.racer.Race(rctx, e.seq, e.cur.key, req, e.cur.prefs)
	go func(ctx context.Context, events <-chan race.Event) {
		for ev := range events {
			select {
			case e.raceSink <- ev:
			case <-ctx.Done():
				return
			}
		}
	}(e.runCtx, events)
}

func (e *Engine) handleRaceEvent(ev race.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// events from a superseded race only ever describe an older track
	if !e.cur.active || ev.Seq != e.seq {
		return
	}

	switch ev.Kind {
	case race.EventSelected:
		e.cur.line = ev.Candidate
		e.cur.fetching = false
		e.cur.noLyrics = false
		e.emitLocked(EventLyrics)
	case race.EventWordSelected:
		e.cur.word = ev.Candidate
		e.emitLocked(EventWordSync)
	case race.EventInstrumental:
		e.cur.instrumental = true
		e.cur.fetching = false
		e.emitLocked(EventInstrumental)
	case race.EventNoLyrics:
		e.cur.noLyrics = true
		e.cur.fetching = false
		e.emitLocked(EventNoLyrics)
	}
}

func (e *Engine) goIdleLocked() {
	e.log.Info("no source active")

	if e.raceCancel != nil {
		e.raceCancel()
		e.raceCancel = nil
	}
	e.cur = current{}
	e.clk.Reset()
	e.emitLocked(EventIdle)
}

// Subscribe registers an event consumer. The returned id unsubscribes.
// Slow consumers lose events instead of stalling the engine.
func (e *Engine) Subscribe() (string, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, 16)
	e.subs[id] = ch
	return id, ch
}

func (e *Engine) Unsubscribe(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if ch, ok := e.subs[id]; ok {
		delete(e.subs, id)
		close(ch)
	}
}

func (e *Engine) emitLocked(kind EventKind) {
	ev := Event{Kind: kind, Seq: e.seq, State: e.stateLocked()}
	for id, ch := range e.subs {
		select {
		case ch <- ev:
		default:
			e.log.Debug("subscriber lagging, dropping event", "id", id, "kind", kind)
		}
	}
}

// Snapshot returns a copy of the canonical state with positions
// interpolated at call time.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() State {
	st := State{
		Active:       e.cur.active,
		Seq:          e.seq,
		Track:        e.cur.reading,
		Fetching:     e.cur.fetching,
		Lyrics:       e.cur.line.Clone(),
		WordLyrics:   e.cur.word.Clone(),
		Instrumental: e.cur.instrumental,
		NoLyrics:     e.cur.noLyrics,
		OffsetMs:     e.cur.prefs.OffsetMs,
		ArtworkURL:   e.cur.reading.ArtworkURL,
		Override:     e.override,
		LineIndex:    -1,
		WordIndex:    -1,
	}
	if e.cur.prefs.ArtworkURL != "" {
		st.ArtworkURL = e.cur.prefs.ArtworkURL
	}

	pos, ok := e.clk.Position()
	if !ok {
		return st
	}

	userOffset := float64(e.cur.prefs.OffsetMs) / 1000

	st.HasPosition = true
	st.Position = pos
	st.LinePosition = pos + userOffset
	st.WordPosition = pos + userOffset + e.opts.WordCompensation.Seconds()

	if st.Lyrics != nil {
		st.LinePosition += st.Lyrics.Offset
		st.LineIndex = lyrics.LineIndex(st.Lyrics.Lines, st.LinePosition)
	}
	if st.WordLyrics != nil {
		st.WordPosition += st.WordLyrics.Offset
		st.WordIndex = lyrics.WordIndex(st.WordLyrics.Words, st.WordPosition)
	}
	return st
}
