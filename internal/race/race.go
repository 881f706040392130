// Package race runs the concurrent lyrics lookup for one track. The
// first acceptable answer is published immediately, everything else
// lands in the cache for later manual selection. Word sync is picked
// independently of the line winner while the race window is open.
package race

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/track"
)

const (
	defaultRaceTimeout     = 4 * time.Second
	defaultProviderTimeout = 10 * time.Second
)

type EventKind int

const (
	// EventSelected publishes the line-sync selection.
	EventSelected EventKind = iota
	// EventWordSelected publishes or upgrades the word-sync selection.
	EventWordSelected
	// EventInstrumental marks the track instrumental, no lyrics follow.
	EventInstrumental
	// EventNoLyrics closes the race with nothing acceptable.
	EventNoLyrics
)

func (k EventKind) String() string {
	switch k {
	case EventSelected:
		return "selected"
	case EventWordSelected:
		return "word-selected"
	case EventInstrumental:
		return "instrumental"
	case EventNoLyrics:
		return "no-lyrics"
	default:
		return "unknown"
	}
}

// Event is one decision of a race, tagged with the track-change
// sequence number it belongs to so stale races are trivially ignored.
type Event struct {
	Kind      EventKind
	Seq       uint64
	Candidate *lyrics.Candidate
}

// Ranked pairs a provider with its position in the configured order.
// Lower wins ties.
type Ranked struct {
	Provider lyrics.Provider
	Priority int
}

type Options struct {
	// RaceTimeout bounds the publishing window. Providers keep running
	// past it to populate the cache, they just cannot publish anymore.
	RaceTimeout time.Duration
	// ProviderTimeout bounds each individual fetch.
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

func (o *Options) withDefaults() {
	if o.RaceTimeout <= 0 {
		o.RaceTimeout = defaultRaceTimeout
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = defaultProviderTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type Engine struct {
	providers []Ranked
	store     *cache.Store
	opts      Options
}

func New(providers []Ranked, store *cache.Store, opts Options) *Engine {
	opts.withDefaults()
	ranked := append([]Ranked(nil), providers...)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Priority < ranked[j].Priority })
	return &Engine{providers: ranked, store: store, opts: opts}
}

// Providers returns the configured provider names in priority order.
func (e *Engine) Providers() []string {
	out := make([]string, 0, len(e.providers))
	for _, rp := range e.providers {
		out = append(out, rp.Provider.Name())
	}
	return out
}

type result struct {
	provider string
	priority int
	cand     *lyrics.Candidate
	err      error
}

func (r *result) acceptable() bool {
	return r.err == nil && !r.cand.Empty()
}

// Race starts the lookup for one track and returns the event stream
// for it. The channel closes when the publishing window is done;
// provider goroutines may outlive it to finish their cache writes.
// Cancelling ctx supersedes the race: nothing further is published and
// whatever still arrives is cached only.
func (e *Engine) Race(ctx context.Context, seq uint64, key track.Key, req lyrics.Request, prefs cache.Prefs) <-chan Event {
	events := make(chan Event, len(e.providers)+4)
	go e.run(ctx, seq, key, req, prefs, events)
	return events
}

func (e *Engine) run(ctx context.Context, seq uint64, key track.Key, req lyrics.Request, prefs cache.Prefs, events chan<- Event) {
	defer close(events)

	log := e.opts.Logger.With("seq", seq, "track", key.String())

	if prefs.Instrumental {
		events <- Event{Kind: EventInstrumental, Seq: seq}
		return
	}

	results := make(chan result, len(e.providers))
	total := 0

	// cached candidates race too, they just never lose: each one is an
	// instant arrival for its provider, so the whole set decides as one
	// batch and the fetch for that provider is skipped.
	for _, rp := range e.providers {
		total++
		cached, err := e.store.Get(key, rp.Provider.Name())
		if err == nil {
			results <- result{provider: rp.Provider.Name(), priority: rp.Priority, cand: cached}
			continue
		}
		go e.fetch(ctx, rp, key, req, results)
	}
	if total == 0 {
		events <- Event{Kind: EventNoLyrics, Seq: seq}
		return
	}

	pinnedLine := prefs.PinnedLine
	if !e.hasProvider(pinnedLine) {
		pinnedLine = ""
	}
	pinnedWord := prefs.PinnedWord
	if !e.hasProvider(pinnedWord) {
		pinnedWord = ""
	}

	window := time.NewTimer(e.opts.RaceTimeout)
	defer window.Stop()

	var (
		arrivals     []result
		lineChosen   bool
		wordProvider string
		answered     int
	)

	for answered < total {
		var batch []result
		select {
		case r := <-results:
			// a superseded race may still have results queued, none of
			// them may publish
			if ctx.Err() != nil {
				log.Debug("race superseded")
				return
			}
			batch = append(batch, r)
		case <-window.C:
			if !lineChosen {
				log.Info("race timed out with nothing acceptable")
				events <- Event{Kind: EventNoLyrics, Seq: seq}
			}
			return
		case <-ctx.Done():
			log.Debug("race superseded")
			return
		}

		// everything already queued decides as one batch, ordered by
		// priority so simultaneous arrivals break ties deterministically
	drain:
		for {
			select {
			case r := <-results:
				batch = append(batch, r)
			default:
				break drain
			}
		}
		sort.SliceStable(batch, func(i, j int) bool { return batch[i].priority < batch[j].priority })

		for _, r := range batch {
			answered++
			if r.err != nil {
				log.Debug("provider failed", "provider", r.provider, "error", r.err)
				continue
			}
			if !r.acceptable() {
				continue
			}
			arrivals = append(arrivals, r)
		}

		// a pinned provider that answered with nothing releases the hold
		if pinnedLine != "" && !lineChosen {
			settled := false
			for _, r := range batch {
				if r.provider == pinnedLine && !r.acceptable() {
					settled = true
				}
			}
			if settled {
				log.Debug("pinned provider came back empty", "provider", pinnedLine)
				pinnedLine = ""
			}
		}

		if !lineChosen {
			for _, r := range arrivals {
				if pinnedLine != "" && r.provider != pinnedLine {
					continue
				}
				lineChosen = true
				if r.cand.Instrumental {
					log.Info("track is instrumental", "provider", r.provider)
					events <- Event{Kind: EventInstrumental, Seq: seq}
					return
				}
				log.Info("lyrics selected", "provider", r.provider, "synced", r.cand.Synced())
				e.recordSelection(key, func(p *cache.Prefs) { p.SelectedLine = r.provider })
				events <- Event{Kind: EventSelected, Seq: seq, Candidate: r.cand.Clone()}
				break
			}
		}

		if pick := pickWordSync(arrivals, pinnedWord); pick != nil && pick.provider != wordProvider {
			wordProvider = pick.provider
			log.Info("word sync selected", "provider", pick.provider)
			e.recordSelection(key, func(p *cache.Prefs) { p.SelectedWord = pick.provider })
			events <- Event{Kind: EventWordSelected, Seq: seq, Candidate: pick.cand.Clone()}
		}
	}

	if !lineChosen {
		log.Info("no provider had lyrics")
		events <- Event{Kind: EventNoLyrics, Seq: seq}
	}
}

// fetch runs one provider and always caches an acceptable answer, even
// when the race has long moved on.
func (e *Engine) fetch(ctx context.Context, rp Ranked, key track.Key, req lyrics.Request, results chan<- result) {
	fctx, cancel := context.WithTimeout(ctx, e.opts.ProviderTimeout)
	defer cancel()

	cand, err := rp.Provider.Fetch(fctx, req)
	if err == nil && cand != nil && !cand.Empty() {
		if perr := e.store.Put(key, cand); perr != nil {
			e.opts.Logger.Warn("failed to cache candidate",
				"provider", rp.Provider.Name(), "error", perr)
		}
	}

	results <- result{provider: rp.Provider.Name(), priority: rp.Priority, cand: cand, err: err}
}

// pickWordSync chooses among everything that has arrived so far: the
// pinned provider when set, otherwise the best-ranked candidate that
// carries word timing.
func pickWordSync(arrivals []result, pinned string) *result {
	var best *result
	for i := range arrivals {
		r := &arrivals[i]
		if !r.cand.WordSynced() {
			continue
		}
		if pinned != "" {
			if r.provider == pinned {
				return r
			}
			continue
		}
		if best == nil || r.priority < best.priority {
			best = r
		}
	}
	return best
}

func (e *Engine) hasProvider(name string) bool {
	if name == "" {
		return false
	}
	for _, rp := range e.providers {
		if rp.Provider.Name() == name {
			return true
		}
	}
	return false
}

func (e *Engine) recordSelection(key track.Key, apply func(*cache.Prefs)) {
	if _, err := e.store.UpdatePrefs(key, apply); err != nil {
		e.opts.Logger.Warn("failed to record selection", "error", err)
	}
}
