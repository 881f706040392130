package poller

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/track"
)

// Snapshot is one consistent view across all sources. Readings carry
// at most one entry per source.
type Snapshot struct {
	Cycle    uint64
	At       time.Time
	Readings []track.Reading
}

// HasPlaying reports whether any source claims active playback.
func (s Snapshot) HasPlaying() bool {
	for _, r := range s.Readings {
		if r.Playing {
			return true
		}
	}
	return false
}

type Options struct {
	FastInterval  time.Duration
	IdleInterval  time.Duration
	SourceTimeout time.Duration
	// StaleGrace downgrades a reading that still claims to be playing
	// but has not been refreshed recently. The flywheel must not spin
	// forever on a dead source.
	StaleGrace time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

func (o *Options) withDefaults() {
	if o.FastInterval <= 0 {
		o.FastInterval = time.Second
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = 5 * time.Second
	}
	if o.SourceTimeout <= 0 {
		o.SourceTimeout = 2 * time.Second
	}
	if o.StaleGrace <= 0 {
		o.StaleGrace = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type retained struct {
	reading track.Reading
	seenAt  time.Time
}

// Poller fans a poll cycle out to every eligible source and assembles
// the answers into snapshots. A source that errors keeps its previous
// reading until the paused timeout expires; a source that reports
// silence is dropped immediately.
type Poller struct {
	registry *source.Registry
	opts     Options
	cycles   chan Snapshot
	cycle    uint64
	last     map[string]retained
}

func New(registry *source.Registry, opts Options) *Poller {
	opts.withDefaults()
	return &Poller{
		registry: registry,
		opts:     opts,
		cycles:   make(chan Snapshot, 4),
		last:     make(map[string]retained),
	}
}

func (p *Poller) Cycles() <-chan Snapshot {
	return p.cycles
}

// Run polls until the context is cancelled. The cadence adapts: fast
// while something is playing, relaxed when everything is idle.
func (p *Poller) Run(ctx context.Context) {
	defer close(p.cycles)

	for {
		snap := p.PollOnce(ctx)

		select {
		case p.cycles <- snap:
		case <-ctx.Done():
			return
		}

		interval := p.opts.IdleInterval
		if snap.HasPlaying() {
			interval = p.opts.FastInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

type outcome struct {
	name    string
	reading *track.Reading
	err     error
}

// PollOnce queries every pollable source concurrently and merges the
// results with what is retained from earlier cycles. Sources that miss
// the timeout are left behind; their goroutines drain into a buffered
// channel so nothing leaks.
func (p *Poller) PollOnce(ctx context.Context) Snapshot {
	now := p.opts.Now()
	p.cycle++

	targets := p.registry.Pollable()
	results := make(chan outcome, len(targets))

	for _, reg := range targets {
		go func(reg *source.Registered) {
			pollCtx, cancel := context.WithTimeout(ctx, p.opts.SourceTimeout)
			defer cancel()

			if !reg.Adapter.Available(pollCtx) {
				results <- outcome{name: reg.Config.Name}
				return
			}
			reading, err := reg.Adapter.Current(pollCtx)
			results <- outcome{name: reg.Config.Name, reading: reading, err: err}
		}(reg)
	}

	deadline := time.NewTimer(p.opts.SourceTimeout + 50*time.Millisecond)
	defer deadline.Stop()

	answered := make(map[string]bool)
	for pending := len(targets); pending > 0; {
		select {
		case out := <-results:
			pending--
			answered[out.name] = true
			p.merge(out, now)
		case <-deadline.C:
			pending = 0
		case <-ctx.Done():
			pending = 0
		}
	}

	// forget sources that are no longer pollable
	names := make(map[string]source.Config, len(targets))
	for _, reg := range targets {
		names[reg.Config.Name] = reg.Config
	}
	for name := range p.last {
		if _, ok := names[name]; !ok {
			delete(p.last, name)
		}
	}

	// expire paused readings past their source's timeout
	for name, entry := range p.last {
		cfg := names[name]
		if !entry.reading.Playing && cfg.PausedTimeout > 0 &&
			now.Sub(entry.reading.LastActive) > cfg.PausedTimeout {
			delete(p.last, name)
		}
	}

	snap := Snapshot{Cycle: p.cycle, At: now}
	for _, entry := range p.last {
		reading := entry.reading
		if reading.Playing && now.Sub(entry.seenAt) > p.opts.StaleGrace {
			reading.Playing = false
		}
		snap.Readings = append(snap.Readings, reading)
	}
	sort.Slice(snap.Readings, func(i, j int) bool {
		return snap.Readings[i].Source < snap.Readings[j].Source
	})

	return snap
}

func (p *Poller) merge(out outcome, now time.Time) {
	if out.err != nil {
		// keep the retained reading, the source may just be flaky
		p.opts.Logger.Debug("source poll failed", "source", out.name, "error", out.err)
		return
	}

	if out.reading == nil {
		// affirmative silence
		delete(p.last, out.name)
		return
	}

	reading := *out.reading
	reading.Source = out.name

	if reading.LastActive.IsZero() {
		prior, ok := p.last[out.name]
		switch {
		case reading.Playing:
			reading.LastActive = now
		case ok && prior.reading.IsSameTrack(&reading):
			reading.LastActive = prior.reading.LastActive
		default:
			reading.LastActive = now
		}
	}

	p.last[out.name] = retained{reading: reading, seenAt: now}
}
