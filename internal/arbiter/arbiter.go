// Package arbiter picks the canonical "now playing" reading out of
// whatever the sources reported this cycle. Selection is a pure
// function so every rule stays trivially testable.
package arbiter

import (
	"time"

	"karolbroda.com/skald/internal/track"
)

// Entry pairs a reading with the source configuration that governs it.
type Entry struct {
	Reading track.Reading
	// Priority orders sources, lower wins. An override rewrites it to -1.
	Priority int
	// PausedTimeout drops paused readings that have sat idle too long.
	// Zero means paused readings never expire.
	PausedTimeout time.Duration
}

// Select returns the winning reading. Playing sources always beat
// paused ones; within each group the lowest priority wins and ties go
// to the reading that was active most recently. A non-empty override
// names a source that jumps to the front of the order, nothing more:
// if the overridden source reports nothing, arbitration falls through
// to the regular ranking instead of going silent.
func Select(entries []Entry, override string, now time.Time) (track.Reading, bool) {
	var best *Entry
	var bestPriority int

	for i := range entries {
		e := &entries[i]
		if !e.Reading.IsValid() {
			continue
		}
		if !e.Reading.Playing && e.PausedTimeout > 0 &&
			now.Sub(e.Reading.LastActive) > e.PausedTimeout {
			continue
		}

		priority := e.Priority
		if override != "" && e.Reading.Source == override {
			priority = -1
		}

		if best == nil || beats(e, priority, best, bestPriority) {
			best = e
			bestPriority = priority
		}
	}

	if best == nil {
		return track.Reading{}, false
	}
	return best.Reading, true
}

func beats(a *Entry, aPriority int, b *Entry, bPriority int) bool {
	if a.Reading.Playing != b.Reading.Playing {
		return a.Reading.Playing
	}
	if aPriority != bPriority {
		return aPriority < bPriority
	}
	return a.Reading.LastActive.After(b.Reading.LastActive)
}

// Changed reports whether the canonical track moved on. A new
// fingerprint is obviously a change, but so is the same song arriving
// from a different source: positions and latencies are not comparable
// across sources, so downstream state has to start over.
func Changed(prev, next track.Reading) bool {
	if prev.Source != next.Source {
		return true
	}
	return !prev.IsSameTrack(&next)
}
