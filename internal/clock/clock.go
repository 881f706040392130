// Package clock keeps a continuously queryable playback position
// between the sparse updates the sources hand us. An anchor pair
// (position, wall time) is advanced on read while playing and frozen
// while paused, so the display never waits on a poll cycle.
package clock

import (
	"sync"
	"time"
)

const defaultDriftThreshold = time.Second

type Options struct {
	// Latency maps a source name to its reporting delay. A reading
	// from a source is that old by the time it reaches us, so the
	// anchor is nudged forward by it while playing. Missing sources
	// compensate by zero.
	Latency map[string]time.Duration
	// DriftThreshold separates a silent re-anchor from a snap. Jumps
	// at or below it are too small to register visually.
	DriftThreshold time.Duration
	Now            func() time.Time
}

func (o *Options) withDefaults() {
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = defaultDriftThreshold
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Update describes what an observation did to the clock.
type Update struct {
	// Position is the compensated anchor the clock now sits at.
	Position float64
	// Snapped is set when the correction exceeded the drift threshold.
	Snapped bool
	// Delta is observed minus estimated, in seconds. Zero on resets.
	Delta float64
}

// State is a copy of the clock internals for display surfaces.
type State struct {
	Source   string
	Playing  bool
	Anchor   float64
	AnchorAt time.Time
	Latency  time.Duration
	Anchored bool
}

type Clock struct {
	mu   sync.Mutex
	opts Options

	source   string
	playing  bool
	anchor   float64
	anchorAt time.Time
	latency  time.Duration
	anchored bool
}

func New(opts Options) *Clock {
	opts.withDefaults()
	return &Clock{opts: opts}
}

// Observe feeds one accepted position reading into the clock. A change
// of source or play state resets the anchor outright; only a steady
// stream from the same playing source is checked for drift.
func (c *Clock) Observe(source string, reported float64, playing bool) Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.opts.Now()
	latency := c.opts.Latency[source]

	adjusted := reported
	if playing {
		// the reading is latency old, playback moved on while it
		// travelled. a paused reading is exact and stays untouched.
		adjusted += latency.Seconds()
	}

	fresh := !c.anchored || source != c.source || playing != c.playing

	update := Update{Position: adjusted}
	if !fresh {
		estimated := c.positionLocked(now)
		update.Delta = adjusted - estimated
		update.Snapped = abs(update.Delta) > c.opts.DriftThreshold.Seconds()
	}

	c.source = source
	c.playing = playing
	c.anchor = adjusted
	c.anchorAt = now
	c.latency = latency
	c.anchored = true

	return update
}

// Seek re-anchors at a position we chose ourselves. Our own target
// needs no latency compensation and is never drift.
func (c *Clock) Seek(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if position < 0 {
		position = 0
	}
	c.anchor = position
	c.anchorAt = c.opts.Now()
	c.anchored = true
}

// SetPlaying freezes or resumes interpolation for sources that report
// a play-state flip without a position. The flip is never drift.
func (c *Clock) SetPlaying(playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if playing == c.playing {
		return
	}
	if c.anchored {
		now := c.opts.Now()
		c.anchor = c.positionLocked(now)
		c.anchorAt = now
	}
	c.playing = playing
}

// Reset drops the anchor entirely, as on a track change.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.source = ""
	c.playing = false
	c.anchor = 0
	c.anchorAt = time.Time{}
	c.latency = 0
	c.anchored = false
}

// Position returns the interpolated position in seconds. The second
// return is false until the clock has been anchored at least once.
func (c *Clock) Position() (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.anchored {
		return 0, false
	}
	return c.positionLocked(c.opts.Now()), true
}

func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		Source:   c.source,
		Playing:  c.playing,
		Anchor:   c.anchor,
		AnchorAt: c.anchorAt,
		Latency:  c.latency,
		Anchored: c.anchored,
	}
}

func (c *Clock) positionLocked(now time.Time) float64 {
	if !c.playing {
		return c.anchor
	}
	pos := c.anchor + now.Sub(c.anchorAt).Seconds()
	if pos < 0 {
		return 0
	}
	return pos
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
