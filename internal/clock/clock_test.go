package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) now() time.Time {
	return f.t
}

func (f *fakeNow) advance(d time.Duration) {
	f.t = f.t.Add(d)
}

func newTestClock(latency map[string]time.Duration) (*Clock, *fakeNow) {
	fn := &fakeNow{t: time.Unix(1000, 0)}
	c := New(Options{Latency: latency, Now: fn.now})
	return c, fn
}

func TestInterpolatesWhilePlaying(t *testing.T) {
	c, fn := newTestClock(map[string]time.Duration{"spotify": -500 * time.Millisecond})

	c.Observe("spotify", 30.0, true)
	fn.advance(2 * time.Second)

	pos, ok := c.Position()
	require.True(t, ok)
	assert.InDelta(t, 31.5, pos, 1e-9)
}

func TestFreezesWhilePaused(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 42.0, false)
	fn.advance(10 * time.Second)

	pos, ok := c.Position()
	require.True(t, ok)
	assert.InDelta(t, 42.0, pos, 1e-9)
}

func TestPausedReadingSkipsLatency(t *testing.T) {
	c, _ := newTestClock(map[string]time.Duration{"spotify": 350 * time.Millisecond})

	c.Observe("spotify", 10.0, false)

	pos, ok := c.Position()
	require.True(t, ok)
	assert.InDelta(t, 10.0, pos, 1e-9)
}

func TestDriftSnapAboveThreshold(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	fn.advance(time.Second)

	// estimate is 11.0, reading says 14.0
	update := c.Observe("mpris", 14.0, true)
	assert.True(t, update.Snapped)
	assert.InDelta(t, 3.0, update.Delta, 1e-9)

	pos, _ := c.Position()
	assert.InDelta(t, 14.0, pos, 1e-9)
}

func TestSmallDriftReanchorsSilently(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	fn.advance(time.Second)

	// estimate is 11.0, reading says 11.4
	update := c.Observe("mpris", 11.4, true)
	assert.False(t, update.Snapped)
	assert.InDelta(t, 0.4, update.Delta, 1e-9)

	pos, _ := c.Position()
	assert.InDelta(t, 11.4, pos, 1e-9)
}

func TestPlayStateChangeIsNeverDrift(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	fn.advance(30 * time.Second)

	// a pause after 30s of silence would look like huge drift
	update := c.Observe("mpris", 12.0, false)
	assert.False(t, update.Snapped)
	assert.Zero(t, update.Delta)

	pos, _ := c.Position()
	assert.InDelta(t, 12.0, pos, 1e-9)
}

func TestSourceChangeIsNeverDrift(t *testing.T) {
	c, fn := newTestClock(map[string]time.Duration{"recognizer": 1500 * time.Millisecond})

	c.Observe("mpris", 10.0, true)
	fn.advance(time.Second)

	update := c.Observe("recognizer", 200.0, true)
	assert.False(t, update.Snapped)

	pos, _ := c.Position()
	assert.InDelta(t, 201.5, pos, 1e-9)
}

func TestSeekResetsWithoutDrift(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	fn.advance(time.Second)

	c.Seek(120.0)
	pos, _ := c.Position()
	assert.InDelta(t, 120.0, pos, 1e-9)

	fn.advance(time.Second)
	pos, _ = c.Position()
	assert.InDelta(t, 121.0, pos, 1e-9)

	// the next reading confirming the seek target is not drift either,
	// the estimate already sits there
	update := c.Observe("mpris", 121.0, true)
	assert.False(t, update.Snapped)
}

func TestSetPlayingFreezesAtInterpolatedPosition(t *testing.T) {
	c, fn := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	fn.advance(2 * time.Second)

	c.SetPlaying(false)
	fn.advance(time.Minute)

	pos, ok := c.Position()
	require.True(t, ok)
	assert.InDelta(t, 12.0, pos, 1e-9)

	c.SetPlaying(true)
	fn.advance(time.Second)

	pos, _ = c.Position()
	assert.InDelta(t, 13.0, pos, 1e-9)
}

func TestResetDropsAnchor(t *testing.T) {
	c, _ := newTestClock(nil)

	c.Observe("mpris", 10.0, true)
	c.Reset()

	_, ok := c.Position()
	assert.False(t, ok)
	assert.False(t, c.Playing())
}

func TestUnanchoredHasNoPosition(t *testing.T) {
	c, _ := newTestClock(nil)

	_, ok := c.Position()
	assert.False(t, ok)
}

func TestPositionNeverNegative(t *testing.T) {
	c, _ := newTestClock(map[string]time.Duration{"weird": -2 * time.Second})

	c.Observe("weird", 0.5, true)

	pos, ok := c.Position()
	require.True(t, ok)
	assert.Equal(t, 0.0, pos)
}

func TestStateCopy(t *testing.T) {
	c, fn := newTestClock(map[string]time.Duration{"spotify": 350 * time.Millisecond})

	c.Observe("spotify", 30.0, true)

	st := c.State()
	assert.True(t, st.Anchored)
	assert.True(t, st.Playing)
	assert.Equal(t, "spotify", st.Source)
	assert.Equal(t, 350*time.Millisecond, st.Latency)
	assert.InDelta(t, 30.35, st.Anchor, 1e-9)
	assert.Equal(t, fn.t, st.AnchorAt)
}
