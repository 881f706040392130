package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/skald/internal/logging"
	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/track"
)

type fakeAdapter struct {
	reading *track.Reading
	err     error
	delay   time.Duration
}

func (a *fakeAdapter) Available(ctx context.Context) bool {
	return true
}

func (a *fakeAdapter) Current(ctx context.Context) (*track.Reading, error) {
	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if a.err != nil {
		return nil, a.err
	}
	if a.reading == nil {
		return nil, nil
	}
	r := *a.reading
	return &r, nil
}

func reading(src, artist, title string, playing bool) *track.Reading {
	return &track.Reading{Source: src, Artist: artist, Title: title, Playing: playing}
}

func newTestPoller(t *testing.T, opts Options, adapters map[string]*fakeAdapter) *Poller {
	t.Helper()

	reg := source.NewRegistry()
	for name, adapter := range adapters {
		cfg := source.Config{Name: name, Enabled: true, PausedTimeout: 10 * time.Minute}
		require.NoError(t, reg.Register(cfg, source.CapMetadata, adapter))
	}

	opts.Logger = logging.Discard()
	return New(reg, opts)
}

func TestPollOnceCollectsAllSources(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"mpris":  {reading: reading("mpris", "Plaid", "Eyen", true)},
		"bridge": {reading: reading("bridge", "Plaid", "Ralome", false)},
	}
	p := newTestPoller(t, Options{}, adapters)

	snap := p.PollOnce(context.Background())

	assert.Equal(t, uint64(1), snap.Cycle)
	require.Len(t, snap.Readings, 2)
	assert.Equal(t, "bridge", snap.Readings[0].Source)
	assert.Equal(t, "mpris", snap.Readings[1].Source)
	assert.True(t, snap.HasPlaying())

	snap = p.PollOnce(context.Background())
	assert.Equal(t, uint64(2), snap.Cycle)
}

func TestSlowSourceDoesNotStallCycle(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"mpris": {reading: reading("mpris", "Orbital", "Halcyon", true)},
		"mpd":   {reading: reading("mpd", "Orbital", "Belfast", true), delay: 2 * time.Second},
	}
	p := newTestPoller(t, Options{SourceTimeout: 50 * time.Millisecond}, adapters)

	start := time.Now()
	snap := p.PollOnce(context.Background())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond)
	require.Len(t, snap.Readings, 1)
	assert.Equal(t, "mpris", snap.Readings[0].Source)
}

func TestErrorKeepsRetainedReading(t *testing.T) {
	adapter := &fakeAdapter{reading: reading("mpris", "Underworld", "Rez", true)}
	p := newTestPoller(t, Options{}, map[string]*fakeAdapter{"mpris": adapter})

	snap := p.PollOnce(context.Background())
	require.Len(t, snap.Readings, 1)

	adapter.err = errors.New("bus gone")
	snap = p.PollOnce(context.Background())
	require.Len(t, snap.Readings, 1)
	assert.Equal(t, "Rez", snap.Readings[0].Title)
}

func TestSilenceClearsRetainedReading(t *testing.T) {
	adapter := &fakeAdapter{reading: reading("mpris", "Underworld", "Rez", true)}
	p := newTestPoller(t, Options{}, map[string]*fakeAdapter{"mpris": adapter})

	snap := p.PollOnce(context.Background())
	require.Len(t, snap.Readings, 1)

	adapter.reading = nil
	snap = p.PollOnce(context.Background())
	assert.Empty(t, snap.Readings)
}

func TestStalePlayingReadingDowngrades(t *testing.T) {
	current := time.Unix(5000, 0)
	adapter := &fakeAdapter{reading: reading("mpris", "LFO", "Freak", true)}
	p := newTestPoller(t, Options{
		StaleGrace: 10 * time.Second,
		Now:        func() time.Time { return current },
	}, map[string]*fakeAdapter{"mpris": adapter})

	snap := p.PollOnce(context.Background())
	require.Len(t, snap.Readings, 1)
	assert.True(t, snap.Readings[0].Playing)

	adapter.err = errors.New("player hung")
	current = current.Add(11 * time.Second)

	snap = p.PollOnce(context.Background())
	require.Len(t, snap.Readings, 1)
	assert.False(t, snap.Readings[0].Playing, "stale reading must not claim playback")
}

func TestPausedReadingExpires(t *testing.T) {
	current := time.Unix(9000, 0)
	paused := reading("mpris", "Boc", "Dayvan Cowboy", false)
	paused.LastActive = current.Add(-11 * time.Minute)

	adapter := &fakeAdapter{reading: paused}
	p := newTestPoller(t, Options{Now: func() time.Time { return current }},
		map[string]*fakeAdapter{"mpris": adapter})

	snap := p.PollOnce(context.Background())
	assert.Empty(t, snap.Readings, "paused beyond its timeout must drop out")
}

func TestRunEmitsCycles(t *testing.T) {
	adapters := map[string]*fakeAdapter{
		"mpris": {reading: reading("mpris", "Autechre", "Altibzz", true)},
	}
	p := newTestPoller(t, Options{FastInterval: 10 * time.Millisecond}, adapters)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	first := <-p.Cycles()
	second := <-p.Cycles()
	cancel()

	assert.Equal(t, uint64(1), first.Cycle)
	assert.Equal(t, uint64(2), second.Cycle)

	// channel closes after cancellation
	for range p.Cycles() {
	}
}
