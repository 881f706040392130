package arbiter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karolbroda.com/skald/internal/track"
)

var now = time.Unix(1700000000, 0)

func entry(src string, priority int, playing bool, active time.Time) Entry {
	return Entry{
		Reading: track.Reading{
			Source:     src,
			Artist:     "Aphex Twin",
			Title:      "Xtal",
			Playing:    playing,
			LastActive: active,
		},
		Priority:      priority,
		PausedTimeout: 10 * time.Minute,
	}
}

func TestSelectLowestPriorityPlayingWins(t *testing.T) {
	entries := []Entry{
		entry("spotify", 2, true, now),
		entry("mpris", 1, true, now),
		entry("bridge", 4, true, now),
	}

	winner, ok := Select(entries, "", now)
	require.True(t, ok)
	assert.Equal(t, "mpris", winner.Source)
}

func TestSelectPlayingBeatsPausedRegardlessOfPriority(t *testing.T) {
	entries := []Entry{
		entry("mpris", 1, false, now),
		entry("bridge", 4, true, now),
	}

	winner, ok := Select(entries, "", now)
	require.True(t, ok)
	assert.Equal(t, "bridge", winner.Source)
}

func TestSelectTieBreaksOnMostRecentActivity(t *testing.T) {
	entries := []Entry{
		entry("spotify", 2, true, now.Add(-time.Minute)),
		entry("mpd", 2, true, now),
	}

	winner, ok := Select(entries, "", now)
	require.True(t, ok)
	assert.Equal(t, "mpd", winner.Source)
}

func TestSelectDropsExpiredPausedReadings(t *testing.T) {
	stale := entry("mpris", 1, false, now.Add(-11*time.Minute))
	fresh := entry("spotify", 2, false, now.Add(-time.Minute))

	winner, ok := Select([]Entry{stale, fresh}, "", now)
	require.True(t, ok)
	assert.Equal(t, "spotify", winner.Source)

	_, ok = Select([]Entry{stale}, "", now)
	assert.False(t, ok)
}

func TestSelectPausedWithoutTimeoutNeverExpires(t *testing.T) {
	e := entry("mpris", 1, false, now.Add(-24*time.Hour))
	e.PausedTimeout = 0

	winner, ok := Select([]Entry{e}, "", now)
	require.True(t, ok)
	assert.Equal(t, "mpris", winner.Source)
}

func TestSelectOverrideJumpsTheQueue(t *testing.T) {
	entries := []Entry{
		entry("mpris", 1, true, now),
		entry("bridge", 4, true, now),
	}

	winner, ok := Select(entries, "bridge", now)
	require.True(t, ok)
	assert.Equal(t, "bridge", winner.Source)
}

func TestSelectOverrideIsNotExclusive(t *testing.T) {
	// the overridden source is paused, something else still plays
	entries := []Entry{
		entry("mpris", 1, true, now),
		entry("bridge", 4, false, now),
	}

	winner, ok := Select(entries, "bridge", now)
	require.True(t, ok)
	assert.Equal(t, "mpris", winner.Source)

	// and when the overridden source reports nothing at all, selection
	// falls through to the regular order
	winner, ok = Select(entries[:1], "bridge", now)
	require.True(t, ok)
	assert.Equal(t, "mpris", winner.Source)
}

func TestSelectIgnoresInvalidReadings(t *testing.T) {
	broken := Entry{Reading: track.Reading{Source: "mpris", Playing: true}, Priority: 1}

	_, ok := Select([]Entry{broken}, "", now)
	assert.False(t, ok)
}

func TestSelectEmpty(t *testing.T) {
	_, ok := Select(nil, "", now)
	assert.False(t, ok)
}

func TestChanged(t *testing.T) {
	base := track.Reading{Source: "mpris", Artist: "Aphex Twin", Title: "Xtal"}

	same := base
	assert.False(t, Changed(base, same))

	otherSource := base
	otherSource.Source = "spotify"
	assert.True(t, Changed(base, otherSource), "same song from another source restarts state")

	otherTrack := base
	otherTrack.Title = "Tha"
	assert.True(t, Changed(base, otherTrack))
}
