package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"karolbroda.com/skald/internal/track"
)

const Name = "bridge"

// Payload is what remote helpers push over the websocket. Browser
// extensions and phone companions report whatever subset they know.
type Payload struct {
	Artist      string   `json:"artist"`
	Title       string   `json:"title"`
	Album       string   `json:"album,omitempty"`
	TrackID     string   `json:"track_id,omitempty"`
	DurationMs  int64    `json:"duration_ms,omitempty"`
	ArtworkURL  string   `json:"artwork_url,omitempty"`
	Playing     bool     `json:"playing"`
	PositionSec *float64 `json:"position_sec,omitempty"`
}

// Adapter is a push-fed source. Remote helpers push readings in and
// the poller reads the latest one back out until it goes stale.
type Adapter struct {
	freshness time.Duration
	now       func() time.Time

	mu       sync.RWMutex
	last     *track.Reading
	pushedAt time.Time
}

func New(freshness time.Duration) *Adapter {
	return &Adapter{freshness: freshness, now: time.Now}
}

// Push stores a reading from a remote helper and returns the
// normalized form.
func (a *Adapter) Push(p Payload) (*track.Reading, error) {
	if p.Artist == "" || p.Title == "" {
		return nil, errors.New("bridge payload needs artist and title")
	}

	now := a.now()
	reading := &track.Reading{
		Source:     Name,
		Artist:     p.Artist,
		Title:      p.Title,
		Album:      p.Album,
		TrackID:    p.TrackID,
		DurationMs: p.DurationMs,
		ArtworkURL: p.ArtworkURL,
		Playing:    p.Playing,
	}
	if p.PositionSec != nil && *p.PositionSec >= 0 {
		reading.Position = *p.PositionSec
		reading.HasPosition = true
	}

	a.mu.Lock()
	if p.Playing {
		reading.LastActive = now
	} else if a.last != nil && a.last.IsSameTrack(reading) {
		// keep the moment it was last heard playing
		reading.LastActive = a.last.LastActive
	}
	a.last = reading
	a.pushedAt = now
	a.mu.Unlock()

	return reading, nil
}

// Clear drops the stored reading, used when the pushing helper says
// goodbye explicitly.
func (a *Adapter) Clear() {
	a.mu.Lock()
	a.last = nil
	a.pushedAt = time.Time{}
	a.mu.Unlock()
}

func (a *Adapter) Available(ctx context.Context) bool {
	return true
}

func (a *Adapter) Current(ctx context.Context) (*track.Reading, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.last == nil {
		return nil, nil
	}
	if a.freshness > 0 && a.now().Sub(a.pushedAt) > a.freshness {
		return nil, nil
	}

	copy := *a.last
	return &copy, nil
}
