package source

import (
	"context"
	"strings"
	"time"

	"karolbroda.com/skald/internal/track"
)

// Capabilities is a bit set describing what an adapter can do beyond
// reporting bare metadata.
type Capabilities uint8

const (
	CapMetadata Capabilities = 1 << iota
	CapPosition
	CapPlaybackControl
	CapSeek
	CapAlbumArt
	CapQueue
)

func (c Capabilities) Has(want Capabilities) bool {
	return c&want == want
}

func (c Capabilities) String() string {
	names := []struct {
		cap  Capabilities
		name string
	}{
		{CapMetadata, "metadata"},
		{CapPosition, "position"},
		{CapPlaybackControl, "control"},
		{CapSeek, "seek"},
		{CapAlbumArt, "art"},
		{CapQueue, "queue"},
	}

	var out []string
	for _, n := range names {
		if c.Has(n.cap) {
			out = append(out, n.name)
		}
	}
	if len(out) == 0 {
		return "none"
	}
	return strings.Join(out, ",")
}

// Config describes one registered source. Priority is ordinal, lower
// wins. PausedTimeout zero means a paused reading never expires.
type Config struct {
	Name          string
	DisplayName   string
	Priority      int
	PausedTimeout time.Duration
	// Platforms restricts polling to the listed GOOS values. Empty
	// means all platforms.
	Platforms []string
	Enabled   bool
}

// Adapter is the minimum contract a source implements. Current returns
// (nil, nil) when the source is reachable but nothing is playing;
// errors are reserved for the source being unreachable or broken.
type Adapter interface {
	Available(ctx context.Context) bool
	Current(ctx context.Context) (*track.Reading, error)
}

// Controller is implemented by adapters that can drive playback.
type Controller interface {
	TogglePlayback(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
}

// Seeker is implemented by adapters that can jump to a position.
type Seeker interface {
	Seek(ctx context.Context, positionMs int64) error
}

// QueueReader is implemented by adapters that expose upcoming tracks.
type QueueReader interface {
	Queue(ctx context.Context) ([]track.Reading, error)
}
