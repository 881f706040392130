package track

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Reading is a single source's view of what is playing right now.
// Position is in seconds; HasPosition distinguishes "at 0.0s" from
// "this source cannot report position at all".
type Reading struct {
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Album       string    `json:"album,omitempty"`
	TrackID     string    `json:"track_id,omitempty"`
	DurationMs  int64     `json:"duration_ms,omitempty"`
	ArtworkURL  string    `json:"artwork_url,omitempty"`
	Playing     bool      `json:"playing"`
	Position    float64   `json:"position"`
	HasPosition bool      `json:"has_position"`
	LastActive  time.Time `json:"last_active"`
}

func (r *Reading) IsValid() bool {
	if r == nil {
		return false
	}
	return r.Title != "" && r.Artist != ""
}

// Fingerprint identifies the track independent of which source reported
// it. Source-native ids win when present so remasters with identical
// tags still register as distinct tracks.
func (r *Reading) Fingerprint() string {
	if r == nil {
		return ""
	}
	if r.TrackID != "" {
		return "id:" + r.TrackID
	}
	return "tag:" + normalize(r.Artist) + "|" + normalize(r.Title)
}

func (r *Reading) IsSameTrack(other *Reading) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Fingerprint() == other.Fingerprint()
}

// Key addresses cache entries for a track. It is built from normalized
// tags only, never from source-native ids, so the same song reaches the
// same cache entry no matter which source reported it.
type Key struct {
	Artist string
	Title  string
	Album  string
}

func NewKey(artist, title, album string) Key {
	return Key{
		Artist: normalize(artist),
		Title:  normalize(title),
		Album:  normalize(album),
	}
}

func (r *Reading) Key() Key {
	if r == nil {
		return Key{}
	}
	return NewKey(r.Artist, r.Title, r.Album)
}

func (k Key) IsZero() bool {
	return k.Artist == "" && k.Title == ""
}

// Hash returns a short stable digest used as the on-disk directory name.
func (k Key) Hash() string {
	h := sha256.Sum256([]byte(k.Artist + "|" + k.Title))
	return hex.EncodeToString(h[:])[:24]
}

func (k Key) String() string {
	return fmt.Sprintf("%s - %s", k.Artist, k.Title)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}
