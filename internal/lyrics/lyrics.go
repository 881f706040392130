package lyrics

import "context"

// Line is a single line-synced lyric.
type Line struct {
	Time float64 `json:"time"`
	Text string  `json:"text"`
}

// Word is a single word-synced lyric. Duration may be zero when the
// source format does not carry an end timestamp.
type Word struct {
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// Candidate is one provider's answer for one track. Candidates are
// cached verbatim, so everything needed to re-rank them later has to
// live here.
type Candidate struct {
	Provider     string  `json:"provider"`
	Artist       string  `json:"artist"`
	Title        string  `json:"title"`
	Album        string  `json:"album,omitempty"`
	DurationSec  float64 `json:"duration_sec,omitempty"`
	Instrumental bool    `json:"instrumental"`
	Plain        string  `json:"plain,omitempty"`
	Lines        []Line  `json:"lines,omitempty"`
	Words        []Word  `json:"words,omitempty"`
	// Offset is the provider's own timing correction in seconds,
	// applied on top of the user's per-track offset.
	Offset   float64 `json:"offset"`
	CachedAt int64   `json:"cached_at"`
}

func (c *Candidate) Empty() bool {
	if c == nil {
		return true
	}
	return len(c.Lines) == 0 && len(c.Words) == 0 && c.Plain == "" && !c.Instrumental
}

func (c *Candidate) Synced() bool {
	return c != nil && len(c.Lines) > 0
}

func (c *Candidate) WordSynced() bool {
	return c != nil && len(c.Words) > 0
}

// Clone returns a deep copy safe to hand across goroutines.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Lines = append([]Line(nil), c.Lines...)
	out.Words = append([]Word(nil), c.Words...)
	return &out
}

// Request carries the canonical track identity handed to providers.
type Request struct {
	Artist       string
	Title        string
	Album        string
	DurationSecs int64
}

// Provider fetches lyrics from one upstream. Fetch returns (nil, nil)
// when the provider answered but has nothing for this track; errors are
// reserved for transport and decoding failures.
type Provider interface {
	Name() string
	WordSynced() bool
	Fetch(ctx context.Context, req Request) (*Candidate, error)
}

// LineIndex returns the index of the line active at the given position,
// or -1 before the first line.
func LineIndex(lines []Line, positionSeconds float64) int {
	index := -1
	for i, line := range lines {
		if line.Time <= positionSeconds {
			index = i
			continue
		}
		break
	}
	return index
}

// WordIndex returns the index of the word active at the given position,
// or -1 before the first word.
func WordIndex(words []Word, positionSeconds float64) int {
	index := -1
	for i, word := range words {
		if word.Time <= positionSeconds {
			index = i
			continue
		}
		break
	}
	return index
}
