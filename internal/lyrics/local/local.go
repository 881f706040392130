// Package local serves lyrics from a directory of .lrc files named
// "Artist - Title.lrc". Files with A2 word marks come back word-synced.
package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/track"
)

const Name = "local"

type Provider struct {
	dir string
}

func New(dir string) *Provider {
	return &Provider{dir: dir}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) WordSynced() bool { return true }

func (p *Provider) Fetch(ctx context.Context, req lyrics.Request) (*lyrics.Candidate, error) {
	if req.Artist == "" || req.Title == "" {
		return nil, errors.New("track title or artist is empty")
	}
	if p.dir == "" {
		return nil, errors.New("local lyrics directory not configured")
	}

	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	want := track.NewKey(req.Artist, req.Title, "")
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ".lrc") {
			continue
		}

		artist, title, ok := splitName(strings.TrimSuffix(name, filepath.Ext(name)))
		if !ok || track.NewKey(artist, title, "") != want {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(p.dir, name))
		if err != nil {
			return nil, err
		}

		doc := lyrics.ParseLRC(string(raw))
		cand := &lyrics.Candidate{
			Provider: Name,
			Artist:   artist,
			Title:    title,
			Lines:    doc.Lines,
			Words:    doc.Words,
			Offset:   doc.Offset,
		}
		if cand.Empty() {
			continue
		}
		return cand, nil
	}

	return nil, nil
}

// splitName breaks "Artist - Title" at the first separator, so a title
// may itself contain one but an artist may not.
func splitName(base string) (string, string, bool) {
	parts := strings.SplitN(base, " - ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	artist := strings.TrimSpace(parts[0])
	title := strings.TrimSpace(parts[1])
	if artist == "" || title == "" {
		return "", "", false
	}
	return artist, title, true
}
