// Package netease fetches line-synced lyrics from the netease cloud
// music api. Lookup is a two-step search then lyric call keyed by the
// song id the search returns.
package netease

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/track"
)

const Name = "netease"

const userAgent = "skald/1.0"

type Provider struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Provider {
	return &Provider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) WordSynced() bool { return false }

type searchResponse struct {
	Result struct {
		Songs []song `json:"songs"`
	} `json:"result"`
	Code int `json:"code"`
}

type song struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name string `json:"name"`
	} `json:"album"`
	// Duration is in milliseconds.
	Duration float64 `json:"duration"`
}

type lyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	NoLyric     bool `json:"nolyric"`
	Uncollected bool `json:"uncollected"`
	Code        int  `json:"code"`
}

func (p *Provider) Fetch(ctx context.Context, req lyrics.Request) (*lyrics.Candidate, error) {
	if req.Artist == "" || req.Title == "" {
		return nil, errors.New("track title or artist is empty")
	}

	match, err := p.search(ctx, req)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	lyric, err := p.lyric(ctx, match.ID)
	if err != nil {
		return nil, err
	}

	cand := &lyrics.Candidate{
		Provider:    Name,
		Artist:      firstArtist(match),
		Title:       match.Name,
		Album:       match.Album.Name,
		DurationSec: match.Duration / 1000,
	}

	if lyric.NoLyric {
		cand.Instrumental = true
		return cand, nil
	}

	doc := lyrics.ParseLRC(lyric.Lrc.Lyric)
	cand.Lines = doc.Lines
	cand.Offset = doc.Offset

	if cand.Empty() {
		return nil, nil
	}
	return cand, nil
}

// search returns the best hit for the request, preferring an exact
// artist match over whatever the api ranked first.
func (p *Provider) search(ctx context.Context, req lyrics.Request) (*song, error) {
	params := url.Values{}
	params.Set("s", req.Artist+" "+req.Title)
	params.Set("type", "1")
	params.Set("limit", "5")

	var payload searchResponse
	if err := p.get(ctx, "/search/get", params, &payload); err != nil {
		return nil, err
	}
	if len(payload.Result.Songs) == 0 {
		return nil, nil
	}

	want := track.NewKey(req.Artist, req.Title, "")
	for i := range payload.Result.Songs {
		s := &payload.Result.Songs[i]
		got := track.NewKey(firstArtist(s), s.Name, "")
		if got == want {
			return s, nil
		}
	}
	return &payload.Result.Songs[0], nil
}

func (p *Provider) lyric(ctx context.Context, id int64) (*lyricResponse, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))
	params.Set("lv", "1")
	params.Set("kv", "0")
	params.Set("tv", "0")

	var payload lyricResponse
	if err := p.get(ctx, "/song/lyric", params, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := strings.TrimRight(p.baseURL, "/") + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("netease returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read netease response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode netease json: %w", err)
	}
	return nil
}

func firstArtist(s *song) string {
	if len(s.Artists) == 0 {
		return ""
	}
	return s.Artists[0].Name
}
