// Package musixmatch fetches lyrics through the desktop-app endpoints.
// Subtitles give line sync, richsync gives word sync; both need a user
// token.
package musixmatch

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
)

const Name = "musixmatch"

const (
	appID     = "web-desktop-app-v1.0"
	userAgent = "skald/1.0"
)

type Provider struct {
	baseURL string
	token   string
	client  *http.Client
}

func New(baseURL, token string) *Provider {
	return &Provider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) WordSynced() bool { return true }

// envelope is the outer message every endpoint wraps its body in.
type envelope struct {
	Message struct {
		Header struct {
			StatusCode int `json:"status_code"`
		} `json:"header"`
		Body json.RawMessage `json:"body"`
	} `json:"message"`
}

type trackBody struct {
	Track struct {
		TrackID      int64   `json:"track_id"`
		TrackName    string  `json:"track_name"`
		ArtistName   string  `json:"artist_name"`
		AlbumName    string  `json:"album_name"`
		TrackLength  float64 `json:"track_length"`
		Instrumental int     `json:"instrumental"`
		HasSubtitles int     `json:"has_subtitles"`
		HasRichsync  int     `json:"has_richsync"`
	} `json:"track"`
}

type subtitleBody struct {
	Subtitle struct {
		SubtitleBody string `json:"subtitle_body"`
	} `json:"subtitle"`
}

type richsyncBody struct {
	Richsync struct {
		RichsyncBody string `json:"richsync_body"`
	} `json:"richsync"`
}

func (p *Provider) Fetch(ctx context.Context, req lyrics.Request) (*lyrics.Candidate, error) {
	if req.Artist == "" || req.Title == "" {
		return nil, errors.New("track title or artist is empty")
	}
	if p.token == "" {
		return nil, errors.New("musixmatch user token not configured")
	}

	match, err := p.matchTrack(ctx, req)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}

	cand := &lyrics.Candidate{
		Provider:    Name,
		Artist:      match.Track.ArtistName,
		Title:       match.Track.TrackName,
		Album:       match.Track.AlbumName,
		DurationSec: match.Track.TrackLength,
	}

	if match.Track.Instrumental == 1 {
		cand.Instrumental = true
		return cand, nil
	}

	if match.Track.HasSubtitles == 1 {
		body, err := p.subtitle(ctx, match.Track.TrackID)
		if err == nil && body != "" {
			doc := lyrics.ParseLRC(body)
			cand.Lines = doc.Lines
			cand.Offset = doc.Offset
		}
	}

	if match.Track.HasRichsync == 1 {
		lines, words, err := p.richsync(ctx, match.Track.TrackID)
		if err == nil {
			cand.Words = words
			if len(cand.Lines) == 0 {
				cand.Lines = lines
			}
		}
	}

	if cand.Empty() {
		return nil, nil
	}
	return cand, nil
}

func (p *Provider) matchTrack(ctx context.Context, req lyrics.Request) (*trackBody, error) {
	params := url.Values{}
	params.Set("q_artist", req.Artist)
	params.Set("q_track", req.Title)

	raw, status, err := p.call(ctx, "matcher.track.get", params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("musixmatch matcher returned status %d", status)
	}

	var body trackBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to decode musixmatch track: %w", err)
	}
	if body.Track.TrackID == 0 {
		return nil, nil
	}
	return &body, nil
}

func (p *Provider) subtitle(ctx context.Context, trackID int64) (string, error) {
	params := url.Values{}
	params.Set("track_id", strconv.FormatInt(trackID, 10))
	params.Set("subtitle_format", "lrc")

	raw, status, err := p.call(ctx, "track.subtitle.get", params)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("musixmatch subtitle returned status %d", status)
	}

	var body subtitleBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", fmt.Errorf("failed to decode musixmatch subtitle: %w", err)
	}
	return body.Subtitle.SubtitleBody, nil
}

func (p *Provider) richsync(ctx context.Context, trackID int64) ([]lyrics.Line, []lyrics.Word, error) {
	params := url.Values{}
	params.Set("track_id", strconv.FormatInt(trackID, 10))

	raw, status, err := p.call(ctx, "track.richsync.get", params)
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("musixmatch richsync returned status %d", status)
	}

	var body richsyncBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, nil, fmt.Errorf("failed to decode musixmatch richsync: %w", err)
	}
	return parseRichsync(body.Richsync.RichsyncBody)
}

// call hits one endpoint and unwraps the message envelope. The header
// status code is the one that matters, the transport is always 200.
func (p *Provider) call(ctx context.Context, method string, params url.Values) (json.RawMessage, int, error) {
	params.Set("format", "json")
	params.Set("app_id", appID)
	params.Set("usertoken", p.token)

	endpoint := fmt.Sprintf("%s/%s?%s", strings.TrimRight(p.baseURL, "/"), method, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build http request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, fmt.Errorf("musixmatch returned status %d: %s", resp.StatusCode, string(body))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read musixmatch response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, 0, fmt.Errorf("failed to decode musixmatch envelope: %w", err)
	}
	if env.Message.Header.StatusCode == http.StatusUnauthorized {
		return nil, 0, errors.New("musixmatch user token rejected")
	}
	return env.Message.Body, env.Message.Header.StatusCode, nil
}

// richRow is one line of richsync: ts/te bound the line in seconds,
// l holds the fragments with offsets relative to ts, x is the full text.
type richRow struct {
	TS float64 `json:"ts"`
	TE float64 `json:"te"`
	L  []struct {
		C string  `json:"c"`
		O float64 `json:"o"`
	} `json:"l"`
	X string `json:"x"`
}

func parseRichsync(raw string) ([]lyrics.Line, []lyrics.Word, error) {
	if raw == "" {
		return nil, nil, nil
	}

	var rows []richRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, nil, fmt.Errorf("failed to decode richsync body: %w", err)
	}

	var lines []lyrics.Line
	var words []lyrics.Word
	for _, row := range rows {
		if text := strings.TrimSpace(row.X); text != "" {
			lines = append(lines, lyrics.Line{Time: row.TS, Text: text})
		}

		for i, seg := range row.L {
			text := strings.TrimSpace(seg.C)
			if text == "" {
				continue
			}
			start := row.TS + seg.O
			end := row.TE
			if i+1 < len(row.L) {
				end = row.TS + row.L[i+1].O
			}
			duration := end - start
			if duration < 0 {
				duration = 0
			}
			words = append(words, lyrics.Word{Time: start, Duration: duration, Text: text})
		}
	}
	return lines, words, nil
}
