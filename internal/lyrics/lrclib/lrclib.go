// Package lrclib fetches line-synced lyrics from an lrclib instance.
// The upstream match is picky about naming, so a ladder of search
// variants is tried until one of them lands.
package lrclib

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"karolbroda.com/skald/internal/lyrics"
)

const Name = "lrclib"

const userAgent = "skald/1.0"

var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   2 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     60 * time.Second,
			TLSHandshakeTimeout: 2 * time.Second,
		}
		httpClient = &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		}
	})
	return httpClient
}

type response struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

type Provider struct {
	baseURL string
}

func New(baseURL string) *Provider {
	return &Provider{baseURL: baseURL}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) WordSynced() bool { return false }

type strategy struct {
	artist   string
	title    string
	album    string
	duration int64
}

func (p *Provider) Fetch(ctx context.Context, req lyrics.Request) (*lyrics.Candidate, error) {
	if req.Artist == "" || req.Title == "" {
		return nil, errors.New("track title or artist is empty")
	}
	if p.baseURL == "" {
		return nil, errors.New("lrclib base url is empty")
	}

	parsedURL, err := url.Parse(p.baseURL + "/get")
	if err != nil {
		return nil, fmt.Errorf("invalid lrclib url %q: %w", p.baseURL, err)
	}

	normalizedArtist := normalizeString(req.Artist)
	normalizedTitle := normalizeString(req.Title)
	strippedArtist := stripVersionInfo(req.Artist)
	strippedTitle := stripVersionInfo(req.Title)

	if normalizedTitle == "" || normalizedArtist == "" {
		return nil, errors.New("track title or artist is empty after normalization")
	}

	searchStrategies := []strategy{
		// normalized names with album and duration
		{normalizedArtist, normalizedTitle, req.Album, req.DurationSecs},
		// normalized names without album
		{normalizedArtist, normalizedTitle, "", req.DurationSecs},
		// normalized names without album or duration
		{normalizedArtist, normalizedTitle, "", 0},
		// stripped version info (no parens/brackets)
		{strippedArtist, strippedTitle, "", 0},
		// uppercase (some artists like SURF CURSE)
		{strings.ToUpper(normalizedArtist), strings.ToUpper(normalizedTitle), "", 0},
		// lowercase
		{strings.ToLower(normalizedArtist), strings.ToLower(normalizedTitle), "", 0},
		// title case
		{toTitleCase(normalizedArtist), toTitleCase(normalizedTitle), "", 0},
		// original names as a last resort
		{req.Artist, req.Title, "", 0},
	}

	seen := make(map[string]bool)
	var unique []strategy
	for _, s := range searchStrategies {
		if s.artist == "" || s.title == "" {
			continue
		}
		key := fmt.Sprintf("%s|%s|%s|%d", s.artist, s.title, s.album, s.duration)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, s)
		}
	}

	for i, s := range unique {
		// small delay between variants to avoid hammering the server
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(100 * time.Millisecond):
			}
		}

		query := parsedURL.Query()
		query.Set("artist_name", s.artist)
		query.Set("track_name", s.title)
		if s.album != "" {
			query.Set("album_name", s.album)
		}
		if s.duration > 0 {
			query.Set("duration", fmt.Sprintf("%d", s.duration))
		}
		parsedURL.RawQuery = query.Encode()

		payload, err := p.doRequest(ctx, parsedURL.String())
		if err != nil {
			if isTimeoutError(err) {
				return nil, fmt.Errorf("lrclib took too long to respond: %w", err)
			}
			// 404 and friends just mean this variant missed
			continue
		}
		if payload == nil {
			continue
		}
		if payload.PlainLyrics == "" && payload.SyncedLyrics == "" && !payload.Instrumental {
			continue
		}

		return candidateFrom(payload), nil
	}

	return nil, nil
}

func (p *Provider) doRequest(ctx context.Context, requestURL string) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build http request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("status 404: lyrics not found")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lrclib returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read lrclib response: %w", err)
	}

	var payload response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode lrclib json: %w", err)
	}
	return &payload, nil
}

func candidateFrom(payload *response) *lyrics.Candidate {
	doc := lyrics.ParseLRC(payload.SyncedLyrics)
	return &lyrics.Candidate{
		Provider:     Name,
		Artist:       payload.ArtistName,
		Title:        payload.TrackName,
		Album:        payload.AlbumName,
		DurationSec:  payload.Duration,
		Instrumental: payload.Instrumental,
		Plain:        payload.PlainLyrics,
		Lines:        doc.Lines,
		Offset:       doc.Offset,
	}
}

func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(err.Error(), "timeout") ||
		strings.Contains(err.Error(), "deadline exceeded") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// normalizeString cleans track/artist names for better matching
func normalizeString(s string) string {
	s = strings.TrimSpace(s)

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	return strings.TrimSpace(s)
}

// stripVersionInfo removes text in parentheses and brackets (remixes, versions, etc)
func stripVersionInfo(s string) string {
	s = strings.TrimSpace(s)

	for strings.Contains(s, "(") && strings.Contains(s, ")") {
		start := strings.Index(s, "(")
		end := strings.Index(s, ")")
		if end > start {
			s = s[:start] + " " + s[end+1:]
		} else {
			break
		}
	}

	for strings.Contains(s, "[") && strings.Contains(s, "]") {
		start := strings.Index(s, "[")
		end := strings.Index(s, "]")
		if end > start {
			s = s[:start] + " " + s[end+1:]
		} else {
			break
		}
	}

	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}

	return strings.TrimSpace(s)
}

// toTitleCase capitalizes the first letter of each word
func toTitleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(string(word[0])) + strings.ToLower(word[1:])
		}
	}
	return strings.Join(words, " ")
}
