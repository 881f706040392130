package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"karolbroda.com/skald/internal/track"
)

const (
	Name = "spotify"

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// Config carries the web API credentials. The refresh token comes from
// a one-time authorization code dance done outside skald.
type Config struct {
	APIURL       string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Adapter talks to the Spotify Web API. The access token is refreshed
// lazily under the mutex whenever it is close to expiry.
type Adapter struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func New(cfg Config) *Adapter {
	return &Adapter{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *Adapter) Available(ctx context.Context) bool {
	return a.cfg.RefreshToken != "" && a.cfg.ClientID != ""
}

type playingResponse struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMs int64 `json:"progress_ms"`
	Item       *item `json:"item"`
}

type item struct {
	Name       string `json:"name"`
	URI        string `json:"uri"`
	DurationMs int64  `json:"duration_ms"`
	Artists    []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

func (a *Adapter) Current(ctx context.Context) (*track.Reading, error) {
	var resp playingResponse
	status, err := a.request(ctx, http.MethodGet, "/me/player/currently-playing", &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || resp.Item == nil {
		return nil, nil
	}

	return readingFromItem(resp.Item, resp.IsPlaying, resp.ProgressMs), nil
}

func (a *Adapter) Queue(ctx context.Context) ([]track.Reading, error) {
	var resp struct {
		Queue []*item `json:"queue"`
	}
	if _, err := a.request(ctx, http.MethodGet, "/me/player/queue", &resp); err != nil {
		return nil, err
	}

	out := make([]track.Reading, 0, len(resp.Queue))
	for _, it := range resp.Queue {
		if it == nil {
			continue
		}
		out = append(out, *readingFromItem(it, false, 0))
	}
	return out, nil
}

func (a *Adapter) TogglePlayback(ctx context.Context) error {
	var resp playingResponse
	status, err := a.request(ctx, http.MethodGet, "/me/player/currently-playing", &resp)
	if err != nil {
		return err
	}

	if status != http.StatusNoContent && resp.IsPlaying {
		_, err = a.request(ctx, http.MethodPut, "/me/player/pause", nil)
	} else {
		_, err = a.request(ctx, http.MethodPut, "/me/player/play", nil)
	}
	return err
}

func (a *Adapter) Next(ctx context.Context) error {
	_, err := a.request(ctx, http.MethodPost, "/me/player/next", nil)
	return err
}

func (a *Adapter) Previous(ctx context.Context) error {
	_, err := a.request(ctx, http.MethodPost, "/me/player/previous", nil)
	return err
}

func (a *Adapter) Seek(ctx context.Context, positionMs int64) error {
	path := fmt.Sprintf("/me/player/seek?position_ms=%d", positionMs)
	_, err := a.request(ctx, http.MethodPut, path, nil)
	return err
}

func readingFromItem(it *item, playing bool, progressMs int64) *track.Reading {
	reading := &track.Reading{
		Source:      Name,
		Title:       it.Name,
		TrackID:     it.URI,
		Album:       it.Album.Name,
		DurationMs:  it.DurationMs,
		Playing:     playing,
		Position:    float64(progressMs) / 1000,
		HasPosition: true,
	}
	if len(it.Artists) > 0 {
		reading.Artist = it.Artists[0].Name
	}
	if len(it.Album.Images) > 0 {
		reading.ArtworkURL = it.Album.Images[0].URL
	}
	return reading
}

// APIError is a structured Spotify error response.
type APIError struct {
	ErrorInfo struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify api error %d: %s", e.ErrorInfo.Status, e.ErrorInfo.Message)
}

func (a *Adapter) request(ctx context.Context, method, path string, result any) (int, error) {
	token, err := a.getToken(ctx)
	if err != nil {
		return 0, err
	}

	fullURL := a.cfg.APIURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := baseRetryWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("spotify returned status %d", resp.StatusCode)
			continue
		}

		if resp.StatusCode >= 400 {
			var apiErr APIError
			if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.ErrorInfo.Message != "" {
				return resp.StatusCode, &apiErr
			}
			return resp.StatusCode, fmt.Errorf("spotify returned status %d: %s", resp.StatusCode, string(body))
		}

		if result != nil && len(body) > 0 {
			if err := json.Unmarshal(body, result); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to parse response: %w", err)
			}
		}

		return resp.StatusCode, nil
	}

	return 0, fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// getToken returns a live access token, refreshing when expired.
func (a *Adapter) getToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.accessToken != "" && time.Now().Before(a.expiresAt) {
		return a.accessToken, nil
	}

	if a.cfg.RefreshToken == "" {
		return "", fmt.Errorf("spotify is not authenticated")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", a.cfg.RefreshToken)
	form.Set("client_id", a.cfg.ClientID)
	if a.cfg.ClientSecret != "" {
		form.Set("client_secret", a.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token refresh failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
		Refresh     string `json:"refresh_token"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token refresh returned no access token")
	}

	a.accessToken = payload.AccessToken
	// refresh a minute early so in-flight requests never race expiry
	a.expiresAt = time.Now().Add(time.Duration(payload.ExpiresIn)*time.Second - time.Minute)
	if payload.Refresh != "" {
		a.cfg.RefreshToken = payload.Refresh
	}

	return a.accessToken, nil
}
