package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Poll.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("poll: %w", err))
	}
	if err := c.Lyrics.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("lyrics: %w", err))
	}
	if err := c.Clock.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("clock: %w", err))
	}
	if err := c.Sources.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sources: %w", err))
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel))
	}

	return errors.Join(errs...)
}

func (c *PollConfig) Validate() error {
	if c.FastInterval <= 0 || c.IdleInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.SourceTimeout <= 0 {
		return errors.New("source timeout must be positive")
	}
	if c.IdleInterval < c.FastInterval {
		return errors.New("idle interval must not be shorter than fast interval")
	}
	return nil
}

func (c *LyricsConfig) Validate() error {
	if len(c.Providers) == 0 {
		return errors.New("at least one lyrics provider must be configured")
	}
	for _, name := range c.Providers {
		switch name {
		case "lrclib", "musixmatch", "netease", "local":
		default:
			return fmt.Errorf("unknown lyrics provider: %s", name)
		}
	}
	if c.RaceTimeout <= 0 {
		return errors.New("race timeout must be positive")
	}
	if c.OffsetStep <= 0 {
		return errors.New("offset step must be positive")
	}
	for _, raw := range []string{c.LrclibURL, c.MusixmatchURL, c.NeteaseURL} {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("invalid provider url %q: %w", raw, err)
		}
	}
	return nil
}

func (c *ClockConfig) Validate() error {
	if c.DriftThreshold <= 0 {
		return errors.New("drift threshold must be positive")
	}
	return nil
}

func (c *SourcesConfig) Validate() error {
	if c.Recognizer.Enabled && c.Recognizer.Command == "" {
		return errors.New("recognizer enabled without a command")
	}
	for name, prio := range map[string]int{
		"mpris":      c.MPRIS.Priority,
		"spotify":    c.Spotify.Priority,
		"mpd":        c.MPD.Priority,
		"bridge":     c.Bridge.Priority,
		"recognizer": c.Recognizer.Priority,
	} {
		if prio < 0 {
			return fmt.Errorf("%s: priority must be non-negative", name)
		}
	}
	return nil
}
