package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel string `env:"SKALD_LOG_LEVEL" env-default:"info"`
	LogFile  string `env:"SKALD_LOG_FILE"`
	CacheDir string `env:"SKALD_CACHE_DIR"`

	Poll    PollConfig
	Sources SourcesConfig
	Lyrics  LyricsConfig
	Clock   ClockConfig
	Server  ServerConfig
	UI      UIConfig
}

type PollConfig struct {
	FastInterval  time.Duration `env:"SKALD_POLL_FAST" env-default:"1s"`
	IdleInterval  time.Duration `env:"SKALD_POLL_IDLE" env-default:"5s"`
	SourceTimeout time.Duration `env:"SKALD_SOURCE_TIMEOUT" env-default:"2s"`
	StaleGrace    time.Duration `env:"SKALD_STALE_GRACE" env-default:"10s"`
}

type SourcesConfig struct {
	MPRIS      MPRISConfig
	Spotify    SpotifyConfig
	MPD        MPDConfig
	Bridge     BridgeConfig
	Recognizer RecognizerConfig
}

type MPRISConfig struct {
	Enabled       bool          `env:"SKALD_MPRIS_ENABLED" env-default:"true"`
	Priority      int           `env:"SKALD_MPRIS_PRIORITY" env-default:"1"`
	PausedTimeout time.Duration `env:"SKALD_MPRIS_PAUSED_TIMEOUT" env-default:"10m"`
	// Service pins a single bus name such as org.mpris.MediaPlayer2.spotify.
	// Empty means discover whichever player is active.
	Service string `env:"SKALD_MPRIS_SERVICE"`
}

type SpotifyConfig struct {
	Enabled       bool          `env:"SKALD_SPOTIFY_ENABLED" env-default:"false"`
	Priority      int           `env:"SKALD_SPOTIFY_PRIORITY" env-default:"2"`
	PausedTimeout time.Duration `env:"SKALD_SPOTIFY_PAUSED_TIMEOUT" env-default:"10m"`
	APIURL        string        `env:"SKALD_SPOTIFY_API_URL" env-default:"https://api.spotify.com/v1"`
	TokenURL      string        `env:"SKALD_SPOTIFY_TOKEN_URL" env-default:"https://accounts.spotify.com/api/token"`
	ClientID      string        `env:"SKALD_SPOTIFY_CLIENT_ID"`
	ClientSecret  string        `env:"SKALD_SPOTIFY_CLIENT_SECRET"`
	RefreshToken  string        `env:"SKALD_SPOTIFY_REFRESH_TOKEN"`
}

type MPDConfig struct {
	Enabled       bool          `env:"SKALD_MPD_ENABLED" env-default:"false"`
	Priority      int           `env:"SKALD_MPD_PRIORITY" env-default:"3"`
	PausedTimeout time.Duration `env:"SKALD_MPD_PAUSED_TIMEOUT" env-default:"10m"`
	Address       string        `env:"SKALD_MPD_ADDRESS" env-default:"127.0.0.1:6600"`
	Password      string        `env:"SKALD_MPD_PASSWORD"`
}

type BridgeConfig struct {
	Enabled       bool          `env:"SKALD_BRIDGE_ENABLED" env-default:"true"`
	Priority      int           `env:"SKALD_BRIDGE_PRIORITY" env-default:"4"`
	PausedTimeout time.Duration `env:"SKALD_BRIDGE_PAUSED_TIMEOUT" env-default:"10m"`
	// Freshness bounds how long a pushed reading counts as live before
	// the bridge reports silence again.
	Freshness time.Duration `env:"SKALD_BRIDGE_FRESHNESS" env-default:"15s"`
}

type RecognizerConfig struct {
	Enabled       bool          `env:"SKALD_RECOGNIZER_ENABLED" env-default:"false"`
	Priority      int           `env:"SKALD_RECOGNIZER_PRIORITY" env-default:"5"`
	PausedTimeout time.Duration `env:"SKALD_RECOGNIZER_PAUSED_TIMEOUT" env-default:"2m"`
	// Command is run on every poll and must print a JSON reading on stdout.
	Command string `env:"SKALD_RECOGNIZER_COMMAND"`
}

type LyricsConfig struct {
	Providers       []string      `env:"SKALD_LYRICS_PROVIDERS" env-default:"lrclib,musixmatch,netease,local"`
	RaceTimeout     time.Duration `env:"SKALD_RACE_TIMEOUT" env-default:"4s"`
	ProviderTimeout time.Duration `env:"SKALD_PROVIDER_TIMEOUT" env-default:"10s"`
	OffsetStep      time.Duration `env:"SKALD_OFFSET_STEP" env-default:"50ms"`
	LrclibURL       string        `env:"SKALD_LRCLIB_URL" env-default:"https://lrclib.net/api"`
	MusixmatchURL   string        `env:"SKALD_MUSIXMATCH_URL" env-default:"https://apic-desktop.musixmatch.com/ws/1.1"`
	MusixmatchToken string        `env:"SKALD_MUSIXMATCH_TOKEN"`
	NeteaseURL      string        `env:"SKALD_NETEASE_URL" env-default:"https://music.163.com/api"`
	LocalDir        string        `env:"SKALD_LYRICS_DIR"`
}

type ClockConfig struct {
	DriftThreshold    time.Duration `env:"SKALD_DRIFT_THRESHOLD" env-default:"1s"`
	WordCompensation  time.Duration `env:"SKALD_WORD_COMPENSATION" env-default:"0ms"`
	MPRISLatency      time.Duration `env:"SKALD_LATENCY_MPRIS" env-default:"0ms"`
	SpotifyLatency    time.Duration `env:"SKALD_LATENCY_SPOTIFY" env-default:"350ms"`
	MPDLatency        time.Duration `env:"SKALD_LATENCY_MPD" env-default:"50ms"`
	BridgeLatency     time.Duration `env:"SKALD_LATENCY_BRIDGE" env-default:"100ms"`
	RecognizerLatency time.Duration `env:"SKALD_LATENCY_RECOGNIZER" env-default:"1500ms"`
}

// LatencyTable maps source names to the compensation the clock adds on
// top of reported positions.
func (c ClockConfig) LatencyTable() map[string]time.Duration {
	return map[string]time.Duration{
		"mpris":      c.MPRISLatency,
		"spotify":    c.SpotifyLatency,
		"mpd":        c.MPDLatency,
		"bridge":     c.BridgeLatency,
		"recognizer": c.RecognizerLatency,
	}
}

type ServerConfig struct {
	Listen string `env:"SKALD_LISTEN" env-default:"127.0.0.1:8277"`
}

type UIConfig struct {
	HideHeader       bool `env:"SKALD_HIDE_HEADER" env-default:"false"`
	UseKittyGraphics bool `env:"SKALD_USE_KITTY_GRAPHICS" env-default:"false"`
}

// Load reads configuration from the user's env file when present and
// from the process environment otherwise. Environment variables always
// override file values.
func Load() (*Config, error) {
	var cfg Config

	path := Path()
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Path returns the env file location the setup wizard writes to.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "skald", "skald.env")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.env"
	}
	return filepath.Join(home, ".config", "skald", "skald.env")
}
