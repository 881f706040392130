package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/clock"
	"karolbroda.com/skald/internal/config"
	"karolbroda.com/skald/internal/engine"
	"karolbroda.com/skald/internal/logging"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/lyrics/local"
	"karolbroda.com/skald/internal/lyrics/lrclib"
	"karolbroda.com/skald/internal/lyrics/musixmatch"
	"karolbroda.com/skald/internal/lyrics/netease"
	"karolbroda.com/skald/internal/poller"
	"karolbroda.com/skald/internal/race"
	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/source/bridge"
	"karolbroda.com/skald/internal/source/mpd"
	"karolbroda.com/skald/internal/source/mpris"
	"karolbroda.com/skald/internal/source/recognizer"
	"karolbroda.com/skald/internal/source/spotify"
)

// runtime bundles everything the commands need from the wiring.
type runtime struct {
	cfg      *config.Config
	registry *source.Registry
	bridge   *bridge.Adapter
	store    *cache.Store
	racer    *race.Engine
	eng      *engine.Engine
	closers  []func()
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// loadConfig reads the config file and layers the global flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagMprisService != "" {
		cfg.Sources.MPRIS.Service = flagMprisService
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	if flagCacheDir != "" {
		cfg.CacheDir = flagCacheDir
	}
	if cmd.Flags().Changed("hide-header") {
		cfg.UI.HideHeader = flagHideHeader
	}
	if cmd.Flags().Changed("kitty-graphics") {
		cfg.UI.UseKittyGraphics = flagKitty
	}
	return cfg, nil
}

// newLogger builds the command logger. The viewer passes quiet=true so
// log lines never tear the alternate screen unless a file is set.
func newLogger(cfg *config.Config, quiet bool) (*slog.Logger, error) {
	if quiet && cfg.LogFile == "" {
		return logging.Discard(), nil
	}
	return logging.Setup(cfg.LogLevel, cfg.LogFile)
}

// buildRuntime assembles sources, providers, cache, clock and engine
// from configuration. A source that fails to initialize is skipped with
// a warning so one dead player never blocks the rest.
func buildRuntime(cfg *config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	reg := source.NewRegistry()

	if cfg.Sources.MPRIS.Enabled {
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			log.Warn("mpris source disabled, session bus unreachable", "error", err)
		} else {
			rt.closers = append(rt.closers, func() { _ = conn.Close() })
			adapter, err := mpris.New(conn, cfg.Sources.MPRIS.Service)
			if err != nil {
				log.Warn("mpris source disabled", "error", err)
			} else {
				err = reg.Register(source.Config{
					Name:          "mpris",
					DisplayName:   "MPRIS",
					Priority:      cfg.Sources.MPRIS.Priority,
					PausedTimeout: cfg.Sources.MPRIS.PausedTimeout,
					Platforms:     []string{"linux"},
					Enabled:       true,
				}, source.CapMetadata|source.CapPosition|source.CapPlaybackControl|source.CapSeek|source.CapAlbumArt, adapter)
				if err != nil {
					return nil, fmt.Errorf("failed to register mpris: %w", err)
				}
			}
		}
	}

	if cfg.Sources.Spotify.Enabled {
		adapter := spotify.New(spotify.Config{
			APIURL:       cfg.Sources.Spotify.APIURL,
			TokenURL:     cfg.Sources.Spotify.TokenURL,
			ClientID:     cfg.Sources.Spotify.ClientID,
			ClientSecret: cfg.Sources.Spotify.ClientSecret,
			RefreshToken: cfg.Sources.Spotify.RefreshToken,
		})
		err := reg.Register(source.Config{
			Name:          "spotify",
			DisplayName:   "Spotify",
			Priority:      cfg.Sources.Spotify.Priority,
			PausedTimeout: cfg.Sources.Spotify.PausedTimeout,
			Enabled:       true,
		}, source.CapMetadata|source.CapPosition|source.CapPlaybackControl|source.CapSeek|source.CapAlbumArt|source.CapQueue, adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to register spotify: %w", err)
		}
	}

	if cfg.Sources.MPD.Enabled {
		adapter := mpd.New(cfg.Sources.MPD.Address, cfg.Sources.MPD.Password)
		err := reg.Register(source.Config{
			Name:          "mpd",
			DisplayName:   "MPD",
			Priority:      cfg.Sources.MPD.Priority,
			PausedTimeout: cfg.Sources.MPD.PausedTimeout,
			Enabled:       true,
		}, source.CapMetadata|source.CapPosition|source.CapPlaybackControl|source.CapSeek, adapter)
		if err != nil {
			return nil, fmt.Errorf("failed to register mpd: %w", err)
		}
	}

	// the bridge adapter is constructed even when disabled so the api
	// server's push endpoint always has a target. disabled just means
	// the poller never reads it.
	br := bridge.New(cfg.Sources.Bridge.Freshness)
	rt.bridge = br
	if cfg.Sources.Bridge.Enabled {
		err := reg.Register(source.Config{
			Name:          bridge.Name,
			DisplayName:   "Bridge",
			Priority:      cfg.Sources.Bridge.Priority,
			PausedTimeout: cfg.Sources.Bridge.PausedTimeout,
			Enabled:       true,
		}, source.CapMetadata|source.CapPosition, br)
		if err != nil {
			return nil, fmt.Errorf("failed to register bridge: %w", err)
		}
	}

	if cfg.Sources.Recognizer.Enabled {
		if cfg.Sources.Recognizer.Command == "" {
			log.Warn("recognizer source disabled, no command configured")
		} else {
			adapter := recognizer.New(cfg.Sources.Recognizer.Command)
			err := reg.Register(source.Config{
				Name:          "recognizer",
				DisplayName:   "Recognizer",
				Priority:      cfg.Sources.Recognizer.Priority,
				PausedTimeout: cfg.Sources.Recognizer.PausedTimeout,
				Enabled:       true,
			}, source.CapMetadata, adapter)
			if err != nil {
				return nil, fmt.Errorf("failed to register recognizer: %w", err)
			}
		}
	}

	ranked, err := buildProviders(cfg, log)
	if err != nil {
		return nil, err
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	rt.registry = reg
	rt.store = store
	rt.racer = race.New(ranked, store, race.Options{
		RaceTimeout:     cfg.Lyrics.RaceTimeout,
		ProviderTimeout: cfg.Lyrics.ProviderTimeout,
		Logger:          log,
	})

	poll := poller.New(reg, poller.Options{
		FastInterval:  cfg.Poll.FastInterval,
		IdleInterval:  cfg.Poll.IdleInterval,
		SourceTimeout: cfg.Poll.SourceTimeout,
		StaleGrace:    cfg.Poll.StaleGrace,
		Logger:        log,
	})

	clk := clock.New(clock.Options{
		Latency:        cfg.Clock.LatencyTable(),
		DriftThreshold: cfg.Clock.DriftThreshold,
	})

	rt.eng = engine.New(reg, poll, rt.racer, store, clk, engine.Options{
		WordCompensation: cfg.Clock.WordCompensation,
		OffsetStep:       cfg.Lyrics.OffsetStep,
		Logger:           log,
	})

	return rt, nil
}

func buildProviders(cfg *config.Config, log *slog.Logger) ([]race.Ranked, error) {
	var ranked []race.Ranked
	for i, name := range cfg.Lyrics.Providers {
		var p lyrics.Provider
		switch name {
		case "lrclib":
			p = lrclib.New(cfg.Lyrics.LrclibURL)
		case "musixmatch":
			if cfg.Lyrics.MusixmatchToken == "" {
				log.Debug("musixmatch skipped, no token configured")
				continue
			}
			p = musixmatch.New(cfg.Lyrics.MusixmatchURL, cfg.Lyrics.MusixmatchToken)
		case "netease":
			p = netease.New(cfg.Lyrics.NeteaseURL)
		case "local":
			if cfg.Lyrics.LocalDir == "" {
				log.Debug("local provider skipped, no directory configured")
				continue
			}
			p = local.New(cfg.Lyrics.LocalDir)
		default:
			return nil, fmt.Errorf("unknown lyrics provider %q", name)
		}
		ranked = append(ranked, race.Ranked{Provider: p, Priority: i})
	}
	if len(ranked) == 0 {
		return nil, errors.New("no lyrics providers configured")
	}
	return ranked, nil
}

// openStore opens the on-disk cache, resolving the default directory
// when none is configured.
func openStore(cfg *config.Config) (*cache.Store, error) {
	dir, err := cacheDir(cfg)
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return store, nil
}

func cacheDir(cfg *config.Config) (string, error) {
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	return cache.DefaultDir()
}
