package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "interactive configuration wizard",
	Long: `walks through the common settings and writes them to the config file.
existing values are used as defaults, so rerunning is safe.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			// a broken config file should not lock the user out of
			// the tool that fixes it
			cfg = &config.Config{}
		}

		var (
			providers  = strings.Join(cfg.Lyrics.Providers, ",")
			musixToken = cfg.Lyrics.MusixmatchToken
			localDir   = cfg.Lyrics.LocalDir

			mpdEnabled = cfg.Sources.MPD.Enabled
			mpdAddress = cfg.Sources.MPD.Address

			spotifyEnabled = cfg.Sources.Spotify.Enabled
			spotifyID      = cfg.Sources.Spotify.ClientID
			spotifySecret  = cfg.Sources.Spotify.ClientSecret
			spotifyRefresh = cfg.Sources.Spotify.RefreshToken

			listen     = cfg.Server.Listen
			hideHeader = cfg.UI.HideHeader
			write      = true
		)
		if mpdAddress == "" {
			mpdAddress = "127.0.0.1:6600"
		}
		if listen == "" {
			listen = "127.0.0.1:8277"
		}

		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("lyrics providers").
					Description("comma separated, in priority order (lrclib, musixmatch, netease, local)").
					Value(&providers),
				huh.NewInput().
					Title("musixmatch token").
					Description("empty skips musixmatch; it is the only word-sync provider").
					Value(&musixToken),
				huh.NewInput().
					Title("local lyrics directory").
					Description("directory with .lrc files, empty to disable").
					Value(&localDir),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title("watch an mpd server?").
					Value(&mpdEnabled),
				huh.NewInput().
					Title("mpd address").
					Value(&mpdAddress),
			),
			huh.NewGroup(
				huh.NewConfirm().
					Title("watch spotify over its web api?").
					Description("mpris already covers a locally running spotify client").
					Value(&spotifyEnabled),
				huh.NewInput().
					Title("spotify client id").
					Value(&spotifyID),
				huh.NewInput().
					Title("spotify client secret").
					Value(&spotifySecret),
				huh.NewInput().
					Title("spotify refresh token").
					Value(&spotifyRefresh),
			),
			huh.NewGroup(
				huh.NewInput().
					Title("api listen address").
					Value(&listen),
				huh.NewConfirm().
					Title("hide the track header in the viewer?").
					Value(&hideHeader),
				huh.NewConfirm().
					Title("write the config file?").
					Value(&write),
			),
		)

		if err := form.Run(); err != nil {
			return err
		}
		if !write {
			fmt.Println("cancelled, nothing written")
			return nil
		}

		path := config.Path()
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		var b strings.Builder
		b.WriteString("# skald configuration, written by skald setup\n")
		set := func(key, value string) {
			if value != "" {
				fmt.Fprintf(&b, "%s=%s\n", key, value)
			}
		}
		set("SKALD_LYRICS_PROVIDERS", providers)
		set("SKALD_MUSIXMATCH_TOKEN", musixToken)
		set("SKALD_LYRICS_DIR", localDir)
		if mpdEnabled {
			set("SKALD_MPD_ENABLED", "true")
			set("SKALD_MPD_ADDRESS", mpdAddress)
		}
		if spotifyEnabled {
			set("SKALD_SPOTIFY_ENABLED", "true")
			set("SKALD_SPOTIFY_CLIENT_ID", spotifyID)
			set("SKALD_SPOTIFY_CLIENT_SECRET", spotifySecret)
			set("SKALD_SPOTIFY_REFRESH_TOKEN", spotifyRefresh)
		}
		set("SKALD_LISTEN", listen)
		if hideHeader {
			set("SKALD_HIDE_HEADER", "true")
		}

		if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
