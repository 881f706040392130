package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// global flags, applied on top of the config file
	flagMprisService string
	flagLogLevel     string
	flagLogFile      string
	flagCacheDir     string
	flagHideHeader   bool
	flagKitty        bool
)

var rootCmd = &cobra.Command{
	Use:   "skald",
	Short: "synchronized lyrics for whatever is playing",
	Long: `skald watches your music players, races several lyrics providers for
each track and renders the winner as a synchronized terminal display.

without a subcommand it starts the interactive viewer.`,
	Version: "0.4.0",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runViewer(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagMprisService, "mpris-service", "m", "", "pin one mpris bus name (e.g. org.mpris.MediaPlayer2.spotify)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "append logs to this file instead of stderr")
	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "override the lyrics cache directory")
	rootCmd.PersistentFlags().BoolVarP(&flagHideHeader, "hide-header", "H", false, "hide the track header in the viewer")
	rootCmd.PersistentFlags().BoolVar(&flagKitty, "kitty-graphics", false, "force kitty graphics for album art")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
