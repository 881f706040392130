package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/track"
)

var offsetCmd = &cobra.Command{
	Use:   "offset <artist> <title> [ms]",
	Short: "show or set the stored timing offset for a track",
	Long: `without a value, prints the stored offset. with a value in milliseconds,
stores it. positive values show lyrics later, negative earlier. the
viewer's arrow keys adjust the same number.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		artist, title := args[0], args[1]
		key := track.NewKey(artist, title, "")

		if len(args) == 2 {
			prefs, err := store.Prefs(key)
			if err != nil {
				return err
			}
			fmt.Printf("%+dms\n", prefs.OffsetMs)
			return nil
		}

		ms, err := strconv.ParseInt(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q, want milliseconds: %w", args[2], err)
		}

		if _, err := store.UpdatePrefs(key, func(p *cache.Prefs) { p.OffsetMs = ms }); err != nil {
			return fmt.Errorf("failed to store offset: %w", err)
		}
		fmt.Printf("offset for '%s - %s' set to %+dms\n", artist, title, ms)
		return nil
	},
}

var offsetClearCmd = &cobra.Command{
	Use:   "clear <artist> <title>",
	Short: "reset the stored offset to zero",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		key := track.NewKey(args[0], args[1], "")
		if _, err := store.UpdatePrefs(key, func(p *cache.Prefs) { p.OffsetMs = 0 }); err != nil {
			return fmt.Errorf("failed to clear offset: %w", err)
		}
		fmt.Printf("offset for '%s - %s' cleared\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(offsetCmd)
	offsetCmd.AddCommand(offsetClearCmd)
}
