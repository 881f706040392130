package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/colors"
	"karolbroda.com/skald/internal/track"
)

var (
	flagConfirm   bool
	flagCacheSort string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the lyrics cache",
	Long:  `inspect, prune or clear the on-disk lyrics cache.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := cacheDir(cfg)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		count, size, err := store.Stats()
		if err != nil {
			return fmt.Errorf("failed to read cache stats: %w", err)
		}

		fmt.Println("cache statistics:")
		fmt.Printf("  location: %s\n", dir)
		fmt.Printf("  tracks:   %d\n", count)
		fmt.Printf("  size:     %s\n", formatBytes(size))
		return nil
	},
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "list cached tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		entries, err := store.Entries()
		if err != nil {
			return fmt.Errorf("failed to list cache: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("cache is empty")
			return nil
		}

		switch flagCacheSort {
		case "artist":
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].Artist != entries[j].Artist {
					return entries[i].Artist < entries[j].Artist
				}
				return entries[i].Title < entries[j].Title
			})
		case "title":
			sort.Slice(entries, func(i, j int) bool { return entries[i].Title < entries[j].Title })
		case "size":
			sort.Slice(entries, func(i, j int) bool { return entries[i].SizeBytes > entries[j].SizeBytes })
		default:
			return fmt.Errorf("unknown sort key %q (use artist, title or size)", flagCacheSort)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ARTIST\tTITLE\tPROVIDERS\tWORD SYNC\tSIZE")
		for _, e := range entries {
			word := "-"
			if e.WordSynced {
				word = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Artist, e.Title, strings.Join(e.Providers, ","), word, formatBytes(e.SizeBytes))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\ntotal: %d tracks\n", len(entries))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <artist> <title>",
	Short: "show everything cached for one track",
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

		artist, title := args[0], args[1]
		key := track.NewKey(artist, title, "")

		cands, err := store.Candidates(key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
		if len(cands) == 0 {
			return notCached(store, artist, title)
		}

		fmt.Printf("artist: %s\n", cands[0].Artist)
		fmt.Printf("title:  %s\n", cands[0].Title)
		if cands[0].Album != "" {
			fmt.Printf("album:  %s\n", cands[0].Album)
		}
		if cands[0].DurationSec > 0 {
			fmt.Printf("length: %s\n", colors.FormatTime(int64(cands[0].DurationSec*1000)))
		}

		fmt.Println("\ncandidates:")
		for _, c := range cands {
			switch {
			case c.Instrumental:
				fmt.Printf("  %s: instrumental\n", c.Provider)
			case c.WordSynced():
				fmt.Printf("  %s: %d lines, %d words\n", c.Provider, len(c.Lines), len(c.Words))
			case c.Synced():
				fmt.Printf("  %s: %d lines\n", c.Provider, len(c.Lines))
			default:
				fmt.Printf("  %s: plain text\n", c.Provider)
			}
		}

		prefs, err := store.Prefs(key)
		if err != nil {
			return err
		}
		if prefs.OffsetMs != 0 || prefs.Instrumental || prefs.PinnedLine != "" || prefs.PinnedWord != "" {
			fmt.Println("\npreferences:")
			if prefs.OffsetMs != 0 {
				fmt.Printf("  offset: %+dms\n", prefs.OffsetMs)
			}
			if prefs.Instrumental {
				fmt.Println("  marked instrumental")
			}
			if prefs.PinnedLine != "" {
				fmt.Printf("  pinned provider: %s\n", prefs.PinnedLine)
			}
			if prefs.PinnedWord != "" {
				fmt.Printf("  pinned word provider: %s\n", prefs.PinnedWord)
			}
		}
		return nil
	},
}

var cacheDeleteCmd = &cobra.Command{
	Use:   "delete <artist> <title>",
	Short: "delete one track from the cache",
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

		artist, title := args[0], args[1]
		key := track.NewKey(artist, title, "")

		cands, err := store.Candidates(key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
		if len(cands) == 0 {
			return notCached(store, artist, title)
		}

		if err := store.Delete(key); err != nil {
			return fmt.Errorf("failed to delete: %w", err)
		}
		fmt.Printf("deleted '%s - %s'\n", artist, title)
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "drop cache entries past their retention window",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		removed, err := store.Prune()
		if err != nil {
			return fmt.Errorf("failed to prune cache: %w", err)
		}
		fmt.Printf("pruned %d entries\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "delete the entire cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}

		if !flagConfirm {
			count, size, err := store.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("this will delete %d tracks (%s).\n", count, formatBytes(size))
			fmt.Print("are you sure? (y/n): ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Println("cancelled")
				return nil
			}
		}

		if err := store.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheDeleteCmd)
	cacheCmd.AddCommand(cachePruneCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	cacheListCmd.Flags().StringVar(&flagCacheSort, "sort", "artist", "sort by: artist, title, size")
	cacheClearCmd.Flags().BoolVar(&flagConfirm, "confirm", false, "skip the confirmation prompt")
}

// helper functions

// notCached reports a miss and suggests near matches from the cache so
// a typo in the artist or title is easy to spot.
func notCached(store *cache.Store, artist, title string) error {
	entries, err := store.Entries()
	if err == nil {
		if matches := similarEntries(entries, artist, title); len(matches) > 0 {
			fmt.Printf("nothing cached for '%s - %s'. did you mean:\n", artist, title)
			for _, e := range matches {
				fmt.Printf("  %s - %s\n", e.Artist, e.Title)
			}
			return errors.New("track not found in cache")
		}
	}
	return fmt.Errorf("nothing cached for '%s - %s'", artist, title)
}

// similarEntries does a cheap two-pass containment match, artist first,
// then title, capped at five suggestions.
func similarEntries(entries []cache.Entry, artist, title string) []cache.Entry {
	artist = strings.ToLower(artist)
	title = strings.ToLower(title)

	var matches []cache.Entry
	seen := make(map[string]bool)

	for _, e := range entries {
		if len(matches) >= 5 {
			return matches
		}
		a := strings.ToLower(e.Artist)
		if strings.Contains(a, artist) || strings.Contains(artist, a) {
			matches = append(matches, e)
			seen[e.KeyHash] = true
		}
	}
	for _, e := range entries {
		if len(matches) >= 5 {
			break
		}
		if seen[e.KeyHash] {
			continue
		}
		t := strings.ToLower(e.Title)
		if strings.Contains(t, title) || strings.Contains(title, t) {
			matches = append(matches, e)
		}
	}
	return matches
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
