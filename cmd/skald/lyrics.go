package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/config"
	"karolbroda.com/skald/internal/logging"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/race"
	"karolbroda.com/skald/internal/track"
)

var lyricsCmd = &cobra.Command{
	Use:   "lyrics",
	Short: "fetch and inspect lyrics",
	Long:  `fetch lyrics for a track by hand, list the cached candidates or preview the synced text.`,
}

var lyricsFetchCmd = &cobra.Command{
	Use:   "fetch <artist> <title>",
	Short: "race the providers and cache the results",
	Long: `runs the provider race for the given track exactly like the engine
would and stores every candidate in the cache.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := quietRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		artist, title := args[0], args[1]
		fmt.Printf("fetching: %s - %s\n", artist, title)

		ctx, cancel := raceContext(rt.cfg)
		defer cancel()

		res := raceTrack(ctx, rt, artist, title)
		switch {
		case res.instrumental:
			fmt.Println("track is instrumental, cached the flag")
		case res.line == nil && res.word == nil:
			return fmt.Errorf("no lyrics found for '%s - %s'", artist, title)
		default:
			if res.line != nil {
				kind := "synced"
				if !res.line.Synced() {
					kind = "plain"
				}
				fmt.Printf("%s: %s (%d lines)\n", kind, res.line.Provider, len(res.line.Lines))
			}
			if res.word != nil {
				fmt.Printf("word synced: %s (%d words)\n", res.word.Provider, len(res.word.Words))
			}
			fmt.Println("cached")
		}
		return nil
	},
}

var lyricsCandidatesCmd = &cobra.Command{
	Use:   "candidates <artist> <title>",
	Short: "list the cached candidates for a track",
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
		cands, err := store.Candidates(track.NewKey(artist, title, ""))
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
		if len(cands) == 0 {
			return notCached(store, artist, title)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tSYNC\tLINES\tWORDS\tCACHED")
		for _, c := range cands {
			sync := "plain"
			switch {
			case c.Instrumental:
				sync = "instrumental"
			case c.WordSynced():
				sync = "word"
			case c.Synced():
				sync = "line"
			}
			cached := "-"
			if c.CachedAt > 0 {
				cached = time.Unix(c.CachedAt, 0).Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.Provider, sync, len(c.Lines), len(c.Words), cached)
		}
		return w.Flush()
	},
}

var lyricsPreviewCmd = &cobra.Command{
	Use:   "preview <artist> <title>",
	Short: "print the lyrics with their timestamps",
	Long: `prints the cached lyrics for a track with timestamps. when nothing is
cached yet the providers are raced first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := quietRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		artist, title := args[0], args[1]
		key := track.NewKey(artist, title, "")

		cands, err := rt.store.Candidates(key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			return err
		}
		best := pickPreview(cands)
		if best == nil {
			fmt.Printf("nothing cached, fetching: %s - %s\n", artist, title)
			ctx, cancel := raceContext(rt.cfg)
			defer cancel()
			res := raceTrack(ctx, rt, artist, title)
			switch {
			case res.line != nil:
				best = res.line
			case res.word != nil:
				best = res.word
			case res.instrumental:
				fmt.Println("[instrumental]")
				return nil
			default:
				return fmt.Errorf("no lyrics found for '%s - %s'", artist, title)
			}
		}

		if best.Instrumental {
			fmt.Println("[instrumental]")
			return nil
		}
		if len(best.Lines) > 0 {
			fmt.Printf("synced lyrics from %s:\n\n", best.Provider)
			for _, line := range best.Lines {
				fmt.Printf("[%s] %s\n", formatTimestamp(line.Time), line.Text)
			}
			return nil
		}
		if best.Plain != "" {
			fmt.Printf("plain lyrics from %s (no timestamps):\n\n%s\n", best.Provider, best.Plain)
			return nil
		}
		return fmt.Errorf("cached entry for '%s - %s' is empty", artist, title)
	},
}

func init() {
	rootCmd.AddCommand(lyricsCmd)
	lyricsCmd.AddCommand(lyricsFetchCmd)
	lyricsCmd.AddCommand(lyricsCandidatesCmd)
	lyricsCmd.AddCommand(lyricsPreviewCmd)
}

// helper functions

type raceResult struct {
	line         *lyrics.Candidate
	word         *lyrics.Candidate
	instrumental bool
}

// raceTrack runs one provider race to completion and reports what won.
// Candidates land in the cache as a side effect, same as in the engine.
// An empty result means no provider had anything before the window
// closed.
func raceTrack(ctx context.Context, rt *runtime, artist, title string) raceResult {
	key := track.NewKey(artist, title, "")
	req := lyrics.Request{Artist: artist, Title: title}

	var res raceResult
	for ev := range rt.racer.Race(ctx, 0, key, req, cache.Prefs{}) {
		switch ev.Kind {
		case race.EventSelected:
			res.line = ev.Candidate
		case race.EventWordSelected:
			res.word = ev.Candidate
		case race.EventInstrumental:
			res.instrumental = true
		}
	}
	return res
}

func quietRuntime(cmd *cobra.Command) (*runtime, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return buildRuntime(cfg, logging.Discard())
}

func raceContext(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.Lyrics.RaceTimeout+cfg.Lyrics.ProviderTimeout)
}

// pickPreview prefers line-synced candidates, then word-synced, then
// plain text.
func pickPreview(cands []*lyrics.Candidate) *lyrics.Candidate {
	var word, plain *lyrics.Candidate
	for _, c := range cands {
		switch {
		case c.Synced():
			return c
		case c.WordSynced() && word == nil:
			word = c
		case (c.Plain != "" || c.Instrumental) && plain == nil:
			plain = c
		}
	}
	if word != nil {
		return word
	}
	return plain
}

func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	min := int(seconds) / 60
	return fmt.Sprintf("%02d:%05.2f", min, seconds-float64(min*60))
}
