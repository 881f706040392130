package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var flagPrewarmWorkers int

var prewarmCmd = &cobra.Command{
	Use:   "prewarm <file>",
	Short: "bulk fetch lyrics for a track list",
	Long: `reads "artist - title" lines from a file and races the providers for
each one, filling the cache ahead of an offline session. empty lines
and lines starting with # are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := quietRuntime(cmd)
		if err != nil {
			return err
		}
		defer rt.close()

		tracks, err := readTrackList(args[0])
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Println("nothing to fetch")
			return nil
		}

		bar := progressbar.Default(int64(len(tracks)), "fetching")

		var fetched, missed atomic.Int64
		jobs := make(chan [2]string)
		var wg sync.WaitGroup

		for i := 0; i < flagPrewarmWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for tr := range jobs {
					ctx, cancel := raceContext(rt.cfg)
					res := raceTrack(ctx, rt, tr[0], tr[1])
					cancel()
					if res.line != nil || res.word != nil || res.instrumental {
						fetched.Add(1)
					} else {
						missed.Add(1)
					}
					_ = bar.Add(1)
				}
			}()
		}

		for _, tr := range tracks {
			jobs <- tr
		}
		close(jobs)
		wg.Wait()

		fmt.Printf("\nfetched %d, nothing found for %d\n", fetched.Load(), missed.Load())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(prewarmCmd)
	prewarmCmd.Flags().IntVar(&flagPrewarmWorkers, "workers", 3, "tracks fetched in parallel")
}

func readTrackList(path string) ([][2]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tracks [][2]string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		artist, title, ok := strings.Cut(line, " - ")
		if !ok {
			return nil, fmt.Errorf("line %d: %q, want \"artist - title\"", lineNo, line)
		}
		tracks = append(tracks, [2]string{strings.TrimSpace(artist), strings.TrimSpace(title)})
	}
	return tracks, scanner.Err()
}
