package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"karolbroda.com/skald/internal/track"
)

const Name = "recognizer"

// result is the JSON shape the external recognizer must print. Tools
// like songrec can be wrapped in a one-line script that emits this.
type result struct {
	Artist      string  `json:"artist"`
	Title       string  `json:"title"`
	Album       string  `json:"album"`
	DurationSec float64 `json:"duration_sec"`
	OffsetSec   float64 `json:"offset_sec"`
	Recognized  bool    `json:"recognized"`
}

// Adapter shells out to an acoustic recognizer. Every poll runs the
// command once; the command listens to the microphone and prints one
// JSON object. Recognized offsets are inherently coarse, the clock's
// latency table absorbs that.
type Adapter struct {
	command string
}

func New(command string) *Adapter {
	return &Adapter{command: command}
}

func (a *Adapter) Available(ctx context.Context) bool {
	parts := strings.Fields(a.command)
	if len(parts) == 0 {
		return false
	}
	_, err := exec.LookPath(parts[0])
	return err == nil
}

func (a *Adapter) Current(ctx context.Context) (*track.Reading, error) {
	parts := strings.Fields(a.command)
	if len(parts) == 0 {
		return nil, errors.New("recognizer command is empty")
	}

	var out bytes.Buffer
	var errout bytes.Buffer

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Stdout = &out
	cmd.Stderr = &errout

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s failed: %v: %s", parts[0], err, strings.TrimSpace(errout.String()))
	}

	var res result
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &res); err != nil {
		return nil, fmt.Errorf("failed to decode recognizer output: %w", err)
	}

	if !res.Recognized || res.Artist == "" || res.Title == "" {
		return nil, nil
	}

	reading := &track.Reading{
		Source:  Name,
		Artist:  res.Artist,
		Title:   res.Title,
		Album:   res.Album,
		Playing: true,
		// recognition implies audible playback right now
		LastActive: time.Now(),
	}
	if res.DurationSec > 0 {
		reading.DurationMs = int64(res.DurationSec * 1000)
	}
	if res.OffsetSec > 0 {
		reading.Position = res.OffsetSec
		reading.HasPosition = true
	}

	return reading, nil
}
