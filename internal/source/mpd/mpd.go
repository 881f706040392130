package mpd

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"

	"karolbroda.com/skald/internal/track"
)

const Name = "mpd"

// Adapter talks to a music player daemon. The connection is lazy,
// serialized behind a mutex, and re-dialed after any protocol error
// since mpd drops idle clients freely.
type Adapter struct {
	address  string
	password string

	mu     sync.Mutex
	client *mpd.Client
}

func New(address, password string) *Adapter {
	return &Adapter{address: address, password: password}
}

func (a *Adapter) Available(ctx context.Context) bool {
	err := a.withClient(func(c *mpd.Client) error { return c.Ping() })
	return err == nil
}

func (a *Adapter) Current(ctx context.Context) (*track.Reading, error) {
	var reading *track.Reading

	err := a.withClient(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}

		state := status["state"]
		if state == "stop" || state == "" {
			return nil
		}

		song, err := c.CurrentSong()
		if err != nil {
			return err
		}

		r := &track.Reading{
			Source:  Name,
			Title:   song["Title"],
			Artist:  song["Artist"],
			Album:   song["Album"],
			TrackID: song["file"],
			Playing: state == "play",
		}

		if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil {
			r.Position = elapsed
			r.HasPosition = true
		}
		if duration, err := strconv.ParseFloat(status["duration"], 64); err == nil {
			r.DurationMs = int64(duration * 1000)
		}

		if r.IsValid() {
			reading = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reading, nil
}

func (a *Adapter) TogglePlayback(ctx context.Context) error {
	return a.withClient(func(c *mpd.Client) error {
		status, err := c.Status()
		if err != nil {
			return err
		}
		return c.Pause(status["state"] == "play")
	})
}

func (a *Adapter) Next(ctx context.Context) error {
	return a.withClient(func(c *mpd.Client) error { return c.Next() })
}

func (a *Adapter) Previous(ctx context.Context) error {
	return a.withClient(func(c *mpd.Client) error { return c.Previous() })
}

func (a *Adapter) Seek(ctx context.Context, positionMs int64) error {
	return a.withClient(func(c *mpd.Client) error {
		return c.SeekCur(time.Duration(positionMs)*time.Millisecond, false)
	})
}

// withClient runs one operation against a connected client. The mpd
// protocol is strictly request-response, so the whole operation holds
// the mutex.
func (a *Adapter) withClient(op func(*mpd.Client) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client == nil {
		if a.address == "" {
			return errors.New("mpd address is empty")
		}

		var client *mpd.Client
		var err error
		if a.password != "" {
			client, err = mpd.DialAuthenticated("tcp", a.address, a.password)
		} else {
			client, err = mpd.Dial("tcp", a.address)
		}
		if err != nil {
			return err
		}
		a.client = client
	}

	err := op(a.client)
	if err != nil {
		_ = a.client.Close()
		a.client = nil
	}
	return err
}
