package mpris

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/skald/internal/track"
)

const (
	Name = "mpris"

	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
	busNamePrefix    = "org.mpris.MediaPlayer2."
)

// Adapter reads the local session bus. When service is empty the
// adapter picks whichever MPRIS player is currently playing, falling
// back to the first one it finds.
type Adapter struct {
	conn    *dbus.Conn
	service string
}

func New(conn *dbus.Conn, service string) (*Adapter, error) {
	if conn == nil {
		return nil, errors.New("nil dbus connection")
	}
	return &Adapter{conn: conn, service: service}, nil
}

func (a *Adapter) Available(ctx context.Context) bool {
	if a.service != "" {
		var hasOwner bool
		err := a.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.NameHasOwner", 0, a.service).Store(&hasOwner)
		return err == nil && hasOwner
	}

	players, err := ListPlayers(ctx, a.conn)
	return err == nil && len(players) > 0
}

func (a *Adapter) Current(ctx context.Context) (*track.Reading, error) {
	service, err := a.target(ctx)
	if err != nil {
		return nil, err
	}
	if service == "" {
		return nil, nil
	}

	obj := a.conn.Object(service, mprisPath)

	metadata, err := metadataMap(obj)
	if err != nil {
		return nil, err
	}

	reading := &track.Reading{
		Source:     Name,
		Title:      extractString(metadata, "xesam:title"),
		Artist:     extractArtist(metadata, "xesam:artist"),
		Album:      extractString(metadata, "xesam:album"),
		ArtworkURL: extractString(metadata, "mpris:artUrl"),
		TrackID:    extractString(metadata, "mpris:trackid"),
		DurationMs: extractDurationMs(metadata, "mpris:length"),
	}

	if !reading.IsValid() {
		// players expose empty metadata between tracks
		return nil, nil
	}

	if status, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus"); err == nil {
		if s, ok := status.Value().(string); ok {
			reading.Playing = s == "Playing"
		}
	}

	if prop, err := obj.GetProperty(mprisPlayerIface + ".Position"); err == nil {
		if micros, ok := prop.Value().(int64); ok && micros >= 0 {
			reading.Position = float64(micros) / 1_000_000
			reading.HasPosition = true
		}
	}

	return reading, nil
}

func (a *Adapter) TogglePlayback(ctx context.Context) error {
	return a.call(ctx, "PlayPause")
}

func (a *Adapter) Next(ctx context.Context) error {
	return a.call(ctx, "Next")
}

func (a *Adapter) Previous(ctx context.Context) error {
	return a.call(ctx, "Previous")
}

func (a *Adapter) Seek(ctx context.Context, positionMs int64) error {
	service, err := a.target(ctx)
	if err != nil {
		return err
	}
	if service == "" {
		return errors.New("no mpris player available")
	}

	obj := a.conn.Object(service, mprisPath)

	// SetPosition needs the current track id as an anchor
	metadata, err := metadataMap(obj)
	if err != nil {
		return err
	}
	trackID := extractString(metadata, "mpris:trackid")
	if trackID == "" {
		return errors.New("player did not expose a track id")
	}

	call := obj.CallWithContext(ctx, mprisPlayerIface+".SetPosition", 0,
		dbus.ObjectPath(trackID), positionMs*1000)
	return call.Err
}

func (a *Adapter) call(ctx context.Context, method string) error {
	service, err := a.target(ctx)
	if err != nil {
		return err
	}
	if service == "" {
		return errors.New("no mpris player available")
	}

	obj := a.conn.Object(service, mprisPath)
	return obj.CallWithContext(ctx, mprisPlayerIface+"."+method, 0).Err
}

// target resolves which bus name to talk to. A playing player beats an
// idle one so a paused browser tab does not shadow the active player.
func (a *Adapter) target(ctx context.Context) (string, error) {
	if a.service != "" {
		return a.service, nil
	}

	players, err := ListPlayers(ctx, a.conn)
	if err != nil {
		return "", err
	}
	if len(players) == 0 {
		return "", nil
	}

	for _, name := range players {
		obj := a.conn.Object(name, mprisPath)
		status, err := obj.GetProperty(mprisPlayerIface + ".PlaybackStatus")
		if err != nil {
			continue
		}
		if s, ok := status.Value().(string); ok && s == "Playing" {
			return name, nil
		}
	}

	return players[0], nil
}

// ListPlayers returns every MPRIS bus name on the connection.
func ListPlayers(ctx context.Context, conn *dbus.Conn) ([]string, error) {
	if conn == nil {
		return nil, errors.New("nil dbus connection")
	}

	var names []string
	err := conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, busNamePrefix) {
			players = append(players, name)
		}
	}
	return players, nil
}

func metadataMap(obj dbus.BusObject) (map[string]dbus.Variant, error) {
	prop, err := obj.GetProperty(mprisPlayerIface + ".Metadata")
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata property: %w", err)
	}

	value := prop.Value()
	if value == nil {
		return nil, errors.New("metadata value is nil")
	}

	metadata, ok := value.(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("unexpected metadata type %T", value)
	}
	return metadata, nil
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	if metadata == nil {
		return ""
	}

	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	raw := variant.Value()
	if raw == nil {
		return ""
	}

	text, ok := raw.(string)
	if ok {
		return text
	}

	return ""
}

func extractArtist(metadata map[string]dbus.Variant, key string) string {
	if metadata == nil {
		return ""
	}

	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	raw := variant.Value()
	if raw == nil {
		return ""
	}

	switch typed := raw.(type) {
	case []string:
		if len(typed) > 0 {
			return typed[0]
		}
		return ""
	case string:
		return typed
	default:
		return ""
	}
}

func extractDurationMs(metadata map[string]dbus.Variant, key string) int64 {
	if metadata == nil {
		return 0
	}

	variant, exists := metadata[key]
	if !exists {
		return 0
	}

	raw := variant.Value()
	if raw == nil {
		return 0
	}

	switch typed := raw.(type) {
	case int64:
		if typed <= 0 {
			return 0
		}
		return typed / 1000
	case uint64:
		if typed == 0 {
			return 0
		}
		return int64(typed / 1000)
	default:
		return 0
	}
}
