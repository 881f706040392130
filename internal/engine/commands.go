package engine

import (
	"context"
	"fmt"

	"karolbroda.com/skald/internal/cache"
	"karolbroda.com/skald/internal/lyrics"
	"karolbroda.com/skald/internal/source"
)

// SetSourceOverride forces a source to the front of arbitration for
// this session. The override is an ordering change, not an exclusive
// lock: if the source reports nothing the others still win.
func (e *Engine) SetSourceOverride(name string) error {
	if _, ok := e.registry.Get(name); !ok {
		return fmt.Errorf("%w: %s", source.ErrUnknownSource, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.override = name
	e.log.Info("source override set", "source", name)
	e.emitLocked(EventSource)
	return nil
}

func (e *Engine) ClearSourceOverride() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.override == "" {
		return
	}
	e.override = ""
	e.log.Info("source override cleared")
	e.emitLocked(EventSource)
}

// BumpOffset nudges the per-track offset by whole steps and persists
// it. Negative steps pull the lyrics earlier.
func (e *Engine) BumpOffset(steps int) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return 0, ErrNoActiveTrack
	}

	delta := int64(steps) * e.opts.OffsetStep.Milliseconds()
	prefs, err := e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) {
		p.OffsetMs += delta
	})
	if err != nil {
		return 0, err
	}

	e.cur.prefs = prefs
	e.emitLocked(EventOffset)
	return prefs.OffsetMs, nil
}

// ClearOffset resets the per-track offset to zero.
func (e *Engine) ClearOffset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return ErrNoActiveTrack
	}

	prefs, err := e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) {
		p.OffsetMs = 0
	})
	if err != nil {
		return err
	}

	e.cur.prefs = prefs
	e.emitLocked(EventOffset)
	return nil
}

// MarkInstrumental pins or unpins the instrumental flag for the
// current track. Marking supersedes any running race; unmarking races
// again so lyrics can come back.
func (e *Engine) MarkInstrumental(instrumental bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return ErrNoActiveTrack
	}

	prefs, err := e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) {
		p.Instrumental = instrumental
	})
	if err != nil {
		return err
	}
	e.cur.prefs = prefs

	if instrumental {
		if e.raceCancel != nil {
			e.raceCancel()
			e.raceCancel = nil
		}
		e.cur.fetching = false
		e.cur.instrumental = true
		e.cur.line = nil
		e.cur.word = nil
		e.emitLocked(EventInstrumental)
		return nil
	}

	e.startRaceLocked()
	e.emitLocked(EventTrack)
	return nil
}

// PinProvider pins a lyrics provider for the current track. Kind is
// "line" or "word"; an empty name unpins. The track races again
// immediately, which serves the pinned candidate straight from the
// cache when it is already there.
func (e *Engine) PinProvider(kind, name string) error {
	if name != "" && !e.providers[name] {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return ErrNoActiveTrack
	}

	var prefs cache.Prefs
	var err error
	switch kind {
	case "line":
		prefs, err = e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) { p.PinnedLine = name })
	case "word":
		prefs, err = e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) { p.PinnedWord = name })
	default:
		return fmt.Errorf("unknown provider kind %q", kind)
	}
	if err != nil {
		return err
	}

	e.cur.prefs = prefs
	e.log.Info("provider pinned", "kind", kind, "provider", name)
	e.startRaceLocked()
	e.emitLocked(EventTrack)
	return nil
}

// SetArtPreference overrides the artwork for the current track. An
// empty url falls back to whatever the source reports.
func (e *Engine) SetArtPreference(url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return ErrNoActiveTrack
	}

	prefs, err := e.store.UpdatePrefs(e.cur.key, func(p *cache.Prefs) {
		p.ArtworkURL = url
	})
	if err != nil {
		return err
	}

	e.cur.prefs = prefs
	e.emitLocked(EventArt)
	return nil
}

// Refetch throws away the cached candidates for the current track and
// races the providers again.
func (e *Engine) Refetch() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.cur.active {
		return ErrNoActiveTrack
	}

	if err := e.store.Invalidate(e.cur.key); err != nil {
		return err
	}

	e.log.Info("refetching lyrics")
	e.startRaceLocked()
	e.emitLocked(EventTrack)
	return nil
}

// Candidates lists everything cached for the current track, for manual
// selection.
func (e *Engine) Candidates() ([]*lyrics.Candidate, error) {
	e.mu.RLock()
	key := e.cur.key
	active := e.cur.active
	e.mu.RUnlock()

	if !active {
		return nil, ErrNoActiveTrack
	}
	return e.store.Candidates(key)
}

// winningSource resolves the adapter behind the current track.
func (e *Engine) winningSource() (*source.Registered, error) {
	e.mu.RLock()
	name := e.cur.reading.Source
	active := e.cur.active
	e.mu.RUnlock()

	if !active || name == "" {
		return nil, ErrNoActiveSource
	}
	reg, ok := e.registry.Get(name)
	if !ok {
		return nil, ErrNoActiveSource
	}
	return reg, nil
}

// TogglePlayback routes play/pause to the winning source.
func (e *Engine) TogglePlayback(ctx context.Context) error {
	reg, err := e.winningSource()
	if err != nil {
		return err
	}
	ctrl, ok := reg.Adapter.(source.Controller)
	if !ok || !reg.Caps.Has(source.CapPlaybackControl) {
		return fmt.Errorf("%w: %s cannot control playback", ErrNoCapability, reg.Config.Name)
	}
	return ctrl.TogglePlayback(ctx)
}

func (e *Engine) Next(ctx context.Context) error {
	reg, err := e.winningSource()
	if err != nil {
		return err
	}
	ctrl, ok := reg.Adapter.(source.Controller)
	if !ok || !reg.Caps.Has(source.CapPlaybackControl) {
		return fmt.Errorf("%w: %s cannot control playback", ErrNoCapability, reg.Config.Name)
	}
	return ctrl.Next(ctx)
}

func (e *Engine) Previous(ctx context.Context) error {
	reg, err := e.winningSource()
	if err != nil {
		return err
	}
	ctrl, ok := reg.Adapter.(source.Controller)
	if !ok || !reg.Caps.Has(source.CapPlaybackControl) {
		return fmt.Errorf("%w: %s cannot control playback", ErrNoCapability, reg.Config.Name)
	}
	return ctrl.Previous(ctx)
}

// SeekTo seeks the winning source and re-anchors the clock at the
// target so the display moves before the next poll confirms it.
func (e *Engine) SeekTo(ctx context.Context, positionMs int64) error {
	reg, err := e.winningSource()
	if err != nil {
		return err
	}
	seeker, ok := reg.Adapter.(source.Seeker)
	if !ok || !reg.Caps.Has(source.CapSeek) {
		return fmt.Errorf("%w: %s cannot seek", ErrNoCapability, reg.Config.Name)
	}
	if err := seeker.Seek(ctx, positionMs); err != nil {
		return err
	}

	e.clk.Seek(float64(positionMs) / 1000)

	e.mu.Lock()
	e.emitLocked(EventSeek)
	e.mu.Unlock()
	return nil
}
