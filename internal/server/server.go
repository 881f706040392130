// Package server exposes the engine over HTTP and WebSocket: a JSON
// API for state and commands, an event stream for display surfaces and
// a push endpoint remote helpers feed the bridge source through.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"karolbroda.com/skald/internal/engine"
	"karolbroda.com/skald/internal/source"
	"karolbroda.com/skald/internal/source/bridge"
)

type Options struct {
	Logger *slog.Logger
}

type Server struct {
	eng    *engine.Engine
	bridge *bridge.Adapter
	hub    *hub
	log    *slog.Logger
	router *gin.Engine
}

// New builds the server. The bridge adapter may be nil when the bridge
// source is disabled; the ingest endpoint then answers 503.
func New(eng *engine.Engine, br *bridge.Adapter, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		eng:    eng,
		bridge: br,
		hub:    newHub(log),
		log:    log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", s.handleHealthz)

	api := r.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/lyrics", s.handleLyrics)
		api.GET("/lyrics/candidates", s.handleCandidates)
		api.POST("/offset", s.handleOffset)
		api.DELETE("/offset", s.handleClearOffset)
		api.POST("/instrumental", s.handleInstrumental)
		api.POST("/provider", s.handleProvider)
		api.POST("/refetch", s.handleRefetch)
		api.POST("/source/override", s.handleSetOverride)
		api.DELETE("/source/override", s.handleClearOverride)

		playback := api.Group("/playback")
		{
			playback.POST("/toggle", s.handleToggle)
			playback.POST("/next", s.handleNext)
			playback.POST("/previous", s.handlePrevious)
			playback.POST("/seek", s.handleSeek)
		}
	}

	r.GET("/ws", s.handleEventSocket)
	r.GET("/ws/source", s.handleSourceSocket)

	return r
}

// Start wires the hub and the engine subscription without binding a
// listener. Run calls it; tests mount Handler on httptest instead.
func (s *Server) Start(ctx context.Context) {
	go s.hub.run(ctx)

	id, ch := s.eng.Subscribe()
	go func() {
		defer s.eng.Unsubscribe(id)
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				s.hub.publish(ev)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Run serves the API until ctx is cancelled, then shuts down cleanly.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.Start(ctx)

	srv := &http.Server{Addr: addr, Handler: s.router}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	s.log.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "skald",
		"timestamp": time.Now().Unix(),
	})
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.eng.Snapshot())
}

func (s *Server) handleLyrics(c *gin.Context) {
	st := s.eng.Snapshot()
	if !st.Active {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active track"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"track":        st.Track,
		"fetching":     st.Fetching,
		"lyrics":       st.Lyrics,
		"word_lyrics":  st.WordLyrics,
		"instrumental": st.Instrumental,
		"no_lyrics":    st.NoLyrics,
		"offset_ms":    st.OffsetMs,
	})
}

func (s *Server) handleCandidates(c *gin.Context) {
	candidates, err := s.eng.Candidates()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candidates": candidates,
		"total":      len(candidates),
	})
}

type offsetRequest struct {
	Steps int `json:"steps"`
}

func (s *Server) handleOffset(c *gin.Context) {
	var req offsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be json with a steps field"})
		return
	}
	if req.Steps == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "steps must be non-zero"})
		return
	}

	offset, err := s.eng.BumpOffset(req.Steps)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offset_ms": offset})
}

func (s *Server) handleClearOffset(c *gin.Context) {
	if err := s.eng.ClearOffset(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"offset_ms": 0})
}

type instrumentalRequest struct {
	Instrumental bool `json:"instrumental"`
}

func (s *Server) handleInstrumental(c *gin.Context) {
	var req instrumentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be json with an instrumental field"})
		return
	}

	if err := s.eng.MarkInstrumental(req.Instrumental); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instrumental": req.Instrumental})
}

type providerRequest struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

func (s *Server) handleProvider(c *gin.Context) {
	var req providerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be json with kind and name fields"})
		return
	}
	if req.Kind != "line" && req.Kind != "word" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be line or word"})
		return
	}

	if err := s.eng.PinProvider(req.Kind, req.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kind": req.Kind, "provider": req.Name})
}

func (s *Server) handleRefetch(c *gin.Context) {
	if err := s.eng.Refetch(); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refetch started"})
}

type overrideRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleSetOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be json with a source field"})
		return
	}

	if err := s.eng.SetSourceOverride(req.Source); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"override": req.Source})
}

func (s *Server) handleClearOverride(c *gin.Context) {
	s.eng.ClearSourceOverride()
	c.JSON(http.StatusOK, gin.H{"message": "override cleared"})
}

func (s *Server) handleToggle(c *gin.Context) {
	if err := s.eng.TogglePlayback(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "playback toggled"})
}

func (s *Server) handleNext(c *gin.Context) {
	if err := s.eng.Next(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "skipped forward"})
}

func (s *Server) handlePrevious(c *gin.Context) {
	if err := s.eng.Previous(c.Request.Context()); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "skipped back"})
}

type seekRequest struct {
	PositionMs int64 `json:"position_ms"`
}

func (s *Server) handleSeek(c *gin.Context) {
	var req seekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be json with a position_ms field"})
		return
	}
	if req.PositionMs < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position_ms must not be negative"})
		return
	}

	if err := s.eng.SeekTo(c.Request.Context(), req.PositionMs); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position_ms": req.PositionMs})
}

// handleEventSocket upgrades to a websocket and streams engine events.
// The first frame is a snapshot so clients render without waiting for
// the next change.
func (s *Server) handleEventSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		hub:  s.hub,
		conn: conn,
		id:   uuid.NewString(),
		send: make(chan engine.Event, 256),
	}

	st := s.eng.Snapshot()
	hello := engine.Event{Kind: engine.EventIdle, Seq: st.Seq, State: st}
	if st.Active {
		hello.Kind = engine.EventTrack
	}
	cl.send <- hello

	select {
	case s.hub.register <- cl:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

// handleSourceSocket ingests now-playing pushes from remote helpers
// into the bridge source. A dropped connection counts as the helper
// saying goodbye, so the reading is cleared right away.
func (s *Server) handleSourceSocket(c *gin.Context) {
	if s.bridge == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bridge source is disabled"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer s.bridge.Clear()

	conn.SetReadLimit(maxBridgeInbound)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	// paused helpers have nothing to push, pings keep them connected
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Debug("bridge socket read error", "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var payload bridge.Payload
		if err := json.Unmarshal(data, &payload); err != nil {
			s.log.Debug("bridge payload is not json", "error", err)
			continue
		}
		if _, err := s.bridge.Push(payload); err != nil {
			s.log.Debug("bridge payload rejected", "error", err)
		}
	}
}

// fail maps engine errors onto HTTP statuses.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, engine.ErrNoActiveTrack), errors.Is(err, engine.ErrNoActiveSource):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrNoCapability):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, engine.ErrUnknownProvider), errors.Is(err, source.ErrUnknownSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
