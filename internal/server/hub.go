package server

import (
	"context"
	"log/slog"

	"karolbroda.com/skald/internal/engine"
)

// hub fans engine events out to every connected websocket client. The
// clients map is owned by run's goroutine alone, so no lock is needed;
// everything else talks to it through the channels.
type hub struct {
	clients    map[*client]bool
	broadcast  chan engine.Event
	register   chan *client
	unregister chan *client
	done       chan struct{}
	log        *slog.Logger
}

func newHub(log *slog.Logger) *hub {
	return &hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan engine.Event, 64),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("websocket client connected", "id", c.id)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Debug("websocket client disconnected", "id", c.id)
			}

		case ev := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- ev:
				default:
					// a client that cannot keep up gets dropped
					// rather than stalling the rest
					close(c.send)
					delete(h.clients, c)
					h.log.Debug("websocket client lagging, dropped", "id", c.id)
				}
			}
		}
	}
}

// publish hands an event to the hub without ever blocking the caller.
func (h *hub) publish(ev engine.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Debug("broadcast channel full, dropping event", "kind", ev.Kind)
	}
}
