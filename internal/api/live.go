package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Krugou/aurorawatcher/internal/watcher"
)

// Hub fans run summaries out to live WebSocket subscribers.
type Hub struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan watcher.Summary]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[chan watcher.Summary]struct{}),
	}
}

// Publish delivers a summary to all subscribers. Slow subscribers drop
// messages rather than blocking the watcher.
func (h *Hub) Publish(s watcher.Summary) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (h *Hub) subscribe() chan watcher.Summary {
	ch := make(chan watcher.Summary, 8)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan watcher.Summary) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a WebSocket and streams each completed
// run's summary as JSON until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Server-level read/write timeouts would cut the stream short.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("ws accept failed", "error", err)
		return
	}
	defer conn.CloseNow() //nolint:errcheck

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	ctx := r.Context()

	// Consume client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-ch:
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, s)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
