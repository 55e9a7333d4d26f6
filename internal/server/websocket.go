package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aristath/marketintel/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Non-goal: this is an internal ops push channel, not a browser-facing
	// API, so there is no origin allowlist to enforce here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AnalysisHub bridges events.Manager's window_emitted/conflict_detected
// notifications onto a broadcast WebSocket, so a connected dashboard sees
// stock_analysis updates as they happen instead of polling. Grounded on
// bobmcallan-vire's JobWSHub/JobWSClient broadcast-hub shape.
type AnalysisHub struct {
	clients    map[*analysisClient]bool
	broadcast  chan events.Event
	register   chan *analysisClient
	unregister chan *analysisClient
	done       chan struct{}
	mu         sync.RWMutex
	log        zerolog.Logger
}

type analysisClient struct {
	hub  *AnalysisHub
	conn *websocket.Conn
	send chan []byte
}

// NewAnalysisHub builds a hub. Call Run in its own goroutine before serving
// any connections.
func NewAnalysisHub(log zerolog.Logger) *AnalysisHub {
	return &AnalysisHub{
		clients:    make(map[*analysisClient]bool),
		broadcast:  make(chan events.Event, 256),
		register:   make(chan *analysisClient),
		unregister: make(chan *analysisClient),
		done:       make(chan struct{}),
		log:        log.With().Str("component", "analysis_hub").Logger(),
	}
}

// Run drains registrations and broadcasts until Stop is called.
func (h *AnalysisHub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug().Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug().Int("clients", len(h.clients)).Msg("client disconnected")

		case ev := <-h.broadcast:
			data, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn().Err(err).Msg("failed to marshal event")
				continue
			}

			h.mu.RLock()
			var slow []*analysisClient
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals Run to exit.
func (h *AnalysisHub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// Broadcast queues ev for delivery to every connected client.
func (h *AnalysisHub) Broadcast(ev events.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn().Msg("broadcast channel full, dropping event")
	}
}

// ServeWS upgrades the connection and registers a client.
func (h *AnalysisHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &analysisClient{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ClientCount reports the number of connected clients, for health reporting.
func (h *AnalysisHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *analysisClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *analysisClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// bridgeEvents subscribes to bus and forwards window_emitted/
// conflict_detected events to the hub until unsubscribe is called (on
// server shutdown).
func bridgeEvents(bus *events.Manager, hub *AnalysisHub) func() {
	ch, unsubscribe := bus.Subscribe()
	go func() {
		for ev := range ch {
			switch ev.Kind {
			case events.KindWindowEmitted, events.KindConflictDetected:
				hub.Broadcast(ev)
			}
		}
	}()
	return unsubscribe
}
