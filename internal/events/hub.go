// Package events streams fired alerts to websocket subscribers and serves the
// current debouncer state.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mattmezza/alertai/internal/alerter"
	"github.com/mattmezza/alertai/internal/state"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
)

// Message is the envelope of everything sent to subscribers.
type Message struct {
	Type   string              `json:"type"` // "status" or "alert"
	Time   time.Time           `json:"time"`
	Alert  *alerter.AlertEvent `json:"alert,omitempty"`
	Status state.Snapshot      `json:"status,omitempty"`
}

// StatusFunc returns the current per-category state.
type StatusFunc func() state.Snapshot

type client struct {
	id   string
	send chan []byte
}

// Hub fans alerts out to websocket clients. Slow clients lose messages rather
// than holding up the detection loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	status  StatusFunc
	now     func() time.Time

	upgrader websocket.Upgrader
}

func NewHub(status StatusFunc) *Hub {
	if status == nil {
		status = func() state.Snapshot { return state.Snapshot{} }
	}
	return &Hub{
		clients: make(map[string]*client),
		status:  status,
		now:     time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends event to every subscriber. It makes Hub an alerter.Sink.
func (h *Hub) Publish(event alerter.AlertEvent) {
	data, err := json.Marshal(Message{Type: "alert", Time: h.now(), Alert: &event})
	if err != nil {
		log.Printf("Events: failed to encode alert %s: %v", event.ID, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("Events: client %s is too slow, dropping alert %s", c.id, event.ID)
		}
	}
}

func (h *Hub) statusMessage() ([]byte, error) {
	return json.Marshal(Message{Type: "status", Time: h.now(), Status: h.status()})
}

// Handler serves /ws and /status.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/status", h.ServeStatus)
	return mux
}

// ServeStatus writes the current state as a JSON status message.
func (h *Hub) ServeStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := h.statusMessage()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

// ServeWS upgrades the request and streams messages until the client goes away.
// The first message is the current status.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Events: websocket upgrade failed: %v", err)
		return
	}

	c := &client{id: uuid.NewString(), send: make(chan []byte, clientBuffer)}
	if hello, err := h.statusMessage(); err == nil {
		c.send <- hello
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("Events: client %s connected from %s", c.id, r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(conn, c, done)
	h.readLoop(conn)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(done)
	log.Printf("Events: client %s disconnected", c.id)
}

// readLoop discards client messages and returns once the connection fails.
func (h *Hub) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(conn *websocket.Conn, c *client, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		}
	}
}

// StartServer serves the hub on addr until ctx is cancelled.
func (h *Hub) StartServer(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
