package projection

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	_ ports.SnapshotSink  = (*Hub)(nil)
	_ ports.ViewerHandler = (*Hub)(nil)
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	SendBuffer   int
}

func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   8,
	}
}

// Message is what viewers receive for every published snapshot.
type Message struct {
	Type     string          `json:"type"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans dashboard snapshots out to connected websocket viewers. A viewer
// that cannot keep up misses intermediate snapshots; Publish never blocks.
type Hub struct {
	cfg    Config
	logger *zap.SugaredLogger

	mu      sync.RWMutex
	viewers map[*viewer]struct{}
	latest  []byte
}

// NewHub creates a hub with no viewers. Zero config fields take their
// DefaultConfig values.
func NewHub(cfg Config, logger *zap.SugaredLogger) *Hub {
	defaults := DefaultConfig()
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		viewers: make(map[*viewer]struct{}),
	}
}

// Publish sends snapshot to every viewer. A viewer that has not drained its
// previous snapshot loses it.
func (h *Hub) Publish(snapshot domain.Snapshot) {
	data, err := json.Marshal(Message{Type: "snapshot", Snapshot: snapshot})
	if err != nil {
		h.logger.Errorw("Failed to encode snapshot", "version", snapshot.Version, "error", err)
		return
	}

	h.mu.Lock()
	h.latest = data
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.viewers {
		offer(v.send, data)
	}
}

// offer queues data, dropping the oldest pending message when the buffer is
// full so the viewer always ends on the newest snapshot.
func offer(ch chan []byte, data []byte) {
	for {
		select {
		case ch <- data:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// HandleWebSocket upgrades the request and registers the connection as a
// viewer. The latest snapshot is sent right away.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("Websocket upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, h.cfg.SendBuffer)}
	h.mu.Lock()
	h.viewers[v] = struct{}{}
	if h.latest != nil {
		v.send <- h.latest
	}
	count := len(h.viewers)
	h.mu.Unlock()
	h.logger.Infow("Viewer connected", "remote", r.RemoteAddr, "viewers", count)

	// viewers never send anything; reading only detects disconnects
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	h.writeLoop(v, readDone)

	h.mu.Lock()
	delete(h.viewers, v)
	count = len(h.viewers)
	h.mu.Unlock()
	_ = conn.Close()
	h.logger.Infow("Viewer disconnected", "remote", r.RemoteAddr, "viewers", count)
}

func (h *Hub) writeLoop(v *viewer, readDone <-chan struct{}) {
	pingTicker := time.NewTicker(h.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case data := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debugw("Error writing snapshot", "error", err)
				return
			}

		case <-pingTicker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debugw("Error sending ping", "error", err)
				return
			}

		case <-readDone:
			return
		}
	}
}

// ConnectedViewers returns the number of open viewer connections.
func (h *Hub) ConnectedViewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}
