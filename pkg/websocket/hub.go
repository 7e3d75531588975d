package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrHubClosed is returned by Serve after Close.
var ErrHubClosed = errors.New("websocket hub closed")

// Frame is one JSON message written to a client.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Config holds hub configuration.
type Config struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64

	// CheckOrigin is passed to the upgrader. Nil accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool

	Logger *zap.Logger
}

// Hub serves outbound-only event streams to WebSocket clients.
type Hub struct {
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	pongTimeout  time.Duration
	writeTimeout time.Duration
	readLimit    int64
	logger       *zap.Logger

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewHub creates a new hub.
func NewHub(cfg *Config) (*Hub, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		writeTimeout: cfg.WriteTimeout,
		readLimit:    cfg.ReadLimit,
		logger:       cfg.Logger,
		conns:        make(map[*websocket.Conn]struct{}),
	}

	if h.pingInterval <= 0 {
		h.pingInterval = 20 * time.Second
	}
	if h.pongTimeout <= h.pingInterval {
		h.pongTimeout = h.pingInterval * 3 / 2
	}
	if h.writeTimeout <= 0 {
		h.writeTimeout = 5 * time.Second
	}
	if h.readLimit <= 0 {
		h.readLimit = 4096
	}

	return h, nil
}

// Serve upgrades the request and writes initial, then every frame from
// frames, until the client goes away, frames is closed or the hub is closed.
// Client messages are read and discarded so pongs and close frames are seen.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial *Frame, frames <-chan Frame) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade: %w", err)
	}

	if !h.register(conn) {
		_ = conn.Close()
		return ErrHubClosed
	}

	start := time.Now()
	ActiveConnections.Inc()
	h.logger.Info("ws-client-connected", zap.String("remote-addr", r.RemoteAddr))

	defer func() {
		h.unregister(conn)
		_ = conn.Close()
		ActiveConnections.Dec()
		ConnectionDuration.Observe(time.Since(start).Seconds())
		h.logger.Info("ws-client-disconnected",
			zap.String("remote-addr", r.RemoteAddr),
			zap.Duration("duration", time.Since(start)))
	}()

	conn.SetReadLimit(h.readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	readDone := make(chan struct{})
	go h.readLoop(conn, readDone)

	if initial != nil {
		err = h.write(conn, initial)
		if err != nil {
			return err
		}
	}

	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-readDone:
			return nil

		case frame, ok := <-frames:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(h.writeTimeout))
				return nil
			}
			err = h.write(conn, &frame)
			if err != nil {
				return err
			}

		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.writeTimeout))
			if err != nil {
				WriteErrorsTotal.Inc()
				h.logger.Warn("ping-error", zap.Error(err))
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func (h *Hub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("ws-read-error", zap.Error(err))
			}
			return
		}
		MessagesReceivedTotal.Inc()
	}
}

func (h *Hub) write(conn *websocket.Conn, frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	if err != nil {
		WriteErrorsTotal.Inc()
		return fmt.Errorf("write frame: %w", err)
	}

	MessagesSentTotal.WithLabelValues(frame.Type).Inc()
	return nil
}

func (h *Hub) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.logger.Info("closing-websocket-hub", zap.Int("clients", len(conns)))

	for _, c := range conns {
		_ = c.Close()
	}
}
