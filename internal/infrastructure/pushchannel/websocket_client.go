package pushchannel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/core/ports"
	"cctvdash/pkg/tracing"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ ports.PushChannel = (*WebSocketClient)(nil)

type WebSocketConfig struct {
	URL             string
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	ReconnectDelay  time.Duration
	MaxMessageBytes int64
	Header          http.Header
}

func DefaultWebSocketConfig(url string) WebSocketConfig {
	return WebSocketConfig{
		URL:             url,
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReconnectDelay:  3 * time.Second,
		MaxMessageBytes: 8 << 20,
	}
}

// WebSocketClient keeps one connection to the capture pipeline, redialing
// after failures. Inbound messages become events on the sink; stream
// commands are written on the same connection.
type WebSocketClient struct {
	cfg    WebSocketConfig
	dialer *websocket.Dialer
	logger *zap.SugaredLogger

	mu        sync.Mutex // guards conn and writes
	conn      *websocket.Conn
	connected atomic.Bool
	closed    atomic.Bool
}

// NewWebSocketClient validates cfg. No connection is made until Run.
func NewWebSocketClient(cfg WebSocketConfig, logger *zap.SugaredLogger) (*WebSocketClient, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("push channel: url is required")
	}
	defaults := DefaultWebSocketConfig(cfg.URL)
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaults.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = defaults.PongTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaults.ReconnectDelay
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = defaults.MaxMessageBytes
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &WebSocketClient{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.WriteTimeout,
			ReadBufferSize:   64 * 1024,
			WriteBufferSize:  4 * 1024,
		},
		logger: logger,
	}, nil
}

// Run dials, reads and redials until ctx is cancelled or Close is called.
func (c *WebSocketClient) Run(ctx context.Context, sink ports.EventSink) error {
	reportedOffline := false

	for {
		if ctx.Err() != nil || c.closed.Load() {
			return nil
		}

		conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warnw("Push channel dial failed", "url", c.cfg.URL, "error", err)
			if !reportedOffline {
				_ = sink.Post(ctx, domain.ConnectivityEvent{Online: false, Source: "push", Reason: err.Error()})
				reportedOffline = true
			}
		} else {
			c.logger.Infow("Push channel connected", "url", c.cfg.URL)
			c.setConn(conn)
			_ = sink.Post(ctx, domain.ConnectivityEvent{Online: true, Source: "push"})
			reportedOffline = false

			err = c.serve(ctx, conn, sink)
			c.setConn(nil)
			if ctx.Err() != nil || c.closed.Load() {
				return nil
			}
			c.logger.Warnw("Push channel disconnected", "error", err)
			_ = sink.Post(ctx, domain.ConnectivityEvent{Online: false, Source: "push", Reason: errString(err)})
			reportedOffline = true
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

func (c *WebSocketClient) serve(ctx context.Context, conn *websocket.Conn, sink ports.EventSink) error {
	conn.SetReadLimit(c.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(conn, done)

	// unblock ReadMessage when ctx ends
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		c.dispatch(ctx, data, sink)
	}
}

func (c *WebSocketClient) dispatch(ctx context.Context, data []byte, sink ports.EventSink) {
	event, err := DecodeEvent(data, time.Now())
	if err != nil {
		if errors.Is(err, ErrUnknownMessage) {
			c.logger.Debugw("Ignoring push message", "error", err)
		} else {
			c.logger.Warnw("Malformed push message", "error", err, "bytes", len(data))
		}
		return
	}

	spanCtx, span := tracing.TracePushMessage(ctx, "inbound", string(event.Kind()))
	defer span.End()
	if err := sink.Post(spanCtx, event); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Warnw("Dropping push event", "kind", event.Kind(), "error", err)
	}
}

func (c *WebSocketClient) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				c.logger.Debugw("Push channel ping failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

// SendCommand writes cmd on the current connection. It fails with
// domain.ErrPushNotConnected while the client is between connections.
func (c *WebSocketClient) SendCommand(ctx context.Context, cmd domain.StreamCommand) error {
	ctx, span := tracing.TracePushMessage(ctx, "outbound", string(cmd.Type))
	defer span.End()
	span.SetAttributes(
		tracing.StreamCommandKey.String(string(cmd.Type)),
		tracing.CameraIDKey.String(string(cmd.CameraID)),
		tracing.StreamAddressKey.String(cmd.Address),
	)

	data, err := EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("encode %s: %w", cmd.Type, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return domain.ErrPushNotConnected
	}

	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		tracing.RecordError(ctx, err)
		return fmt.Errorf("write %s: %w", cmd.Type, err)
	}
	return nil
}

// Connected reports whether a connection is currently open.
func (c *WebSocketClient) Connected() bool {
	return c.connected.Load()
}

// Close closes the current connection, if any, and stops Run from
// reconnecting.
func (c *WebSocketClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *WebSocketClient) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(conn != nil)
}

func errString(err error) string {
	if err == nil {
		return "connection closed"
	}
	return err.Error()
}
