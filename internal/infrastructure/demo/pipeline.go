package demo

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"cctvdash/internal/core/domain"
	"cctvdash/internal/infrastructure/pushchannel"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,
}

// Pipeline simulates the capture pipeline: it accepts start/stop commands
// over a websocket and answers with synthetic JPEG frames.
type Pipeline struct {
	FrameInterval time.Duration

	backend *Backend
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	clients map[*pipelineClient]struct{}
}

type pipelineClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	address string
	cancel  context.CancelFunc
}

// NewPipeline creates the simulated capture pipeline for backend.
func NewPipeline(backend *Backend, logger *zap.SugaredLogger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Pipeline{
		FrameInterval: 200 * time.Millisecond,
		backend:       backend,
		logger:        logger,
		clients:       make(map[*pipelineClient]struct{}),
	}
}

// HandleWebSocket accepts one dashboard connection and answers its stream
// commands with frames.
func (p *Pipeline) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Errorw("Websocket upgrade failed", "error", err)
		return
	}
	client := &pipelineClient{conn: conn}

	p.mu.Lock()
	p.clients[client] = struct{}{}
	p.mu.Unlock()
	p.logger.Infow("Pipeline client connected", "remote", r.RemoteAddr)

	defer func() {
		client.stopStream()
		p.mu.Lock()
		delete(p.clients, client)
		p.mu.Unlock()
		_ = conn.Close()
		p.logger.Infow("Pipeline client disconnected", "remote", r.RemoteAddr)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		cmd, err := pushchannel.DecodeCommand(data)
		if err != nil {
			p.logger.Warnw("Ignoring pipeline message", "error", err)
			continue
		}
		p.handleCommand(client, cmd)
	}
}

func (p *Pipeline) handleCommand(client *pipelineClient, cmd domain.StreamCommand) {
	switch cmd.Type {
	case domain.CommandStartStream:
		client.stopStream()
		if cmd.Address == "" || cmd.Address == UnavailableAddress {
			p.logger.Infow("Stream unavailable", "address", cmd.Address)
			p.sendFrame(client, cmd.Address, "Camera Unavailable")
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		client.mu.Lock()
		client.address = cmd.Address
		client.cancel = cancel
		client.mu.Unlock()

		p.logger.Infow("Stream started", "camera_id", cmd.CameraID, "address", cmd.Address)
		go p.streamFrames(ctx, client, cmd.Address)

	case domain.CommandStopStream:
		client.mu.Lock()
		current := client.address
		client.mu.Unlock()
		if current != "" && current == cmd.Address {
			client.stopStream()
			p.logger.Infow("Stream stopped", "address", cmd.Address)
		}
	}
}

func (p *Pipeline) streamFrames(ctx context.Context, client *pipelineClient, address string) {
	ticker := time.NewTicker(p.FrameInterval)
	defer ticker.Stop()

	for seq := 0; ; seq++ {
		frame, err := renderFrame(seq, p.backend.AIActive())
		if err != nil {
			p.logger.Errorw("Failed to render frame", "error", err)
			return
		}
		if !p.sendFrame(client, address, frame) {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Pipeline) sendFrame(client *pipelineClient, address, frame string) bool {
	data, err := pushchannel.EncodeMessage(pushchannel.TypeCameraFrame, pushchannel.FrameMessage{Frame: frame, RTSPURL: address})
	if err != nil {
		return false
	}
	return client.write(data) == nil
}

// BroadcastStatus pushes a presence batch to every connected client.
func (p *Pipeline) BroadcastStatus(updates []domain.PresenceUpdate) {
	p.broadcast(pushchannel.TypeEmployeeStatusUpdate, updates)
}

func (p *Pipeline) BroadcastAIStatus(active bool) {
	p.broadcast(pushchannel.TypeAIStatusUpdate, pushchannel.AIStatusMessage{Active: active})
}

func (p *Pipeline) broadcast(msgType string, payload interface{}) {
	data, err := pushchannel.EncodeMessage(msgType, payload)
	if err != nil {
		p.logger.Errorw("Failed to encode broadcast", "type", msgType, "error", err)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for client := range p.clients {
		if err := client.write(data); err != nil {
			p.logger.Debugw("Broadcast write failed", "type", msgType, "error", err)
		}
	}
}

// ActiveStreams lists the addresses currently being streamed.
func (p *Pipeline) ActiveStreams() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	streams := make([]string, 0, len(p.clients))
	for client := range p.clients {
		client.mu.Lock()
		if client.address != "" {
			streams = append(streams, client.address)
		}
		client.mu.Unlock()
	}
	return streams
}

func (c *pipelineClient) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *pipelineClient) stopStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.address = ""
}

// renderFrame draws a small test card with a sweeping bar and returns it as
// base64 JPEG. The border turns green while AI processing is active.
func renderFrame(seq int, aiActive bool) (string, error) {
	const width, height = 160, 90
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	border := color.RGBA{R: 90, G: 90, B: 90, A: 255}
	if aiActive {
		border = color.RGBA{R: 40, G: 180, B: 80, A: 255}
	}
	barX := (seq * 4) % width

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.RGBA{R: 20, G: 24, B: 32, A: 255}
			switch {
			case x < 2 || y < 2 || x >= width-2 || y >= height-2:
				c = border
			case x >= barX && x < barX+6:
				c = color.RGBA{R: 220, G: 220, B: 220, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 60}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
