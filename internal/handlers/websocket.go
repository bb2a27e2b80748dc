package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/livecast/internal/metrics"
	"github.com/mossy-p/livecast/internal/models"
	"github.com/mossy-p/livecast/internal/redis"
	"github.com/mossy-p/livecast/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// SignalingHandler upgrades connections and feeds their messages to the relay.
type SignalingHandler struct {
	registry *signaling.Registry
	relay    *signaling.Relay
	presence *redis.Presence
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewSignalingHandler(registry *signaling.Registry, relay *signaling.Relay, presence *redis.Presence, m *metrics.Metrics, log *slog.Logger) *SignalingHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SignalingHandler{
		registry: registry,
		relay:    relay,
		presence: presence,
		metrics:  m,
		log:      log.With("component", "signaling"),
	}
}

// Client represents a WebSocket client connection
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *Client) ID() string { return c.id }

// Send queues a frame without blocking. It fails once the client is closing
// or when its buffer is full.
func (c *Client) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// HandleSignaling handles WebSocket connections for WebRTC signaling
func (h *SignalingHandler) HandleSignaling(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Failed to upgrade connection", "error", err)
		return
	}

	client := &Client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}

	h.registry.Add(client)
	h.metrics.Inc(metrics.PeerConnected)
	if err := h.presence.Join(context.Background(), client.id); err != nil {
		h.log.Warn("Failed to record peer presence", "peer", client.id, "error", err)
	}
	h.log.Info("Peer connected", "peer", client.id, "peers", h.registry.Len(), "remote_addr", c.ClientIP())

	// Start goroutines for reading and writing
	go h.writePump(client)
	go h.readPump(client)
}

func (h *SignalingHandler) disconnect(c *Client) {
	if !h.registry.Remove(c.id) {
		return
	}
	c.close()
	c.conn.Close()

	if err := h.presence.Leave(context.Background(), c.id); err != nil {
		h.log.Warn("Failed to remove peer presence", "peer", c.id, "error", err)
	}
	h.metrics.Inc(metrics.PeerClosed)
	h.log.Info("Peer disconnected", "peer", c.id, "peers", h.registry.Len())
}

func (h *SignalingHandler) readPump(c *Client) {
	defer h.disconnect(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Warn("WebSocket error", "peer", c.id, "error", err)
			}
			return
		}

		sig, err := models.DecodeSignal(frame)
		if err != nil {
			h.metrics.Inc(metrics.SignalInvalid)
			h.log.Warn("Ignoring invalid signal", "peer", c.id, "error", err)
			continue
		}

		h.relay.Broadcast(c.id, sig)
	}
}

func (h *SignalingHandler) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.disconnect(c)
	}()

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Warn("Failed to write message", "peer", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// Health reports liveness plus the number of connected peers.
func (h *SignalingHandler) Health(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"peers":  h.registry.Len(),
	}
	if h.presence != nil {
		n, err := h.presence.Count(c.Request.Context())
		if err != nil {
			h.log.Warn("Failed to read presence", "error", err)
			resp["presence"] = "unavailable"
		} else {
			resp["presence"] = n
		}
	}
	c.JSON(http.StatusOK, resp)
}
