package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rhasspy/rhasspy-speakers-cli-hermes/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 16 * 1024 * 1024 // whole WAV files arrive in one frame

	// Outbound messages buffered per client.
	sendBufferSize = 256
)

// ErrHubStopped is returned when enqueueing after the hub has stopped
var ErrHubStopped = errors.New("hub stopped")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// MessageHandler handles inbound bus messages
type MessageHandler interface {
	HandleEnvelope(ctx context.Context, env domain.Envelope)
}

// Hub maintains the set of connected bus clients. Inbound messages from
// every client go through one bounded queue; outbound messages are
// broadcast to all clients.
type Hub struct {
	// Registered clients, keyed by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Inbound messages waiting for dispatch.
	inbound chan domain.Envelope

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Keepalive for every client. pingPeriod must be less than pongWait.
	pongWait   time.Duration
	pingPeriod time.Duration

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub with an inbound queue of queueSize
// messages
func NewHub(queueSize int, logger *zap.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 64
	}

	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan domain.Envelope, queueSize),
		done:       make(chan struct{}),
		pongWait:   pongWait,
		pingPeriod: (pongWait * 9) / 10,
		logger:     logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("connID", client.id),
				zap.String("clientID", client.clientID))

		case client := <-h.unregister:
			h.removeClient(client)
			h.logger.Info("Client unregistered",
				zap.String("connID", client.id),
				zap.String("clientID", client.clientID))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Dispatch hands queued messages to handler one at a time until ctx is
// cancelled.
func (h *Hub) Dispatch(ctx context.Context, handler MessageHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-h.inbound:
			handler.HandleEnvelope(ctx, env)
		}
	}
}

// Enqueue queues an inbound message for dispatch. It blocks while the queue
// is full.
func (h *Hub) Enqueue(ctx context.Context, env domain.Envelope) error {
	select {
	case h.inbound <- env:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Publish broadcasts a JSON payload to every client. Clients whose send
// buffer is full are disconnected.
func (h *Hub) Publish(topic string, payload interface{}) error {
	frame, err := EncodeTextFrame(topic, "", payload)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		select {
		case client.send <- WriteData{Type: websocket.TextMessage, Payload: frame}:
		default:
			h.logger.Warn("Client send buffer full, disconnecting",
				zap.String("connID", id),
				zap.String("clientID", client.clientID))
			delete(h.clients, id)
			close(client.send)
		}
	}

	h.logger.Debug("Published message",
		zap.String("topic", topic),
		zap.Int("clients", len(h.clients)))
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.id]; ok && current == client {
		delete(h.clients, client.id)
		close(client.send)
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Connection id, unique per connection
	id string

	// Token subject or the requested client id. Several connections may
	// share it.
	clientID string

	logger *zap.Logger
}

// HandleWebSocket upgrades the request and attaches the peer to the hub.
// clientID only labels the connection; an empty one is replaced with the
// connection id.
func HandleWebSocket(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	connID := uuid.New().String()
	if clientID == "" {
		clientID = connID
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, sendBufferSize),
		id:       connID,
		clientID: clientID,
		logger: logger.With(
			zap.String("connID", connID),
			zap.String("clientID", clientID)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	wait := c.hub.pongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		var env domain.Envelope
		switch messageType {
		case websocket.TextMessage:
			env, err = DecodeTextFrame(message)
		case websocket.BinaryMessage:
			env, err = DecodeBinaryFrame(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
			continue
		}
		if err != nil {
			c.logger.Warn("Dropping invalid frame", zap.Error(err))
			continue
		}

		if err := c.hub.Enqueue(context.Background(), env); err != nil {
			c.logger.Info("Hub stopped, closing client", zap.Error(err))
			break
		}

		// Pongs that arrived while the queue was full are only seen by the
		// next read.
		c.conn.SetReadDeadline(time.Now().Add(wait))
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
