package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/findirfin/ringil/internal/domain/ports"
	"github.com/findirfin/ringil/internal/pkg/constants"
	"github.com/findirfin/ringil/internal/pkg/logutil"
)

// Hub fans change events out to every connected WebSocket client
type Hub struct {
	clients   map[string]*Client // client id -> client
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	logger    *logutil.Logger
}

var _ ports.EventPublisher = (*Hub)(nil)

// Client represents a WebSocket client connection
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// conversationID limits delivery to one conversation; zero means everything
	conversationID int64
}

// Message types for WebSocket communication
const (
	MessageTypeConnected = "connection_established"
	MessageTypeEvent     = "event"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// WebSocketMessage represents a message sent over WebSocket
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Subject   string      `json:"subject,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logutil.Logger) *Hub {
	if logger == nil {
		logger = logutil.NewDefaultLogger()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
		upgrader: websocket.Upgrader{
			// the API is unauthenticated and local; any origin may watch
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWebSocket upgrades HTTP connections to WebSocket. An optional
// conversation_id query parameter narrows the feed to one conversation.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	var conversationID int64
	if raw := c.Query("conversation_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "conversation_id must be a positive integer"})
			return
		}
		conversationID = id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", logutil.Fields{"error": err})
		return
	}

	client := &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, constants.WebSocketSendBuffer),
		hub:            h,
		conversationID: conversationID,
	}

	h.clientsMu.Lock()
	h.clients[client.id] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket client connected", logutil.Fields{
		"client_id":       client.id,
		"conversation_id": conversationID,
	})

	client.sendMessage(WebSocketMessage{
		Type:      MessageTypeConnected,
		ClientID:  client.id,
		Timestamp: time.Now(),
	})

	go client.writePump()
	go client.readPump()
}

// PublishJSON delivers obj to every client interested in it. Clients whose
// buffer is full are dropped.
func (h *Hub) PublishJSON(_ context.Context, subject string, obj interface{}) error {
	msgBytes, err := json.Marshal(WebSocketMessage{
		Type:      MessageTypeEvent,
		Subject:   subject,
		Data:      obj,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event for subject %s: %w", subject, err)
	}

	conversationID := eventConversation(obj)

	h.clientsMu.RLock()
	var slow []string
	for id, client := range h.clients {
		if client.conversationID != 0 && conversationID != 0 && client.conversationID != conversationID {
			continue
		}
		select {
		case client.send <- msgBytes:
		default:
			slow = append(slow, id)
		}
	}
	h.clientsMu.RUnlock()

	for _, id := range slow {
		h.removeClient(id)
	}
	return nil
}

func eventConversation(obj interface{}) int64 {
	switch e := obj.(type) {
	case ports.ChangeEvent:
		return e.ConversationID
	case *ports.ChangeEvent:
		return e.ConversationID
	default:
		return 0
	}
}

// ConnectionCount returns the number of active WebSocket connections
func (h *Hub) ConnectionCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	for id, client := range h.clients {
		close(client.send)
		delete(h.clients, id)
	}
}

// removeClient removes a client from the hub
func (h *Hub) removeClient(id string) {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()

	if client, exists := h.clients[id]; exists {
		close(client.send)
		delete(h.clients, id)
		h.logger.Info("WebSocket client disconnected", logutil.Fields{"client_id": id})
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c.id)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(constants.WebSocketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket read failed", logutil.Fields{"client_id": c.id, "error": err})
			}
			break
		}

		var wsMsg WebSocketMessage
		if err := json.Unmarshal(message, &wsMsg); err != nil {
			continue
		}

		if wsMsg.Type == MessageTypePing {
			c.sendMessage(WebSocketMessage{Type: MessageTypePong, ClientID: c.id, Timestamp: time.Now()})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a message for this client only
func (c *Client) sendMessage(message WebSocketMessage) {
	msgBytes, err := json.Marshal(message)
	if err != nil {
		return
	}

	c.hub.clientsMu.RLock()
	_, live := c.hub.clients[c.id]
	if live {
		select {
		case c.send <- msgBytes:
		default:
			live = false
		}
	}
	c.hub.clientsMu.RUnlock()

	if !live {
		c.hub.removeClient(c.id)
	}
}
