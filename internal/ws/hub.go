package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/uptc-energia/backend/internal/utils"
	"go.uber.org/zap"
)

// Client represents one websocket subscriber on the alert stream
type Client struct {
	conn   *websocket.Conn
	userID uint
	sedes  map[string]bool
	send   chan []byte
}

// EventType defines the kinds of messages pushed to subscribers
type EventType string

const (
	// EventTypeAlert carries a freshly created alert
	EventTypeAlert EventType = "alert"
	// EventTypeAlertStatus carries an alert lifecycle change
	EventTypeAlertStatus EventType = "alert_status"
	// EventTypeSystem carries service-level notices
	EventTypeSystem EventType = "system"
)

// Event is the envelope written to each subscriber
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	SedeID    string      `json:"sede_id,omitempty"`
	Payload   interface{} `json:"payload"`
}

// Hub fans alert events out to connected websocket clients. Clients may
// narrow their stream to specific sedes; with no subscription they
// receive everything.
type Hub struct {
	logger     *utils.Logger
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Event
	mutex      sync.RWMutex
}

// NewHub creates the hub and starts its dispatch loop
func NewHub(logger *utils.Logger) *Hub {
	hub := &Hub{
		logger:     logger.Named("ws_hub"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Event, 256),
	}

	go hub.run()
	return hub
}

// RegisterClient adds a websocket connection to the hub
func (h *Hub) RegisterClient(conn *websocket.Conn, userID uint) *Client {
	client := &Client{
		conn:   conn,
		userID: userID,
		sedes:  make(map[string]bool),
		send:   make(chan []byte, 256),
	}

	h.register <- client

	go h.readPump(client)
	go h.writePump(client)

	return client
}

// Publish queues an event for delivery to interested clients
func (h *Hub) Publish(eventType EventType, sedeID string, payload interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SedeID:    sedeID,
		Payload:   payload,
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event",
			zap.String("type", string(eventType)),
			zap.String("sede_id", sedeID))
	}
}

// run processes registrations and broadcasts in the main loop
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug("Client registered", zap.Uint("user_id", client.userID))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.logger.Debug("Client unregistered", zap.Uint("user_id", client.userID))

		case event := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if h.wants(client, event) {
					h.sendToClient(client, event)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// wants reports whether a client's subscriptions cover the event
func (h *Hub) wants(client *Client, event *Event) bool {
	if event.SedeID == "" || len(client.sedes) == 0 {
		return true
	}
	return client.sedes[event.SedeID]
}

// sendToClient writes one event to a client, dropping the connection
// when its buffer is full
func (h *Hub) sendToClient(client *Client, event *Event) {
	jsonMessage, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal event",
			zap.Error(err),
			zap.String("type", string(event.Type)))
		return
	}

	select {
	case client.send <- jsonMessage:
	default:
		h.mutex.Lock()
		delete(h.clients, client)
		close(client.send)
		h.mutex.Unlock()
		h.logger.Warn("Client buffer full, connection closed",
			zap.Uint("user_id", client.userID))
	}
}

// readPump reads subscription commands from the client
func (h *Hub) readPump(client *Client) {
	defer func() {
		h.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadLimit(4096)
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				h.logger.Warn("Unexpected websocket close",
					zap.Error(err),
					zap.Uint("user_id", client.userID))
			}
			break
		}

		var clientMsg struct {
			Action string `json:"action"`
			SedeID string `json:"sede_id"`
		}

		if err := json.Unmarshal(message, &clientMsg); err != nil {
			h.logger.Warn("Invalid client message",
				zap.Error(err),
				zap.ByteString("message", message))
			continue
		}

		switch clientMsg.Action {
		case "subscribe":
			h.mutex.Lock()
			client.sedes[clientMsg.SedeID] = true
			h.mutex.Unlock()
		case "unsubscribe":
			h.mutex.Lock()
			delete(client.sedes, clientMsg.SedeID)
			h.mutex.Unlock()
		default:
			h.logger.Debug("Ignoring unknown client action",
				zap.String("action", clientMsg.Action))
		}
	}
}

// writePump writes queued events and pings to the client
func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
