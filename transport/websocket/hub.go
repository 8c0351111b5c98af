package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/segmentio/ksuid"
	"github.com/wricardo/podium-rally/game/engine"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// Messages queued for the hub loop before broadcasts are dropped.
	broadcastBuffer = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Spectators may watch from any origin
		return true
	},
}

// Message is one frame sent to spectators
type Message struct {
	ID     string      `json:"id"`
	RaceID string      `json:"race_id"`
	Event  string      `json:"event"`
	Data   interface{} `json:"data,omitempty"`
}

// Client represents a WebSocket spectator
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	raceID string
}

// Hub maintains the set of active spectators and broadcasts race traffic
type Hub struct {
	// Registered clients by race ID
	races map[string]map[*Client]bool
	mu    sync.RWMutex

	// Outbound messages for spectators
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Closed when Run returns
	done chan struct{}
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		races:      make(map[string]map[*Client]bool),
		broadcast:  make(chan *Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastMessage(message)

		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

// ServeWS upgrades the request and subscribes the connection to a race
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, raceID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, 256),
		raceID: raceID,
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// BroadcastRaceEvent sends a race event to every spectator of the race. It
// never blocks the race: when the hub is backed up the event is dropped.
func (h *Hub) BroadcastRaceEvent(raceID string, e engine.Event) {
	h.enqueue(&Message{RaceID: raceID, Event: string(e.Type), Data: e})
}

// BroadcastEvent sends a custom event to all spectators of a race
func (h *Hub) BroadcastEvent(raceID string, event string, data interface{}) {
	h.enqueue(&Message{RaceID: raceID, Event: event, Data: data})
}

func (h *Hub) enqueue(message *Message) {
	message.ID = ksuid.New().String()
	select {
	case h.broadcast <- message:
	default:
		log.Printf("WebSocket hub backed up, dropping %s for race %s", message.Event, message.RaceID)
	}
}

// ClientCount returns the number of spectators of a race
func (h *Hub) ClientCount(raceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.races[raceID])
}

// registerClient adds a client to a race
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.races[client.raceID] == nil {
		h.races[client.raceID] = make(map[*Client]bool)
	}
	h.races[client.raceID][client] = true

	log.Printf("Client registered for race %s (total clients: %d)",
		client.raceID, len(h.races[client.raceID]))
}

// unregisterClient removes a client from a race
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(client)
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.races[client.raceID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)

	// Clean up empty races
	if len(clients) == 0 {
		delete(h.races, client.raceID)
	}

	log.Printf("Client unregistered from race %s (remaining clients: %d)",
		client.raceID, len(clients))
}

// broadcastMessage sends a message to all clients of a race
func (h *Hub) broadcastMessage(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.races[message.RaceID] {
		select {
		case client.send <- data:
		default:
			// Client's send channel is full, drop it
			h.removeLocked(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.races {
		for client := range clients {
			h.removeLocked(client)
		}
	}
}

// readPump drains the connection so pongs and close frames are seen
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		// Spectators only listen
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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
