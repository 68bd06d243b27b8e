package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Hub fans events out to websocket clients grouped by room. Clients in
// RoomAll see everything.
type Hub struct {
	rooms      map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
}

type Client struct {
	hub    *Hub
	id     string
	socket *websocket.Conn
	send   chan []byte
	room   string
	userID string
}

type Message struct {
	Type    string      `json:"type"`
	Room    string      `json:"room,omitempty"`
	Payload interface{} `json:"payload"`
}

type envelope struct {
	room string
	data []byte
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		broadcast:  make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mutex.Unlock()
			log.Printf("[hub] client %s (user %s) joined room %s", client.id, client.userID, client.room)

		case client := <-h.unregister:
			h.mutex.Lock()
			h.remove(client)
			h.mutex.Unlock()

		case env := <-h.broadcast:
			h.mutex.Lock()
			h.deliver(env.room, env.data)
			if env.room != RoomAll {
				h.deliver(RoomAll, env.data)
			}
			h.mutex.Unlock()
		}
	}
}

// deliver must be called with the mutex held. Clients whose buffer is full
// are dropped.
func (h *Hub) deliver(room string, data []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- data:
		default:
			log.Printf("[hub] client %s send buffer full, closing connection", client.id)
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
	log.Printf("[hub] client %s left room %s", client.id, client.room)
}

// Notify queues an event for a room. It never blocks: when the queue is
// full the event is dropped.
func (h *Hub) Notify(room, event string, payload interface{}) {
	data, err := json.Marshal(Message{Type: event, Room: room, Payload: payload})
	if err != nil {
		log.Printf("[hub] error marshaling %s event: %v", event, err)
		return
	}

	select {
	case h.broadcast <- envelope{room: room, data: data}:
	default:
		log.Printf("[hub] broadcast queue full, dropping %s event for room %s", event, room)
	}
}

func (h *Hub) ClientCount(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) RegisterClient(conn *websocket.Conn, room, userID string) *Client {
	client := &Client{
		hub:    h,
		id:     uuid.NewString(),
		socket: conn,
		send:   make(chan []byte, sendBuffer),
		room:   room,
		userID: userID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.socket.Close()
	}()

	c.socket.SetReadDeadline(time.Now().Add(pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[hub] websocket read error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("[hub] error unmarshaling message: %v", err)
			continue
		}
		// Rooms are fixed at connect time; clients only listen.
		log.Printf("[hub] ignoring %s message from client %s", msg.Type, c.id)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.socket.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.socket.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.socket.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.socket.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.socket.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
