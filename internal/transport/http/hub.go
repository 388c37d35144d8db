package http

import (
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// conn is the per-connection context owned by the transport layer: the
// socket, its writer pump, and the room it joined. Handlers receive it
// explicitly instead of sharing mutable connection state.
type conn struct {
	ws   *websocket.Conn
	send chan outboundMessage
	done chan struct{}

	mu            sync.Mutex
	closed        bool
	room          string
	participantID string
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan outboundMessage, 16),
		done: make(chan struct{}),
	}
}

// writePump serializes all writes to the socket. gorilla allows only one
// concurrent writer.
func (c *conn) writePump() {
	for {
		select {
		case msg := <-c.send:
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-c.done:
			return
		}
	}
}

// emit queues an event for the connection. Safe after close: scheduled
// timers may outlive the socket.
func (c *conn) emit(event string, payload any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- outboundMessage{Type: event, Payload: payload}:
	case <-c.done:
	default:
		// Slow consumer; drop rather than stall the room.
		log.Printf("ws send buffer full, dropping %q event", event)
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
}

func (c *conn) setRoom(room string) {
	c.mu.Lock()
	c.room = room
	c.mu.Unlock()
}

func (c *conn) currentRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

func (c *conn) setParticipant(id string) {
	c.mu.Lock()
	c.participantID = id
	c.mu.Unlock()
}

func (c *conn) participant() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID
}

// Hub maps room ids (join codes) to their member connections and fans
// outbound events to every member. Membership is process-local and mutated
// only on join and disconnect.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*conn]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*conn]struct{})}
}

func (h *Hub) join(room string, c *conn) {
	h.mu.Lock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*conn]struct{})
	}
	h.rooms[room][c] = struct{}{}
	h.mu.Unlock()
	c.setRoom(room)
}

func (h *Hub) leave(c *conn) {
	room := c.currentRoom()
	if room == "" {
		return
	}
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// broadcast emits an event to every connection in the room.
func (h *Hub) broadcast(room, event string, payload any) {
	h.mu.RLock()
	members := make([]*conn, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.emit(event, payload)
	}
}
