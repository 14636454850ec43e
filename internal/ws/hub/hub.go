package hub

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
)

type Connection struct {
	conn      *websocket.Conn
	send      chan []byte
	userID    string
	closeOnce sync.Once
}

func (c *Connection) UserID() string { return c.userID }

type BroadcastCmd struct {
	UserID  string
	Payload []byte
}

// Hub routes payloads to every open connection of a user.
type Hub struct {
	register   chan *Connection
	unregister chan *Connection
	broadcast  chan BroadcastCmd
	users      map[string]map[*Connection]struct{}
	// done is closed when Run returns; later calls no longer queue.
	done chan struct{}
}

func NewConnection(conn *websocket.Conn, userID string) *Connection {
	return &Connection{
		conn:   conn,
		send:   make(chan []byte, 128),
		userID: userID,
	}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Connection, 64),
		unregister: make(chan *Connection, 64),
		broadcast:  make(chan BroadcastCmd, 256),
		users:      make(map[string]map[*Connection]struct{}),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.users {
				for c := range conns {
					c.CloseSend()
				}
			}
			return

		case c := <-h.register:
			conns := h.users[c.userID]
			if conns == nil {
				conns = make(map[*Connection]struct{})
				h.users[c.userID] = conns
			}
			conns[c] = struct{}{}

		case c := <-h.unregister:
			if conns := h.users[c.userID]; conns != nil {
				delete(conns, c)
				if len(conns) == 0 {
					delete(h.users, c.userID)
				}
			}
			c.CloseSend()

		case b := <-h.broadcast:
			for c := range h.users[b.UserID] {
				c.Send(b.Payload)
			}
		}
	}
}

func (h *Hub) Register(c *Connection) {
	select {
	case h.register <- c:
	case <-h.done:
		c.CloseSend()
	}
}

func (h *Hub) Unregister(c *Connection) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.CloseSend()
	}
}

// SendToUser queues payload for every connection of userID. It drops the
// payload once the hub has stopped.
func (h *Hub) SendToUser(userID string, payload []byte) {
	select {
	case h.broadcast <- BroadcastCmd{UserID: userID, Payload: payload}:
	case <-h.done:
	}
}

func (c *Connection) Send(b []byte) {
	select {
	case c.send <- b:
	default:
	}
}

func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}
