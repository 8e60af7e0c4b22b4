package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Client is one connected websocket for a user. A user may hold several
// (multiple tabs), each with its own change-feed subscription.
type Client struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub tracks connected clients and relays each user's change feed to their
// open sockets.
type Hub struct {
	Bus *RedisBus

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*Client]struct{}
}

func NewHub(bus *RedisBus) *Hub {
	return &Hub{
		Bus:     bus,
		clients: make(map[uuid.UUID]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	if h.clients[c.UserID] == nil {
		h.clients[c.UserID] = make(map[*Client]struct{})
	}
	h.clients[c.UserID][c] = struct{}{}
	h.mu.Unlock()
	log.Info().Str("user_id", c.UserID.String()).Msg("chat: client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.Send)
			if len(set) == 0 {
				delete(h.clients, c.UserID)
			}
		}
	}
	h.mu.Unlock()
	log.Info().Str("user_id", c.UserID.String()).Msg("chat: client disconnected")
}

// IsUserOnline reports whether the user has at least one open socket on this
// instance.
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ServeConn pumps the user's change feed into an upgraded socket and blocks
// for the lifetime of the connection. The caller owns the upgrade; conn must
// already be an accepted websocket.
func (h *Hub) ServeConn(userID uuid.UUID, conn *websocket.Conn) {
	client := &Client{UserID: userID, Conn: conn, Send: make(chan []byte, 64)}
	h.register(client)

	ctx, cancel := context.WithCancel(context.Background())
	events, stop := h.Bus.Subscribe(ctx, userID)
	defer func() {
		cancel()
		stop()
		h.unregister(client)
		conn.Close()
	}()

	// Feed pump: change feed -> client send buffer. A slow client gets
	// dropped rather than blocking the feed.
	go func() {
		for ev := range events {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case client.Send <- data:
			default:
				conn.Close()
				return
			}
		}
	}()

	// Write pump.
	go func() {
		defer conn.Close()
		for data := range client.Send {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	// Read pump in the foreground: the client sends nothing meaningful;
	// reads only detect closure.
	conn.SetReadLimit(1024)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
