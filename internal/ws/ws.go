package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gapchat/internal/realtime"
	"gapchat/internal/store"
	"gapchat/internal/sync"
)

// Hub relays row-level change events from the realtime feed to connected
// clients. Message and typing events are delivered only to clients
// subscribed to the conversation; presence events go to everyone.
type Hub struct {
	store    *store.Store
	typing   *sync.Typing
	presence *sync.Presence

	mu      stdsync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
}

type Client struct {
	userID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan realtime.Event

	mu            stdsync.Mutex
	conversations map[string]struct{}
}

// clientCommand is what clients send upstream: conversation subscriptions
// and typing transitions.
type clientCommand struct {
	Type           string `json:"type"` // subscribe, unsubscribe, typing_start, typing_stop
	ConversationID string `json:"conversation_id"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin
		return true
	},
}

func NewHub(st *store.Store, typing *sync.Typing, presence *sync.Presence) *Hub {
	return &Hub{
		store:      st,
		typing:     typing,
		presence:   presence,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set and pumps feed events until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	sub := h.store.Feed().Subscribe("", "")
	defer sub.Close()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			log.Printf("User %s connected (total: %d)", client.userID, h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			client.cleanup()
			log.Printf("User %s disconnected (total: %d)", client.userID, h.clientCount())

		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			h.dispatch(ev)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) dispatch(ev realtime.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		if !client.wants(ev) {
			continue
		}
		select {
		case client.send <- ev:
		default:
			log.Printf("Event channel full for user %s, dropping %s event", client.userID, ev.Table)
		}
	}
}

func (c *Client) wants(ev realtime.Event) bool {
	if ev.ConversationID == "" {
		// Presence and other unscoped changes fan out to every session.
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.conversations[ev.ConversationID]
	return ok
}

// HandleWebSocket upgrades an authenticated request to a realtime session.
// Connecting marks the user online; disconnecting writes best-effort
// offline and clears any dangling typing flags.
func (h *Hub) HandleWebSocket(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": __("unauthorized")})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Upgrade error: %v", err)
		return
	}

	client := &Client{
		userID:        userID.(string),
		conn:          conn,
		hub:           h,
		send:          make(chan realtime.Event, 256),
		conversations: make(map[string]struct{}),
	}

	if err := h.presence.Enter(c.Request.Context(), client.userID); err != nil {
		log.Printf("Failed to mark user %s online: %v", client.userID, err)
	}

	h.register <- client

	go client.readPump()
	go client.writePump()
}

// cleanup runs after unregister: the websocket teardown is the unmount
// analog for presence and typing state.
func (c *Client) cleanup() {
	c.mu.Lock()
	conversations := make([]string, 0, len(c.conversations))
	for id := range c.conversations {
		conversations = append(conversations, id)
	}
	c.conversations = make(map[string]struct{})
	c.mu.Unlock()

	for _, conversationID := range conversations {
		c.hub.typing.Leave(conversationID, c.userID)
	}
	c.hub.presence.Leave(c.userID)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var cmd clientCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd clientCommand) {
	if cmd.ConversationID == "" {
		return
	}
	ctx := context.Background()

	switch cmd.Type {
	case "subscribe":
		ok, err := c.hub.store.IsParticipant(ctx, cmd.ConversationID, c.userID)
		if err != nil || !ok {
			return
		}
		c.mu.Lock()
		c.conversations[cmd.ConversationID] = struct{}{}
		c.mu.Unlock()

	case "unsubscribe":
		c.mu.Lock()
		delete(c.conversations, cmd.ConversationID)
		c.mu.Unlock()
		c.hub.typing.Leave(cmd.ConversationID, c.userID)

	case "typing_start":
		if err := c.hub.typing.Start(ctx, cmd.ConversationID, c.userID); err != nil {
			log.Printf("Failed to set typing for user %s: %v", c.userID, err)
		}

	case "typing_stop":
		if err := c.hub.typing.Stop(ctx, cmd.ConversationID, c.userID); err != nil {
			log.Printf("Failed to clear typing for user %s: %v", c.userID, err)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			data, _ := json.Marshal(ev)
			w.Write(data)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
