package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 20 * time.Second
	maxMessageSize = 1 << 20
	sendBuffer     = 256
)

// Websocket message types.
const (
	msgGameState  = "game_state"
	msgEvent      = "event"
	msgError      = "error"
	msgReplayStep = "replay_step"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is the envelope for every websocket frame in both directions.
type WSMessage struct {
	Type   string          `json:"type"`
	GameID string          `json:"game_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func newMessage(kind, gameID string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = nil
	}
	out, _ := json.Marshal(WSMessage{Type: kind, GameID: gameID, Data: raw})
	return out
}

// Client is one websocket connection watching a game.
type Client struct {
	ID     string
	GameID string

	conn *websocket.Conn
	send chan []byte
}

type outbound struct {
	gameID  string
	client  *Client
	payload []byte
}

// Hub fans messages out to the clients of each game.
type Hub struct {
	logger *zap.Logger

	clients    map[*Client]bool
	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	stopOnce   sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("websocket client registered",
				zap.String("client_id", client.ID),
				zap.String("game_id", client.GameID),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("websocket client unregistered", zap.String("client_id", client.ID))
			}

		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.GameID != msg.gameID || (msg.client != nil && msg.client != client) {
					continue
				}
				select {
				case client.send <- msg.payload:
				default:
					// too slow to keep up
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("dropping slow websocket client", zap.String("client_id", client.ID))
				}
			}

		case <-h.quit:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
}

// Broadcast queues payload for every client of gameID.
func (h *Hub) Broadcast(gameID string, payload []byte) {
	select {
	case h.broadcast <- outbound{gameID: gameID, payload: payload}:
	case <-h.quit:
	}
}

// Attach upgrades the request and registers a client for gameID. initial, if
// not nil, is the first frame the client receives.
func (h *Hub) Attach(w http.ResponseWriter, r *http.Request, gameID string, initial []byte) (*Client, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	client := &Client{
		ID:     uuid.New().String(),
		GameID: gameID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
	}
	if initial != nil {
		client.send <- initial
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return nil, websocket.ErrCloseSent
	}
	return client, nil
}

// Serve runs the client's pumps; handle is called for every inbound message.
// It returns when the connection closes.
func (h *Hub) Serve(client *Client, handle func(*Client, WSMessage)) {
	go h.writePump(client)
	h.readPump(client, handle)
}

// Reply queues payload for a single client.
func (h *Hub) Reply(c *Client, payload []byte) {
	select {
	case h.broadcast <- outbound{gameID: c.GameID, client: c, payload: payload}:
	case <-h.quit:
	}
}

func (h *Hub) readPump(c *Client, handle func(*Client, WSMessage)) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.Reply(c, newMessage(msgError, c.GameID, errorBody{Error: "malformed message"}))
			continue
		}
		handle(c, msg)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
