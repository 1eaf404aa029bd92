package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentstation/lbmap/pkg/constants"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxMessageSize = 512
)

// Client is one WebSocket peer. Inbound frames are read only to notice
// pongs and closes.
type Client struct {
	id    string
	table string // empty subscribes to every table
	hub   *Hub
	conn  *websocket.Conn
	send  chan Message
}

// NewClient creates a client subscribed to table, or to all tables when
// table is empty.
func NewClient(id, table string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		id:    id,
		table: table,
		hub:   hub,
		conn:  conn,
		send:  make(chan Message, constants.ChannelBufferSize),
	}
}

// Greet queues msg for this client alone. It must be called before the
// client is registered.
func (c *Client) Greet(msg Message) {
	c.send <- msg
}

func (c *Client) wants(table string) bool {
	return c.table == "" || table == "" || c.table == table
}

// ReadPump runs until the peer goes away, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			return
		}
	}
}

// WritePump sends queued messages as JSON frames and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.hub.logger.Debug().Err(err).Str("client_id", c.id).Msg("WebSocket write failed")
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
