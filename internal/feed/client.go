package feed

import (
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// Per-client subscriptions: key = "exchange:symbol"
	subMu sync.RWMutex
	subs  map[string]bool
}

// subscribeMsg is the client-to-server control message.
type subscribeMsg struct {
	Type     string `json:"type"` // "SUBSCRIBE" | "UNSUBSCRIBE"
	Symbol   string `json:"symbol"`
	Exchange string `json:"exchange"`
	Ping     int64  `json:"ping"`
}

func (c *Client) sendInitialState() {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	for channel, entry := range c.hub.latest {
		envelope, _ := json.Marshal(map[string]interface{}{
			"channel": channel,
			"data":    json.RawMessage(entry.Data),
			"ts":      entry.TS.Format(time.RFC3339Nano),
			"initial": true,
		})
		select {
		case c.send <- envelope:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))

			// Write coalescing: use NextWriter to batch queued messages
			// into a single WebSocket frame with newline separators
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)

			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

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

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[feed] ws client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var m subscribeMsg
		if json.Unmarshal(msg, &m) != nil {
			continue
		}

		switch m.Type {
		case "SUBSCRIBE":
			if m.Symbol == "" {
				continue
			}
			c.subMu.Lock()
			c.subs[subKey(m.Exchange, m.Symbol)] = true
			c.subMu.Unlock()
			log.Printf("[feed] client subscribed: %s:%s", m.Exchange, m.Symbol)

		case "UNSUBSCRIBE":
			c.subMu.Lock()
			delete(c.subs, subKey(m.Exchange, m.Symbol))
			c.subMu.Unlock()
			log.Printf("[feed] client unsubscribed: %s:%s", m.Exchange, m.Symbol)

		default:
			if m.Ping > 0 {
				pong, _ := json.Marshal(map[string]interface{}{
					"type":      "pong",
					"ping":      m.Ping,
					"server_ts": time.Now().UnixMilli(),
				})
				select {
				case c.send <- pong:
				default:
				}
			}
		}
	}
}

func subKey(exchange, symbol string) string {
	return exchange + ":" + symbol
}

// matchesChannel checks if a feed channel matches any of this client's
// subscriptions. With no subscriptions the client receives everything.
func (c *Client) matchesChannel(channel string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	if len(c.subs) == 0 {
		return true
	}

	// Channels look like "audit:EXCHANGE:SYMBOL" or "candle:EXCHANGE:SYMBOL".
	parts := strings.SplitN(channel, ":", 2)
	if len(parts) != 2 {
		return true // non-data channel, always deliver
	}
	return c.subs[parts[1]]
}
