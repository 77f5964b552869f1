package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// WSClient adapts a websocket connection to the Subscriber interface.
// Writes go through a buffered channel drained by a single pump
// goroutine, so publishing never blocks on a slow socket.
type WSClient struct {
	conn *websocket.Conn
	send chan Event

	closeOnce sync.Once
	done      chan struct{}
}

func NewWSClient(conn *websocket.Conn) *WSClient {
	c := &WSClient{
		conn: conn,
		send: make(chan Event, sendBufferSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *WSClient) Send(ev Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		// Buffer full: the client is too far behind to stay consistent.
		log.Printf("broadcast: dropping slow client")
		c.Close()
	}
}

func (c *WSClient) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *WSClient) writePump() {
	for {
		select {
		case ev := <-c.send:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("broadcast: marshal error: %v", err)
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
