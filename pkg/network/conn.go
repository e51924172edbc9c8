package network

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbodonnell/rally/pkg/log"
	"github.com/gorilla/websocket"
)

const (
	outboundBufferSize = 64
	writeTimeout       = 5 * time.Second
)

type outboundMessage struct {
	data        []byte
	closeCode   int
	closeReason string
	isClose     bool
}

// wsConn wraps a websocket connection behind the match.Conn interface.
// All writes go through a buffered channel drained by a single writer
// goroutine, so Send never blocks the tick: when the buffer is full the
// frame is dropped and the peer catches up on the next broadcast.
type wsConn struct {
	conn     *websocket.Conn
	outbound chan outboundMessage
	alive    atomic.Bool
	done     chan struct{}
	once     sync.Once
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		conn:     conn,
		outbound: make(chan outboundMessage, outboundBufferSize),
		done:     make(chan struct{}),
	}
	c.alive.Store(true)
	go c.writePump()
	return c
}

func (c *wsConn) Send(frame interface{}) error {
	if !c.alive.Load() {
		return fmt.Errorf("connection is closed")
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %v", err)
	}
	select {
	case c.outbound <- outboundMessage{data: data}:
		return nil
	default:
		log.Trace("Outbound buffer full for %s, dropping frame", c.conn.RemoteAddr())
		return nil
	}
}

// Close queues a close handshake behind any pending frames, so the
// terminal frame a match broadcasts still reaches the client.
func (c *wsConn) Close(code int, reason string) {
	if !c.alive.CompareAndSwap(true, false) {
		return
	}
	select {
	case c.outbound <- outboundMessage{isClose: true, closeCode: code, closeReason: reason}:
	default:
		c.shutdown()
	}
}

func (c *wsConn) Alive() bool {
	return c.alive.Load()
}

func (c *wsConn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.outbound:
			if msg.isClose {
				deadline := time.Now().Add(writeTimeout)
				payload := websocket.FormatCloseMessage(msg.closeCode, msg.closeReason)
				if err := c.conn.WriteControl(websocket.CloseMessage, payload, deadline); err != nil {
					log.Trace("Failed to write close message to %s: %v", c.conn.RemoteAddr(), err)
				}
				c.shutdown()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				log.Trace("Failed to write message to %s: %v", c.conn.RemoteAddr(), err)
				c.shutdown()
				return
			}
		}
	}
}

// shutdown tears the transport down immediately. Idempotent; called on
// both write failure and read-loop exit.
func (c *wsConn) shutdown() {
	c.once.Do(func() {
		c.alive.Store(false)
		close(c.done)
		c.conn.Close()
	})
}
