package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/tcriess/lightspeed-board/globals"
	"github.com/tcriess/lightspeed-board/types"
)

const (
	maxMessageSize  = 65536
	pongWait        = 2 * time.Minute
	pingPeriod      = time.Minute
	writeWait       = 10 * time.Second
	sendChannelSize = 1000
)

type sessionState int

const (
	stateConnected sessionState = iota
	stateActive
	stateDisconnected
)

// Client is a middleman between the websocket connection and the rest of the
// server. All of its events are handled synchronously in ReadLoop, so
// per-connection ordering is preserved end-to-end.
type Client struct {
	handler *Handler

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages. It is never closed; WriteLoop
	// exits via doneChan and the channel is left for the gc, which avoids any
	// send-on-closed-channel locking between broadcasters.
	send chan []byte

	doneChan chan struct{}

	connId string

	// session state, only touched from ReadLoop
	state  sessionState
	roomId string
	member types.Member
}

func NewClient(handler *Handler, conn *websocket.Conn) *Client {
	return &Client{
		handler:  handler,
		conn:     conn,
		send:     make(chan []byte, sendChannelSize),
		doneChan: make(chan struct{}),
		connId:   uuid.New().String(),
	}
}

// Id returns the connection id. It changes across reconnects of the same
// logical user.
func (c *Client) Id() string {
	return c.connId
}

// Send enqueues data for the connection without blocking. It reports false
// when the buffer is full and the message was dropped.
func (c *Client) Send(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendEvent marshals the payload into the wire envelope and enqueues it.
func (c *Client) sendEvent(event string, payload interface{}) {
	data, err := types.NewWireMessage(event, payload)
	if err != nil {
		globals.AppLogger.Error("could not marshal wire message", "event", event, "error", err)
		return
	}
	if !c.Send(data) {
		globals.AppLogger.Warn("send buffer full, dropping message", "event", event, "conn", c.connId)
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(types.EventError, types.ErrorMessage{Message: message})
}

// ReadLoop pumps messages from the websocket connection to the handler.
//
// The application runs ReadLoop in a per-connection goroutine. The
// application ensures that there is at most one reader on a connection by
// executing all reads from this goroutine.
func (c *Client) ReadLoop() {
	defer func() {
		c.conn.Close()
		close(c.doneChan)
		c.handler.Disconnect(c)
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				globals.AppLogger.Warn("ws closed unexpected", "conn", c.connId, "error", err)
			}
			return
		}
		c.handler.Dispatch(c, raw)
	}
}

// WriteLoop pumps messages from the send channel to the websocket connection.
//
// A goroutine running WriteLoop is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.doneChan:
			return
		}
	}
}
