package routes

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// time allowed to write one message to a client
const writeWait = 10 * time.Second

var errMessageTooLarge = errors.New("message too large")

// origins are checked by middleware.Origin before the upgrade
var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// SignalingWS serves one relay connection. The connection is registered with
// the hub under a fresh id, every text message is handed to the hub, and the
// connection is departed from its channel when the socket closes.
func (h *RouteHandler) SignalingWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	c := newClient(uuid.NewString(), conn, h.limits.SendQueue, h.log)
	go c.writePump()

	h.hub.Register(c)
	defer c.Close()
	defer h.hub.Disconnect(c.id)

	for {
		msgType, reader, err := conn.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, io.EOF) {
				h.log.Debug("client closed connection", "connection_id", c.id)
			} else {
				h.log.Debug("error reading from ws", "connection_id", c.id, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			h.log.Debug("dropping non-text message", "connection_id", c.id)
			continue
		}

		msg, err := readLimited(reader, h.limits.MaxMessageBytes)
		switch {
		case err == nil:
			h.hub.Dispatch(c.id, msg)
		case errors.Is(err, errMessageTooLarge):
			h.log.Warn("dropping oversized message", "connection_id", c.id, "limit", h.limits.MaxMessageBytes)
		default:
			h.log.Debug("error reading from ws", "connection_id", c.id, "error", err)
			return
		}
	}
}

// readLimited reads one whole message, possibly spread over several frames.
// A message over max is discarded so the connection can carry on.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return nil, err
		}
		return nil, errMessageTooLarge
	}
	return b, nil
}

// client is a websocket connection as seen by the hub. Messages queue in send
// and are written by writePump, one at a time.
type client struct {
	id   string
	conn *websocket.Conn
	log  *slog.Logger
	send chan any

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, queue int, log *slog.Logger) *client {
	if queue <= 0 {
		queue = 64
	}
	return &client{
		id:   id,
		conn: conn,
		log:  log,
		send: make(chan any, queue),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

// Send never blocks. It drops msg when the queue is full or the client is closed.
func (c *client) Send(msg any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			c.log.Debug("error closing ws", "connection_id", c.id, "error", err)
		}
	})
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("error writing to ws", "connection_id", c.id, "error", err)
				c.Close()
				return
			}
		}
	}
}
