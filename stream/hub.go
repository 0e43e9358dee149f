// Package stream publishes the playback frames to browser viewers over websockets and to a NATS subject.
package stream

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ftl/ecgscope/playback"
)

const (
	defaultOutBufferSize = 64
	writeTimeout         = 200 * time.Millisecond
	maxMessageSize       = 4096
)

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

// Hub fans out the frames of a session to the connected websocket clients and dispatches the
// control messages of the clients to a controller. Clients that cannot keep up are disconnected.
type Hub struct {
	log        *zap.Logger
	controller Controller
	upgrader   websocket.Upgrader

	outBufferSize int

	mu      sync.Mutex
	clients map[*client]bool
}

// NewHub creates a new hub. Without a controller, control messages are rejected.
func NewHub(controller Controller, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log:        log,
		controller: controller,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		outBufferSize: defaultOutBufferSize,
		clients:       make(map[*client]bool),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish sends the frame as JSON text message to all clients. It never blocks.
func (h *Hub) Publish(frame playback.Frame) {
	message, err := json.Marshal(frame)
	if err != nil {
		h.log.Warn("cannot encode frame", zap.Uint64("sequence", frame.Sequence), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- message:
		default:
			h.log.Debug("dropping slow websocket client", zap.Stringer("remote", c.conn.RemoteAddr()))
			delete(h.clients, c)
			close(c.out)
		}
	}
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.out)
	}
}

// ServeHTTP upgrades the request to a websocket connection and serves the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("cannot upgrade websocket connection", zap.Error(err))
		return
	}
	c := &client{
		conn: conn,
		out:  make(chan []byte, h.outBufferSize),
	}
	h.add(c)
	h.log.Debug("websocket client connected", zap.Stringer("remote", conn.RemoteAddr()))

	go h.write(c)
	h.read(c)

	h.remove(c)
	h.log.Debug("websocket client disconnected", zap.Stringer("remote", conn.RemoteAddr()))
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	close(c.out)
}

// reply sends a message to a single client, it is dropped if the client is busy.
func (h *Hub) reply(c *client, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.out <- message:
	default:
	}
}

func (h *Hub) write(c *client) {
	defer c.conn.Close()
	for message := range c.out {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) read(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		var message ControlMessage
		err := c.conn.ReadJSON(&message)
		if err != nil {
			if isDecodeError(err) {
				h.reply(c, errorMessage(err))
				continue
			}
			return
		}
		h.log.Debug("control message", zap.String("action", message.Action))

		if h.controller == nil {
			h.reply(c, errorMessage(errNoController))
			continue
		}
		if err := Dispatch(h.controller, message); err != nil {
			h.reply(c, errorMessage(err))
		}
	}
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

type errorReply struct {
	Error string `json:"error"`
}

func errorMessage(err error) []byte {
	result, _ := json.Marshal(errorReply{Error: err.Error()})
	return result
}
