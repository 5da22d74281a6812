package report

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eleven-am/civic311/internal/catalog"
	"github.com/eleven-am/civic311/internal/chat"
	"github.com/eleven-am/civic311/internal/inference"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 << 20
	sendBuffer     = 128
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	MessageTypeQuery     = "query"
	MessageTypeNewReport = "new_report"
	MessageTypeStatus    = "status"
	MessageTypeMessages  = "messages"
	MessageTypeAppended  = "messages_appended"
	MessageTypeError     = "error"
)

type ClientMessage struct {
	Type     string `json:"type"`
	ImageURL string `json:"imageUrl,omitempty"`
	Prompt   string `json:"prompt,omitempty"`
	Category string `json:"category,omitempty"`
}

type ServerMessage struct {
	Type     string           `json:"type"`
	State    *inference.State `json:"state,omitempty"`
	Messages *[]chat.Message  `json:"messages,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func statusMessage(s inference.State) *ServerMessage {
	return &ServerMessage{Type: MessageTypeStatus, State: &s}
}

func messagesMessage(msgs []chat.Message) *ServerMessage {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return &ServerMessage{Type: MessageTypeMessages, Messages: &msgs}
}

func appendedMessage(msgs []chat.Message) *ServerMessage {
	return &ServerMessage{Type: MessageTypeAppended, Messages: &msgs}
}

// messageDiff turns successive log snapshots into frames. When the log only
// grew, just the new messages are sent so earlier images are not resent.
// The first snapshot and any clear or removal send the full history.
type messageDiff struct {
	started bool
	ids     []string
}

func (d *messageDiff) next(msgs []chat.Message) *ServerMessage {
	grown := d.started && len(msgs) >= len(d.ids)
	for i := 0; grown && i < len(d.ids); i++ {
		grown = msgs[i].ID == d.ids[i]
	}
	prev := len(d.ids)

	d.started = true
	d.ids = d.ids[:0]
	for _, m := range msgs {
		d.ids = append(d.ids, m.ID)
	}

	if !grown {
		return messagesMessage(msgs)
	}
	if len(msgs) == prev {
		return nil
	}
	return appendedMessage(msgs[prev:])
}

// reset makes the next frame carry the full history again.
func (d *messageDiff) reset() {
	d.started = false
	d.ids = d.ids[:0]
}

func errorMessage(msg string) *ServerMessage {
	return &ServerMessage{Type: MessageTypeError, Error: msg}
}

// wsConnection pumps one report session over a WebSocket.
type wsConnection struct {
	ws      *websocket.Conn
	session *Session
	catalog *catalog.Catalog
	logger  *slog.Logger

	send   chan *ServerMessage
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newWSConnection(ws *websocket.Conn, session *Session, cat *catalog.Catalog, logger *slog.Logger) *wsConnection {
	return &wsConnection{
		ws:      ws,
		session: session,
		catalog: cat,
		logger:  logger.With("session_id", session.ID()),
		send:    make(chan *ServerMessage, sendBuffer),
		done:    make(chan struct{}),
	}
}

// enqueue reports whether msg was queued for the write pump.
func (c *wsConnection) enqueue(msg *ServerMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
		return false
	}
}

func (c *wsConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	close(c.send)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *wsConnection) readPump(ctx context.Context) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("websocket read error", "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("failed to unmarshal message", "error", err)
			c.enqueue(errorMessage("invalid message"))
			continue
		}

		c.dispatch(ctx, &msg)
	}
}

func (c *wsConnection) dispatch(ctx context.Context, msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeQuery:
		prompt, err := c.catalog.Question(msg.Category, msg.Prompt)
		if err != nil {
			c.enqueue(errorMessage("Unknown category: " + msg.Category))
			return
		}
		if err := c.session.Submit(ctx, msg.ImageURL, prompt); err != nil {
			c.enqueue(errorMessage(submitError(err)))
		}
	case MessageTypeNewReport:
		c.session.NewReport()
	default:
		c.enqueue(errorMessage("unknown message type: " + msg.Type))
	}
}

func submitError(err error) string {
	switch {
	case errors.Is(err, ErrEmptyImage):
		return "Image is required"
	case errors.Is(err, inference.ErrNotReady), errors.Is(err, inference.ErrWorkerBusy):
		return "Model is not ready"
	}
	return err.Error()
}

func (c *wsConnection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.session.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
			return
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to marshal message", "error", err)
				continue
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
