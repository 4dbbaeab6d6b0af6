package http

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"trivia-quiz-bot/internal/domain"
	"trivia-quiz-bot/internal/transport"
)

const platform = "ws"

type WSHandler struct {
	handler  transport.Handler
	keyboard transport.Keyboard
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

func NewWSHandler(handler transport.Handler, keyboard transport.Keyboard, log logrus.FieldLogger) *WSHandler {
	return &WSHandler{
		handler:  handler,
		keyboard: keyboard,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type messagePayload struct {
	Text string `json:"text"`
}

type replyPayload struct {
	Text     string     `json:"text"`
	Keyboard [][]string `json:"keyboard,omitempty"`
	// RemoveKeyboard asks the client to hide a previously shown keyboard.
	RemoveKeyboard bool   `json:"removeKeyboard,omitempty"`
	State          string `json:"state"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and feeds each text message to the conversation.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	user := domain.UserKey(platform, userID)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	out := newOutbox(16)
	// Only this goroutine writes to conn. A failed write closes conn so the
	// read loop below stops as well.
	go out.run(conn.WriteJSON, func(err error) {
		h.log.WithError(err).WithField("user", user).Warn("ws write failed")
		_ = conn.Close()
	})
	defer out.close()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		var msg outboundMessage[any]
		var payload messagePayload
		switch {
		case inbound.Type != "message":
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		case json.Unmarshal(inbound.Payload, &payload) != nil:
			msg = outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid message payload"}}
		default:
			// Failed turns are logged by the engine; the reply is still a safe notice.
			reply, _ := h.handler.Handle(r.Context(), user, transport.Classify(payload.Text))
			msg = outboundMessage[any]{Type: "reply", Payload: h.render(reply)}
		}
		if !out.push(msg) {
			return
		}
	}
}

// outbox queues messages for the single connection writer.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
}

// run writes queued messages until close is called or a write fails.
func (o *outbox) run(write func(v interface{}) error, onError func(error)) {
	defer close(o.done)
	for msg := range o.send {
		if err := write(msg); err != nil {
			onError(err)
			return
		}
	}
}

// push queues msg and reports false once the writer has stopped.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close stops the writer after it drained the queue.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

func (h *WSHandler) render(reply domain.Reply) replyPayload {
	out := replyPayload{Text: reply.Text, State: string(reply.State)}
	switch reply.Keyboard {
	case domain.KeyboardShow:
		out.Keyboard = h.keyboard
	case domain.KeyboardRemove:
		out.RemoveKeyboard = true
	}
	return out
}
