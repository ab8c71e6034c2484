package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/domain"
)

// WSHandler pushes invalidation signals to room members and accepts answer
// frames on the same socket.
type WSHandler struct {
	service    *app.Service
	subscriber app.Subscriber
	log        *slog.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(service *app.Service, subscriber app.Subscriber, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:    service,
		subscriber: subscriber,
		log:        logger,
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

type answerPayload struct {
	QuestionID  string `json:"questionId"`
	OptionIndex int    `json:"optionIndex"`
	TimeLeft    int    `json:"timeLeft"`
}

type subscribedPayload struct {
	RoomID string         `json:"roomId"`
	UserID string         `json:"userId"`
	Topics []domain.Topic `json:"topics"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// outbox queues frames for the writer goroutine. Once the writer has stopped,
// push gives up instead of blocking on a queue nobody drains.
type outbox struct {
	send       chan outboundMessage[any]
	writerDone chan struct{}
}

func (o outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.writerDone:
		return false
	}
}

// ServeWS upgrades members of a room and relays its invalidations until the
// client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	userID := r.URL.Query().Get("userId")
	if roomID == "" || userID == "" {
		http.Error(w, "missing roomId or userId", http.StatusBadRequest)
		return
	}
	if _, err := h.service.Member(r.Context(), roomID, userID); err != nil {
		writeError(w, err)
		return
	}

	updates, cancel := h.subscriber.Subscribe(roomID)
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "room_id", roomID, "err", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches conn for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "room_id", roomID, "user_id", userID, "err", err)
				return
			}
		}
	}()

	out := outbox{send: send, writerDone: writerDone}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case inv, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "invalidate", Payload: inv}:
				case <-writerDone:
					return
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	if !out.push(outboundMessage[any]{Type: "subscribed", Payload: subscribedPayload{RoomID: roomID, UserID: userID, Topics: domain.Topics()}}) {
		close(closeSignals)
		<-updatesDone
		return
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		var reply outboundMessage[any]
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: errorBody{Kind: domain.KindValidation, Message: "invalid answer payload"}}
				break
			}
			receipt, err := h.service.SubmitAnswer(r.Context(), payload.QuestionID, userID, payload.OptionIndex, payload.TimeLeft)
			if err != nil {
				reply = outboundMessage[any]{Type: "error", Payload: toErrorBody(err)}
				break
			}
			reply = outboundMessage[any]{Type: "answerResult", Payload: receipt}
		default:
			reply = outboundMessage[any]{Type: "error", Payload: errorBody{Kind: domain.KindValidation, Message: "unsupported message type"}}
		}
		if !out.push(reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}
