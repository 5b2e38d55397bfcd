package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"campus-quiz-service/internal/app"
	"github.com/gorilla/websocket"
)

// WSHandler drives one quiz attempt per socket: the client sends navigation
// commands, the server answers with the current question view, timer ticks,
// and finally the score.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
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

type selectPayload struct {
	Option int `json:"option"`
}

type jumpPayload struct {
	Position int `json:"position"`
}

type tickPayload struct {
	Remaining int  `json:"remaining"`
	Warning   bool `json:"warning"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the attempt loop. Query params:
// user (matric number), subject, and resume=1 to continue a saved attempt.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	subject := r.URL.Query().Get("subject")
	resume := r.URL.Query().Get("resume") == "1"
	if userID == "" || subject == "" {
		http.Error(w, "missing user or subject", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess, err := h.service.Begin(r.Context(), userID, subject, resume)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	// Closing the socket mid-attempt keeps the resume point; after a
	// successful submit this is a no-op.
	defer h.service.Discard(r.Context(), userID)

	events, cancel := sess.Watch()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				msg, ok := eventMessage(ev)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "question", Payload: sess.View()}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if quit := h.handle(r, sess, userID, inbound, send); quit {
			break
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

// handle applies one command against the session. Returns true when the
// attempt is over and the read loop should stop.
func (h *WSHandler) handle(r *http.Request, sess *app.Session, userID string, inbound inboundMessage, send chan<- outboundMessage[any]) bool {
	fail := func(err error) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
	}
	view := func() {
		send <- outboundMessage[any]{Type: "question", Payload: sess.View()}
	}

	switch inbound.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid select payload"))
			return false
		}
		if err := sess.SelectOption(payload.Option); err != nil {
			fail(err)
			return false
		}
		view()
	case "commit":
		if err := sess.CommitAnswer(); err != nil {
			fail(err)
			return false
		}
		view()
	case "advance":
		atEnd, err := sess.Advance()
		if err != nil {
			fail(err)
			return false
		}
		if atEnd {
			send <- outboundMessage[any]{Type: "review", Payload: sess.Review()}
			return false
		}
		view()
	case "retreat":
		if err := sess.Retreat(); err != nil {
			fail(err)
			return false
		}
		view()
	case "jump":
		var payload jumpPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			fail(errors.New("invalid jump payload"))
			return false
		}
		if err := sess.JumpTo(payload.Position); err != nil {
			fail(err)
			return false
		}
		view()
	case "skip":
		atEnd, err := sess.Skip()
		if err != nil {
			fail(err)
			return false
		}
		if atEnd {
			send <- outboundMessage[any]{Type: "review", Payload: sess.Review()}
			return false
		}
		view()
	case "flag":
		if _, err := sess.ToggleFlag(); err != nil {
			fail(err)
			return false
		}
		view()
	case "review":
		send <- outboundMessage[any]{Type: "review", Payload: sess.Review()}
	case "submit":
		summary, err := h.service.Submit(r.Context(), userID)
		if err != nil {
			fail(err)
			return false
		}
		send <- outboundMessage[any]{Type: "result", Payload: summary}
		return true
	default:
		fail(errors.New("unsupported message type"))
	}
	return false
}

func eventMessage(ev app.Event) (outboundMessage[any], bool) {
	switch ev.Type {
	case app.EventTick:
		return outboundMessage[any]{Type: "tick", Payload: tickPayload{Remaining: ev.Remaining, Warning: ev.Warning}}, true
	case app.EventFinalized:
		return outboundMessage[any]{Type: "result", Payload: ev.Summary}, true
	case app.EventSubmitFailed:
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: ev.Message}}, true
	}
	return outboundMessage[any]{}, false
}
