package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService) *WSHandler {
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

type answerPayload struct {
	Option *int `json:"option"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz use cases.
// Every state change of the player's session is pushed as a "state" message.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates, cancel := h.service.Subscribe(ctx, playerID)
	defer cancel()

	c := &wsConn{
		send:   make(chan outboundMessage[any], 16),
		closed: make(chan struct{}),
	}
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer; gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error for player %s: %v", playerID, err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				c.push(outboundMessage[any]{Type: "state", Payload: view})
			case <-c.closed:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(ctx, c, playerID, inbound)
	}

	// stop in-flight fetches, then tear the session down before closing the writer
	cancelCtx()
	close(c.closed)
	c.workers.Wait()
	<-updatesDone
	h.service.Leave(context.Background(), playerID)
	close(c.send)
	<-writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *wsConn, playerID string, inbound inboundMessage) {
	switch inbound.Type {
	case "start":
		var req domain.StartRequest
		if err := json.Unmarshal(inbound.Payload, &req); err != nil {
			c.fail("invalid start payload")
			return
		}
		// fetches run off the read loop so newTopic can cancel a pending one
		c.spawn(func() {
			_, err := h.service.Start(ctx, playerID, req)
			c.report(err)
		})
	case "retry":
		c.spawn(func() {
			_, err := h.service.Retry(ctx, playerID)
			c.report(err)
		})
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Option == nil {
			c.fail("invalid answer payload")
			return
		}
		_, err := h.service.Submit(ctx, playerID, *payload.Option)
		c.report(err)
	case "newTopic":
		h.service.ChooseNewTopic(playerID)
	default:
		c.fail("unsupported message type")
	}
}

type wsConn struct {
	send    chan outboundMessage[any]
	closed  chan struct{}
	workers sync.WaitGroup
}

func (c *wsConn) spawn(fn func()) {
	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		fn()
	}()
}

func (c *wsConn) push(msg outboundMessage[any]) {
	select {
	case c.send <- msg:
	case <-c.closed:
	}
}

func (c *wsConn) fail(message string) {
	c.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}})
}

// report forwards errors the state stream does not already carry.
func (c *wsConn) report(err error) {
	switch {
	case err == nil:
	case domain.Retryable(err):
		// surfaced through the session's state with a retry affordance
	case errors.Is(err, domain.ErrStaleSession), errors.Is(err, context.Canceled):
	default:
		c.fail(err.Error())
	}
}
