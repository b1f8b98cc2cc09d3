package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.BattleService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.BattleService) *WSHandler {
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
	Option string `json:"option"`
}

type difficultyPayload struct {
	Difficulty string `json:"difficulty"`
}

type ackPayload struct {
	Action   string `json:"action"`
	Accepted bool   `json:"accepted"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and runs one battle per connection.
// Clients may pass matchId to reattach to a live match instead of starting a new one.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	matchID := r.URL.Query().Get("matchId")
	owned := false

	if matchID == "" {
		difficulty := domain.DifficultyMedium
		if raw := r.URL.Query().Get("difficulty"); raw != "" {
			d, err := domain.ParseDifficulty(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			difficulty = d
		}
		snap, err := h.service.CreateMatch(ctx, difficulty)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		matchID = snap.MatchID
		owned = true
	}

	updates, cancel, err := h.service.Subscribe(matchID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrMatchNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer cancel()
	if owned {
		defer h.service.End(matchID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

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
		defer close(updatesDone)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: snap}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-writerDone:
		}
	}
	fail := func(err error) {
		reply(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid answer payload"))
				continue
			}
			accepted, err := h.service.Submit(ctx, matchID, payload.Option)
			if err != nil {
				fail(err)
				continue
			}
			reply(outboundMessage[any]{Type: "ack", Payload: ackPayload{Action: "answer", Accepted: accepted}})
		case "difficulty":
			var payload difficultyPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				fail(errors.New("invalid difficulty payload"))
				continue
			}
			d, err := domain.ParseDifficulty(payload.Difficulty)
			if err != nil {
				fail(err)
				continue
			}
			if err := h.service.SetDifficulty(ctx, matchID, d); err != nil {
				fail(err)
			}
		case "reset":
			if err := h.service.Reset(ctx, matchID); err != nil {
				fail(err)
			}
		case "load":
			accepted, err := h.service.LoadQuestion(ctx, matchID)
			if err != nil {
				fail(err)
				continue
			}
			reply(outboundMessage[any]{Type: "ack", Payload: ackPayload{Action: "load", Accepted: accepted}})
		default:
			fail(errors.New("unsupported message type"))
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// Recent lists finished matches, newest first.
func (h *WSHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeValidationError(w, []any{"query", "limit"}, "limit must be a positive integer", "type_error.integer")
			return
		}
		limit = n
	}
	records, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		log.Printf("recent matches: %v", err)
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type livePayload struct {
	Live int `json:"live"`
}

// Live reports how many matches are in progress.
func (h *WSHandler) Live(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Live(r.Context())
	if err != nil {
		log.Printf("live matches: %v", err)
		http.Error(w, "failed to count matches", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, livePayload{Live: n})
}
