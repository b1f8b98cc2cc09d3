package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/brain"
	"quiz-battle-service/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RoutesHandler serves the question source, the outcome oracle and the health check.
type RoutesHandler struct {
	questions battle.QuestionSource
	oracle    battle.OutcomeOracle
}

func NewRoutesHandler(questions battle.QuestionSource, oracle battle.OutcomeOracle) *RoutesHandler {
	return &RoutesHandler{questions: questions, oracle: oracle}
}

// NewMux wires every route; ws may be nil when battles are not served.
func NewMux(routes *RoutesHandler, ws *WSHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+brain.PathHealth, routes.Health)
	mux.HandleFunc("GET "+brain.PathRandomQuestion, routes.RandomQuestion)
	mux.HandleFunc("POST "+brain.PathDecide, routes.Decide)
	if ws != nil {
		mux.HandleFunc("GET /ws/battle", ws.ServeWS)
		mux.HandleFunc("GET /routes/battles/recent", ws.Recent)
		mux.HandleFunc("GET /routes/battles/live", ws.Live)
	}
	return otelhttp.NewHandler(mux, "quiz-battle")
}

func (h *RoutesHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, brain.HealthResponse{Status: "ok"})
}

func (h *RoutesHandler) RandomQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.questions.RandomQuestion(r.Context())
	if err != nil {
		log.Printf("random question: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNoQuestions) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, brain.ValidationErrorBody{Detail: []brain.ValidationIssue{
			{Loc: []any{}, Msg: err.Error(), Type: "question_source_error"},
		}})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *RoutesHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var raw struct {
		Difficulty *string `json:"difficulty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeValidationError(w, []any{"body"}, "invalid JSON body", "value_error.jsondecode")
		return
	}
	if raw.Difficulty == nil {
		writeValidationError(w, []any{"body", "difficulty"}, "field required", "value_error.missing")
		return
	}
	difficulty, err := domain.ParseDifficulty(*raw.Difficulty)
	if err != nil {
		writeValidationError(w, []any{"body", "difficulty"}, "value is not a valid enumeration member; permitted: 'easy', 'medium', 'hard', 'insane'", "type_error.enum")
		return
	}

	aiCorrect, err := h.oracle.Decide(r.Context(), difficulty)
	if err != nil {
		// Callers score any failure as a miss.
		log.Printf("decide: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, brain.ValidationErrorBody{Detail: []brain.ValidationIssue{
			{Loc: []any{}, Msg: err.Error(), Type: "oracle_error"},
		}})
		return
	}
	writeJSON(w, http.StatusOK, brain.DecideResponse{AICorrect: aiCorrect})
}

func writeValidationError(w http.ResponseWriter, loc []any, msg, typ string) {
	writeJSON(w, http.StatusUnprocessableEntity, brain.ValidationErrorBody{Detail: []brain.ValidationIssue{
		{Loc: loc, Msg: msg, Type: typ},
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
