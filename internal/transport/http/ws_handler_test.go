package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketBattleFlow(t *testing.T) {
	service := app.NewBattleService(memory.NewMatchStore(), fixedSource{}, fixedOracle{aiCorrect: false}, battle.Options{})
	server := httptest.NewServer(NewMux(NewRoutesHandler(fixedSource{}, fixedOracle{}), NewWSHandler(service)))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/battle?difficulty=hard"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	snap := readState(t, conn, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseQuestionReady })
	if snap.Difficulty != domain.DifficultyHard {
		t.Fatalf("expected hard difficulty, got %s", snap.Difficulty)
	}
	if snap.Question == nil || len(snap.Question.Options) != 2 {
		t.Fatalf("expected question, got %+v", snap.Question)
	}

	for round := 1; round <= 4; round++ {
		if err := conn.WriteJSON(map[string]any{"type": "answer", "payload": map[string]any{"option": "Paris"}}); err != nil {
			t.Fatalf("write answer: %v", err)
		}
		snap = readState(t, conn, func(s domain.MatchSnapshot) bool {
			return s.Round == round && (s.Phase == domain.PhaseQuestionReady || s.Phase == domain.PhaseMatchOver)
		})
	}
	if snap.Phase != domain.PhaseMatchOver || snap.Result != domain.ResultWon {
		t.Fatalf("expected win, got phase=%s result=%q", snap.Phase, snap.Result)
	}

	if err := conn.WriteJSON(map[string]any{"type": "reset"}); err != nil {
		t.Fatalf("write reset: %v", err)
	}
	snap = readState(t, conn, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseQuestionReady && s.Round == 0 })
	if snap.State.AIHealth != 100 {
		t.Fatalf("expected reset health, got %+v", snap.State)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		records, _ := service.Recent(context.Background(), 10)
		if len(records) == 1 && records[0].Result == domain.ResultWon {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected finished match archived")
}

func TestLiveCountFollowsConnections(t *testing.T) {
	service := app.NewBattleService(memory.NewMatchStore(), fixedSource{}, fixedOracle{}, battle.Options{})
	server := httptest.NewServer(NewMux(NewRoutesHandler(fixedSource{}, fixedOracle{}), NewWSHandler(service)))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/battle"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readState(t, conn, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseQuestionReady })
	if got := liveCount(t, server.URL); got != 1 {
		t.Fatalf("expected 1 live match, got %d", got)
	}

	conn.Close()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if liveCount(t, server.URL) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected match ended after disconnect")
}

func liveCount(t *testing.T, baseURL string) int {
	t.Helper()
	resp, err := http.Get(baseURL + "/routes/battles/live")
	if err != nil {
		t.Fatalf("get live: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body livePayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode live: %v", err)
	}
	return body.Live
}

func TestWebSocketRejectsUnknownMatch(t *testing.T) {
	service := app.NewBattleService(memory.NewMatchStore(), fixedSource{}, fixedOracle{}, battle.Options{})
	server := httptest.NewServer(NewMux(NewRoutesHandler(fixedSource{}, fixedOracle{}), NewWSHandler(service)))
	defer server.Close()

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/battle?matchId=missing"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func readState(t *testing.T, conn *websocket.Conn, ok func(domain.MatchSnapshot) bool) domain.MatchSnapshot {
	t.Helper()
	for {
		var msg struct {
			Type    string               `json:"type"`
			Payload domain.MatchSnapshot `json:"payload"`
		}
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json: %v", err)
		}
		if msg.Type == "state" && ok(msg.Payload) {
			return msg.Payload
		}
	}
}

type fixedSource struct{}

func (fixedSource) RandomQuestion(context.Context) (domain.Question, error) {
	return domain.Question{ID: "q1", Prompt: "What is the capital of France?", Options: []string{"Paris", "Berlin"}, Answer: "Paris"}, nil
}

type fixedOracle struct {
	aiCorrect bool
	err       error
}

func (o fixedOracle) Decide(context.Context, domain.Difficulty) (bool, error) {
	return o.aiCorrect, o.err
}
