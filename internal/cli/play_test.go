package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/brain"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/domain"
	transport "quiz-battle-service/internal/transport/http"
)

func TestPlayUntilWin(t *testing.T) {
	server := httptest.NewServer(transport.NewMux(transport.NewRoutesHandler(capitalSource{}, missingOracle{}), nil))
	defer server.Close()

	var out bytes.Buffer
	in := strings.NewReader("1\n1\n1\n1\nn\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runPlay(ctx, brain.NewClient(server.URL), battle.Options{}, in, &out); err != nil {
		t.Fatalf("play: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "You Won! Play again?") {
		t.Fatalf("expected win banner, got:\n%s", got)
	}
	if !strings.Contains(got, "A.R.C-Angel HP 0/100") {
		t.Fatalf("expected opponent knocked out, got:\n%s", got)
	}
}

func TestPlayRepromptsAfterInvalidInput(t *testing.T) {
	server := httptest.NewServer(transport.NewMux(transport.NewRoutesHandler(capitalSource{}, missingOracle{}), nil))
	defer server.Close()

	var out bytes.Buffer
	in := strings.NewReader("x\n7\nd nightmare\n1\n1\n1\n1\nn\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := runPlay(ctx, brain.NewClient(server.URL), battle.Options{}, in, &out); err != nil {
		t.Fatalf("play: %v", err)
	}
	got := out.String()
	if n := strings.Count(got, "pick an option number"); n != 2 {
		t.Fatalf("expected two reprompts, got %d in:\n%s", n, got)
	}
	if !strings.Contains(got, "nightmare") {
		t.Fatalf("expected difficulty error, got:\n%s", got)
	}
	if !strings.Contains(got, "You Won! Play again?") {
		t.Fatalf("expected win banner, got:\n%s", got)
	}
}

func TestPlayRequiresReachableBackend(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close()

	err := runPlay(context.Background(), brain.NewClient(server.URL), battle.Options{}, strings.NewReader(""), &bytes.Buffer{})
	if err == nil {
		t.Fatalf("expected error for unreachable backend")
	}
}

func TestBattleOptionsFromConfig(t *testing.T) {
	var cfg config.Config
	cfg.Battle.Damage = 50
	cfg.Battle.ResultPause = "0s"

	opts := battleOptions(cfg)
	if opts.Rules.MaxHealth != 100 || opts.Rules.Damage != 50 {
		t.Fatalf("unexpected rules %+v", opts.Rules)
	}
	if opts.ResultPause != 0 || opts.OracleTimeout != 3*time.Second {
		t.Fatalf("unexpected timings pause=%s timeout=%s", opts.ResultPause, opts.OracleTimeout)
	}
}

type capitalSource struct{}

func (capitalSource) RandomQuestion(context.Context) (domain.Question, error) {
	return domain.Question{ID: "q1", Prompt: "What is the capital of France?", Options: []string{"Paris", "Berlin"}, Answer: "Paris"}, nil
}

type missingOracle struct{}

func (missingOracle) Decide(context.Context, domain.Difficulty) (bool, error) {
	return false, nil
}
