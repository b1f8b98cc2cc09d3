package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/arena"
	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	"quiz-battle-service/internal/infra/memory"
)

func TestCreateMatchAndPlay(t *testing.T) {
	ctx := context.Background()
	service := newTestService(arena.NewOracle(0, 0))

	snap, err := service.CreateMatch(ctx, domain.DifficultyEasy)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if snap.MatchID == "" || snap.Difficulty != domain.DifficultyEasy {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	defer service.End(snap.MatchID)

	updates, cancel, err := service.Subscribe(snap.MatchID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	ready := waitFor(t, updates, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseQuestionReady })
	accepted, err := service.Submit(ctx, snap.MatchID, ready.Question.Options[0])
	if err != nil || !accepted {
		t.Fatalf("submit: accepted=%v err=%v", accepted, err)
	}
	resolved := waitFor(t, updates, func(s domain.MatchSnapshot) bool { return s.Round == 1 && !s.State.Locked })
	if len(resolved.History) != 1 {
		t.Fatalf("expected one outcome, got %+v", resolved.History)
	}
}

func TestUnknownMatch(t *testing.T) {
	service := newTestService(arena.NewOracle(0, 0))
	if _, err := service.Submit(context.Background(), "nope", "Paris"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected match not found, got %v", err)
	}
	if _, err := service.Snapshot("nope"); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected match not found, got %v", err)
	}
}

func TestCreateMatchRejectsInvalidDifficulty(t *testing.T) {
	service := newTestService(arena.NewOracle(0, 0))
	_, err := service.CreateMatch(context.Background(), "nightmare")
	if !errors.Is(err, domain.ErrInvalidDifficulty) {
		t.Fatalf("expected invalid difficulty, got %v", err)
	}
	if !strings.Contains(err.Error(), `"nightmare"`) {
		t.Fatalf("expected rejected value in error, got %v", err)
	}
}

func TestLiveCountsRunningMatches(t *testing.T) {
	ctx := context.Background()
	service := newTestService(arena.NewOracle(0, 0))
	first, err := service.CreateMatch(ctx, domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := service.CreateMatch(ctx, domain.DifficultyHard)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer service.End(second.MatchID)

	if n, err := service.Live(ctx); err != nil || n != 2 {
		t.Fatalf("expected 2 live matches, got %d (%v)", n, err)
	}
	service.End(first.MatchID)
	if n, err := service.Live(ctx); err != nil || n != 1 {
		t.Fatalf("expected 1 live match, got %d (%v)", n, err)
	}
}

func TestEndRemovesMatch(t *testing.T) {
	ctx := context.Background()
	service := newTestService(arena.NewOracle(0, 0))
	snap, err := service.CreateMatch(ctx, domain.DifficultyMedium)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	service.End(snap.MatchID)
	if _, err := service.Snapshot(snap.MatchID); !errors.Is(err, domain.ErrMatchNotFound) {
		t.Fatalf("expected match removed, got %v", err)
	}
}

func TestFinishedMatchIsArchived(t *testing.T) {
	ctx := context.Background()
	service := newTestService(alwaysHit{})
	snap, err := service.CreateMatch(ctx, domain.DifficultyInsane)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer service.End(snap.MatchID)
	updates, cancel, _ := service.Subscribe(snap.MatchID)
	defer cancel()

	for round := 1; round <= 4; round++ {
		waitFor(t, updates, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseQuestionReady })
		if _, err := service.Submit(ctx, snap.MatchID, "definitely wrong"); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	waitFor(t, updates, func(s domain.MatchSnapshot) bool { return s.Phase == domain.PhaseMatchOver })

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		records, err := service.Recent(ctx, 5)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(records) == 1 {
			if records[0].Result != domain.ResultLost || records[0].Difficulty != domain.DifficultyInsane {
				t.Fatalf("unexpected record %+v", records[0])
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected archived result")
}

type alwaysHit struct{}

func (alwaysHit) Decide(context.Context, domain.Difficulty) (bool, error) { return true, nil }

func newTestService(oracle battle.OutcomeOracle) *app.BattleService {
	questions := memory.NewQuestionRepository(memory.NewStaticQuestionLoader(arena.DefaultQuestions()), 5*time.Minute)
	return app.NewBattleService(memory.NewMatchStore(), arena.NewQuestionBank(questions), oracle, battle.Options{})
}

func waitFor(t *testing.T, ch <-chan domain.MatchSnapshot, ok func(domain.MatchSnapshot) bool) domain.MatchSnapshot {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatalf("timed out waiting for snapshot")
		}
	}
}
