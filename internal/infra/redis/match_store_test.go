package redis

import (
	"context"
	"testing"
	"time"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMatchStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewMatchStore(client, time.Minute)

	match := battle.NewMatch("m1", nil, nil, battle.Options{})
	defer match.Close()

	store.Put(match)
	if !mr.Exists("battle:match:m1") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get("m1"); !ok {
		t.Fatalf("expected match present")
	}

	// a marker left by another instance counts too
	mr.Set("battle:match:other", "1")
	if n, err := store.Live(context.Background()); err != nil || n != 2 {
		t.Fatalf("expected 2 live matches, got %d (%v)", n, err)
	}

	store.Delete("m1")
	if mr.Exists("battle:match:m1") {
		t.Fatalf("expected redis key to be removed")
	}
	if n, err := store.Live(context.Background()); err != nil || n != 1 {
		t.Fatalf("expected 1 live match, got %d (%v)", n, err)
	}
}

func TestMatchStoreArchivesResults(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewMatchStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	ctx := context.Background()
	for _, rec := range []domain.MatchRecord{
		{MatchID: "m1", Result: domain.ResultWon, Rounds: 4},
		{MatchID: "m2", Result: domain.ResultDraw, Rounds: 4},
	} {
		if err := store.Archive(ctx, rec); err != nil {
			t.Fatalf("archive: %v", err)
		}
	}

	records, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(records) != 2 || records[0].MatchID != "m2" || records[0].Result != domain.ResultDraw {
		t.Fatalf("unexpected records %+v", records)
	}
}
