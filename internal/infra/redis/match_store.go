package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	resultsKey = "battle:results"
	maxResults = 100
)

// MatchStore is a Redis-aware implementation of app.MatchRepository.
// Notes:
//   - Live matches stay in a local map; each owns an event loop that cannot be shared.
//   - Redis holds a liveness marker per match and the list of finished results,
//     so Live and Recent see every instance and results survive restarts.
type MatchStore struct {
	client  *redis.Client
	ttl     time.Duration
	mu      sync.RWMutex
	matches map[string]*battle.Match
}

func NewMatchStore(client *redis.Client, ttl time.Duration) *MatchStore {
	return &MatchStore{
		client:  client,
		ttl:     ttl,
		matches: make(map[string]*battle.Match),
	}
}

func (s *MatchStore) Put(match *battle.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[match.ID()] = match
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(match.ID()), "1", s.ttl).Err()
}

func (s *MatchStore) Get(matchID string) (*battle.Match, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	match, ok := s.matches[matchID]
	return match, ok
}

func (s *MatchStore) Delete(matchID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.matches, matchID)
	_ = s.client.Del(context.Background(), s.key(matchID)).Err()
}

func (s *MatchStore) Archive(ctx context.Context, record domain.MatchRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, resultsKey, data)
	pipe.LTrim(ctx, resultsKey, 0, maxResults-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *MatchStore) Recent(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	raw, err := s.client.LRange(ctx, resultsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	records := make([]domain.MatchRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.MatchRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Live counts liveness markers across all instances sharing the Redis.
func (s *MatchStore) Live(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, "battle:match:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *MatchStore) key(matchID string) string {
	return "battle:match:" + matchID
}
