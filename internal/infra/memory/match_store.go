package memory

import (
	"context"
	"sync"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
)

const maxRecords = 100

// MatchStore is an in-memory implementation of app.MatchRepository.
type MatchStore struct {
	mu      sync.RWMutex
	matches map[string]*battle.Match
	records []domain.MatchRecord // newest first
}

func NewMatchStore() *MatchStore {
	return &MatchStore{
		matches: make(map[string]*battle.Match),
	}
}

func (s *MatchStore) Put(match *battle.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches[match.ID()] = match
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
}

func (s *MatchStore) Archive(_ context.Context, record domain.MatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append([]domain.MatchRecord{record}, s.records...)
	if len(s.records) > maxRecords {
		s.records = s.records[:maxRecords]
	}
	return nil
}

func (s *MatchStore) Recent(_ context.Context, limit int) ([]domain.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}
	return append([]domain.MatchRecord(nil), s.records[:limit]...), nil
}

func (s *MatchStore) Live(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches), nil
}
