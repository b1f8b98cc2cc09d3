package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"quiz-battle-service/internal/battle"
	"quiz-battle-service/internal/domain"
	"github.com/google/uuid"
)

// MatchRepository abstracts where live matches and finished results are kept (in-memory, Redis, etc).
type MatchRepository interface {
	Put(match *battle.Match)
	Get(matchID string) (*battle.Match, bool)
	Delete(matchID string)
	Archive(ctx context.Context, record domain.MatchRecord) error
	Recent(ctx context.Context, limit int) ([]domain.MatchRecord, error)
	Live(ctx context.Context) (int, error)
}

// BattleService contains the battle use cases.
type BattleService struct {
	matches MatchRepository
	source  battle.QuestionSource
	oracle  battle.OutcomeOracle
	opts    battle.Options
	newID   func() string
}

func NewBattleService(store MatchRepository, source battle.QuestionSource, oracle battle.OutcomeOracle, opts battle.Options) *BattleService {
	return &BattleService{
		matches: store,
		source:  source,
		oracle:  oracle,
		opts:    opts,
		newID:   func() string { return uuid.NewString() },
	}
}

// CreateMatch starts a new match at full health and requests its first question.
func (s *BattleService) CreateMatch(ctx context.Context, difficulty domain.Difficulty) (domain.MatchSnapshot, error) {
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}
	if !difficulty.Valid() {
		return domain.MatchSnapshot{}, fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, difficulty)
	}

	opts := s.opts
	opts.Difficulty = difficulty
	opts.OnFinish = s.archive

	match := battle.NewMatch(s.newID(), s.source, s.oracle, opts)
	s.matches.Put(match)
	if _, err := match.Start(ctx); err != nil {
		s.End(match.ID())
		return domain.MatchSnapshot{}, err
	}
	return match.Snapshot(), nil
}

// Submit forwards the player's choice; accepted is false when the match was not awaiting an answer.
func (s *BattleService) Submit(ctx context.Context, matchID, option string) (bool, error) {
	match, err := s.get(matchID)
	if err != nil {
		return false, err
	}
	return match.SubmitAnswer(ctx, option)
}

// LoadQuestion retries a question fetch for an Idle match.
func (s *BattleService) LoadQuestion(ctx context.Context, matchID string) (bool, error) {
	match, err := s.get(matchID)
	if err != nil {
		return false, err
	}
	return match.LoadQuestion(ctx)
}

func (s *BattleService) Reset(ctx context.Context, matchID string) error {
	match, err := s.get(matchID)
	if err != nil {
		return err
	}
	return match.ResetMatch(ctx)
}

func (s *BattleService) SetDifficulty(ctx context.Context, matchID string, difficulty domain.Difficulty) error {
	match, err := s.get(matchID)
	if err != nil {
		return err
	}
	return match.SetDifficulty(ctx, difficulty)
}

func (s *BattleService) Snapshot(matchID string) (domain.MatchSnapshot, error) {
	match, err := s.get(matchID)
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	return match.Snapshot(), nil
}

// Subscribe returns a channel that receives snapshots of a match.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *BattleService) Subscribe(matchID string) (<-chan domain.MatchSnapshot, func(), error) {
	match, err := s.get(matchID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := match.Subscribe()
	return ch, cancel, nil
}

// End stops a match and forgets it.
func (s *BattleService) End(matchID string) {
	match, ok := s.matches.Get(matchID)
	if !ok {
		return
	}
	s.matches.Delete(matchID)
	match.Close()
}

// Recent lists the latest finished matches, newest first.
func (s *BattleService) Recent(ctx context.Context, limit int) ([]domain.MatchRecord, error) {
	return s.matches.Recent(ctx, limit)
}

// Live counts matches still in progress.
func (s *BattleService) Live(ctx context.Context) (int, error) {
	return s.matches.Live(ctx)
}

func (s *BattleService) get(matchID string) (*battle.Match, error) {
	match, ok := s.matches.Get(matchID)
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	return match, nil
}

// archive is called on the match loop and must not block it.
func (s *BattleService) archive(record domain.MatchRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.matches.Archive(ctx, record); err != nil {
			log.Printf("archive match %s: %v", record.MatchID, err)
		}
	}()
}
