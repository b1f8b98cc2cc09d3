package arena

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// PoolRepository returns the current question pool (from cache/backing store).
type PoolRepository interface {
	GetPool(ctx context.Context) ([]domain.Question, error)
}

// QuestionBank serves uniformly random questions from a pool.
type QuestionBank struct {
	pool PoolRepository

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewQuestionBank(pool PoolRepository) *QuestionBank {
	return &QuestionBank{pool: pool, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// RandomQuestion returns a copy of one question picked from the pool.
// A pool holding any malformed question is rejected as a whole.
func (b *QuestionBank) RandomQuestion(ctx context.Context) (domain.Question, error) {
	pool, err := b.pool.GetPool(ctx)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question pool: %w", err)
	}
	if len(pool) == 0 {
		return domain.Question{}, domain.ErrNoQuestions
	}
	for _, q := range pool {
		if err := q.Validate(); err != nil {
			return domain.Question{}, fmt.Errorf("question pool: %w", err)
		}
	}

	b.mu.Lock()
	q := pool[b.rnd.Intn(len(pool))]
	b.mu.Unlock()
	return q.Clone(), nil
}

// DefaultQuestions is the built-in pool used when no database is configured.
func DefaultQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:      "q1",
			Prompt:  "What is the capital of France?",
			Options: []string{"Paris", "Berlin", "Madrid", "Rome"},
			Answer:  "Paris",
		},
		{
			ID:      "q2",
			Prompt:  "Which planet is known as the Red Planet?",
			Options: []string{"Earth", "Mars", "Jupiter", "Venus"},
			Answer:  "Mars",
		},
		{
			ID:      "q3",
			Prompt:  "Who wrote 'To Kill a Mockingbird'?",
			Options: []string{"Harper Lee", "Mark Twain", "Ernest Hemingway", "F. Scott Fitzgerald"},
			Answer:  "Harper Lee",
		},
		{
			ID:      "q4",
			Prompt:  "2 + 2 × 3 = ?",
			Options: []string{"8", "10", "12", "6"},
			Answer:  "8",
		},
	}
}
