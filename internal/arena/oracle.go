package arena

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// chances is the probability that the opponent answers correctly per difficulty.
var chances = map[domain.Difficulty]float64{
	domain.DifficultyEasy:   0.4,
	domain.DifficultyMedium: 0.6,
	domain.DifficultyHard:   0.8,
	domain.DifficultyInsane: 0.95,
}

// Chance returns the hit probability for a difficulty; unknown labels use medium.
func Chance(d domain.Difficulty) float64 {
	if p, ok := chances[d]; ok {
		return p
	}
	return chances[domain.DifficultyMedium]
}

// Oracle decides opponent answers at random, after a short lifelike delay.
type Oracle struct {
	delayMin time.Duration
	delayMax time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewOracle(delayMin, delayMax time.Duration) *Oracle {
	return NewOracleWithSource(delayMin, delayMax, rand.NewSource(time.Now().UnixNano()))
}

// NewOracleWithSource is useful for deterministic tests.
func NewOracleWithSource(delayMin, delayMax time.Duration, src rand.Source) *Oracle {
	if delayMax < delayMin {
		delayMax = delayMin
	}
	return &Oracle{delayMin: delayMin, delayMax: delayMax, rnd: rand.New(src)}
}

// Decide waits for the configured delay and then draws the outcome.
// It returns the context error if ctx ends first.
func (o *Oracle) Decide(ctx context.Context, difficulty domain.Difficulty) (bool, error) {
	o.mu.Lock()
	delay := o.delayMin
	if span := int64(o.delayMax - o.delayMin); span > 0 {
		delay += time.Duration(o.rnd.Int63n(span + 1))
	}
	roll := o.rnd.Float64()
	o.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return false, err
	}
	return roll < Chance(difficulty), nil
}
