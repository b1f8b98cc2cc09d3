package domain

import (
	"fmt"
	"strings"
	"time"
)

// Question is a multiple-choice question as served by the question source.
type Question struct {
	ID        string   `json:"id"`
	Prompt    string   `json:"question"`
	Options   []string `json:"options"`
	Answer    string   `json:"answer"`
	CreatedBy *string  `json:"created_by,omitempty"`
}

// Validate checks that options are non-empty and distinct and that the answer is one of them.
func (q Question) Validate() error {
	if len(q.Options) == 0 {
		return fmt.Errorf("%w: question %q has no options", ErrMalformedQuestion, q.ID)
	}
	seen := make(map[string]struct{}, len(q.Options))
	found := false
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("%w: question %q repeats option %q", ErrMalformedQuestion, q.ID, opt)
		}
		seen[opt] = struct{}{}
		if opt == q.Answer {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: answer of question %q is not among its options", ErrMalformedQuestion, q.ID)
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a pooled question.
func (q Question) Clone() Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	if q.CreatedBy != nil {
		by := *q.CreatedBy
		out.CreatedBy = &by
	}
	return out
}

// Difficulty selects how often the simulated opponent answers correctly.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyInsane Difficulty = "insane"
)

// Difficulties lists every valid difficulty in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyInsane}

// ParseDifficulty accepts a difficulty label case-insensitively.
func ParseDifficulty(raw string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(raw)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
	}
	return d, nil
}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyInsane:
		return true
	}
	return false
}

// Rules are the fixed battle tuning values.
type Rules struct {
	MaxHealth int `json:"maxHealth"`
	Damage    int `json:"damage"`
}

// DefaultRules takes four hits to defeat either side.
func DefaultRules() Rules {
	return Rules{MaxHealth: 100, Damage: 25}
}

// Phase is the round status of a match.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseQuestionReady
	PhaseResolving
	PhaseRoundResolved
	PhaseMatchOver
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseQuestionReady:
		return "question_ready"
	case PhaseResolving:
		return "resolving"
	case PhaseRoundResolved:
		return "round_resolved"
	case PhaseMatchOver:
		return "match_over"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(text []byte) error {
	for candidate := PhaseIdle; candidate <= PhaseMatchOver; candidate++ {
		if candidate.String() == string(text) {
			*p = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", text)
}

// Result is the final verdict of a match.
type Result string

const (
	ResultNone Result = ""
	ResultWon  Result = "You Won"
	ResultLost Result = "You Lost"
	ResultDraw Result = "Draw"
)

// ResultFor derives the verdict from both health totals.
func ResultFor(userHealth, aiHealth int) Result {
	switch {
	case userHealth <= 0 && aiHealth <= 0:
		return ResultDraw
	case userHealth <= 0:
		return ResultLost
	case aiHealth <= 0:
		return ResultWon
	}
	return ResultNone
}

// RoundOutcome records how one round resolved.
type RoundOutcome struct {
	Round       int  `json:"round"`
	UserCorrect bool `json:"userCorrect"`
	AICorrect   bool `json:"aiCorrect"`
}

// MatchState holds the two health totals and the input lock.
type MatchState struct {
	UserHealth int  `json:"userHealth"`
	AIHealth   int  `json:"aiHealth"`
	Locked     bool `json:"locked"`
}

// PublicQuestion is a question with its answer withheld, as shown to players.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"question"`
	Options []string `json:"options"`
}

// Public strips the answer.
func (q Question) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
}

// MatchSnapshot is a read-only view of a match at one instant.
type MatchSnapshot struct {
	MatchID     string          `json:"matchId"`
	Phase       Phase           `json:"phase"`
	Difficulty  Difficulty      `json:"difficulty"`
	State       MatchState      `json:"state"`
	Rules       Rules           `json:"rules"`
	Question    *PublicQuestion `json:"question,omitempty"`
	Round       int             `json:"round"`
	LastOutcome *RoundOutcome   `json:"lastOutcome,omitempty"`
	History     []RoundOutcome  `json:"history"`
	Result      Result          `json:"result,omitempty"`
	LastError   string          `json:"lastError,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MatchRecord is the archived summary of a finished match.
type MatchRecord struct {
	MatchID    string     `json:"matchId"`
	Difficulty Difficulty `json:"difficulty"`
	Rounds     int        `json:"rounds"`
	UserHealth int        `json:"userHealth"`
	AIHealth   int        `json:"aiHealth"`
	Result     Result     `json:"result"`
	FinishedAt time.Time  `json:"finishedAt"`
}
