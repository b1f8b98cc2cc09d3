package battle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// QuestionSource supplies one multiple-choice question per call.
type QuestionSource interface {
	RandomQuestion(ctx context.Context) (domain.Question, error)
}

// OutcomeOracle decides whether the simulated opponent answered correctly.
type OutcomeOracle interface {
	Decide(ctx context.Context, difficulty domain.Difficulty) (bool, error)
}

// Options tunes a match. Zero values fall back to the defaults noted per field.
type Options struct {
	Rules      domain.Rules      // DefaultRules when zero
	Difficulty domain.Difficulty // medium when empty
	// OracleTimeout bounds the single oracle call of a round; expiry counts as an AI miss.
	OracleTimeout time.Duration
	// ResultPause delays the next question after a resolved round.
	ResultPause time.Duration
	// OnFinish runs on the match loop once a match reaches MatchOver; it must not call back into the match.
	OnFinish func(domain.MatchRecord)
	Clock    func() time.Time
}

const defaultOracleTimeout = 5 * time.Second

// Match resolves the rounds of one battle. Every transition runs on a single
// loop goroutine fed by an event queue, so rounds never resolve concurrently.
type Match struct {
	id     string
	source QuestionSource
	oracle OutcomeOracle
	opts   Options

	events chan any
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once

	// Owned by the loop goroutine.
	phase      domain.Phase
	difficulty domain.Difficulty
	state      domain.MatchState
	question   *domain.Question
	round      int
	history    []domain.RoundOutcome
	result     domain.Result
	lastErr    error
	fetching   bool
	pending    *pendingRound
	generation uint64
	genCtx     context.Context
	genCancel  context.CancelFunc

	mu          sync.RWMutex
	latest      domain.MatchSnapshot
	subscribers map[chan domain.MatchSnapshot]struct{}
}

type pendingRound struct {
	round       int
	userCorrect bool
}

type (
	loadRequest struct {
		reply chan bool
	}
	submitRequest struct {
		option string
		reply  chan bool
	}
	resetRequest struct {
		reply chan struct{}
	}
	difficultyRequest struct {
		difficulty domain.Difficulty
		reply      chan struct{}
	}
	questionLoaded struct {
		generation uint64
		question   domain.Question
		err        error
	}
	oracleDecided struct {
		generation uint64
		aiCorrect  bool
		err        error
	}
	pauseElapsed struct {
		generation uint64
	}
)

// NewMatch builds an Idle match and starts its loop. Call Start to fetch the first question.
func NewMatch(id string, source QuestionSource, oracle OutcomeOracle, opts Options) *Match {
	if opts.Rules.MaxHealth <= 0 || opts.Rules.Damage <= 0 {
		opts.Rules = domain.DefaultRules()
	}
	if !opts.Difficulty.Valid() {
		opts.Difficulty = domain.DifficultyMedium
	}
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = defaultOracleTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	m := &Match{
		id:          id,
		source:      source,
		oracle:      oracle,
		opts:        opts,
		events:      make(chan any, 16),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		phase:       domain.PhaseIdle,
		difficulty:  opts.Difficulty,
		state:       domain.MatchState{UserHealth: opts.Rules.MaxHealth, AIHealth: opts.Rules.MaxHealth},
		subscribers: make(map[chan domain.MatchSnapshot]struct{}),
	}
	m.genCtx, m.genCancel = context.WithCancel(context.Background())
	m.latest = m.snapshot()
	go m.run()
	return m
}

// ID returns the match identifier.
func (m *Match) ID() string {
	return m.id
}

// Start requests the first question. It is LoadQuestion under the name callers expect.
func (m *Match) Start(ctx context.Context) (bool, error) {
	return m.LoadQuestion(ctx)
}

// LoadQuestion fetches a question when the match is Idle with no fetch in flight.
// It reports false without error in any other phase.
func (m *Match) LoadQuestion(ctx context.Context) (bool, error) {
	reply := make(chan bool, 1)
	if err := m.send(ctx, loadRequest{reply: reply}); err != nil {
		return false, err
	}
	return m.awaitBool(ctx, reply)
}

// SubmitAnswer scores the player's choice and starts the oracle round-trip.
// Outside QuestionReady it is a no-op and reports false without error.
func (m *Match) SubmitAnswer(ctx context.Context, option string) (bool, error) {
	reply := make(chan bool, 1)
	if err := m.send(ctx, submitRequest{option: option, reply: reply}); err != nil {
		return false, err
	}
	return m.awaitBool(ctx, reply)
}

// ResetMatch restores full health, clears history and fetches a fresh question.
// Responses still in flight for the previous match are discarded.
func (m *Match) ResetMatch(ctx context.Context) error {
	reply := make(chan struct{}, 1)
	if err := m.send(ctx, resetRequest{reply: reply}); err != nil {
		return err
	}
	return m.await(ctx, reply)
}

// SetDifficulty changes the difficulty used by subsequent oracle calls.
func (m *Match) SetDifficulty(ctx context.Context, difficulty domain.Difficulty) error {
	if !difficulty.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, difficulty)
	}
	reply := make(chan struct{}, 1)
	if err := m.send(ctx, difficultyRequest{difficulty: difficulty, reply: reply}); err != nil {
		return err
	}
	return m.await(ctx, reply)
}

// Snapshot returns the state published by the most recent transition.
func (m *Match) Snapshot() domain.MatchSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Subscribe returns a channel of snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (m *Match) Subscribe() (<-chan domain.MatchSnapshot, func()) {
	ch := make(chan domain.MatchSnapshot, 8)

	m.mu.Lock()
	select {
	case <-m.done:
		ch <- m.latest
		m.mu.Unlock()
		close(ch)
		return ch, func() {}
	default:
	}
	m.subscribers[ch] = struct{}{}
	ch <- m.latest
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subscribers[ch]; ok {
			delete(m.subscribers, ch)
			close(ch)
		}
		m.mu.Unlock()
	}
	return ch, cancel
}

// Close stops the match loop and aborts in-flight calls.
func (m *Match) Close() {
	m.once.Do(func() {
		close(m.quit)
	})
	<-m.done
}

// Done is closed once the match loop has stopped.
func (m *Match) Done() <-chan struct{} {
	return m.done
}

func (m *Match) send(ctx context.Context, ev any) error {
	select {
	case m.events <- ev:
		return nil
	case <-m.done:
		return domain.ErrMatchClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Match) awaitBool(ctx context.Context, reply <-chan bool) (bool, error) {
	select {
	case ok := <-reply:
		return ok, nil
	case <-m.done:
		return false, domain.ErrMatchClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func (m *Match) await(ctx context.Context, reply <-chan struct{}) error {
	select {
	case <-reply:
		return nil
	case <-m.done:
		return domain.ErrMatchClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers an internal event unless the loop has stopped.
func (m *Match) post(ev any) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

func (m *Match) run() {
	defer m.shutdown()
	for {
		select {
		case <-m.quit:
			return
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

func (m *Match) shutdown() {
	m.genCancel()
	m.mu.Lock()
	close(m.done)
	for ch := range m.subscribers {
		delete(m.subscribers, ch)
		close(ch)
	}
	m.mu.Unlock()
}

func (m *Match) handle(ev any) {
	switch ev := ev.(type) {
	case loadRequest:
		ev.reply <- m.onLoad()
	case submitRequest:
		ev.reply <- m.onSubmit(ev.option)
	case resetRequest:
		m.onReset()
		ev.reply <- struct{}{}
	case difficultyRequest:
		m.difficulty = ev.difficulty
		m.publish()
		ev.reply <- struct{}{}
	case questionLoaded:
		m.onQuestion(ev)
	case oracleDecided:
		m.onOracle(ev)
	case pauseElapsed:
		if ev.generation == m.generation && m.phase == domain.PhaseRoundResolved {
			m.fetchQuestion()
		}
	}
}

func (m *Match) onLoad() bool {
	if m.phase != domain.PhaseIdle || m.fetching {
		return false
	}
	m.fetchQuestion()
	return true
}

func (m *Match) onSubmit(option string) bool {
	if m.phase != domain.PhaseQuestionReady || m.question == nil {
		return false
	}

	userCorrect := option == m.question.Answer
	if userCorrect {
		m.state.AIHealth = m.damage(m.state.AIHealth)
	}
	m.pending = &pendingRound{round: m.round + 1, userCorrect: userCorrect}
	m.phase = domain.PhaseResolving
	m.state.Locked = true
	m.publish()

	gen, ctx, difficulty := m.generation, m.genCtx, m.difficulty
	go func() {
		callCtx, cancel := context.WithTimeout(ctx, m.opts.OracleTimeout)
		defer cancel()
		aiCorrect, err := m.oracle.Decide(callCtx, difficulty)
		m.post(oracleDecided{generation: gen, aiCorrect: aiCorrect, err: err})
	}()
	return true
}

func (m *Match) onOracle(ev oracleDecided) {
	if ev.generation != m.generation || m.phase != domain.PhaseResolving || m.pending == nil {
		log.Printf("match %s: discarding stale oracle response", m.id)
		return
	}

	aiCorrect := ev.aiCorrect
	if ev.err != nil {
		log.Printf("match %s: oracle decide failed, counting as a miss: %v", m.id, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, ev.err))
		aiCorrect = false
	}
	if aiCorrect {
		m.state.UserHealth = m.damage(m.state.UserHealth)
	}

	outcome := domain.RoundOutcome{Round: m.pending.round, UserCorrect: m.pending.userCorrect, AICorrect: aiCorrect}
	m.pending = nil
	m.round = outcome.Round
	m.history = append(m.history, outcome)
	m.phase = domain.PhaseRoundResolved
	m.publish()

	if result := domain.ResultFor(m.state.UserHealth, m.state.AIHealth); result != domain.ResultNone {
		m.phase = domain.PhaseMatchOver
		m.result = result
		m.publish()
		if m.opts.OnFinish != nil {
			m.opts.OnFinish(m.record())
		}
		return
	}

	if m.opts.ResultPause <= 0 {
		m.fetchQuestion()
		return
	}
	gen := m.generation
	time.AfterFunc(m.opts.ResultPause, func() {
		m.post(pauseElapsed{generation: gen})
	})
}

func (m *Match) onReset() {
	m.genCancel()
	m.generation++
	m.genCtx, m.genCancel = context.WithCancel(context.Background())

	m.phase = domain.PhaseIdle
	m.state = domain.MatchState{UserHealth: m.opts.Rules.MaxHealth, AIHealth: m.opts.Rules.MaxHealth}
	m.question = nil
	m.round = 0
	m.history = nil
	m.result = domain.ResultNone
	m.lastErr = nil
	m.fetching = false
	m.pending = nil
	m.fetchQuestion()
}

func (m *Match) fetchQuestion() {
	m.fetching = true
	m.state.Locked = true
	m.publish()

	gen, ctx := m.generation, m.genCtx
	go func() {
		q, err := m.source.RandomQuestion(ctx)
		if err == nil {
			err = q.Validate()
		}
		m.post(questionLoaded{generation: gen, question: q, err: err})
	}()
}

func (m *Match) onQuestion(ev questionLoaded) {
	if ev.generation != m.generation || !m.fetching {
		return
	}
	m.fetching = false

	if ev.err != nil {
		log.Printf("match %s: load question: %v", m.id, ev.err)
		m.phase = domain.PhaseIdle
		m.question = nil
		m.state.Locked = false
		m.lastErr = fmt.Errorf("%w: %v", domain.ErrQuestionFetchFailed, ev.err)
		m.publish()
		return
	}

	q := ev.question.Clone()
	m.question = &q
	m.phase = domain.PhaseQuestionReady
	m.state.Locked = false
	m.lastErr = nil
	m.publish()
}

func (m *Match) damage(health int) int {
	health -= m.opts.Rules.Damage
	if health < 0 {
		return 0
	}
	return health
}

func (m *Match) record() domain.MatchRecord {
	return domain.MatchRecord{
		MatchID:    m.id,
		Difficulty: m.difficulty,
		Rounds:     m.round,
		UserHealth: m.state.UserHealth,
		AIHealth:   m.state.AIHealth,
		Result:     m.result,
		FinishedAt: m.opts.Clock(),
	}
}

func (m *Match) snapshot() domain.MatchSnapshot {
	snap := domain.MatchSnapshot{
		MatchID:    m.id,
		Phase:      m.phase,
		Difficulty: m.difficulty,
		State:      m.state,
		Rules:      m.opts.Rules,
		Round:      m.round,
		History:    append([]domain.RoundOutcome(nil), m.history...),
		Result:     m.result,
		UpdatedAt:  m.opts.Clock(),
	}
	if m.question != nil {
		pub := m.question.Public()
		snap.Question = &pub
	}
	if n := len(m.history); n > 0 {
		last := m.history[n-1]
		snap.LastOutcome = &last
	}
	if m.lastErr != nil {
		snap.LastError = m.lastErr.Error()
	}
	return snap
}

// publish stores the current snapshot and fans it out, dropping stale updates for slow subscribers.
func (m *Match) publish() {
	snap := m.snapshot()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = snap
	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
