// internal/game/session.go
//
// Game session for a single Bull's Eye player.
// Responsibilities:
//   - Track round number, current target, round score and game total.
//   - Start new games and new rounds; a round's target comes from a TargetSource.
//   - Score guesses: 100 minus the distance to the target.
//
// Notes:
//   - Target fetches run on their own goroutine; the completion (state write +
//     onReady) is posted through the session's Dispatcher.
//   - Every StartNewRound call produces exactly one RoundResult. Fetch failures
//     are delivered in RoundResult.Err unless the FallbackPolicy substitutes
//     StartValue.
//   - Fields are mutex-guarded so HTTP handlers can share a session by ID, but
//     only one fetch may be in flight at a time.
package game

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// TargetSource supplies the secret number for a new round.
type TargetSource interface {
	Fetch(ctx context.Context) (int, error)
}

// SourceFunc adapts a function to TargetSource.
type SourceFunc func(ctx context.Context) (int, error)

func (f SourceFunc) Fetch(ctx context.Context) (int, error) { return f(ctx) }

// StaticSource always yields v.
func StaticSource(v int) TargetSource {
	return SourceFunc(func(context.Context) (int, error) { return v, nil })
}

// Option configures a Session at construction.
type Option func(*Session)

// WithDispatcher sets where round completions run. Defaults to Inline.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Session) {
		if d != nil {
			s.dispatcher = d
		}
	}
}

// WithFallback sets the fallback policy. Defaults to FallbackOnEmpty.
func WithFallback(p FallbackPolicy) Option {
	return func(s *Session) { s.fallback = p }
}

// WithID overrides the generated session ID.
func WithID(id string) Option {
	return func(s *Session) { s.ID = id }
}

// Session holds the round and score state of one game.
type Session struct {
	ID string

	source     TargetSource
	dispatcher Dispatcher
	fallback   FallbackPolicy

	mu         sync.Mutex
	round      int
	target     int
	scoreRound int
	scoreTotal int
	guesses    int
	pending    bool
	ready      bool
	gen        uint64 // bumped by every new game or round; stale completions are ignored
}

// New creates a session and starts its first game. The first round uses
// StartValue as its target and accepts guesses immediately.
func New(src TargetSource, opts ...Option) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		source:     src,
		dispatcher: Inline,
		fallback:   FallbackOnEmpty,
		target:     StartValue,
	}
	for _, o := range opts {
		o(s)
	}
	s.StartNewGame()
	return s
}

// StartNewGame resets the round to 1 and the totals to 0. Any fetch still in
// flight is abandoned; its completion reports ErrRoundSuperseded.
func (s *Session) StartNewGame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// FinishGame hands the finished game to record and, if record succeeds,
// starts a new game. The session stays locked throughout, so concurrent
// finishes record a game once and no guess slips in between. record must not
// call back into the session.
func (s *Session) FinishGame(record func(State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guesses == 0 {
		return ErrNothingToFinish
	}
	if err := record(s.snapshotLocked()); err != nil {
		return err
	}
	s.resetLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.round = 1
	s.scoreTotal = 0
	s.scoreRound = 0
	s.guesses = 0
	s.pending = false
	s.ready = true
	s.gen++
}

// StartNewRound advances the round, clears the round score and fetches a new
// target in the background. onReady (may be nil) runs on the session's
// Dispatcher once the fetch settles.
func (s *Session) StartNewRound(ctx context.Context, onReady func(RoundResult)) {
	s.mu.Lock()
	if s.pending {
		res := RoundResult{Round: s.round, Target: s.target, Err: ErrFetchInFlight}
		s.mu.Unlock()
		s.deliver(res, onReady)
		return
	}
	s.round++
	s.scoreRound = 0
	s.beginFetchLocked()
	gen, round := s.gen, s.round
	s.mu.Unlock()

	go s.fetch(ctx, gen, round, onReady)
}

// RetryRound re-requests the target of the current round after a failed fetch
// without advancing the round number.
func (s *Session) RetryRound(ctx context.Context, onReady func(RoundResult)) {
	s.mu.Lock()
	var err error
	switch {
	case s.pending:
		err = ErrFetchInFlight
	case s.ready:
		err = ErrNothingToRetry
	}
	if err != nil {
		res := RoundResult{Round: s.round, Target: s.target, Err: err}
		s.mu.Unlock()
		s.deliver(res, onReady)
		return
	}
	s.beginFetchLocked()
	gen, round := s.gen, s.round
	s.mu.Unlock()

	go s.fetch(ctx, gen, round, onReady)
}

// NextRound is the blocking form of StartNewRound. It needs a dispatcher that
// runs independently of the caller (Inline does).
func (s *Session) NextRound(ctx context.Context) (RoundResult, error) {
	return s.await(ctx, s.StartNewRound)
}

// Retry is the blocking form of RetryRound.
func (s *Session) Retry(ctx context.Context) (RoundResult, error) {
	return s.await(ctx, s.RetryRound)
}

func (s *Session) await(ctx context.Context, start func(context.Context, func(RoundResult))) (RoundResult, error) {
	done := make(chan RoundResult, 1)
	start(ctx, func(r RoundResult) { done <- r })
	select {
	case r := <-done:
		return r, r.Err
	case <-ctx.Done():
		return RoundResult{}, ctx.Err()
	}
}

// Check scores a guess against the current target and returns the distance.
// Out-of-range guesses and guesses before the target is ready leave the
// session untouched.
func (s *Session) Check(guess int) (int, error) {
	if guess < MinTarget || guess > MaxTarget {
		return 0, fmt.Errorf("%w: %d not in [%d,%d]", ErrGuessOutOfRange, guess, MinTarget, MaxTarget)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0, ErrRoundPending
	}
	diff := abs(s.target - guess)
	s.scoreRound = MaxScore - diff
	s.scoreTotal += s.scoreRound
	s.guesses++
	return diff, nil
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() State {
	return State{
		ID:         s.ID,
		Round:      s.round,
		Target:     s.target,
		ScoreRound: s.scoreRound,
		ScoreTotal: s.scoreTotal,
		Guesses:    s.guesses,
		Pending:    s.pending,
		Ready:      s.ready,
	}
}

func (s *Session) deliver(res RoundResult, onReady func(RoundResult)) {
	s.dispatcher.Dispatch(func() {
		if onReady != nil {
			onReady(res)
		}
	})
}

func (s *Session) beginFetchLocked() {
	s.pending = true
	s.ready = false
	s.gen++
}

func (s *Session) fetch(ctx context.Context, gen uint64, round int, onReady func(RoundResult)) {
	v, err := s.source.Fetch(ctx)
	s.dispatcher.Dispatch(func() {
		res := s.complete(gen, round, v, err)
		if onReady != nil {
			onReady(res)
		}
	})
}

// complete applies a settled fetch to the session, unless a newer game or
// round has started since it was issued.
func (s *Session) complete(gen uint64, round, v int, err error) RoundResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := RoundResult{Round: round}
	if gen != s.gen {
		res.Target = s.target
		res.Err = ErrRoundSuperseded
		return res
	}
	s.pending = false

	if err == nil && (v < MinTarget || v > MaxTarget) {
		err = fmt.Errorf("target %d not in [%d,%d]", v, MinTarget, MaxTarget)
	}
	if err != nil && s.fallback.covers(err) {
		log.Info().Err(err).Str("sessionId", s.ID).Int("round", round).Msg("target fallback applied")
		res.Fallback = true
		res.Cause = err
		v, err = StartValue, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("sessionId", s.ID).Int("round", round).Msg("target fetch failed")
		res.Target = s.target
		res.Err = fmt.Errorf("round %d: %w", round, err)
		return res
	}

	s.target = v
	s.ready = true
	res.Target = v
	return res
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
