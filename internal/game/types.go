// internal/game/types.go
//
// Core type definitions for the Bull's Eye game session.
// Defines:
//   - Scoring constants (target range, per-round maximum, start value).
//   - State: a read-only snapshot of a session for serialization.
//   - RoundResult: the outcome delivered when a round's target arrives.
//   - FallbackPolicy: when a failed target fetch substitutes StartValue.

package game

import (
	"errors"
	"fmt"
)

const (
	// StartValue is the placeholder target used before the first fetch completes
	// and whenever a fallback is applied.
	StartValue = 50

	MinTarget = 0
	MaxTarget = 100

	// MaxScore is awarded for a perfect guess; each unit of distance costs one point.
	MaxScore = 100
)

var (
	ErrGuessOutOfRange = errors.New("guess out of range")
	ErrRoundPending    = errors.New("round target not ready")
	ErrFetchInFlight   = errors.New("target fetch already in flight")
	ErrRoundSuperseded = errors.New("round superseded by a new game")
	ErrNothingToRetry  = errors.New("round has no failed fetch to retry")
	ErrNothingToFinish = errors.New("game has no guesses to record")

	// ErrEmptyTarget is wrapped by target sources that received a well-formed
	// but empty answer. FallbackOnEmpty keys off this error.
	ErrEmptyTarget = errors.New("target source returned no value")
)

// State is a point-in-time copy of a Session.
type State struct {
	ID         string `json:"id"`
	Round      int    `json:"round"`
	Target     int    `json:"target"`
	ScoreRound int    `json:"scoreRound"`
	ScoreTotal int    `json:"scoreTotal"`
	Guesses    int    `json:"guesses"` // guesses made since the last game start
	Pending    bool   `json:"pending"` // a target fetch is in flight
	Ready      bool   `json:"ready"`   // the current round accepts guesses
}

// RoundResult is delivered exactly once per StartNewRound call.
//
// When Fallback is set the target is StartValue, Err is nil and Cause holds the
// failure that triggered the substitution.
type RoundResult struct {
	Round    int
	Target   int
	Fallback bool
	Cause    error
	Err      error
}

// FallbackPolicy decides which fetch failures are replaced by StartValue.
type FallbackPolicy string

const (
	FallbackOnEmpty FallbackPolicy = "on_empty" // only an empty answer falls back
	FallbackNever   FallbackPolicy = "never"
	FallbackAlways  FallbackPolicy = "always"
)

// ParseFallbackPolicy maps a configuration string onto a policy.
// The empty string selects FallbackOnEmpty.
func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch p := FallbackPolicy(s); p {
	case "":
		return FallbackOnEmpty, nil
	case FallbackOnEmpty, FallbackNever, FallbackAlways:
		return p, nil
	default:
		return "", fmt.Errorf("unknown fallback policy %q", s)
	}
}

// covers reports whether err should be replaced by StartValue under p.
func (p FallbackPolicy) covers(err error) bool {
	switch p {
	case FallbackAlways:
		return true
	case FallbackNever:
		return false
	default:
		return errors.Is(err, ErrEmptyTarget)
	}
}
