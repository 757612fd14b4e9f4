package randomapi

import (
	"errors"
	"fmt"

	"github.com/robalobadob/bullseye/internal/game"
)

var (
	// ErrTransport covers network failures, timeouts and non-2xx statuses.
	ErrTransport = errors.New("randomapi: transport failure")

	// ErrDecode means the body was not a JSON array of integers.
	ErrDecode = errors.New("randomapi: decode failure")

	// ErrOutOfRange is a decode failure for a value outside the requested bounds.
	ErrOutOfRange = fmt.Errorf("%w: value out of range", ErrDecode)

	// ErrEmptyResult is a well-formed but empty array. It wraps
	// game.ErrEmptyTarget so sessions can apply their fallback policy.
	ErrEmptyResult = fmt.Errorf("randomapi: empty result: %w", game.ErrEmptyTarget)
)

func isClassified(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrDecode) || errors.Is(err, ErrEmptyResult)
}
