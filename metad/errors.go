package metad

import "errors"

// Error taxonomy for a single fit call. All errors are local to the call;
// no shared state is touched on failure.
var (
	// ErrInvalidInput marks malformed count sequences: unequal or odd
	// lengths, fewer than two ratings, negative cells.
	ErrInvalidInput = errors.New("metad: invalid input")
	// ErrDomain marks a cumulative rate of exactly 0 or 1 after padding.
	ErrDomain = errors.New("metad: degenerate rating rate")
	// ErrDivisionByZero marks an empty correct or incorrect response group
	// when forming observed type-2 rates.
	ErrDivisionByZero = errors.New("metad: division by zero")
	// ErrSamplerFailure marks a fatal error inside the posterior sampler.
	// Fits are never retried; rerun policy belongs to the caller.
	ErrSamplerFailure = errors.New("metad: sampler failure")
)
