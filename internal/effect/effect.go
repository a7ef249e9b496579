// Package effect models fire-and-log side effects: operations whose failure is reported and logged
// but never aborts the primary operation that triggered them.
package effect

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Outcome is the result of a best-effort side effect. Callers are free to ignore it.
type Outcome struct {
	Op  string
	Err error
}

// OK reports whether the side effect succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Run executes fn, logs a failure at error level and returns the outcome instead of the error.
func Run(ctx context.Context, op string, fn func(ctx context.Context) error) Outcome {
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("side_effect", op).Msg("best-effort operation failed")
		return Outcome{Op: op, Err: err}
	}
	return Outcome{Op: op}
}

// Skipped is the outcome of a side effect that had nothing to do.
func Skipped(op string) Outcome {
	return Outcome{Op: op}
}
