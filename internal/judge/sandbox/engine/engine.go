// Package engine binds the judge to the external isolation engine.
package engine

import (
	"context"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
)

// Engine executes a RunSpec inside an isolated sandbox.
// A returned error means the engine itself could not produce an outcome;
// limit violations and crashes of the child are reported in the Outcome.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.Outcome, error)
}
