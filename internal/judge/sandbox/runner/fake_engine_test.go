package runner

import (
	"context"
	"sync"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
)

type fakeEngine struct {
	mu    sync.Mutex
	specs []spec.RunSpec
	run   func(spec.RunSpec) (result.Outcome, error)
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.Outcome, error) {
	f.mu.Lock()
	f.specs = append(f.specs, runSpec)
	f.mu.Unlock()
	if f.run == nil {
		return result.Outcome{Result: result.StatusSuccess}, nil
	}
	return f.run(runSpec)
}

func (f *fakeEngine) last() spec.RunSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.specs[len(f.specs)-1]
}
