// Package sandbox runs the judge pipeline for one submission.
package sandbox

import (
	"judger/internal/judge/sandbox/spec"
)

// Job contains all data needed to judge one submission. The working
// directory must already hold the source file.
type Job struct {
	SubmitID             int64
	ProblemID            int64
	WorkDir              string
	CompileCommand       string
	RunCommand           string
	MaxCPUTime           int64
	MaxMemory            int64
	SeccompRule          string
	MemoryLimitCheckOnly bool
}

// Plan is the resolved per-case execution setup shared by every case of a job.
type Plan struct {
	WorkDir     string
	RunCommand  string
	ExtraArgs   []string
	SeccompRule string
	Limits      spec.ResourceLimit
}
