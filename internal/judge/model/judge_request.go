package model

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	appErr "judger/pkg/errors"
)

// Upper bounds accepted at intake.
const (
	MaxSourceBytes = 1 << 20
	MaxCPUTimeMs   = 600000
	MaxMemoryBytes = 64 << 30
)

// JudgeRequest is the intake payload of POST /judge.
type JudgeRequest struct {
	SubmitID             int64   `json:"submit_id"`
	ProblemID            int64   `json:"problem_id"`
	MaxCPUTime           int64   `json:"max_cpu_time"`
	MaxMemory            int64   `json:"max_memory"`
	Src                  string  `json:"src"`
	SeccompRule          *string `json:"seccomp_rule"`
	RunCommand           string  `json:"run_command"`
	CompileCommand       string  `json:"compile_command"`
	Source               string  `json:"source"`
	MemoryLimitCheckOnly Flag    `json:"memory_limit_check_only"`
}

// SeccompRuleName returns the rule name, empty when none applies.
func (r JudgeRequest) SeccompRuleName() string {
	if r.SeccompRule == nil {
		return ""
	}
	return strings.TrimSpace(*r.SeccompRule)
}

// Validate checks the request before it is accepted.
func (r JudgeRequest) Validate() error {
	if r.SubmitID < 0 {
		return appErr.ValidationError("submit_id", "must be non-negative")
	}
	if r.ProblemID < 0 {
		return appErr.ValidationError("problem_id", "must be non-negative")
	}
	if r.MaxCPUTime <= 0 || r.MaxCPUTime > MaxCPUTimeMs {
		return appErr.ValidationError("max_cpu_time", "must be in (0, "+strconv.Itoa(MaxCPUTimeMs)+"]")
	}
	if r.MaxMemory <= 0 || r.MaxMemory > MaxMemoryBytes {
		return appErr.ValidationError("max_memory", "must be in (0, "+strconv.FormatInt(MaxMemoryBytes, 10)+"]")
	}
	if strings.TrimSpace(r.CompileCommand) == "" {
		return appErr.ValidationError("compile_command", "required")
	}
	if strings.TrimSpace(r.RunCommand) == "" {
		return appErr.ValidationError("run_command", "required")
	}
	if err := validateSrc(r.Src); err != nil {
		return err
	}
	if len(r.Source) > MaxSourceBytes {
		return appErr.New(appErr.CodeTooLarge).WithDetail("limit_bytes", MaxSourceBytes)
	}
	return nil
}

func validateSrc(src string) error {
	if strings.TrimSpace(src) == "" {
		return appErr.ValidationError("src", "required")
	}
	clean := filepath.Clean(src)
	if filepath.IsAbs(clean) || clean == "." || strings.HasPrefix(clean, "..") {
		return appErr.ValidationError("src", "invalid relative path")
	}
	return nil
}

// Flag accepts JSON booleans, numbers and null; any non-zero number is true.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "null", "false", "0", `""`:
		*f = false
		return nil
	case "true":
		*f = true
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return appErr.ValidationError("memory_limit_check_only", "must be a boolean or number")
	}
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return appErr.ValidationError("memory_limit_check_only", "must be a boolean or number")
	}
	*f = v != 0
	return nil
}
