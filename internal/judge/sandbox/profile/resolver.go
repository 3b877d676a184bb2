package profile

import (
	"math"
	"strconv"
	"strings"

	"judger/internal/judge/sandbox/spec"
)

const (
	compileCPUTimeMs      int64 = 10000
	compileMemory               = 128 * spec.MiB
	defaultStack                = 256 * spec.MiB
	runOutputSize               = 32 * spec.MiB
	runProcessNumber      int64 = 1
	realTimeFactor        int64 = 3
	specialJudgeCPUTimeMs int64 = 20000
	specialJudgeRealMs    int64 = 60000
	specialJudgeMemory          = 256 * spec.MiB
)

// Resolver derives resource limit profiles from declared limits and the
// language marker found in a command string.
type Resolver struct {
	rules []LanguageRule
}

// NewResolver creates a resolver. A nil rule set uses DefaultLanguageRules.
func NewResolver(rules []LanguageRule) *Resolver {
	if rules == nil {
		rules = DefaultLanguageRules()
	}
	return &Resolver{rules: rules}
}

// Match returns the first rule whose marker occurs in command.
func (r *Resolver) Match(command string) (LanguageRule, bool) {
	for _, rule := range r.rules {
		if rule.matches(command) {
			return rule, true
		}
	}
	return LanguageRule{}, false
}

// CompileLimits returns the fixed compile profile. Declared limits of the
// submission never apply to compilation.
func (r *Resolver) CompileLimits(compileCmd string) spec.ResourceLimit {
	limits := spec.ResourceLimit{
		MaxCPUTime:       compileCPUTimeMs,
		MaxMemory:        compileMemory,
		MaxStack:         defaultStack,
		MaxOutputSize:    spec.Unlimited,
		MaxProcessNumber: spec.Unlimited,
	}
	if rule, ok := r.Match(compileCmd); ok && rule.UnlimitedMemory {
		limits.MaxMemory = spec.Unlimited
		limits.MaxCPUTime *= 2
	}
	limits.MaxRealTime = realTime(limits.MaxCPUTime)
	return limits
}

// RunLimits returns the per-case execution profile.
func (r *Resolver) RunLimits(runCmd string, declaredCPUTime, declaredMemory int64, checkOnly bool) spec.ResourceLimit {
	limits := spec.ResourceLimit{
		MaxCPUTime:           declaredCPUTime,
		MaxMemory:            declaredMemory,
		MaxStack:             defaultStack,
		MaxOutputSize:        runOutputSize,
		MaxProcessNumber:     runProcessNumber,
		MemoryLimitCheckOnly: checkOnly,
	}
	if rule, ok := r.Match(runCmd); ok {
		limits.MaxCPUTime = scaleLimit(limits.MaxCPUTime, rule.TimeMultiplier)
		if rule.UnlimitedMemory {
			limits.MaxMemory = spec.Unlimited
		} else {
			limits.MaxMemory = scaleLimit(limits.MaxMemory, rule.MemoryMultiplier)
		}
	}
	limits.MaxRealTime = realTime(limits.MaxCPUTime)
	return limits
}

// SpecialJudgeLimits returns the verifier profile. It is deliberately larger
// than the run profile and independent of the submission.
func (r *Resolver) SpecialJudgeLimits() spec.ResourceLimit {
	return spec.ResourceLimit{
		MaxCPUTime:       specialJudgeCPUTimeMs,
		MaxRealTime:      specialJudgeRealMs,
		MaxMemory:        specialJudgeMemory,
		MaxStack:         defaultStack,
		MaxOutputSize:    runOutputSize,
		MaxProcessNumber: spec.Unlimited,
	}
}

// ExtraArgs returns the arguments appended to the run command, for example a
// heap hint for managed runtimes.
func (r *Resolver) ExtraArgs(runCmd string, declaredMemory int64) []string {
	rule, ok := r.Match(runCmd)
	if !ok || len(rule.ExtraArgs) == 0 {
		return nil
	}
	out := make([]string, 0, len(rule.ExtraArgs))
	for _, arg := range rule.ExtraArgs {
		out = append(out, strings.ReplaceAll(arg, MaxRAMPlaceholder, strconv.FormatInt(declaredMemory, 10)))
	}
	return out
}

// realTime and scaleLimit saturate at math.MaxInt64; a wrapped negative
// limit would read as unlimited or invalid to the engine.
func realTime(cpuTime int64) int64 {
	if cpuTime <= 0 {
		return cpuTime
	}
	if cpuTime > math.MaxInt64/realTimeFactor {
		return math.MaxInt64
	}
	return cpuTime * realTimeFactor
}

func scaleLimit(value int64, multiplier float64) int64 {
	if value <= 0 {
		return value
	}
	if multiplier <= 0 {
		return value
	}
	scaled := math.Ceil(float64(value) * multiplier)
	if scaled >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(scaled)
}
