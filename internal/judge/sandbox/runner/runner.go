package runner

import (
	"context"

	"judger/internal/judge/sandbox/engine"
	"judger/internal/judge/sandbox/observer"
	"judger/internal/judge/sandbox/profile"
	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	appErr "judger/pkg/errors"

	"github.com/google/shlex"
)

const (
	devNull           = "/dev/null"
	defaultPythonPath = "/usr/bin/python3"
	nativeLanguage    = "native"
)

// Config controls the identity and environment of sandboxed processes.
type Config struct {
	UID        int      `yaml:"uid"`
	GID        int      `yaml:"gid"`
	PythonPath string   `yaml:"pythonPath"`
	Env        []string `yaml:"env"`
}

// CompileRequest describes one compilation task. Zero Limits resolve to the
// compile profile of Command.
type CompileRequest struct {
	Command string
	WorkDir string
	Limits  spec.ResourceLimit
}

// RunRequest describes one sandboxed execution of a submission. Output paths
// are relative to WorkDir.
type RunRequest struct {
	Command     string
	ExtraArgs   []string
	WorkDir     string
	InputPath   string
	OutputPath  string
	ErrorPath   string
	LogPath     string
	SeccompRule string
	Limits      spec.ResourceLimit
}

// SpecialJudgeRequest asks the problem verifier to check one produced output.
type SpecialJudgeRequest struct {
	DataDir  string
	WorkDir  string
	CaseStem string
}

// Runner orchestrates compile, run and verification workflows.
type Runner interface {
	Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error)
	Run(ctx context.Context, req RunRequest) (result.Outcome, error)
	SpecialJudge(ctx context.Context, req SpecialJudgeRequest) (bool, error)
}

// DefaultRunner implements Runner on top of a sandbox engine.
type DefaultRunner struct {
	engine   engine.Engine
	resolver *profile.Resolver
	metrics  observer.MetricsRecorder
	cfg      Config
}

// NewRunner creates a runner. A nil resolver uses the default language rules
// and a nil recorder disables metrics.
func NewRunner(eng engine.Engine, resolver *profile.Resolver, metrics observer.MetricsRecorder, cfg Config) *DefaultRunner {
	if resolver == nil {
		resolver = profile.NewResolver(nil)
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	if cfg.PythonPath == "" {
		cfg.PythonPath = defaultPythonPath
	}
	if len(cfg.Env) == 0 {
		cfg.Env = spec.DefaultEnv
	}
	return &DefaultRunner{engine: eng, resolver: resolver, metrics: metrics, cfg: cfg}
}

// Run executes one command in the sandbox and returns the raw outcome.
func (r *DefaultRunner) Run(ctx context.Context, req RunRequest) (result.Outcome, error) {
	exe, args, err := splitCommand(req.Command)
	if err != nil {
		return result.Outcome{}, err
	}
	args = append(args, req.ExtraArgs...)
	outcome, err := r.engine.Run(ctx, spec.RunSpec{
		WorkDir:     req.WorkDir,
		ExePath:     exe,
		Args:        args,
		Env:         r.cfg.Env,
		InputPath:   req.InputPath,
		OutputPath:  req.OutputPath,
		ErrorPath:   req.ErrorPath,
		LogPath:     req.LogPath,
		SeccompRule: req.SeccompRule,
		UID:         r.cfg.UID,
		GID:         r.cfg.GID,
		Limits:      req.Limits,
	})
	if err != nil {
		return result.Outcome{}, err
	}
	r.metrics.ObserveRun(ctx, r.language(req.Command), outcome.Result.String(), outcome.CPUTime, outcome.Memory)
	return outcome, nil
}

func (r *DefaultRunner) language(command string) string {
	if rule, ok := r.resolver.Match(command); ok {
		return rule.Name
	}
	return nativeLanguage
}

// splitCommand separates a command line into executable and arguments.
func splitCommand(command string) (string, []string, error) {
	parts, err := shlex.Split(command)
	if err != nil {
		return "", nil, appErr.Wrapf(err, appErr.InvalidParams, "malformed command %q", command)
	}
	if len(parts) == 0 {
		return "", nil, appErr.ValidationError("command", "required")
	}
	return parts[0], parts[1:], nil
}
