package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strconv"
	"strings"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/logger"

	"go.uber.org/zap"
)

type judgerEngine struct {
	cfg Config
}

// NewEngine creates an engine that drives the isolation engine binary.
func NewEngine(cfg Config) (Engine, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinaryPath
	}
	if cfg.StderrMaxBytes <= 0 {
		cfg.StderrMaxBytes = defaultStderrMaxBytes
	}
	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, appErr.Wrapf(err, appErr.SandboxUnavailable, "sandbox engine %s not executable", cfg.BinaryPath)
	}
	return &judgerEngine{cfg: cfg}, nil
}

func (e *judgerEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.Outcome, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.Outcome{}, err
	}
	cmd := exec.CommandContext(ctx, e.cfg.BinaryPath, BuildArgs(runSpec)...)
	cmd.Dir = runSpec.WorkDir
	cmd.SysProcAttr = buildSysProcAttr()
	cmd.Cancel = func() error {
		killProcessGroup(cmd.Process.Pid)
		return nil
	}

	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: e.cfg.StderrMaxBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	runErr := cmd.Run()
	if runErr != nil {
		logger.Warn(ctx, "sandbox engine exited abnormally",
			zap.String("exe_path", runSpec.ExePath),
			zap.String("stderr", stderr.String()),
			zap.Error(runErr),
		)
		if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result.Outcome{}, appErr.Wrapf(ctx.Err(), appErr.SandboxUnavailable, "sandbox run interrupted")
		}
	}
	outcome, err := ParseOutcome(stdout.Bytes())
	if err != nil {
		if runErr != nil {
			err = runErr
		}
		return result.Outcome{}, appErr.Wrapf(err, appErr.SandboxUnavailable, "sandbox engine produced no report")
	}
	return outcome, nil
}

// BuildArgs renders a RunSpec into the engine's command-line flags.
func BuildArgs(runSpec spec.RunSpec) []string {
	limits := runSpec.Limits
	args := []string{
		"--max_cpu_time=" + itoa(limits.MaxCPUTime),
		"--max_real_time=" + itoa(limits.MaxRealTime),
		"--max_memory=" + itoa(limits.MaxMemory),
		"--max_stack=" + itoa(limits.MaxStack),
		"--max_output_size=" + itoa(limits.MaxOutputSize),
		"--max_process_number=" + itoa(limits.MaxProcessNumber),
		"--exe_path=" + runSpec.ExePath,
		"--input_path=" + runSpec.InputPath,
		"--output_path=" + runSpec.OutputPath,
		"--error_path=" + runSpec.ErrorPath,
		"--log_path=" + runSpec.LogPath,
	}
	for _, arg := range runSpec.Args {
		args = append(args, "--args="+arg)
	}
	for _, env := range runSpec.Env {
		args = append(args, "--env="+env)
	}
	if runSpec.SeccompRule != "" {
		args = append(args, "--seccomp_rule_name="+runSpec.SeccompRule)
	}
	checkOnly := "0"
	if limits.MemoryLimitCheckOnly {
		checkOnly = "1"
	}
	args = append(args,
		"--uid="+strconv.Itoa(runSpec.UID),
		"--gid="+strconv.Itoa(runSpec.GID),
		"--memory_limit_check_only="+checkOnly,
	)
	return args
}

// ParseOutcome decodes the JSON report printed by the engine.
func ParseOutcome(raw []byte) (result.Outcome, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return result.Outcome{}, errors.New("empty sandbox report")
	}
	var outcome result.Outcome
	if err := json.Unmarshal(raw, &outcome); err != nil {
		return result.Outcome{}, err
	}
	return outcome, nil
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.WorkDir == "" {
		return appErr.ValidationError("work_dir", "required")
	}
	if strings.TrimSpace(runSpec.ExePath) == "" {
		return appErr.ValidationError("exe_path", "required")
	}
	if runSpec.InputPath == "" || runSpec.OutputPath == "" || runSpec.ErrorPath == "" {
		return appErr.ValidationError("io_path", "required")
	}
	return nil
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

type limitedBuffer struct {
	buf bytes.Buffer
	max int64
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - int64(b.buf.Len())
	if remaining > 0 {
		if int64(len(p)) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
