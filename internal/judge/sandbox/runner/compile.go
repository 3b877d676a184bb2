package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	"judger/internal/judge/sandbox/workspace"
	"judger/pkg/utils/logger"

	"go.uber.org/zap"
)

// Compile runs the compile command in the working directory. A failed
// compilation is a result value; an error means the stage itself could not run.
func (r *DefaultRunner) Compile(ctx context.Context, req CompileRequest) (result.CompileResult, error) {
	exe, args, err := splitCommand(req.Command)
	if err != nil {
		return result.CompileResult{}, err
	}
	limits := req.Limits
	if limits == (spec.ResourceLimit{}) {
		limits = r.resolver.CompileLimits(req.Command)
	}

	outcome, err := r.engine.Run(ctx, spec.RunSpec{
		WorkDir:    req.WorkDir,
		ExePath:    exe,
		Args:       args,
		Env:        r.cfg.Env,
		InputPath:  devNull,
		OutputPath: workspace.CompilerOutput,
		ErrorPath:  workspace.CompilerOutput,
		LogPath:    workspace.CompilerLog,
		UID:        r.cfg.UID,
		GID:        r.cfg.GID,
		Limits:     limits,
	})
	if err != nil {
		return result.CompileResult{}, err
	}

	ok := outcome.Result == result.StatusSuccess
	r.metrics.ObserveCompile(ctx, r.language(req.Command), ok, outcome.CPUTime, outcome.Memory)
	if ok {
		return result.CompileResult{OK: true, Outcome: outcome}, nil
	}

	logger.Info(ctx, "compilation failed",
		zap.String("status", outcome.Result.String()),
		zap.Int("exit_code", outcome.ExitCode),
		zap.Int("signal", outcome.Signal),
	)
	return result.CompileResult{
		OK:      false,
		Message: compilerMessage(filepath.Join(req.WorkDir, workspace.CompilerOutput)),
		Outcome: outcome,
	}, nil
}

func compilerMessage(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return result.InfoCompilerFallback
	}
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return result.InfoCompilerFallback
	}
	return msg
}
