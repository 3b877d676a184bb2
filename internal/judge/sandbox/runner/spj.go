package runner

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	"judger/internal/judge/sandbox/workspace"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	verifierBinary = "spj"
	verifierScript = "spj.py"
)

// SpecialJudge feeds the produced output of one case to the problem verifier.
// The case passes when the verifier prints a line holding the integer 0.
// Verifier crashes and timeouts are failures; a missing verifier is an error.
func (r *DefaultRunner) SpecialJudge(ctx context.Context, req SpecialJudgeRequest) (bool, error) {
	exe, args, err := r.verifierCommand(req.DataDir)
	if err != nil {
		return false, err
	}
	captured := workspace.CaseSpecialJudge(req.CaseStem)
	outcome, err := r.engine.Run(ctx, spec.RunSpec{
		WorkDir:    req.WorkDir,
		ExePath:    exe,
		Args:       args,
		Env:        r.cfg.Env,
		InputPath:  workspace.CaseOutput(req.CaseStem),
		OutputPath: captured,
		ErrorPath:  captured,
		LogPath:    workspace.SpecialJudgeLog,
		UID:        r.cfg.UID,
		GID:        r.cfg.GID,
		Limits:     r.resolver.SpecialJudgeLimits(),
	})
	if err != nil {
		return false, err
	}
	if outcome.Result != result.StatusSuccess {
		logger.Info(ctx, "special judge did not finish",
			zap.String("test_case", req.CaseStem),
			zap.String("status", outcome.Result.String()),
		)
		return false, nil
	}
	data, err := os.ReadFile(filepath.Join(req.WorkDir, captured))
	if err != nil {
		return false, nil
	}
	return acceptedByVerifier(string(data)), nil
}

func (r *DefaultRunner) verifierCommand(dataDir string) (string, []string, error) {
	binary := filepath.Join(dataDir, verifierBinary)
	if fileExists(binary) {
		return binary, nil, nil
	}
	script := filepath.Join(dataDir, verifierScript)
	if fileExists(script) {
		return r.cfg.PythonPath, []string{script}, nil
	}
	return "", nil, appErr.Newf(appErr.SpecialJudgeMissing, "no verifier in %s", dataDir)
}

func acceptedByVerifier(output string) bool {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if v, err := strconv.Atoi(line); err == nil && v == 0 {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
