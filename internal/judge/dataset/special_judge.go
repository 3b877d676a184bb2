package dataset

import (
	"context"
	"os"
	"path/filepath"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/runner"
	"judger/internal/judge/sandbox/workspace"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/logger"

	"go.uber.org/zap"
)

// Compiler is the part of the sandbox runner needed to build a verifier.
type Compiler interface {
	Compile(ctx context.Context, req runner.CompileRequest) (result.CompileResult, error)
}

// verifierSources lists the accepted verifier sources in lookup order.
var verifierSources = []struct {
	name    string
	command string
}{
	{name: "spj.cpp", command: "/usr/bin/g++ -fno-tree-ch -O2 -Wall -std=c++14 spj.cpp -lm -o spj"},
	{name: "spj.c", command: "/usr/bin/g++ -fno-tree-ch -O2 -Wall -std=c++14 spj.c -lm -o spj"},
	{name: "spj.py", command: "/usr/bin/python3 -m py_compile spj.py"},
}

// PrepareSpecialJudge builds the verifier shipped as source inside dir.
// It is a no-op when dir holds no verifier source.
func PrepareSpecialJudge(ctx context.Context, compiler Compiler, dir string) error {
	for _, src := range verifierSources {
		if _, err := os.Stat(filepath.Join(dir, src.name)); err != nil {
			continue
		}
		res, err := compiler.Compile(ctx, runner.CompileRequest{Command: src.command, WorkDir: dir})
		_ = os.Remove(filepath.Join(dir, workspace.CompilerOutput))
		_ = os.Remove(filepath.Join(dir, workspace.CompilerLog))
		if err != nil {
			return appErr.Wrapf(err, appErr.DatasetInvalid, "compile %s failed", src.name)
		}
		if !res.OK {
			return appErr.Newf(appErr.DatasetInvalid, "compile %s failed: %s", src.name, res.Message)
		}
		logger.Info(ctx, "special judge prepared", zap.String("source", src.name), zap.String("data_dir", dir))
		return nil
	}
	return nil
}
