// Package workspace defines the per-submission directory layout and paths.
package workspace

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	appErr "judger/pkg/errors"
)

// Fixed file names inside a working directory.
const (
	CompilerOutput  = "compiler.out"
	CompilerLog     = "compiler.log"
	JudgerLog       = "judger.log"
	SpecialJudgeLog = "spj.log"

	outputExt       = ".out"
	errorExt        = ".err"
	specialJudgeExt = ".spj"
)

// Layout describes the filesystem layout for one submission.
type Layout struct {
	SubmitID   int64
	WorkDir    string
	SourcePath string
}

// CaseOutput is the produced stdout file for a case, relative to WorkDir.
func CaseOutput(stem string) string { return stem + outputExt }

// CaseError is the captured stderr file for a case, relative to WorkDir.
func CaseError(stem string) string { return stem + errorExt }

// CaseSpecialJudge is the captured verifier output for a case, relative to WorkDir.
func CaseSpecialJudge(stem string) string { return stem + specialJudgeExt }

// Prepare destroys any previous working directory of the submission, creates
// a fresh one and writes the source under srcName.
func Prepare(root string, submitID int64, srcName, source string) (Layout, error) {
	if root == "" {
		return Layout{}, appErr.ValidationError("tmp_root", "required")
	}
	workDir := filepath.Join(root, strconv.FormatInt(submitID, 10))
	sourcePath, err := safeJoin(workDir, srcName)
	if err != nil {
		return Layout{}, err
	}
	if err := os.RemoveAll(workDir); err != nil {
		return Layout{}, appErr.Wrapf(err, appErr.JudgeSystemError, "cleanup work dir failed")
	}
	if err := os.MkdirAll(filepath.Dir(sourcePath), 0755); err != nil {
		return Layout{}, appErr.Wrapf(err, appErr.JudgeSystemError, "create work dir failed")
	}
	if err := os.WriteFile(sourcePath, []byte(source), 0644); err != nil {
		return Layout{}, appErr.Wrapf(err, appErr.JudgeSystemError, "write source failed")
	}
	return Layout{SubmitID: submitID, WorkDir: workDir, SourcePath: sourcePath}, nil
}

func safeJoin(basePath, relPath string) (string, error) {
	if relPath == "" {
		return "", appErr.ValidationError("src", "required")
	}
	clean := filepath.Clean(relPath)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", appErr.ValidationError("src", "invalid relative path")
	}
	full := filepath.Join(basePath, clean)
	if !strings.HasPrefix(full, filepath.Clean(basePath)+string(filepath.Separator)) {
		return "", appErr.ValidationError("src", "path traversal detected")
	}
	return full, nil
}
