package workspace

import (
	"os"
	"path/filepath"
	"testing"

	appErr "judger/pkg/errors"
)

func TestPrepareRecreatesWorkDir(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	stale := filepath.Join(root, "42", "stale.out")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	layout, err := Prepare(root, 42, "main.cpp", "int main(){}")
	if err != nil {
		t.Fatalf("prepare failed: %v", err)
	}
	if layout.WorkDir != filepath.Join(root, "42") {
		t.Fatalf("unexpected work dir: %s", layout.WorkDir)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatalf("expected stale file removed, got %v", err)
	}
	content, err := os.ReadFile(layout.SourcePath)
	if err != nil || string(content) != "int main(){}" {
		t.Fatalf("unexpected source content %q: %v", content, err)
	}
}

func TestPrepareRejectsTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for _, name := range []string{"", "../escape.c", "/etc/passwd", "a/../../b.c"} {
		if _, err := Prepare(root, 1, name, "x"); !appErr.Is(err, appErr.ValidationFailed) {
			t.Fatalf("expected validation error for %q, got %v", name, err)
		}
	}
}

func TestCaseFileNames(t *testing.T) {
	t.Parallel()
	if CaseOutput("3") != "3.out" || CaseError("3") != "3.err" || CaseSpecialJudge("3") != "3.spj" {
		t.Fatalf("unexpected case file names")
	}
}
