package runner

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	"judger/internal/judge/sandbox/workspace"
	appErr "judger/pkg/errors"
)

func TestCompileSuccessBuildsRunSpec(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	r := NewRunner(eng, nil, nil, Config{})
	dir := t.TempDir()

	res, err := r.Compile(context.Background(), CompileRequest{
		Command: `/usr/bin/g++ -O2 "main file.cpp" -o main`,
		WorkDir: dir,
	})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected successful compile")
	}
	got := eng.last()
	if got.ExePath != "/usr/bin/g++" {
		t.Fatalf("unexpected exe path: %s", got.ExePath)
	}
	if !reflect.DeepEqual(got.Args, []string{"-O2", "main file.cpp", "-o", "main"}) {
		t.Fatalf("unexpected args: %v", got.Args)
	}
	if got.WorkDir != dir || got.InputPath != devNull {
		t.Fatalf("unexpected paths: %+v", got)
	}
	if got.OutputPath != workspace.CompilerOutput || got.ErrorPath != workspace.CompilerOutput || got.LogPath != workspace.CompilerLog {
		t.Fatalf("expected compiler capture files, got %+v", got)
	}
	if got.SeccompRule != "" {
		t.Fatalf("compile must not use a seccomp rule")
	}
	if got.Limits.MaxCPUTime != 10000 || got.Limits.MaxMemory != 128*spec.MiB {
		t.Fatalf("unexpected compile limits: %+v", got.Limits)
	}
	if !reflect.DeepEqual(got.Env, spec.DefaultEnv) {
		t.Fatalf("expected default env, got %v", got.Env)
	}
}

func TestCompileFailureMessage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		content *string
		want    string
	}{
		{name: "compiler diagnostics", content: strPtr("main.cpp:1:1: error: expected ';'\n"), want: "main.cpp:1:1: error: expected ';'"},
		{name: "empty capture", content: strPtr("  \n"), want: result.InfoCompilerFallback},
		{name: "missing capture", content: nil, want: result.InfoCompilerFallback},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			if tc.content != nil {
				if err := os.WriteFile(filepath.Join(dir, workspace.CompilerOutput), []byte(*tc.content), 0644); err != nil {
					t.Fatalf("write capture failed: %v", err)
				}
			}
			eng := &fakeEngine{run: func(spec.RunSpec) (result.Outcome, error) {
				return result.Outcome{Result: result.StatusRuntimeError, ExitCode: 1}, nil
			}}
			res, err := NewRunner(eng, nil, nil, Config{}).Compile(context.Background(), CompileRequest{Command: "gcc main.c", WorkDir: dir})
			if err != nil {
				t.Fatalf("compile returned error: %v", err)
			}
			if res.OK {
				t.Fatalf("expected failed compile")
			}
			if res.Message != tc.want {
				t.Fatalf("expected message %q, got %q", tc.want, res.Message)
			}
		})
	}
}

func TestCompileRejectsEmptyCommand(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	_, err := NewRunner(eng, nil, nil, Config{}).Compile(context.Background(), CompileRequest{Command: "   ", WorkDir: t.TempDir()})
	if !appErr.Is(err, appErr.ValidationFailed) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(eng.specs) != 0 {
		t.Fatalf("engine must not run for an empty command")
	}
}

func TestCompileEngineFault(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{run: func(spec.RunSpec) (result.Outcome, error) {
		return result.Outcome{}, appErr.New(appErr.SandboxUnavailable)
	}}
	_, err := NewRunner(eng, nil, nil, Config{}).Compile(context.Background(), CompileRequest{Command: "gcc main.c", WorkDir: t.TempDir()})
	if !appErr.Is(err, appErr.SandboxUnavailable) {
		t.Fatalf("expected sandbox error, got %v", err)
	}
}

func TestCompileManagedRuntimeLimits(t *testing.T) {
	t.Parallel()
	eng := &fakeEngine{}
	if _, err := NewRunner(eng, nil, nil, Config{UID: 1000, GID: 1000}).Compile(context.Background(), CompileRequest{Command: "/usr/bin/javac Main.java", WorkDir: t.TempDir()}); err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	got := eng.last()
	if got.Limits.MaxMemory != spec.Unlimited || got.Limits.MaxCPUTime != 20000 {
		t.Fatalf("unexpected managed compile limits: %+v", got.Limits)
	}
	if got.UID != 1000 || got.GID != 1000 {
		t.Fatalf("expected configured identity, got uid=%d gid=%d", got.UID, got.GID)
	}
}

func strPtr(s string) *string { return &s }
