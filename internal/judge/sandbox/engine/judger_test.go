package engine

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/spec"
	appErr "judger/pkg/errors"
)

func TestBuildArgs(t *testing.T) {
	t.Parallel()
	args := BuildArgs(spec.RunSpec{
		WorkDir:     "/tmp/judger/1",
		ExePath:     "/usr/bin/java",
		Args:        []string{"Main", "-XX:MaxRAM=1024"},
		Env:         []string{"PATH=/usr/bin"},
		InputPath:   "/ojdata/1/1.in",
		OutputPath:  "1.out",
		ErrorPath:   "1.err",
		LogPath:     "judger.log",
		SeccompRule: "c_cpp",
		UID:         1000,
		GID:         1000,
		Limits: spec.ResourceLimit{
			MaxCPUTime:           2000,
			MaxRealTime:          6000,
			MaxMemory:            spec.Unlimited,
			MaxStack:             256 * spec.MiB,
			MaxOutputSize:        32 * spec.MiB,
			MaxProcessNumber:     1,
			MemoryLimitCheckOnly: true,
		},
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--max_cpu_time=2000",
		"--max_real_time=6000",
		"--max_memory=-1",
		"--max_stack=268435456",
		"--max_output_size=33554432",
		"--max_process_number=1",
		"--exe_path=/usr/bin/java",
		"--args=Main --args=-XX:MaxRAM=1024",
		"--env=PATH=/usr/bin",
		"--seccomp_rule_name=c_cpp",
		"--uid=1000",
		"--gid=1000",
		"--memory_limit_check_only=1",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %s", want, joined)
		}
	}
}

func TestBuildArgsOmitsEmptySeccompRule(t *testing.T) {
	t.Parallel()
	args := BuildArgs(spec.RunSpec{ExePath: "/usr/bin/g++"})
	for _, arg := range args {
		if strings.HasPrefix(arg, "--seccomp_rule_name") {
			t.Fatalf("unexpected seccomp flag: %s", arg)
		}
	}
}

func TestParseOutcome(t *testing.T) {
	t.Parallel()
	outcome, err := ParseOutcome([]byte(`{"cpu_time": 12, "real_time": 30, "memory": 4096, "signal": 0, "exit_code": 0, "error": 0, "result": 1}` + "\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if outcome.Result != result.StatusCPUTimeLimitExceeded || outcome.CPUTime != 12 || outcome.Memory != 4096 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if _, err := ParseOutcome([]byte("  ")); err == nil {
		t.Fatalf("expected error for empty report")
	}
}

func TestEngineRunInvokesBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.txt")
	stub := filepath.Join(dir, "fake-judger")
	script := "#!/bin/sh\n" +
		"pwd > " + argsFile + "\n" +
		"for a in \"$@\"; do echo \"$a\" >> " + argsFile + "; done\n" +
		"echo '{\"cpu_time\":3,\"real_time\":5,\"memory\":100,\"signal\":0,\"exit_code\":0,\"error\":0,\"result\":0}'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub failed: %v", err)
	}
	workDir := t.TempDir()

	eng, err := NewEngine(Config{BinaryPath: stub})
	if err != nil {
		t.Fatalf("new engine failed: %v", err)
	}
	outcome, err := eng.Run(context.Background(), spec.RunSpec{
		WorkDir:    workDir,
		ExePath:    "./main",
		InputPath:  "/dev/null",
		OutputPath: "1.out",
		ErrorPath:  "1.err",
		LogPath:    "judger.log",
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if outcome.Result != result.StatusSuccess || outcome.CPUTime != 3 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	recorded, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("read args failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(recorded)), "\n")
	resolvedWorkDir, _ := filepath.EvalSymlinks(workDir)
	if lines[0] != workDir && lines[0] != resolvedWorkDir {
		t.Fatalf("expected engine to run in %s, got %s", workDir, lines[0])
	}
	if !strings.Contains(string(recorded), "--exe_path=./main") {
		t.Fatalf("expected exe path flag, got %s", recorded)
	}
}

func TestEngineRunReportsBrokenBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a unix shell")
	}
	dir := t.TempDir()
	stub := filepath.Join(dir, "broken-judger")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\necho 'bad args' >&2\nexit 2\n"), 0o755); err != nil {
		t.Fatalf("write stub failed: %v", err)
	}
	eng, err := NewEngine(Config{BinaryPath: stub})
	if err != nil {
		t.Fatalf("new engine failed: %v", err)
	}
	_, err = eng.Run(context.Background(), spec.RunSpec{
		WorkDir:    dir,
		ExePath:    "./main",
		InputPath:  "/dev/null",
		OutputPath: "1.out",
		ErrorPath:  "1.err",
	})
	if !appErr.Is(err, appErr.SandboxUnavailable) {
		t.Fatalf("expected sandbox unavailable error, got %v", err)
	}
}

func TestNewEngineRejectsMissingBinary(t *testing.T) {
	t.Parallel()
	if _, err := NewEngine(Config{BinaryPath: filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Fatalf("expected error for missing binary")
	}
}
