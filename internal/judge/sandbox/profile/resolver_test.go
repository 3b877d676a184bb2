package profile

import (
	"math"
	"reflect"
	"testing"

	"judger/internal/judge/sandbox/spec"
)

func TestCompileLimits(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil)
	cases := []struct {
		name       string
		command    string
		wantCPU    int64
		wantMemory int64
	}{
		{name: "native compiler", command: "/usr/bin/g++ main.cpp -o main", wantCPU: 10000, wantMemory: 128 * spec.MiB},
		{name: "managed compiler", command: "/usr/bin/javac Main.java", wantCPU: 20000, wantMemory: spec.Unlimited},
		{name: "scripting byte compile keeps fixed limits", command: "/usr/bin/python3 -m py_compile main.py", wantCPU: 10000, wantMemory: 128 * spec.MiB},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			limits := r.CompileLimits(tc.command)
			if limits.MaxCPUTime != tc.wantCPU {
				t.Fatalf("expected cpu %d, got %d", tc.wantCPU, limits.MaxCPUTime)
			}
			if limits.MaxMemory != tc.wantMemory {
				t.Fatalf("expected memory %d, got %d", tc.wantMemory, limits.MaxMemory)
			}
			if limits.MaxRealTime != 3*limits.MaxCPUTime {
				t.Fatalf("expected real time 3x cpu, got %d", limits.MaxRealTime)
			}
			if limits.MaxStack != 256*spec.MiB || limits.MaxOutputSize != spec.Unlimited || limits.MaxProcessNumber != spec.Unlimited {
				t.Fatalf("unexpected fixed compile limits: %+v", limits)
			}
		})
	}
}

func TestRunLimits(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil)
	cases := []struct {
		name       string
		command    string
		wantCPU    int64
		wantMemory int64
	}{
		{name: "native", command: "./main", wantCPU: 1000, wantMemory: 64 * spec.MiB},
		{name: "java", command: "/usr/bin/java -cp . Main", wantCPU: 2000, wantMemory: spec.Unlimited},
		{name: "python", command: "/usr/bin/python3 main.py", wantCPU: 2000, wantMemory: 128 * spec.MiB},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			limits := r.RunLimits(tc.command, 1000, 64*spec.MiB, true)
			if limits.MaxCPUTime != tc.wantCPU {
				t.Fatalf("expected cpu %d, got %d", tc.wantCPU, limits.MaxCPUTime)
			}
			if limits.MaxMemory != tc.wantMemory {
				t.Fatalf("expected memory %d, got %d", tc.wantMemory, limits.MaxMemory)
			}
			if limits.MaxRealTime < limits.MaxCPUTime || limits.MaxRealTime != 3*limits.MaxCPUTime {
				t.Fatalf("unexpected real time %d for cpu %d", limits.MaxRealTime, limits.MaxCPUTime)
			}
			if !limits.MemoryLimitCheckOnly {
				t.Fatalf("expected check-only flag to pass through")
			}
			if limits.MaxProcessNumber != 1 || limits.MaxOutputSize != 32*spec.MiB {
				t.Fatalf("unexpected fixed run limits: %+v", limits)
			}
		})
	}
}

func TestRunLimitsFirstRuleWins(t *testing.T) {
	t.Parallel()
	// "javapy" contains both markers; the java rule is listed first.
	limits := NewResolver(nil).RunLimits("/opt/javapy/run", 500, 10*spec.MiB, false)
	if limits.MaxMemory != spec.Unlimited {
		t.Fatalf("expected java rule to win, got memory %d", limits.MaxMemory)
	}
}

func TestExtraArgs(t *testing.T) {
	t.Parallel()
	r := NewResolver(nil)
	if got := r.ExtraArgs("/usr/bin/java Main", 268435456); !reflect.DeepEqual(got, []string{"-XX:MaxRAM=268435456"}) {
		t.Fatalf("unexpected java extra args: %v", got)
	}
	if got := r.ExtraArgs("./main", 1024); got != nil {
		t.Fatalf("expected no extra args for native run, got %v", got)
	}
}

func TestCustomRules(t *testing.T) {
	t.Parallel()
	r := NewResolver([]LanguageRule{{Name: "node", Marker: "node", TimeMultiplier: 1.5, MemoryMultiplier: 3}})
	limits := r.RunLimits("/usr/bin/node main.js", 1000, 10, false)
	if limits.MaxCPUTime != 1500 || limits.MaxMemory != 30 {
		t.Fatalf("unexpected limits: %+v", limits)
	}
	java := r.RunLimits("/usr/bin/java Main", 1000, 10, false)
	if java.MaxCPUTime != 1000 || java.MaxMemory != 10 {
		t.Fatalf("expected unknown marker to fall through, got %+v", java)
	}
}

func TestSpecialJudgeLimits(t *testing.T) {
	t.Parallel()
	limits := NewResolver(nil).SpecialJudgeLimits()
	want := spec.ResourceLimit{
		MaxCPUTime:       20000,
		MaxRealTime:      60000,
		MaxMemory:        256 * spec.MiB,
		MaxStack:         256 * spec.MiB,
		MaxOutputSize:    32 * spec.MiB,
		MaxProcessNumber: spec.Unlimited,
	}
	if limits != want {
		t.Fatalf("expected %+v, got %+v", want, limits)
	}
}

func TestRunLimitsSaturate(t *testing.T) {
	t.Parallel()
	huge := int64(math.MaxInt64/2 + 1)
	cases := []struct {
		name    string
		command string
	}{
		{name: "scaled language", command: "/usr/bin/python3 main.py"},
		{name: "native", command: "./main"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			limits := NewResolver(nil).RunLimits(tc.command, huge, huge, false)
			if limits.MaxCPUTime <= 0 || limits.MaxRealTime <= 0 || limits.MaxMemory <= 0 {
				t.Fatalf("limits wrapped negative: %+v", limits)
			}
			if limits.MaxRealTime != math.MaxInt64 {
				t.Fatalf("expected saturated real time, got %d", limits.MaxRealTime)
			}
		})
	}
}
