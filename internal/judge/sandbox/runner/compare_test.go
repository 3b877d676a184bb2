package runner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s failed: %v", name, err)
	}
	return path
}

func TestCompare(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		expected string
		produced string
		want     bool
	}{
		{name: "identical", expected: "3\n", produced: "3\n", want: true},
		{name: "trailing spaces and crlf", expected: "1 2\n3\n", produced: "1 2   \r\n3\t\n", want: true},
		{name: "missing final newline", expected: "a\nb\n", produced: "a\nb", want: true},
		{name: "extra blank line", expected: "a\n", produced: "a\n\n", want: false},
		{name: "fewer lines", expected: "a\nb\n", produced: "a\n", want: false},
		{name: "leading whitespace is significant", expected: "x\n", produced: " x\n", want: false},
		{name: "different content", expected: "3\n", produced: "4\n", want: false},
		{name: "both empty", expected: "", produced: "", want: true},
		{name: "whitespace only line equals empty line", expected: "\n", produced: "   \n", want: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			exp := writeTemp(t, dir, "expected", tc.expected)
			got := writeTemp(t, dir, "produced", tc.produced)
			if ok := Compare(exp, got); ok != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, ok)
			}
		})
	}
}

func TestCompareMissingFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	exp := writeTemp(t, dir, "expected", "1\n")
	if Compare(exp, filepath.Join(dir, "absent")) {
		t.Fatalf("missing produced output must fail")
	}
	if Compare(filepath.Join(dir, "absent"), exp) {
		t.Fatalf("missing answer must fail")
	}
}
