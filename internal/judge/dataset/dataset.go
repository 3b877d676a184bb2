// Package dataset reads problem test data from the local data directory.
package dataset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	appErr "judger/pkg/errors"
)

const (
	inputExt  = ".in"
	answerExt = ".out"

	// SpecialJudgeBinary and SpecialJudgeScript mark a problem as special-judged.
	SpecialJudgeBinary = "spj"
	SpecialJudgeScript = "spj.py"
)

// Case is one test case of a problem.
type Case struct {
	Stem       string
	InputPath  string
	AnswerPath string
}

// Dataset is the read-only test data of one problem.
type Dataset struct {
	ProblemID     int64
	Dir           string
	Cases         []Case
	SpecialJudged bool
}

// Dir returns the data directory of a problem.
func Dir(root string, problemID int64) string {
	return filepath.Join(root, strconv.FormatInt(problemID, 10))
}

// Open enumerates the cases of a problem. A missing directory yields an empty
// dataset; any other read failure is returned as DatasetUnavailable.
func Open(root string, problemID int64) (Dataset, error) {
	dir, err := filepath.Abs(Dir(root, problemID))
	if err != nil {
		return Dataset{}, appErr.Wrapf(err, appErr.DatasetUnavailable, "resolve dataset dir failed")
	}
	ds := Dataset{ProblemID: problemID, Dir: dir}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ds, nil
		}
		return Dataset{}, appErr.Wrapf(err, appErr.DatasetUnavailable, "read dataset dir failed")
	}

	stems := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		switch {
		case name == SpecialJudgeBinary || name == SpecialJudgeScript:
			ds.SpecialJudged = true
		case strings.HasSuffix(name, inputExt) && len(name) > len(inputExt):
			stems = append(stems, strings.TrimSuffix(name, inputExt))
		}
	}
	sort.Slice(stems, func(i, j int) bool { return naturalLess(stems[i], stems[j]) })

	ds.Cases = make([]Case, 0, len(stems))
	for _, stem := range stems {
		ds.Cases = append(ds.Cases, Case{
			Stem:       stem,
			InputPath:  filepath.Join(dir, stem+inputExt),
			AnswerPath: filepath.Join(dir, stem+answerExt),
		})
	}
	return ds, nil
}

// naturalLess orders names so that embedded numbers compare by value:
// "2" < "10" and "case2" < "case10".
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, restA := leadingDigits(a)
			nb, restB := leadingDigits(b)
			ta, tb := strings.TrimLeft(na, "0"), strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = restA, restB
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
