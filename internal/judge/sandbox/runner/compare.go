package runner

import (
	"bytes"
	"os"
)

const trailingSpace = " \t\r\n\v\f"

// Compare reports whether the produced output matches the expected answer.
// Both files are read as newline-terminated records; records are compared
// after stripping trailing whitespace. Leading whitespace is significant and
// any read failure counts as a mismatch.
func Compare(expectedPath, producedPath string) bool {
	expected, err := os.ReadFile(expectedPath)
	if err != nil {
		return false
	}
	produced, err := os.ReadFile(producedPath)
	if err != nil {
		return false
	}
	want := splitLines(expected)
	got := splitLines(produced)
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if !bytes.Equal(bytes.TrimRight(want[i], trailingSpace), bytes.TrimRight(got[i], trailingSpace)) {
			return false
		}
	}
	return true
}

// splitLines keeps the terminator on each record. A final unterminated record
// counts as a line and a trailing newline adds no empty record.
func splitLines(data []byte) [][]byte {
	var lines [][]byte
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, data)
			break
		}
		lines = append(lines, data[:i+1])
		data = data[i+1:]
	}
	return lines
}
