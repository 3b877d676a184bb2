package engine

const (
	DefaultBinaryPath = "/usr/lib/judger/libjudger.so"

	defaultStderrMaxBytes int64 = 16 * 1024
)

// Config controls sandbox engine behavior.
type Config struct {
	// BinaryPath is the isolation engine executable.
	BinaryPath string `yaml:"binaryPath"`
	// StderrMaxBytes caps the engine diagnostics kept for error reports.
	StderrMaxBytes int64 `yaml:"stderrMaxBytes"`
}
