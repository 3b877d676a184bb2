// Package spec defines sandbox run requests and resource limits.
package spec

// Unlimited disables a limit.
const Unlimited int64 = -1

const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
)

// ResourceLimit describes hard limits enforced by the sandbox.
// Times are in milliseconds and sizes in bytes.
type ResourceLimit struct {
	MaxCPUTime           int64
	MaxRealTime          int64
	MaxMemory            int64
	MaxStack             int64
	MaxOutputSize        int64
	MaxProcessNumber     int64
	MemoryLimitCheckOnly bool
}

// RunSpec describes one sandboxed process for the engine.
// Relative paths are resolved against WorkDir by the engine.
type RunSpec struct {
	WorkDir    string
	ExePath    string
	Args       []string
	Env        []string
	InputPath  string
	OutputPath string
	ErrorPath  string
	LogPath    string
	// SeccompRule is empty when no syscall filter applies.
	SeccompRule string
	UID         int
	GID         int
	Limits      ResourceLimit
}

// DefaultEnv is passed to every sandboxed process.
var DefaultEnv = []string{
	"LANG=en_US.UTF-8",
	"LANGUAGE=en_US:en",
	"LC_ALL=en_US.UTF-8",
	"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
}
