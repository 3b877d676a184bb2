// Package profile resolves per-language resource limit profiles.
package profile

import "strings"

// MaxRAMPlaceholder in ExtraArgs expands to the declared memory limit in bytes.
const MaxRAMPlaceholder = "{maxMemory}"

// LanguageRule adjusts limits for commands that contain Marker.
type LanguageRule struct {
	Name             string   `yaml:"name"`
	Marker           string   `yaml:"marker"`
	TimeMultiplier   float64  `yaml:"timeMultiplier"`
	MemoryMultiplier float64  `yaml:"memoryMultiplier"`
	UnlimitedMemory  bool     `yaml:"unlimitedMemory"`
	ExtraArgs        []string `yaml:"extraArgs"`
}

// DefaultLanguageRules returns the managed-runtime and scripting rules.
// Order matters: the first matching marker wins.
func DefaultLanguageRules() []LanguageRule {
	return []LanguageRule{
		{
			Name:            "java",
			Marker:          "java",
			TimeMultiplier:  2,
			UnlimitedMemory: true,
			ExtraArgs:       []string{"-XX:MaxRAM=" + MaxRAMPlaceholder},
		},
		{
			Name:             "python",
			Marker:           "py",
			TimeMultiplier:   2,
			MemoryMultiplier: 2,
		},
	}
}

func (r LanguageRule) matches(command string) bool {
	return r.Marker != "" && strings.Contains(command, r.Marker)
}
