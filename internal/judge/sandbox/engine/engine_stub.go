//go:build !linux

package engine

import (
	"os"
	"syscall"
)

func buildSysProcAttr() *syscall.SysProcAttr {
	return nil
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	if p, err := os.FindProcess(pid); err == nil {
		_ = p.Kill()
	}
}
