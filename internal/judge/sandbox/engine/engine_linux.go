//go:build linux

package engine

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// The engine forks the untrusted child; a dedicated process group lets a
// cancelled run take the whole tree down.
func buildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: unix.SIGKILL,
	}
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}
