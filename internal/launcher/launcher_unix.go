//go:build unix

package launcher

import "syscall"

// detachedAttr puts the child in its own process group so terminal signals
// sent to the chaser do not reach it.
func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
