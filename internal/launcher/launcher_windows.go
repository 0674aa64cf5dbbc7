//go:build windows

package launcher

import "syscall"

// DETACHED_PROCESS
const detachedProcess = 0x00000008

func detachedAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: detachedProcess}
}
