//go:build plan9

package launcher

import "syscall"

func detachedAttr() *syscall.SysProcAttr { return nil }
