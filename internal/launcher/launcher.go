// Package launcher starts the licensed application once seats are free.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/CloudNativeWorks/license-chaser/chaser"
)

var (
	ErrNoExecutable      = errors.New("no executable configured")
	ErrExecutableMissing = errors.New("executable not found")
)

// Launcher maps products to executables and starts them detached from the
// current process. Started processes outlive the chaser.
type Launcher struct {
	logger *zap.Logger

	mu          sync.RWMutex
	executables map[chaser.ProductKind]string
}

// New creates a Launcher. A nil logger discards logs.
func New(executables map[chaser.ProductKind]string, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Launcher{logger: logger}
	l.SetExecutables(executables)
	return l
}

// SetExecutables replaces the product to executable mapping.
func (l *Launcher) SetExecutables(executables map[chaser.ProductKind]string) {
	exes := make(map[chaser.ProductKind]string, len(executables))
	for k, v := range executables {
		exes[k] = v
	}
	l.mu.Lock()
	l.executables = exes
	l.mu.Unlock()
}

// Resolve returns the executable for kind after checking that it exists.
func (l *Launcher) Resolve(kind chaser.ProductKind) (string, error) {
	l.mu.RLock()
	path := l.executables[kind]
	l.mu.RUnlock()
	if path == "" {
		return "", fmt.Errorf("%w for %s", ErrNoExecutable, kind)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExecutableMissing, path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrExecutableMissing, path)
	}
	return path, nil
}

// Launch starts the executable for kind with no arguments and returns its
// pid. Standard streams go to the null device and the process is not
// waited for.
func (l *Launcher) Launch(kind chaser.ProductKind) (int, error) {
	path, err := l.Resolve(kind)
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(path)
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		l.logger.Error("launch failed", zap.Stringer("product", kind), zap.String("executable", path), zap.Error(err))
		return 0, fmt.Errorf("start %s: %w", path, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		l.logger.Warn("release process", zap.Int("pid", pid), zap.Error(err))
	}
	l.logger.Info("launched", zap.Stringer("product", kind), zap.String("executable", path), zap.Int("pid", pid))
	return pid, nil
}
