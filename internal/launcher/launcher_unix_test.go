//go:build unix

package launcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/CloudNativeWorks/license-chaser/chaser"
)

func TestLaunch_StartsDetached(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	exe := filepath.Join(dir, "husk")
	script := "#!/bin/sh\necho $$ > " + marker + "\n"
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))

	l := New(map[chaser.ProductKind]string{chaser.ProductKarma: exe}, zaptest.NewLogger(t))
	pid, err := l.Launch(chaser.ProductKarma)
	require.NoError(t, err)
	assert.Positive(t, pid)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLaunch_NotExecutable(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(exe, []byte("hello"), 0o644))

	_, err := New(map[chaser.ProductKind]string{chaser.ProductCore: exe}, nil).Launch(chaser.ProductCore)
	assert.Error(t, err)
}
