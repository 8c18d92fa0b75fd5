package cli

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	watched := writeFile(t, dir, "ops.jsonl", "")
	other := writeFile(t, dir, "other.txt", "")
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFiles(ctx, log, []string{watched}, 20*time.Millisecond, func() { runs.Add(1) })
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "unrelated files are ignored")

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(watched, []byte("{}\n"), 0o600))
	}
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watchFiles did not return after cancel")
	}
}

func TestWatchFilesMissingDirectory(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	err := watchFiles(context.Background(), log, []string{filepath.Join(t.TempDir(), "gone", "ops.jsonl")}, time.Millisecond, func() {
		t.Error("run called")
	})
	assert.Error(t, err)
}
