package internal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tt "github.com/gnoverse/impact/internal/types"
)

func TestWatch(t *testing.T) {
	t.Parallel()

	dir := createTempDir(t, "watch-test")
	opts := defaultOptions()
	opts.Debounce = 20 * time.Millisecond
	engine := newTestEngine(t, opts)

	require.NoError(t, engine.StartWatching(dir))
	assert.Error(t, engine.StartWatching(dir))

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan tt.Report, 8)
	done := make(chan error, 1)
	go func() {
		done <- engine.Watch(ctx, func(r tt.Report) { reports <- r })
	}()

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	path := filepath.Join(dir, "prog.yaml")
	writeFile(t, path, unsafeProgram)

	select {
	case r := <-reports:
		assert.Equal(t, path, r.Filename)
		assert.Equal(t, tt.StatusUnsafe, r.Status)
	case <-time.After(10 * time.Second):
		t.Fatal("no report received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Error(t, engine.StopWatching())
}

func TestWatchBrokenFile(t *testing.T) {
	t.Parallel()

	dir := createTempDir(t, "watch-broken")
	opts := defaultOptions()
	opts.Debounce = 20 * time.Millisecond
	engine := newTestEngine(t, opts)
	require.NoError(t, engine.StartWatching(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reports := make(chan tt.Report, 8)
	go func() {
		_ = engine.Watch(ctx, func(r tt.Report) { reports <- r })
	}()

	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: [\n")

	select {
	case r := <-reports:
		assert.Equal(t, tt.StatusError, r.Status)
		assert.NotEmpty(t, r.Error)
	case <-time.After(10 * time.Second):
		t.Fatal("no report received")
	}
}

func TestWatchWithoutStart(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, defaultOptions())
	assert.Error(t, engine.Watch(context.Background(), func(tt.Report) {}))
	assert.Error(t, engine.StopWatching())
}
