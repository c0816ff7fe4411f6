package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatchRequiresRoot(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{Root: "  "}, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root path is required")
}

func TestWatchInitialScan(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "card.jpg")
	require.NoError(t, os.WriteFile(existing, []byte("img"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Root: root, InitialScan: true}, discardLogger())
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, existing, p)
	case <-time.After(2 * time.Second):
		t.Fatal("initial scan emitted nothing")
	}
}

// A stream of files landing while the consumer reads concurrently must all
// come through, and the run must stay clean under the race detector.
func TestWatchDeliversBurstOfFiles(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, errs, err := Watch(ctx, WatchConfig{Root: root, Debounce: 2 * time.Millisecond}, discardLogger())
	require.NoError(t, err)

	const n = 120
	want := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		want[filepath.Join(root, fmt.Sprintf("card-%03d.jpg", i))] = struct{}{}
	}
	go func() {
		for path := range want {
			_ = os.WriteFile(path, []byte("img"), 0o644)
		}
	}()

	got := make(map[string]struct{}, n)
	deadline := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case p, ok := <-events:
			require.True(t, ok, "event channel closed early")
			got[p] = struct{}{}
		case werr := <-errs:
			t.Fatalf("watch error: %v", werr)
		case <-deadline:
			t.Fatalf("received %d of %d files", len(got), n)
		}
	}
	assert.Equal(t, want, got)
}

func TestWatchCoalescesWriteBursts(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "card.png")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Root: root, Debounce: 50 * time.Millisecond}, discardLogger())
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}

	var emitted []string
	quiet := time.After(400 * time.Millisecond)
collect:
	for {
		select {
		case p := <-events:
			emitted = append(emitted, p)
		case <-quiet:
			break collect
		}
	}
	require.NotEmpty(t, emitted)
	for _, p := range emitted {
		assert.Equal(t, path, p)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	events, errs, err := Watch(ctx, WatchConfig{Root: root}, discardLogger())
	require.NoError(t, err)

	cancel()
	for range events {
	}
	_, ok := <-errs
	assert.False(t, ok)
}
