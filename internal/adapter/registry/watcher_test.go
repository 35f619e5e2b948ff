package registry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherNotifiesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tenantsAndMacs": []}`), 0o644))

	notified := make(chan struct{}, 8)
	w := NewWatcher(path, 50*time.Millisecond, func() { notified <- struct{}{} },
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	// Let the watch get established before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{"tenantsAndMacs": [{"id":"1","mac":"AA:AA:AA:AA:AA:AA"}]}`), 0o644))

	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after registry write")
	}
}

func TestWatcherSeesAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tenantsAndMacs": []}`), 0o644))

	notified := make(chan struct{}, 8)
	w := NewWatcher(path, 50*time.Millisecond, func() { notified <- struct{}{} },
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	// Replace via temp file + rename, the way FileSource writes.
	require.NoError(t, NewFileSource(path).Upsert("100001", "AA:AA:AA:AA:AA:AA"))

	select {
	case <-notified:
	case <-time.After(3 * time.Second):
		t.Fatal("no notification after atomic replace")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tenantsAndMacs": []}`), 0o644))

	var count atomic.Int32
	w := NewWatcher(path, 50*time.Millisecond, func() { count.Add(1) },
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0o644))
	time.Sleep(300 * time.Millisecond)

	if count.Load() != 0 {
		t.Fatalf("expected no notifications for sibling files, got %d", count.Load())
	}
}
