package scanner

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proximityd/internal/domain"
)

func writeCapture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "capture.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReplayEmitsInOrder(t *testing.T) {
	path := writeCapture(t, `
{"mac": "AA:BB:CC:DD:EE:FF", "rssi": -60}
{"mac": "AA:BB:CC:DD:EE:FF", "rssi": -62}
{"mac": "11:22:33:44:55:66", "rssi": -80}
`)

	var got []domain.Observation
	r := NewReplay(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := r.Run(context.Background(), func(obs domain.Observation) {
		got = append(got, obs)
	})
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, -60, got[0].RSSI)
	assert.Equal(t, -62, got[1].RSSI)
	assert.Equal(t, "11:22:33:44:55:66", got[2].MAC)
	assert.False(t, got[0].At.IsZero())
}

func TestReplaySkipsCommentsAndMalformedLines(t *testing.T) {
	path := writeCapture(t, `
# capture from the lobby unit
{"mac": "AA:BB:CC:DD:EE:FF", "rssi": -60}
not json at all
{"mac": "AA:BB:CC:DD:EE:FF", "rssi": -61}
`)

	var count int
	r := NewReplay(path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := r.Run(context.Background(), func(domain.Observation) { count++ })
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestReplayMissingFileErrors(t *testing.T) {
	r := NewReplay(filepath.Join(t.TempDir(), "nope.jsonl"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := r.Run(context.Background(), func(domain.Observation) {})
	assert.Error(t, err)
}
