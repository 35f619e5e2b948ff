package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proximityd/internal/domain"
)

func tempSource(t *testing.T, content string) *FileSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return NewFileSource(path)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	src := tempSource(t, "")
	snap, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestLoadMissingKeyIsEmpty(t *testing.T) {
	src := tempSource(t, `{"somethingElse": true}`)
	snap, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestLoadBlankFileIsEmpty(t *testing.T) {
	src := tempSource(t, "\n  \n")
	snap, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestLoadMalformedIsError(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [`)
	_, err := src.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRegistryMalformed))
}

func TestLoadPreservesFileOrder(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [
		{"id": "100002", "mac": "BB:BB:BB:BB:BB:BB"},
		{"id": "100001", "mac": "AA:AA:AA:AA:AA:AA"}
	]}`)
	snap, err := src.Load()
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "100002", snap.Entries[0].ID)
	assert.Equal(t, "100001", snap.Entries[1].ID)
}

func TestUpsertAppendsNewMapping(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [{"id": "100001", "mac": "AA:AA:AA:AA:AA:AA"}]}`)

	require.NoError(t, src.Upsert("100002", "bb-bb-bb-bb-bb-bb"))

	snap, err := src.Load()
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, domain.RegistryEntry{ID: "100002", MAC: "BB:BB:BB:BB:BB:BB"}, snap.Entries[1])
}

func TestUpsertReplacesMACForExistingID(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [
		{"id": "100001", "mac": "AA:AA:AA:AA:AA:AA"},
		{"id": "100002", "mac": "BB:BB:BB:BB:BB:BB"}
	]}`)

	require.NoError(t, src.Upsert("100001", "CC:CC:CC:CC:CC:CC"))

	snap, err := src.Load()
	require.NoError(t, err)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "CC:CC:CC:CC:CC:CC", snap.Entries[0].MAC)
	assert.Equal(t, "100001", snap.Entries[0].ID)
}

func TestUpsertEvictsOtherOwnerOfSameMAC(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [{"id": "100001", "mac": "AA:AA:AA:AA:AA:AA"}]}`)

	require.NoError(t, src.Upsert("100002", "AA:AA:AA:AA:AA:AA"))

	snap, err := src.Load()
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "100002", snap.Entries[0].ID)
}

func TestUpsertCreatesFile(t *testing.T) {
	src := tempSource(t, "")
	require.NoError(t, src.Upsert("100001", "AA:AA:AA:AA:AA:AA"))

	snap, err := src.Load()
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
}

func TestResetTruncates(t *testing.T) {
	src := tempSource(t, `{"tenantsAndMacs": [{"id": "100001", "mac": "AA:AA:AA:AA:AA:AA"}]}`)

	require.NoError(t, src.Reset())

	snap, err := src.Load()
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)

	// Still a valid document, not a zero-byte file.
	data, err := os.ReadFile(src.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "tenantsAndMacs")
}
