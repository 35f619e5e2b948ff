package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"proximityd/internal/domain"
)

// registryFile mirrors the on-disk document:
//
//	{"tenantsAndMacs": [{"id": "...", "mac": "..."}, ...]}
type registryFile struct {
	TenantsAndMacs []domain.RegistryEntry `json:"tenantsAndMacs"`
}

// FileSource reads and writes the tenant registry file. External editors
// own the file too; FileSource only serializes its own writers, the
// presence engine picks up outside edits through the watcher.
type FileSource struct {
	path string
	mu   sync.Mutex
}

// NewFileSource creates a source for the registry at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the registry file location.
func (f *FileSource) Path() string { return f.path }

// Load reads the current snapshot. A missing file, an empty file, or a
// document without the tenants key all yield an empty snapshot without
// error. Content that fails to parse is an error.
func (f *FileSource) Load() (domain.RegistrySnapshot, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.RegistrySnapshot{}, nil
	}
	if err != nil {
		return domain.RegistrySnapshot{}, fmt.Errorf("read registry: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.RegistrySnapshot{}, nil
	}

	var doc registryFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return domain.RegistrySnapshot{}, fmt.Errorf("%w: %v", domain.ErrRegistryMalformed, err)
	}
	return domain.RegistrySnapshot{Entries: doc.TenantsAndMacs}, nil
}

// Upsert records a (tenantId, mac) mapping. An existing entry with the same
// id has its mac replaced; any other entry claiming the same mac is removed
// first, since a hardware address maps to at most one tenant. New mappings
// append, preserving file order for everyone else.
func (f *FileSource) Upsert(id, mac string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, err := f.Load()
	if err != nil {
		return err
	}

	mac = domain.NormalizeMAC(mac)
	entries := make([]domain.RegistryEntry, 0, len(snap.Entries)+1)
	replaced := false
	for _, e := range snap.Entries {
		if e.ID != id && domain.NormalizeMAC(e.MAC) == mac {
			continue
		}
		if e.ID == id {
			e.MAC = mac
			replaced = true
		}
		entries = append(entries, e)
	}
	if !replaced {
		entries = append(entries, domain.RegistryEntry{ID: id, MAC: mac})
	}

	return f.write(entries)
}

// Reset truncates the registry to an empty document.
func (f *FileSource) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write([]domain.RegistryEntry{})
}

// write replaces the file atomically so watchers never observe a torn read.
func (f *FileSource) write(entries []domain.RegistryEntry) error {
	data, err := json.MarshalIndent(registryFile{TenantsAndMacs: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
