package actuator

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"proximityd/internal/domain"
)

func TestSysfsWritesDecimalLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brightness")
	s := NewSysfs(path)

	if err := s.SetLevel(130); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "130" {
		t.Errorf("expected %q, got %q", "130", data)
	}
}

func TestSysfsOverwritesPreviousLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brightness")
	s := NewSysfs(path)

	if err := s.SetLevel(255); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	if err := s.SetLevel(10); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "10" {
		t.Errorf("expected %q, got %q", "10", data)
	}
}

func TestSysfsMissingTargetIsActuatorError(t *testing.T) {
	s := NewSysfs(filepath.Join(t.TempDir(), "no", "such", "dir", "brightness"))

	err := s.SetLevel(10)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, domain.ErrActuatorWrite) {
		t.Errorf("expected ErrActuatorWrite, got %v", err)
	}
}
