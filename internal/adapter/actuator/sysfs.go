package actuator

import (
	"fmt"
	"os"
	"strconv"

	"proximityd/internal/domain"
)

// Sysfs drives an output through a kernel sysfs attribute, typically an LED
// brightness file. Each level write opens, writes, and closes the file; the
// kernel applies it immediately.
type Sysfs struct {
	path string
}

// NewSysfs creates a sysfs actuator writing to the given attribute path.
func NewSysfs(path string) *Sysfs {
	return &Sysfs{path: path}
}

// SetLevel writes the level as a decimal string.
func (s *Sysfs) SetLevel(level int) error {
	if err := os.WriteFile(s.path, []byte(strconv.Itoa(level)), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrActuatorWrite, s.path, err)
	}
	return nil
}
