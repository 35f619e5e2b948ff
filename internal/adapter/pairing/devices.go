package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proximityd/internal/domain"
)

// Device is one bonded device known to the controller.
type Device struct {
	MAC  string
	Name string
}

// Manager performs one-shot bonded-device operations, used by the CLI
// subcommands rather than the long-running daemon.
type Manager struct {
	runner Runner
	log    *slog.Logger

	// settle bounds how long listing waits for controller output, since
	// bluetoothctl prints no end-of-list marker.
	settle time.Duration
}

// NewManager creates a device manager.
func NewManager(runner Runner, log *slog.Logger) *Manager {
	return &Manager{runner: runner, log: log, settle: 2 * time.Second}
}

// ListPaired returns the devices currently bonded with the controller.
func (m *Manager) ListPaired(ctx context.Context) ([]Device, error) {
	sess, err := m.runner.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("controller session: %w", err)
	}
	defer sess.Close()

	if err := sess.Send("paired-devices"); err != nil {
		return nil, fmt.Errorf("list paired: %w", err)
	}

	var devices []Device
	deadline := time.After(m.settle)
	for {
		select {
		case <-ctx.Done():
			return devices, ctx.Err()
		case <-deadline:
			return devices, nil
		case line, ok := <-sess.Lines():
			if !ok {
				return devices, nil
			}
			if mac, name, ok := parseDiscovery(line); ok {
				devices = append(devices, Device{MAC: domain.NormalizeMAC(mac), Name: name})
			}
		}
	}
}

// RemoveAll unbonds every paired device and returns how many were removed.
func (m *Manager) RemoveAll(ctx context.Context) (int, error) {
	devices, err := m.ListPaired(ctx)
	if err != nil {
		return 0, err
	}
	if len(devices) == 0 {
		return 0, nil
	}

	sess, err := m.runner.Start(ctx)
	if err != nil {
		return 0, fmt.Errorf("controller session: %w", err)
	}
	defer sess.Close()

	removed := 0
	for _, d := range devices {
		if err := sess.Send("remove " + d.MAC); err != nil {
			return removed, fmt.Errorf("remove %s: %w", d.MAC, err)
		}
		m.log.Info("removed bonded device", "mac", d.MAC, "name", d.Name)
		removed++
	}
	return removed, nil
}
