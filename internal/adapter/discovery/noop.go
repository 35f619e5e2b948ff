//go:build !mdns

package discovery

import (
	"context"
	"log/slog"
)

// MDNS is a no-op without mdns support compiled in.
type MDNS struct {
	logger *slog.Logger
}

// NewMDNS creates the no-op announcer.
func NewMDNS(_ string, logger *slog.Logger) *MDNS {
	return &MDNS{logger: logger}
}

// Announce logs that announcement is unavailable and returns immediately.
func (d *MDNS) Announce(_ context.Context, _ int, _ map[string]string) error {
	d.logger.Debug("mdns support not compiled in, skipping announcement")
	return nil
}
