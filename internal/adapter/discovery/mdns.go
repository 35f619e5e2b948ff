//go:build mdns

package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/grandcat/zeroconf"
)

const (
	mdnsServiceType = "_proximityd._tcp"
	mdnsDomain      = "local."
)

// MDNS announces the gateway on the local network via mDNS/DNS-SD so
// display clients can find the daemon without configuration.
type MDNS struct {
	instance string
	logger   *slog.Logger
}

// NewMDNS creates an announcer with the given instance name.
func NewMDNS(instance string, logger *slog.Logger) *MDNS {
	return &MDNS{instance: instance, logger: logger}
}

// Announce registers the service and blocks until ctx is cancelled.
// Call it in a goroutine.
func (d *MDNS) Announce(ctx context.Context, port int, metadata map[string]string) error {
	txt := make([]string, 0, len(metadata))
	for k, v := range metadata {
		txt = append(txt, k+"="+v)
	}

	server, err := zeroconf.Register(d.instance, mdnsServiceType, mdnsDomain, port, txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}

	d.logger.Info("mdns advertising", "instance", d.instance, "port", port)
	<-ctx.Done()
	server.Shutdown()
	return nil
}
