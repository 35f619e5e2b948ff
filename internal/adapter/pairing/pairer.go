package pairing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/time/rate"

	"proximityd/internal/domain"
	"proximityd/internal/infra/config"
)

var (
	// "[NEW] Device AA:BB:CC:DD:EE:FF BMX_P100042" and the CHG variant.
	discoveryRe = regexp.MustCompile(`Device ([0-9A-Fa-f:]{17}) (\S.*)$`)
	// Identity address revealed once bonding completes, e.g.
	// "Device AA:BB:CC:DD:EE:FF Paired: yes".
	identityRe = regexp.MustCompile(`Device ([0-9A-Fa-f:]{17}) Paired: yes`)
)

// RegistryWriter records a confirmed (tenantId, mac) mapping.
type RegistryWriter interface {
	Upsert(id, mac string) error
}

// Pairer watches controller discovery output for provisioning beacons and
// bonds with them. A beacon advertises the tenant id as a name suffix; a
// successful bond writes the tenant's identity address into the registry,
// which the presence engine then picks up through the file watcher.
type Pairer struct {
	cfg     config.PairingConfig
	runner  Runner
	reg     RegistryWriter
	bus     domain.EventBus
	log     *slog.Logger
	limiter *rate.Limiter

	attemptedMACs  map[string]bool
	attemptedNames map[string]bool
}

// New creates a pairer. bus may be nil.
func New(cfg config.PairingConfig, runner Runner, reg RegistryWriter, bus domain.EventBus, log *slog.Logger) *Pairer {
	return &Pairer{
		cfg:            cfg,
		runner:         runner,
		reg:            reg,
		bus:            bus,
		log:            log,
		limiter:        rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		attemptedMACs:  make(map[string]bool),
		attemptedNames: make(map[string]bool),
	}
}

// Run scans for beacons and pairs them until ctx is cancelled.
func (p *Pairer) Run(ctx context.Context) error {
	sess, err := p.runner.Start(ctx)
	if err != nil {
		return fmt.Errorf("pairing session: %w", err)
	}
	defer sess.Close()

	if err := sess.Send("scan on"); err != nil {
		return fmt.Errorf("enable scan: %w", err)
	}
	p.log.Info("pairing scan started", "prefix", p.cfg.BeaconPrefix)

	for {
		select {
		case <-ctx.Done():
			sess.Send("scan off")
			return nil
		case line, ok := <-sess.Lines():
			if !ok {
				return nil
			}
			mac, name, ok := parseDiscovery(line)
			if !ok || !strings.HasPrefix(name, p.cfg.BeaconPrefix) {
				continue
			}
			p.maybePair(ctx, sess, mac, name)
		}
	}
}

func parseDiscovery(line string) (mac, name string, ok bool) {
	m := discoveryRe.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	return domain.NormalizeMAC(m[1]), strings.TrimSpace(m[2]), true
}

func (p *Pairer) maybePair(ctx context.Context, sess Session, mac, name string) {
	if p.attemptedMACs[mac] || p.attemptedNames[name] {
		p.log.Debug("beacon already attempted", "mac", mac, "name", name)
		return
	}
	if !p.limiter.Allow() {
		p.log.Debug("pairing attempt rate limited", "mac", mac)
		return
	}
	p.attemptedMACs[mac] = true
	p.attemptedNames[name] = true

	sessionID := ulid.Make().String()
	tenantID := strings.TrimPrefix(name, p.cfg.BeaconPrefix)
	p.log.Info("pairing attempt", "session_id", sessionID, "tenant_id", tenantID, "mac", mac)

	identityMAC, err := p.pair(ctx, sess, mac)
	result := domain.PairResult{
		SessionID:   sessionID,
		TenantID:    tenantID,
		BeaconName:  name,
		BeaconMAC:   mac,
		IdentityMAC: identityMAC,
	}

	if err != nil {
		result.Reason = err.Error()
		p.log.Warn("pairing failed", "session_id", sessionID, "mac", mac, "error", err)
		p.publish(ctx, domain.EventPairFailed, result)
	} else {
		if err := p.reg.Upsert(tenantID, identityMAC); err != nil {
			p.log.Error("registry write after pairing failed", "tenant_id", tenantID, "error", err)
		}
		p.log.Info("pairing successful", "session_id", sessionID, "tenant_id", tenantID, "identity_mac", identityMAC)
		p.publish(ctx, domain.EventPairSucceeded, result)
	}

	// Quiet period before engaging the next beacon; bonding stirs up a burst
	// of discovery traffic that should settle first.
	select {
	case <-ctx.Done():
	case <-time.After(p.cfg.Cooldown):
	}
}

// pair runs one bond exchange. The beacon address may be a random private
// address; the identity address revealed during bonding is the one presence
// tracking needs, so it is captured when the controller prints it and the
// beacon address is the fallback.
func (p *Pairer) pair(ctx context.Context, sess Session, mac string) (string, error) {
	if err := sess.Send("pair " + mac); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrPairFailed, err)
	}

	identityMAC := mac
	timeout := time.After(p.cfg.CommandTimeout)

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout:
			return "", fmt.Errorf("%w: no outcome within %s", domain.ErrPairFailed, p.cfg.CommandTimeout)
		case line, ok := <-sess.Lines():
			if !ok {
				return "", fmt.Errorf("%w: controller session closed", domain.ErrPairFailed)
			}

			if m := identityRe.FindStringSubmatch(line); m != nil {
				identityMAC = domain.NormalizeMAC(m[1])
			}

			switch {
			case strings.Contains(line, "Confirm passkey"):
				if err := sess.Send("yes"); err != nil {
					return "", fmt.Errorf("%w: %v", domain.ErrPairFailed, err)
				}
			case strings.Contains(line, "Pairing successful"):
				// Keep the bond across restarts and let the device settle.
				sess.Send("trust " + identityMAC)
				sess.Send("connect " + identityMAC)
				return identityMAC, nil
			case strings.Contains(line, "Failed to pair"):
				return "", domain.ErrPairFailed
			case strings.Contains(line, "Device not available"):
				return "", domain.ErrDeviceUnavailable
			}
		}
	}
}

func (p *Pairer) publish(ctx context.Context, typ domain.EventType, result domain.PairResult) {
	if p.bus == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	p.bus.Publish(ctx, domain.Event{Type: typ, Timestamp: time.Now(), Payload: payload})
}
