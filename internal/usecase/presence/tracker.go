package presence

import (
	"time"

	"proximityd/internal/domain"
)

// observe applies one advertisement to its tenant. Sightings from hardware
// addresses the registry does not map are discarded without any allocation
// of tracking state.
func (e *Engine) observe(obs domain.Observation) {
	mac := domain.NormalizeMAC(obs.MAC)
	t, ok := e.tenants[mac]
	if !ok {
		return
	}

	at := obs.At
	if at.IsZero() {
		at = e.now()
	}

	e.update(t, obs.RSSI, at)
	e.classify(t)
	t.LastSeen = at
}

// update folds one RSSI sample into the tenant's smoothed estimate and
// rolling packet window. The first sample seeds the EWMA directly so an
// implicit zero can never bias the estimate toward an impossibly strong
// signal.
func (e *Engine) update(t *domain.Tenant, rssi int, at time.Time) {
	sample := float64(rssi)
	if t.EWMA == nil {
		t.EWMA = &sample
	} else {
		v := e.alpha*sample + (1-e.alpha)*(*t.EWMA)
		t.EWMA = &v
	}

	t.PacketTimes = append(t.PacketTimes, at)
	e.pruneWindow(t, at)

	t.PendingRSSI = append(t.PendingRSSI, rssi)
}

// pruneWindow evicts packet timestamps older than the rolling window so the
// classifier always sees a correctly bounded count.
func (e *Engine) pruneWindow(t *domain.Tenant, now time.Time) {
	for len(t.PacketTimes) > 0 && now.Sub(t.PacketTimes[0]) > e.cfg.Window {
		t.PacketTimes = t.PacketTimes[1:]
	}
}
