package presence

import (
	"context"
	"encoding/json"

	"proximityd/internal/domain"
)

// classify runs the two-state hysteresis machine for one tenant.
//
// FAR to NEAR requires both a smoothed signal at or above the enter
// threshold and enough packets in the window. NEAR to FAR fires when either
// the signal drops below the exit threshold or the window starves. Inside
// the band between the two thresholds the state holds, which is what keeps
// a tenant hovering at the boundary from flapping.
func (e *Engine) classify(t *domain.Tenant) {
	if t.EWMA == nil {
		return
	}

	ewma := *t.EWMA
	packets := t.PacketCount()

	switch {
	case !t.IsNear && ewma >= e.cfg.EnterThreshold && packets >= e.cfg.PacketsRequired:
		t.IsNear = true
		e.log.Info("tenant near", "tenant_id", t.TenantID, "mac", t.MAC, "ewma", ewma, "packets", packets)
		e.emitPresence(t, ewma, packets)
	case t.IsNear && (ewma < e.cfg.ExitThreshold || packets < e.cfg.PacketsRequired):
		t.IsNear = false
		e.log.Info("tenant far", "tenant_id", t.TenantID, "mac", t.MAC, "ewma", ewma, "packets", packets)
		e.emitPresence(t, ewma, packets)
	}
}

// adaptAlpha retargets the process-wide smoothing weight once per publish
// tick. With anyone near, new samples dominate so departures register
// quickly; with everyone far, history dominates and arrivals are smoothed
// harder. The weight applies to every tenant's next update, not only the
// one that caused the switch.
func (e *Engine) adaptAlpha(anyoneNear bool) {
	target := e.cfg.AlphaFar
	if anyoneNear {
		target = e.cfg.AlphaNear
	}
	if e.alpha != target {
		e.alpha = target
		e.log.Debug("smoothing weight adjusted", "alpha", target, "anyone_near", anyoneNear)
	}
}

func (e *Engine) emitPresence(t *domain.Tenant, ewma float64, packets int) {
	payload, err := json.Marshal(domain.PresenceChange{
		TenantID:    t.TenantID,
		MACAddress:  t.MAC,
		IsNear:      t.IsNear,
		EWMA:        ewma,
		PacketCount: packets,
	})
	if err != nil {
		return
	}
	e.emit(context.Background(), domain.EventPresenceChanged, payload)
}

func (e *Engine) emit(ctx context.Context, typ domain.EventType, payload json.RawMessage) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, domain.Event{Type: typ, Timestamp: e.now(), Payload: payload})
}
