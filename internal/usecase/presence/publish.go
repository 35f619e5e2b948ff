package presence

import (
	"context"

	"proximityd/internal/domain"
	"proximityd/internal/infra/tracer"
)

// tick builds and publishes one snapshot, then runs the per-tick reactions.
//
// Every tracked tenant gets its window pruned and its classification
// refreshed first, so a tenant that went silent drops to FAR even though no
// observation arrived to trigger the transition. The published snapshot
// then carries only tenants that have been seen and are fresh; stale and
// never-seen tenants stay tracked but are withheld from subscribers.
// Alpha adaptation and the feedback controller react to the full tracked
// set, not the filtered one.
func (e *Engine) tick(ctx context.Context) {
	ctx, span := tracer.StartSpan(ctx, "publish.tick")
	defer span.End()

	now := e.now()
	anyoneNear := false
	statuses := make([]domain.TenantStatus, 0, len(e.order))

	for _, mac := range e.order {
		t := e.tenants[mac]

		e.pruneWindow(t, now)
		e.classify(t)
		if t.IsNear {
			anyoneNear = true
		}

		if t.LastSeen.IsZero() || now.Sub(t.LastSeen) > e.cfg.TenantTimeout {
			continue
		}

		var ewma *float64
		if t.EWMA != nil {
			v := *t.EWMA
			ewma = &v
		}

		// Drain pending samples so each raw reading is reported exactly once.
		extra := t.PendingRSSI
		if extra == nil {
			extra = []int{}
		}
		t.PendingRSSI = nil

		statuses = append(statuses, domain.TenantStatus{
			TenantID:    t.TenantID,
			MACAddress:  t.MAC,
			IsNear:      t.IsNear,
			EWMA:        ewma,
			PacketCount: t.PacketCount(),
			ExtraRSSIs:  extra,
		})
	}

	e.adaptAlpha(anyoneNear)
	if e.feedback != nil {
		e.feedback.Step(ctx, anyoneNear)
	}

	if e.pub != nil {
		e.pub.PublishSnapshot(ctx, statuses)
	}
	span.SetAttributes(
		tracer.IntAttr("tenants.published", len(statuses)),
		tracer.IntAttr("tenants.tracked", len(e.tenants)),
	)
}
