package presence

import "proximityd/internal/domain"

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Added   int
	Removed int
	Updated int
}

// reconcile replaces the tracked tenant set with the given snapshot.
// Tenants whose MAC persists keep their live state untouched; a changed
// tenantId is rewritten in place. Duplicate MACs within one snapshot
// resolve last-write-wins. The snapshot's order becomes the publish order.
func (e *Engine) reconcile(snap domain.RegistrySnapshot) ReconcileResult {
	var res ReconcileResult

	next := make(map[string]*domain.Tenant, len(snap.Entries))
	order := make([]string, 0, len(snap.Entries))

	for _, entry := range snap.Entries {
		mac := domain.NormalizeMAC(entry.MAC)
		if dup, ok := next[mac]; ok {
			dup.TenantID = entry.ID
			continue
		}

		if t, ok := e.tenants[mac]; ok {
			if t.TenantID != entry.ID {
				e.log.Info("tenant id updated", "mac", mac, "old", t.TenantID, "new", entry.ID)
				t.TenantID = entry.ID
				res.Updated++
			}
			next[mac] = t
		} else {
			next[mac] = &domain.Tenant{MAC: mac, TenantID: entry.ID}
			e.log.Info("tenant added", "tenant_id", entry.ID, "mac", mac)
			res.Added++
		}
		order = append(order, mac)
	}

	for mac, t := range e.tenants {
		if _, ok := next[mac]; !ok {
			e.log.Info("tenant removed", "tenant_id", t.TenantID, "mac", mac)
			res.Removed++
		}
	}

	e.tenants = next
	e.order = order
	return res
}
