package domain

import (
	"strings"
	"time"
)

// Tenant is one tracked mobile identity, keyed by its normalized hardware
// address. The live fields are owned by the presence engine's goroutine and
// must never be touched from any other context.
type Tenant struct {
	MAC      string // normalized, unique key
	TenantID string // opaque identifier from the registry

	// Live tracking state.
	EWMA        *float64    // smoothed RSSI in dBm; nil until first observation
	PacketTimes []time.Time // observation times within the rolling window
	IsNear      bool        // hysteresis classifier output; starts FAR
	LastSeen    time.Time   // zero until first observation
	PendingRSSI []int       // raw samples since the last publish, drained per tick
}

// PacketCount returns the number of observations currently in the window.
func (t *Tenant) PacketCount() int { return len(t.PacketTimes) }

// RegistryEntry is one (tenantId, mac) pair from the external registry file.
type RegistryEntry struct {
	ID  string `json:"id"`
	MAC string `json:"mac"`
}

// RegistrySnapshot is an immutable point-in-time read of the tenant registry.
// Order is the file order and is preserved through reconciliation so that
// published snapshots are stable.
type RegistrySnapshot struct {
	Entries []RegistryEntry
}

// Equal reports whether two snapshots carry identical entries in the same
// order. Reconciliation is skipped entirely for an unchanged snapshot.
func (s RegistrySnapshot) Equal(other RegistrySnapshot) bool {
	if len(s.Entries) != len(other.Entries) {
		return false
	}
	for i, e := range s.Entries {
		if e != other.Entries[i] {
			return false
		}
	}
	return true
}

// Observation is a single BLE advertisement sighting delivered by the
// scanning collaborator.
type Observation struct {
	MAC  string    // as reported by the radio; normalized on ingest
	RSSI int       // dBm
	At   time.Time
}

// TenantStatus is the per-tenant element of a published snapshot.
type TenantStatus struct {
	TenantID    string   `json:"tenantId"`
	MACAddress  string   `json:"macAddress"`
	IsNear      bool     `json:"isNear"`
	EWMA        *float64 `json:"ewma"`
	PacketCount int      `json:"packetCount"`
	ExtraRSSIs  []int    `json:"extraRssis"`
}

// NormalizeMAC canonicalizes a hardware address: uppercase, colon-delimited.
// Registry entries and observations are both normalized so lookups never
// miss on case or delimiter differences.
func NormalizeMAC(mac string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(mac), "-", ":"))
}
