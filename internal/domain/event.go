package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventPresenceChanged  EventType = "presence.changed"
	EventRegistryReloaded EventType = "registry.reloaded"
	EventPairSucceeded    EventType = "pair.succeeded"
	EventPairFailed       EventType = "pair.failed"
	EventActuatorLevel    EventType = "actuator.level"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// PresenceChange is the payload of EventPresenceChanged.
type PresenceChange struct {
	TenantID    string  `json:"tenantId"`
	MACAddress  string  `json:"macAddress"`
	IsNear      bool    `json:"isNear"`
	EWMA        float64 `json:"ewma"`
	PacketCount int     `json:"packetCount"`
}

// PairResult is the payload of EventPairSucceeded / EventPairFailed.
type PairResult struct {
	SessionID   string `json:"sessionId"`
	TenantID    string `json:"tenantId,omitempty"`
	BeaconName  string `json:"beaconName"`
	BeaconMAC   string `json:"beaconMac"`
	IdentityMAC string `json:"identityMac,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
