package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"proximityd/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS presence_transitions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id    TEXT    NOT NULL,
	mac          TEXT    NOT NULL,
	is_near      INTEGER NOT NULL,
	ewma         REAL    NOT NULL,
	packet_count INTEGER NOT NULL,
	at           TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_tenant ON presence_transitions(tenant_id, id);
`

// Transition is one recorded presence state change.
type Transition struct {
	TenantID    string
	MAC         string
	IsNear      bool
	EWMA        float64
	PacketCount int
	At          time.Time
}

// Store persists presence transitions to SQLite so operators can review
// when tenants came and went after the fact.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open creates or opens the transition database at path.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// The pure-Go driver serializes writes itself, but a single connection
	// keeps SQLITE_BUSY out of the picture entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Attach subscribes the store to presence change events. Returns the
// unsubscribe function.
func (s *Store) Attach(bus domain.EventBus) func() {
	return bus.Subscribe(domain.EventPresenceChanged, func(ctx context.Context, event domain.Event) {
		var change domain.PresenceChange
		if err := json.Unmarshal(event.Payload, &change); err != nil {
			s.log.Warn("undecodable presence event", "error", err)
			return
		}
		if err := s.Record(ctx, change, event.Timestamp); err != nil {
			s.log.Warn("history write failed", "tenant_id", change.TenantID, "error", err)
		}
	})
}

// Record inserts one transition.
func (s *Store) Record(ctx context.Context, change domain.PresenceChange, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO presence_transitions (tenant_id, mac, is_near, ewma, packet_count, at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		change.TenantID, change.MACAddress, boolToInt(change.IsNear),
		change.EWMA, change.PacketCount, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// Recent returns the newest transitions, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, mac, is_near, ewma, packet_count, at
		 FROM presence_transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var tr Transition
		var near int
		var at string
		if err := rows.Scan(&tr.TenantID, &tr.MAC, &near, &tr.EWMA, &tr.PacketCount, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.IsNear = near != 0
		tr.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
