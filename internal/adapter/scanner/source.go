package scanner

import (
	"context"

	"proximityd/internal/domain"
)

// Source delivers BLE advertisement sightings to a sink until ctx is
// cancelled. Implementations run on their own goroutine; the sink must be
// safe to call from there.
type Source interface {
	Run(ctx context.Context, sink func(domain.Observation)) error
}
