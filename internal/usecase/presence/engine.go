package presence

import (
	"context"
	"log/slog"
	"time"

	"proximityd/internal/domain"
	"proximityd/internal/infra/config"
	"proximityd/internal/infra/tracer"
)

// RegistrySource reads the external tenant registry.
type RegistrySource interface {
	// Load returns the current snapshot. A missing file or missing top-level
	// key yields an empty snapshot, not an error; malformed content is an
	// error and the caller falls back to an empty snapshot for that attempt.
	Load() (domain.RegistrySnapshot, error)
}

// Publisher receives the per-tick snapshot for fan-out to subscribers.
// Delivery is best-effort; implementations must not block the engine.
type Publisher interface {
	PublishSnapshot(ctx context.Context, statuses []domain.TenantStatus)
}

// Engine owns all tenant tracking state. A single goroutine (Run) applies
// observations, publish ticks, and registry reloads one at a time, so the
// per-tenant fields are never mutated concurrently.
type Engine struct {
	cfg      config.PresenceConfig
	log      *slog.Logger
	bus      domain.EventBus
	source   RegistrySource
	pub      Publisher
	feedback *FeedbackController

	alpha       float64 // process-wide EWMA weight, adapted once per tick
	tenants     map[string]*domain.Tenant
	order       []string // registry-file order, kept for stable snapshots
	lastApplied domain.RegistrySnapshot
	loadedOnce  bool

	obsCh    chan domain.Observation
	reloadCh chan struct{}
	now      func() time.Time
}

// New creates a presence engine. bus may be nil (no transition events).
func New(cfg config.PresenceConfig, source RegistrySource, pub Publisher, fb *FeedbackController, bus domain.EventBus, log *slog.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		log:      log,
		bus:      bus,
		source:   source,
		pub:      pub,
		feedback: fb,
		alpha:    cfg.AlphaFar,
		tenants:  make(map[string]*domain.Tenant),
		obsCh:    make(chan domain.Observation, 256),
		reloadCh: make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Alpha returns the current process-wide EWMA weight.
func (e *Engine) Alpha() float64 { return e.alpha }

// Observe hands a BLE sighting to the engine. Safe to call from any
// goroutine. Drops the observation when the engine is saturated:
// advertisements carry no delivery guarantee.
func (e *Engine) Observe(obs domain.Observation) {
	select {
	case e.obsCh <- obs:
	default:
	}
}

// NotifyRegistryChanged signals that the registry file may have changed.
// Safe to call from any goroutine; repeated signals coalesce. The engine's
// own goroutine performs the re-read and reconciliation.
func (e *Engine) NotifyRegistryChanged() {
	select {
	case e.reloadCh <- struct{}{}:
	default:
	}
}

// Run loads the registry and then serves observations, publish ticks, and
// reload triggers until ctx is cancelled. Each unit of work runs to
// completion before the next is taken.
func (e *Engine) Run(ctx context.Context) error {
	e.reload(ctx)

	ticker := time.NewTicker(time.Second / time.Duration(e.cfg.BroadcastHz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case obs := <-e.obsCh:
			e.observe(obs)
		case <-ticker.C:
			e.tick(ctx)
		case <-e.reloadCh:
			e.reload(ctx)
		}
	}
}

// reload re-reads the registry and reconciles when the snapshot changed.
// Read failures degrade to an empty snapshot for this attempt only.
func (e *Engine) reload(ctx context.Context) {
	ctx, span := tracer.StartSpan(ctx, "registry.reload")
	defer span.End()

	snap, err := e.source.Load()
	if err != nil {
		e.log.Warn("registry read failed, applying empty snapshot", "error", err)
		tracer.RecordError(span, err)
		snap = domain.RegistrySnapshot{}
	}

	if e.loadedOnce && snap.Equal(e.lastApplied) {
		return
	}

	res := e.reconcile(snap)
	e.lastApplied = snap
	e.loadedOnce = true
	span.SetAttributes(tracer.IntAttr("tenants", len(e.tenants)))
	e.log.Info("registry reconciled",
		"tenants", len(e.tenants),
		"added", res.Added,
		"removed", res.Removed,
		"updated", res.Updated,
	)
	e.emit(ctx, domain.EventRegistryReloaded, nil)
}
