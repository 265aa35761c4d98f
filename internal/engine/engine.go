package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const (
	// tickTimeout bounds one instance's tick so a hung gateway call cannot
	// stall the whole loop past a market close.
	tickTimeout = 20 * time.Second

	// attemptEvictionEvery: how often the idempotency table is purged of
	// markets that already closed.
	attemptEvictionEvery = 10 * time.Minute
)

// SignalFactory construye el entry signal de una estrategia a partir de su
// config. Se registra por nombre en el Engine.
type SignalFactory func(cfg domain.StrategyConfig) (EntrySignal, error)

// ReconcilerFactory construye el reconciler de una estrategia. Es una factory
// porque el reference feed depende del símbolo y del intervalo de la serie.
type ReconcilerFactory func(cfg domain.StrategyConfig) *Reconciler

// InstanceStatus is one row of the operator status report. Position is a
// detached copy, never the live one owned by the tick loop.
type InstanceStatus struct {
	Tag      string
	Signal   string
	Series   string
	Stats    domain.AggregateStats
	Position *domain.Position // nil when idle
}

// Engine runs all Strategy Instances on a single cooperative tick loop:
// one goroutine, each instance stepped sequentially every interval. Within
// an instance nothing ever races; across instances ordering is fixed by tag.
type Engine struct {
	gateway     ports.OrderGateway
	discovery   ports.MarketDiscovery
	store       ports.SnapshotStore
	events      ports.EventSink
	reconcilers ReconcilerFactory

	tickInterval time.Duration

	mu        sync.Mutex
	factories map[string]SignalFactory
	instances map[string]*Instance
}

// New builds the Engine. tickInterval is how often every instance is stepped.
func New(
	gateway ports.OrderGateway,
	discovery ports.MarketDiscovery,
	store ports.SnapshotStore,
	events ports.EventSink,
	reconcilers ReconcilerFactory,
	tickInterval time.Duration,
) *Engine {
	if tickInterval <= 0 {
		tickInterval = 3 * time.Second
	}
	return &Engine{
		gateway:      gateway,
		discovery:    discovery,
		store:        store,
		events:       events,
		reconcilers:  reconcilers,
		tickInterval: tickInterval,
		factories:    make(map[string]SignalFactory),
		instances:    make(map[string]*Instance),
	}
}

// RegisterSignal registra una factory de entry signal bajo un nombre. Las
// estrategias la referencian por ese nombre en su config.
func (e *Engine) RegisterSignal(name string, f SignalFactory) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.factories[name] = f
}

// StartStrategy creates, restores and registers an instance. Restoring first
// means a crashed-and-restarted strategy resumes its live position before the
// first tick runs.
func (e *Engine) StartStrategy(ctx context.Context, cfg domain.StrategyConfig) error {
	e.mu.Lock()
	factory, ok := e.factories[cfg.Signal]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("engine.StartStrategy: unknown signal %q", cfg.Signal)
	}
	if _, exists := e.instances[cfg.Tag]; exists {
		e.mu.Unlock()
		return fmt.Errorf("engine.StartStrategy: strategy %q already running", cfg.Tag)
	}
	e.mu.Unlock()

	sig, err := factory(cfg)
	if err != nil {
		return fmt.Errorf("engine.StartStrategy: %s: %w", cfg.Tag, err)
	}

	inst := NewInstance(cfg, sig, e.gateway, e.discovery, e.store, e.events, e.reconcilers(cfg))
	if err := inst.Restore(ctx, time.Now().UTC()); err != nil {
		return fmt.Errorf("engine.StartStrategy: %s: %w", cfg.Tag, err)
	}

	e.mu.Lock()
	e.instances[cfg.Tag] = inst
	e.mu.Unlock()

	slog.Info("engine: strategy started",
		"tag", cfg.Tag, "signal", cfg.Signal, "series", cfg.Series,
		"notional", cfg.NotionalPerTrade, "hold_to_resolution", cfg.HoldToResolution)
	return nil
}

// StopStrategy deregisters an instance, cancels its dangling orders and
// returns the summary. Open positions are NOT liquidated — they stay in the
// snapshot for the operator to resume or handle manually.
func (e *Engine) StopStrategy(ctx context.Context, tag string) (domain.StoppedSummary, error) {
	e.mu.Lock()
	inst, ok := e.instances[tag]
	if ok {
		delete(e.instances, tag)
	}
	e.mu.Unlock()

	if !ok {
		return domain.StoppedSummary{}, fmt.Errorf("engine.StopStrategy: strategy %q not running", tag)
	}

	summary := inst.Shutdown(ctx, time.Now().UTC())
	slog.Info("engine: strategy stopped",
		"tag", tag,
		"trades", summary.Stats.TotalTrades,
		"pnl", summary.Stats.TotalPnL,
		"open_position", summary.OpenPosition != nil,
	)
	return summary, nil
}

// Status devuelve una fila por instancia, ordenadas por tag. Lee el snapshot
// que cada instancia publica al final de su tick: nunca toca el estado vivo
// del loop, así que es seguro desde cualquier goroutine.
func (e *Engine) Status() []InstanceStatus {
	e.mu.Lock()
	instances := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		instances = append(instances, inst)
	}
	e.mu.Unlock()

	out := make([]InstanceStatus, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tag < out[j].Tag })
	return out
}

// Run drives the tick loop until ctx is cancelled. Blocking.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine: loop started", "interval", e.tickInterval)

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()
	evict := time.NewTicker(attemptEvictionEvery)
	defer evict.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdownAll()
			slog.Info("engine: loop stopped")
			return ctx.Err()
		case <-evict.C:
			e.evictAttempts(ctx)
		case <-ticker.C:
			e.tickAll(ctx)
		}
	}
}

// tickAll steps every instance once, in tag order so logs stay comparable
// across runs. One instance failing never skips the rest.
func (e *Engine) tickAll(ctx context.Context) {
	e.mu.Lock()
	tags := make([]string, 0, len(e.instances))
	for tag := range e.instances {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	instances := make([]*Instance, 0, len(tags))
	for _, tag := range tags {
		instances = append(instances, e.instances[tag])
	}
	e.mu.Unlock()

	now := time.Now().UTC()
	for _, inst := range instances {
		tctx, cancel := context.WithTimeout(ctx, tickTimeout)
		if err := inst.Tick(tctx, now); err != nil {
			slog.Warn("engine: tick error", "tag", inst.Tag(), "err", err)
		}
		cancel()
		if ctx.Err() != nil {
			return
		}
	}
}

func (e *Engine) evictAttempts(ctx context.Context) {
	n, err := e.store.EvictExpiredAttempts(ctx, time.Now().UTC())
	if err != nil {
		slog.Warn("engine: attempt eviction failed", "err", err)
		return
	}
	if n > 0 {
		slog.Debug("engine: evicted expired attempt records", "count", n)
	}
}

// shutdownAll persists every instance on the way out. Uses a fresh context:
// the loop's is already cancelled.
func (e *Engine) shutdownAll() {
	e.mu.Lock()
	instances := make([]*Instance, 0, len(e.instances))
	for _, inst := range e.instances {
		instances = append(instances, inst)
	}
	e.instances = make(map[string]*Instance)
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now().UTC()
	for _, inst := range instances {
		summary := inst.Shutdown(ctx, now)
		slog.Info("engine: instance shut down",
			"tag", summary.Tag,
			"trades", summary.Stats.TotalTrades,
			"pnl", summary.Stats.TotalPnL,
			"open_position", summary.OpenPosition != nil,
		)
	}
}
