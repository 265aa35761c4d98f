package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const (
	// marketCacheTTL: markets are immutable once discovered, re-discovery is
	// only needed when the cached one expires or rolls to the next period.
	marketCacheTTL = 30 * time.Second

	// maxCheckErrors: a waiting entry whose checks keep failing gets aborted
	// instead of looping forever.
	maxCheckErrors = 10
)

// Instance is one Strategy Instance: it owns zero-or-one live Position at a
// time plus the entry signal that decides when to create the next one.
// All methods are called from the scheduler's single loop — never
// concurrently.
type Instance struct {
	cfg        domain.StrategyConfig
	signal     EntrySignal
	gateway    ports.OrderGateway
	discovery  ports.MarketDiscovery
	store      ports.SnapshotStore
	events     ports.EventSink
	reconciler *Reconciler

	stats domain.AggregateStats
	pos   *domain.Position

	market       *domain.MarketRef
	marketCached time.Time

	// attempted is the idempotent-entry guard: set the moment an entry order
	// is submitted, BEFORE awaiting confirmation, so a second tick cannot
	// double-enter the same market. Mirrored durably in the snapshot store.
	attempted map[string]bool

	checkErrors int

	// status is the published operator snapshot, the only instance state other
	// goroutines may read. Everything above belongs to the scheduler loop.
	statusMu sync.Mutex
	status   InstanceStatus
}

// NewInstance builds a Strategy Instance. The reconciler may be shared across
// instances — it is stateless per call.
func NewInstance(
	cfg domain.StrategyConfig,
	signal EntrySignal,
	gateway ports.OrderGateway,
	discovery ports.MarketDiscovery,
	store ports.SnapshotStore,
	events ports.EventSink,
	reconciler *Reconciler,
) *Instance {
	si := &Instance{
		cfg:        cfg,
		signal:     signal,
		gateway:    gateway,
		discovery:  discovery,
		store:      store,
		events:     events,
		reconciler: reconciler,
		attempted:  make(map[string]bool),
	}
	si.publishStatus()
	return si
}

// Tag devuelve el identificador de la instancia.
func (si *Instance) Tag() string { return si.cfg.Tag }

// Stats devuelve una copia de las estadísticas acumuladas.
func (si *Instance) Stats() domain.AggregateStats { return si.stats }

// OpenPosition devuelve la Position viva, o nil.
func (si *Instance) OpenPosition() *domain.Position { return si.pos }

// Status devuelve el último snapshot publicado para el operador. Es el único
// método seguro desde otra goroutine; la Position devuelta es una copia.
func (si *Instance) Status() InstanceStatus {
	si.statusMu.Lock()
	defer si.statusMu.Unlock()
	st := si.status
	st.Position = st.Position.Clone()
	return st
}

// publishStatus refresca el snapshot del operador. Solo lo llama la goroutine
// dueña del estado, al final de cada tick, restore o shutdown.
func (si *Instance) publishStatus() {
	st := InstanceStatus{
		Tag:      si.cfg.Tag,
		Signal:   si.cfg.Signal,
		Series:   si.cfg.Series,
		Stats:    si.stats,
		Position: si.pos.Clone(),
	}
	si.statusMu.Lock()
	si.status = st
	si.statusMu.Unlock()
}

// Tick advances the instance one step: either manage the live Position or
// evaluate entry into the current market. Transient gateway failures are
// absorbed here — they mean "unknown, retry next tick", never "stop".
func (si *Instance) Tick(ctx context.Context, now time.Time) error {
	defer si.publishStatus()

	if si.pos == nil {
		return si.tryEnter(ctx, now)
	}

	var err error
	switch si.pos.State {
	case domain.StateEntrySubmitted:
		err = si.checkEntry(ctx, now)
	case domain.StateOpen:
		err = si.checkOpen(ctx, now)
	case domain.StateExitSubmitted:
		err = si.checkExit(ctx, now)
	default:
		// PendingEntry never survives a tick and terminal states are cleared
		// in finalize — reaching here is a bug.
		slog.Error("engine: position in unexpected state on tick",
			"tag", si.cfg.Tag, "state", si.pos.State, "position", si.pos.ID)
	}

	if err != nil {
		si.checkErrors++
		if si.checkErrors >= maxCheckErrors && si.pos != nil && si.pos.State == domain.StateEntrySubmitted {
			slog.Warn("engine: too many consecutive check errors — aborting entry",
				"tag", si.cfg.Tag, "position", si.pos.ID, "errors", si.checkErrors)
			si.abortEntry(ctx, now, ports.OrderState{}, "repeated check failures")
			si.checkErrors = 0
			return nil
		}
		return err
	}
	si.checkErrors = 0
	return nil
}

// ── Entry ────────────────────────────────────────────────────

func (si *Instance) tryEnter(ctx context.Context, now time.Time) error {
	m, err := si.currentMarket(ctx, now)
	if err != nil {
		slog.Debug("engine: market discovery failed", "tag", si.cfg.Tag, "err", err)
		return nil // transient: retry next tick
	}
	if m == nil {
		return nil
	}

	left := m.TimeToClose(now)
	if left <= si.cfg.CloseSafetyMargin {
		return nil // no new entries this close to resolution
	}
	if si.cfg.EntryWindow > 0 && left > si.cfg.EntryWindow {
		return nil // too early, keep waiting
	}

	if si.alreadyAttempted(ctx, m.ID) {
		return nil
	}

	dec, err := si.signal.Evaluate(ctx, m, now)
	if err != nil {
		slog.Debug("engine: signal error", "tag", si.cfg.Tag, "err", err)
		return nil
	}
	if dec == nil {
		return nil
	}

	// Freshness guard: if the market already prices our side above the
	// ceiling, the edge is gone — skip this period entirely.
	if si.cfg.EntryPriceCeiling.IsPositive() {
		mid, err := si.gateway.MidPrice(ctx, dec.Token.TokenID)
		if err == nil && mid.GreaterThan(si.cfg.EntryPriceCeiling) {
			slog.Info("engine: too expensive, skipping period",
				"tag", si.cfg.Tag, "market", domain.TruncateQuestion(m.Question, m.ID, 40),
				"mid", mid, "ceiling", si.cfg.EntryPriceCeiling)
			si.markAttempted(ctx, m.ID, m.CloseTime)
			return nil
		}
	}

	notional := si.cfg.NotionalPerTrade
	if dec.NotionalOverride.IsPositive() {
		notional = dec.NotionalOverride
	}
	sized, err := domain.SizeForSpend(notional, dec.LimitPrice, si.cfg.MinShares, si.cfg.TickSize)
	if err != nil {
		// Local validation failure — never reaches the gateway.
		slog.Warn("engine: sizing rejected entry", "tag", si.cfg.Tag, "price", dec.LimitPrice, "err", err)
		si.markAttempted(ctx, m.ID, m.CloseTime)
		return nil
	}

	// Guard set BEFORE the placement call returns: a second tick arriving
	// while we are suspended on the gateway cannot double-enter.
	si.markAttempted(ctx, m.ID, m.CloseTime)

	pos := &domain.Position{
		ID:            uuid.New().String(),
		Market:        *m,
		Outcome:       dec.Token,
		State:         domain.StatePendingEntry,
		StrategyTag:   si.cfg.Tag,
		OpenedAt:      now,
		EntryDeadline: now.Add(si.cfg.EntryTimeout),
	}
	si.pos = pos

	ref, err := si.gateway.PlaceLimitBuy(ctx, dec.Token.TokenID, sized.Price, sized.Shares)
	if err != nil {
		// The attempted-guard stays set either way: never retry into the same
		// market. A timed-out placement left no order ID, so a ghost order
		// resting upstream cannot be watched — surface it as its own audit
		// event instead of pretending it did not happen.
		if ge, ok := ports.IsGatewayError(err); ok && ge.Kind == ports.GatewayTimeout {
			slog.Error("engine: entry placement unconfirmed — order may exist upstream",
				"tag", si.cfg.Tag, "market", domain.TruncateQuestion(m.Question, m.ID, 40), "err", err)
			si.emit(ctx, domain.Event{
				Type: domain.EventEntryUnconfirmed, Price: sized.Price, Shares: sized.Shares, At: now,
			})
		} else {
			slog.Warn("engine: entry placement rejected",
				"tag", si.cfg.Tag, "market", domain.TruncateQuestion(m.Question, m.ID, 40), "err", err)
		}
		_ = pos.Abort(now)
		si.finalize(ctx, now, pos)
		return nil
	}

	pos.EntryOrder = &ref
	if err := pos.TransitionTo(domain.StateEntrySubmitted); err != nil {
		return err
	}

	slog.Info("engine: entry submitted",
		"tag", si.cfg.Tag,
		"market", domain.TruncateQuestion(m.Question, m.ID, 40),
		"outcome", dec.Token.Label,
		"price", sized.Price,
		"shares", sized.Shares,
		"notional", sized.Notional,
		"reason", dec.Reason,
	)
	si.emit(ctx, domain.Event{
		Type: domain.EventEntered, Price: sized.Price, Shares: sized.Shares, At: now,
	})
	si.persist(ctx, now)
	return nil
}

// currentMarket returns the cached live market for the configured series,
// re-discovering when the cache is stale or the market rolled over.
func (si *Instance) currentMarket(ctx context.Context, now time.Time) (*domain.MarketRef, error) {
	if si.market != nil && !si.market.Expired(now) && now.Sub(si.marketCached) < marketCacheTTL {
		return si.market, nil
	}
	m, err := si.discovery.DiscoverMarket(ctx, ports.MarketQuery{
		Series:   si.cfg.Series,
		Interval: int64(si.cfg.Interval / time.Second),
	})
	if err != nil {
		return nil, err
	}
	si.market = m
	si.marketCached = now
	return m, nil
}

func (si *Instance) alreadyAttempted(ctx context.Context, marketID string) bool {
	if si.attempted[marketID] {
		return true
	}
	was, err := si.store.WasAttempted(ctx, si.cfg.Tag, marketID)
	if err != nil {
		slog.Debug("engine: attempted lookup failed", "tag", si.cfg.Tag, "err", err)
		return false
	}
	if was {
		si.attempted[marketID] = true
	}
	return was
}

func (si *Instance) markAttempted(ctx context.Context, marketID string, closeTime time.Time) {
	si.attempted[marketID] = true
	if err := si.store.MarkAttempted(ctx, si.cfg.Tag, marketID, closeTime); err != nil {
		slog.Warn("engine: could not persist attempted mark", "tag", si.cfg.Tag, "market", marketID, "err", err)
	}
	// Bounded guard: drop in-memory marks for markets that already closed.
	for id := range si.attempted {
		if si.market != nil && id == si.market.ID {
			continue
		}
		if id != marketID {
			delete(si.attempted, id)
		}
	}
}

// ── EntrySubmitted ───────────────────────────────────────────

func (si *Instance) checkEntry(ctx context.Context, now time.Time) error {
	pos := si.pos

	st, err := si.gateway.OrderState(ctx, pos.EntryOrder.ExternalID)
	if err == nil {
		switch st.Status {
		case domain.OrderFilled:
			return si.recordEntryFill(ctx, now, st)
		case domain.OrderCancelled:
			slog.Info("engine: entry cancelled upstream", "tag", si.cfg.Tag, "position", pos.ID)
			if st.FilledSize.IsPositive() {
				// The cancel raced a partial match: those shares are real.
				si.salvagePartialFill(ctx, now, st, "cancelled upstream")
				return nil
			}
			pos.EntryOrder.Status = domain.OrderCancelled
			si.abortLocal(ctx, now)
			return nil
		}
	} else {
		// Unknown status: keep waiting — a timed-out query never means the
		// order is gone.
		st = ports.OrderState{}
		slog.Debug("engine: order status unknown", "tag", si.cfg.Tag, "err", err)
	}

	// Close-safety window always wins over the nominal timeout: never
	// straddle a resolving market with a dangling entry order.
	if pos.Market.TimeToClose(now) <= si.cfg.CloseSafetyMargin {
		si.abortEntry(ctx, now, st, "close window reached")
		return nil
	}
	if now.After(pos.EntryDeadline) {
		si.abortEntry(ctx, now, st, "entry timeout")
		return nil
	}
	return nil
}

func (si *Instance) recordEntryFill(ctx context.Context, now time.Time, st ports.OrderState) error {
	pos := si.pos
	pos.EntryOrder.Status = domain.OrderFilled

	// The ACTUAL fill price anchors stop and target. Only fall back to the
	// limit price when the gateway reports nothing.
	fillPrice := st.AvgFillPrice
	if fillPrice.IsZero() {
		fillPrice = pos.EntryOrder.LimitPrice
	}
	shares := st.FilledSize
	if shares.IsZero() {
		shares = pos.EntryOrder.RequestedSize
	}

	if err := pos.RecordFill(fillPrice, shares, si.cfg.StopDistance, si.cfg.TargetDistance); err != nil {
		return err
	}

	slog.Info("engine: FILLED",
		"tag", si.cfg.Tag,
		"market", domain.TruncateQuestion(pos.Market.Question, pos.Market.ID, 40),
		"outcome", pos.Outcome.Label,
		"fill_price", fillPrice,
		"limit_price", pos.EntryOrder.LimitPrice,
		"shares", shares,
		"stop", pos.StopPrice,
		"target", pos.TargetPrice,
	)
	si.emit(ctx, domain.Event{
		Type: domain.EventFilled, Price: fillPrice, Shares: shares, At: now,
	})
	si.persist(ctx, now)
	return nil
}

// abortEntry cancels the entry order (exactly one cancel call). st is the
// last known gateway view of the order: a reported partial fill is never
// discarded — the remainder is cancelled and the bought shares are kept.
func (si *Instance) abortEntry(ctx context.Context, now time.Time, st ports.OrderState, reason string) {
	pos := si.pos
	slog.Info("engine: cancelling unfilled entry", "tag", si.cfg.Tag, "position", pos.ID, "reason", reason)
	if err := si.gateway.Cancel(ctx, pos.EntryOrder.ExternalID); err != nil {
		// Cancel is best-effort: if it raced a fill, recovery reconciles the
		// ghost against the gateway on next start.
		slog.Warn("engine: entry cancel failed", "tag", si.cfg.Tag, "err", err)
	}
	if st.FilledSize.IsPositive() {
		si.salvagePartialFill(ctx, now, st, reason)
		return
	}
	pos.EntryOrder.Status = domain.OrderCancelled
	si.abortLocal(ctx, now)
}

// salvagePartialFill keeps the shares an entry order bought before it died.
// They are real inventory: the position opens with the filled portion,
// triggers anchored on the reported average price, and is managed normally.
func (si *Instance) salvagePartialFill(ctx context.Context, now time.Time, st ports.OrderState, reason string) {
	slog.Warn("engine: entry partially filled — keeping bought shares",
		"tag", si.cfg.Tag, "position", si.pos.ID,
		"filled", st.FilledSize, "requested", si.pos.EntryOrder.RequestedSize,
		"reason", reason)
	if err := si.recordEntryFill(ctx, now, st); err != nil {
		slog.Error("engine: could not record partial fill", "tag", si.cfg.Tag, "err", err)
	}
}

func (si *Instance) abortLocal(ctx context.Context, now time.Time) {
	pos := si.pos
	_ = pos.Abort(now)
	si.emit(ctx, domain.Event{Type: domain.EventAborted, At: now})
	si.finalize(ctx, now, pos)
}

// ── Open ─────────────────────────────────────────────────────

func (si *Instance) checkOpen(ctx context.Context, now time.Time) error {
	pos := si.pos
	left := pos.Market.TimeToClose(now)

	// Market closed while we hold shares: settlement pays instead of an exit.
	if left <= 0 {
		return si.reconcile(ctx, now)
	}

	// Close-safety window with no exit triggered: strategies that do not
	// hold to resolution get flattened now, unconditionally.
	if left <= si.cfg.CloseSafetyMargin && !si.cfg.HoldToResolution {
		mid := si.bestEffortMid(ctx)
		si.marketSellAndClose(ctx, now, mid, domain.ResultEmergency)
		return nil
	}

	if si.cfg.StopDistance.IsZero() && si.cfg.TargetDistance.IsZero() {
		return nil
	}

	mid, err := si.gateway.MidPrice(ctx, pos.Outcome.TokenID)
	if err != nil {
		slog.Debug("engine: mid price unavailable", "tag", si.cfg.Tag, "err", err)
		return nil
	}

	switch {
	case pos.StopPrice.IsPositive() && mid.LessThanOrEqual(pos.StopPrice):
		slog.Info("engine: STOP-LOSS triggered",
			"tag", si.cfg.Tag, "mid", mid, "stop", pos.StopPrice, "fill", pos.FillPrice)
		si.submitExit(ctx, now, mid, domain.ResultStopped)
	case pos.TargetPrice.IsPositive() && mid.GreaterThanOrEqual(pos.TargetPrice):
		slog.Info("engine: TARGET triggered",
			"tag", si.cfg.Tag, "mid", mid, "target", pos.TargetPrice, "fill", pos.FillPrice)
		si.submitExit(ctx, now, mid, domain.ResultTarget)
	}
	return nil
}

// submitExit places a limit sell first (cheaper than crossing the spread);
// escalates to an immediate sell only if placement itself fails.
func (si *Instance) submitExit(ctx context.Context, now time.Time, price decimal.Decimal, reason domain.TradeResult) {
	pos := si.pos

	ref, err := si.gateway.PlaceLimitSell(ctx, pos.Outcome.TokenID, price, pos.Shares)
	if err != nil {
		slog.Warn("engine: exit limit placement failed — escalating to market sell",
			"tag", si.cfg.Tag, "err", err)
		si.marketSellAndClose(ctx, now, price, reason)
		return
	}

	pos.ExitOrder = &ref
	pos.ExitReason = reason
	if err := pos.TransitionTo(domain.StateExitSubmitted); err != nil {
		slog.Error("engine: exit transition rejected", "tag", si.cfg.Tag, "err", err)
		return
	}
	si.persist(ctx, now)
}

// ── ExitSubmitted ────────────────────────────────────────────

func (si *Instance) checkExit(ctx context.Context, now time.Time) error {
	pos := si.pos
	left := pos.Market.TimeToClose(now)

	// The single emergency-close path: an unmatched exit order inside the
	// hard deadline is cancelled and replaced by an immediate sell. Takes
	// precedence over any other pending transition.
	if left <= si.cfg.ExitDeadline {
		slog.Warn("engine: exit deadline reached — forcing market sell",
			"tag", si.cfg.Tag, "position", pos.ID, "left", left)
		if err := si.gateway.Cancel(ctx, pos.ExitOrder.ExternalID); err != nil {
			slog.Warn("engine: exit cancel failed", "tag", si.cfg.Tag, "err", err)
		}
		mid := si.bestEffortMid(ctx)
		si.marketSellAndClose(ctx, now, mid, domain.ResultEmergency)
		return nil
	}

	st, err := si.gateway.OrderState(ctx, pos.ExitOrder.ExternalID)
	if err != nil {
		slog.Debug("engine: exit status unknown", "tag", si.cfg.Tag, "err", err)
		return nil
	}

	switch st.Status {
	case domain.OrderFilled:
		pos.ExitOrder.Status = domain.OrderFilled
		exitPrice := st.AvgFillPrice
		if exitPrice.IsZero() {
			exitPrice = pos.ExitOrder.LimitPrice
		}
		si.closeWithExit(ctx, now, exitPrice, pos.ExitReason)
	case domain.OrderCancelled:
		// Exit not acknowledged: retry once as an immediate sell, best effort.
		slog.Warn("engine: exit order cancelled upstream — escalating", "tag", si.cfg.Tag)
		mid := si.bestEffortMid(ctx)
		si.marketSellAndClose(ctx, now, mid, pos.ExitReason)
	}
	return nil
}

// marketSellAndClose is the bounded best-effort path: one immediate sell, no
// indefinite retries, position closes regardless so tail risk stays bounded.
func (si *Instance) marketSellAndClose(ctx context.Context, now time.Time, estPrice decimal.Decimal, reason domain.TradeResult) {
	pos := si.pos

	ref, err := si.gateway.PlaceMarketSell(ctx, pos.Outcome.TokenID, pos.Shares)
	if err != nil {
		slog.Error("engine: market sell failed — closing position at worst case",
			"tag", si.cfg.Tag, "position", pos.ID, "err", err)
		estPrice = decimal.Zero
	} else {
		pos.ExitOrder = &ref
		if st, stErr := si.gateway.OrderState(ctx, ref.ExternalID); stErr == nil && !st.AvgFillPrice.IsZero() {
			estPrice = st.AvgFillPrice
		}
	}

	si.closeWithExit(ctx, now, estPrice, reason)
}

func (si *Instance) closeWithExit(ctx context.Context, now time.Time, exitPrice decimal.Decimal, reason domain.TradeResult) {
	pos := si.pos
	if err := pos.Close(exitPrice, reason, now); err != nil {
		slog.Error("engine: close transition rejected", "tag", si.cfg.Tag, "err", err)
		return
	}

	evType := domain.EventStoppedOut
	switch reason {
	case domain.ResultTarget:
		evType = domain.EventTargetHit
	case domain.ResultEmergency:
		evType = domain.EventEmergencyClosed
	}

	slog.Info("engine: position closed",
		"tag", si.cfg.Tag,
		"result", reason,
		"entry", pos.FillPrice,
		"exit", exitPrice,
		"pnl", pos.RealizedPnL,
	)
	si.emit(ctx, domain.Event{
		Type: evType, Price: exitPrice, Shares: pos.Shares, PnL: pos.RealizedPnL, At: now,
	})
	si.finalize(ctx, now, pos)
}

// ── Resolution ───────────────────────────────────────────────

func (si *Instance) reconcile(ctx context.Context, now time.Time) error {
	pos := si.pos

	res, ok, err := si.reconciler.Resolve(ctx, &pos.Market, now)
	if err != nil {
		slog.Debug("engine: reconcile error", "tag", si.cfg.Tag, "err", err)
		return nil
	}
	if !ok {
		return nil // stale evidence — wait condition, not an error
	}

	if res.Source == domain.SourceForced {
		if err := pos.SettleForced(now); err != nil {
			return err
		}
		slog.Warn("engine: FORCED resolution — no evidence before deadline, excluded from stats",
			"tag", si.cfg.Tag,
			"market", domain.TruncateQuestion(pos.Market.Question, pos.Market.ID, 40),
			"outcome", pos.Outcome.Label,
		)
		si.emit(ctx, domain.Event{
			Type: domain.EventForcedResolved, Shares: pos.Shares, At: now,
		})
		si.finalize(ctx, now, pos)
		return nil
	}

	won := domain.Matches(pos.Outcome.Label, res.Declared)
	if err := pos.Settle(won, now); err != nil {
		return err
	}

	slog.Info("engine: market resolved",
		"tag", si.cfg.Tag,
		"market", domain.TruncateQuestion(pos.Market.Question, pos.Market.ID, 40),
		"held", pos.Outcome.Label,
		"declared", res.Declared,
		"source", res.Source,
		"won", won,
		"pnl", pos.RealizedPnL,
	)
	si.emit(ctx, domain.Event{
		Type: domain.EventResolved, Won: won, Shares: pos.Shares, PnL: pos.RealizedPnL, At: now,
	})
	si.finalize(ctx, now, pos)
	return nil
}

// ── Terminal bookkeeping ─────────────────────────────────────

// finalize records a terminal position into stats and the ledger, persists
// the now-empty snapshot and releases the live slot.
func (si *Instance) finalize(ctx context.Context, now time.Time, pos *domain.Position) {
	si.stats.Record(pos)

	if err := si.store.AppendTrade(ctx, tradeRecord(pos)); err != nil {
		slog.Warn("engine: could not append trade to ledger", "tag", si.cfg.Tag, "err", err)
	}

	si.pos = nil
	si.persist(ctx, now)
}

func tradeRecord(pos *domain.Position) domain.TradeRecord {
	closedAt := time.Now().UTC()
	if pos.ClosedAt != nil {
		closedAt = *pos.ClosedAt
	}
	return domain.TradeRecord{
		PositionID:  pos.ID,
		StrategyTag: pos.StrategyTag,
		MarketID:    pos.Market.ID,
		Question:    pos.Market.Question,
		Outcome:     pos.Outcome.Label,
		EntryPrice:  pos.FillPrice,
		ExitPrice:   pos.ExitPrice,
		Shares:      pos.Shares,
		Notional:    pos.NotionalCost,
		PnL:         pos.RealizedPnL,
		Result:      pos.Result,
		Forced:      pos.Forced,
		ClosedAt:    closedAt,
	}
}

// persist writes the full snapshot. Called on every state transition.
func (si *Instance) persist(ctx context.Context, now time.Time) {
	snap := ports.Snapshot{
		Version: ports.SnapshotVersion,
		Tag:     si.cfg.Tag,
		Config:  si.cfg,
		Stats:   si.stats,
		SavedAt: now,
	}
	if si.pos != nil && !si.pos.Terminal() {
		snap.Positions = []*domain.Position{si.pos}
	}
	if err := si.store.SaveSnapshot(ctx, snap); err != nil {
		slog.Warn("engine: snapshot write failed", "tag", si.cfg.Tag, "err", err)
	}
}

func (si *Instance) emit(ctx context.Context, ev domain.Event) {
	ev.StrategyTag = si.cfg.Tag
	if si.pos != nil {
		ev.PositionID = si.pos.ID
		ev.MarketID = si.pos.Market.ID
		ev.Question = si.pos.Market.Question
		ev.Outcome = si.pos.Outcome.Label
	}
	if si.events == nil {
		return
	}
	if err := si.events.Publish(ctx, ev); err != nil {
		slog.Debug("engine: event publish failed", "tag", si.cfg.Tag, "type", ev.Type, "err", err)
	}
}

func (si *Instance) bestEffortMid(ctx context.Context) decimal.Decimal {
	mid, err := si.gateway.MidPrice(ctx, si.pos.Outcome.TokenID)
	if err != nil {
		return decimal.Zero
	}
	return mid
}

// ── Shutdown ─────────────────────────────────────────────────

// Shutdown cancels dangling orders and returns the stop summary. An unfilled
// entry is aborted; an Open position stays recorded in the snapshot for the
// operator (we never market-sell on a mere stop command).
func (si *Instance) Shutdown(ctx context.Context, now time.Time) domain.StoppedSummary {
	defer si.publishStatus()

	summary := domain.StoppedSummary{Tag: si.cfg.Tag, Stats: si.stats}

	pos := si.pos
	if pos == nil {
		return summary
	}

	switch pos.State {
	case domain.StateEntrySubmitted:
		summary.CancelledIDs = append(summary.CancelledIDs, pos.EntryOrder.ExternalID)
		st, err := si.gateway.OrderState(ctx, pos.EntryOrder.ExternalID)
		if err != nil {
			st = ports.OrderState{}
		}
		si.abortEntry(ctx, now, st, "strategy stopped")
		// A partial fill survives the stop as a kept open position.
		if si.pos != nil {
			summary.OpenPosition = si.pos
		}
	case domain.StateExitSubmitted:
		if err := si.gateway.Cancel(ctx, pos.ExitOrder.ExternalID); err != nil {
			slog.Warn("engine: shutdown exit cancel failed", "tag", si.cfg.Tag, "err", err)
		} else {
			summary.CancelledIDs = append(summary.CancelledIDs, pos.ExitOrder.ExternalID)
			pos.ExitOrder.Status = domain.OrderCancelled
			// Back in the book-less Open state semantically; persisted as
			// ExitSubmitted with a cancelled order, recovery re-derives it.
		}
		summary.OpenPosition = pos
		si.persist(ctx, now)
	case domain.StateOpen:
		summary.OpenPosition = pos
		si.persist(ctx, now)
	}
	return summary
}
