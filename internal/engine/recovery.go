package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// Restore rebuilds instance state from the last snapshot. The snapshot is a
// weak claim — the gateway may have filled, cancelled or settled orders while
// we were down — so every non-terminal Position is re-verified against the
// gateway before it is adopted. Divergences are resolved in favor of the
// gateway and logged loudly.
func (si *Instance) Restore(ctx context.Context, now time.Time) error {
	defer si.publishStatus()

	snap, ok, err := si.store.LoadSnapshot(ctx, si.cfg.Tag)
	if err != nil {
		return fmt.Errorf("engine.Restore: %s: %w", si.cfg.Tag, err)
	}
	if !ok {
		return nil // fresh instance, nothing to recover
	}

	si.stats = snap.Stats

	for _, pos := range snap.Positions {
		if pos.Terminal() {
			continue
		}
		// One live slot per instance: a snapshot with more than one
		// non-terminal Position is itself a divergence.
		if si.pos != nil {
			slog.Error("recovery: snapshot holds multiple live positions — keeping first",
				"tag", si.cfg.Tag, "dropped", pos.ID)
			continue
		}
		si.recoverPosition(ctx, now, pos)
	}

	// The recovered market was attempted by definition.
	if si.pos != nil {
		si.attempted[si.pos.Market.ID] = true
	}

	slog.Info("recovery: snapshot restored",
		"tag", si.cfg.Tag,
		"saved_at", snap.SavedAt.Format(time.RFC3339),
		"live_position", si.pos != nil,
		"trades", si.stats.TotalTrades,
	)
	si.persist(ctx, now)
	return nil
}

func (si *Instance) recoverPosition(ctx context.Context, now time.Time, pos *domain.Position) {
	si.pos = pos

	switch pos.State {
	case domain.StatePendingEntry:
		// Crashed before the placement call returned: we do not know whether
		// the order exists. The attempted-mark holds, the position does not.
		slog.Warn("recovery: MISMATCH position crashed mid-placement — aborting",
			"tag", si.cfg.Tag, "position", pos.ID)
		_ = pos.Abort(now)
		si.finalize(ctx, now, pos)

	case domain.StateEntrySubmitted:
		si.recoverEntry(ctx, now, pos)

	case domain.StateOpen:
		// Shares are real; if the market closed while down, the normal
		// reconcile path on the next tick settles it.
		slog.Info("recovery: open position restored",
			"tag", si.cfg.Tag, "position", pos.ID,
			"outcome", pos.Outcome.Label, "shares", pos.Shares)

	case domain.StateExitSubmitted:
		si.recoverExit(ctx, now, pos)
	}
}

func (si *Instance) recoverEntry(ctx context.Context, now time.Time, pos *domain.Position) {
	st, err := si.gateway.OrderState(ctx, pos.EntryOrder.ExternalID)
	if err != nil {
		// Unknown stays unknown: keep the position in EntrySubmitted and let
		// the tick loop keep asking. Deadlines still apply.
		slog.Warn("recovery: entry order status unknown — keeping as submitted",
			"tag", si.cfg.Tag, "position", pos.ID, "err", err)
		return
	}

	switch st.Status {
	case domain.OrderFilled:
		slog.Warn("recovery: MISMATCH entry filled while down — promoting to open",
			"tag", si.cfg.Tag, "position", pos.ID)
		if err := si.recordEntryFill(ctx, now, st); err != nil {
			slog.Error("recovery: could not record recovered fill", "tag", si.cfg.Tag, "err", err)
		}
	case domain.OrderCancelled:
		if st.FilledSize.IsPositive() {
			// Cancelled while down, but part of it matched first: the shares
			// are on the wallet and must be managed, not forgotten.
			slog.Warn("recovery: MISMATCH entry partially filled then cancelled — keeping shares",
				"tag", si.cfg.Tag, "position", pos.ID, "filled", st.FilledSize)
			if err := si.recordEntryFill(ctx, now, st); err != nil {
				slog.Error("recovery: could not record recovered fill", "tag", si.cfg.Tag, "err", err)
			}
			return
		}
		slog.Warn("recovery: MISMATCH entry cancelled while down — aborting",
			"tag", si.cfg.Tag, "position", pos.ID)
		pos.EntryOrder.Status = domain.OrderCancelled
		si.abortLocal(ctx, now)
	default:
		// Still live upstream: the tick loop resumes watching it.
	}
}

func (si *Instance) recoverExit(ctx context.Context, now time.Time, pos *domain.Position) {
	st, err := si.gateway.OrderState(ctx, pos.ExitOrder.ExternalID)
	if err != nil {
		slog.Warn("recovery: exit order status unknown — keeping as submitted",
			"tag", si.cfg.Tag, "position", pos.ID, "err", err)
		return
	}

	switch st.Status {
	case domain.OrderFilled:
		slog.Warn("recovery: MISMATCH exit filled while down — closing",
			"tag", si.cfg.Tag, "position", pos.ID)
		pos.ExitOrder.Status = domain.OrderFilled
		exitPrice := st.AvgFillPrice
		if exitPrice.IsZero() {
			exitPrice = pos.ExitOrder.LimitPrice
		}
		reason := pos.ExitReason
		if reason == "" {
			reason = domain.ResultEmergency
		}
		si.closeWithExit(ctx, now, exitPrice, reason)
	case domain.OrderCancelled:
		slog.Warn("recovery: MISMATCH exit cancelled while down — escalating to market sell",
			"tag", si.cfg.Tag, "position", pos.ID)
		mid := si.bestEffortMid(ctx)
		reason := pos.ExitReason
		if reason == "" {
			reason = domain.ResultEmergency
		}
		si.marketSellAndClose(ctx, now, mid, reason)
	default:
		// Still working the book.
	}
}
