package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

// Default escalation timings for the resolution cascade. Updown markets
// normally settle within seconds of close; the reference feed is only a
// fallback for the days the resolver lags.
const (
	DefaultInitialDelay   = 15 * time.Second
	DefaultReferenceGrace = 2 * time.Minute
	DefaultMaxWait        = 10 * time.Minute
)

// Reconciler settles closed markets by cascading through evidence sources:
// the authoritative resolver first, an independent reference feed after a
// grace period, and a forced verdict when the deadline passes with nothing.
// It is stateless per call and safe to share across instances.
type Reconciler struct {
	authoritative ports.ResolutionSource
	reference     ports.ReferenceFeed

	// InitialDelay: no queries at all right after close, the resolver always
	// needs a moment.
	InitialDelay time.Duration
	// ReferenceGrace: how long the authoritative source gets before the
	// reference feed is consulted too.
	ReferenceGrace time.Duration
	// MaxWait: hard deadline after close; past it the verdict is forced.
	MaxWait time.Duration
}

// NewReconciler builds a Reconciler with default escalation timings.
func NewReconciler(authoritative ports.ResolutionSource, reference ports.ReferenceFeed) *Reconciler {
	return &Reconciler{
		authoritative:  authoritative,
		reference:      reference,
		InitialDelay:   DefaultInitialDelay,
		ReferenceGrace: DefaultReferenceGrace,
		MaxWait:        DefaultMaxWait,
	}
}

// Resolve returns the settlement verdict for a closed market. ok=false means
// "no evidence yet, ask again next tick" — the wait condition, not a failure.
// Errors are transient source failures; callers treat them like ok=false.
func (r *Reconciler) Resolve(ctx context.Context, m *domain.MarketRef, now time.Time) (domain.Resolution, bool, error) {
	elapsed := now.Sub(m.CloseTime)
	if elapsed < r.InitialDelay {
		return domain.Resolution{}, false, nil
	}

	declared, ok, err := r.authoritative.MarketResolution(ctx, m.ID)
	if err != nil {
		slog.Debug("reconcile: authoritative source failed", "market", m.ID, "err", err)
	} else if ok {
		return domain.Resolution{Declared: declared, Source: domain.SourceAuthoritative}, true, nil
	}

	if elapsed >= r.ReferenceGrace && r.reference != nil {
		declared, ok, err = r.reference.ReferenceSettlement(ctx, m)
		if err != nil {
			slog.Debug("reconcile: reference feed failed", "market", m.ID, "err", err)
		} else if ok {
			slog.Info("reconcile: settled from reference feed",
				"market", m.ID, "declared", declared, "elapsed", elapsed.Round(time.Second))
			return domain.Resolution{Declared: declared, Source: domain.SourceReference}, true, nil
		}
	}

	if elapsed >= r.MaxWait {
		return domain.Resolution{Source: domain.SourceForced}, true, nil
	}

	return domain.Resolution{}, false, nil
}
