package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// EntryDecision is what a signal wants the engine to do: buy this token at
// this limit price. The engine owns sizing, validation and everything after.
type EntryDecision struct {
	Token      domain.OutcomeToken
	LimitPrice decimal.Decimal
	// NotionalOverride replaces the strategy's configured notional when
	// positive. Copy signals use it to mirror the observed trade's tier.
	NotionalOverride decimal.Decimal
	Reason           string // free-form, logged and nothing else
}

// EntrySignal decides WHETHER and WHICH SIDE to enter. All the behavioral
// differences between strategies live behind this interface — the lifecycle
// engine is identical for every instance.
//
// Evaluate returns (nil, nil) when there is no entry this tick. That is the
// common case, not an error.
type EntrySignal interface {
	Evaluate(ctx context.Context, m *domain.MarketRef, now time.Time) (*EntryDecision, error)
}

// EntrySignalFunc adapts a function to the EntrySignal interface.
type EntrySignalFunc func(ctx context.Context, m *domain.MarketRef, now time.Time) (*EntryDecision, error)

func (f EntrySignalFunc) Evaluate(ctx context.Context, m *domain.MarketRef, now time.Time) (*EntryDecision, error) {
	return f(ctx, m, now)
}
