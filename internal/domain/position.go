package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionState is the lifecycle of one attempted-or-open trade.
type PositionState string

const (
	StatePendingEntry   PositionState = "PENDING_ENTRY"
	StateEntrySubmitted PositionState = "ENTRY_SUBMITTED"
	StateOpen           PositionState = "OPEN"
	StateExitSubmitted  PositionState = "EXIT_SUBMITTED"
	StateClosed         PositionState = "CLOSED"  // terminal
	StateAborted        PositionState = "ABORTED" // terminal: entry never filled
)

// TradeResult records how a terminal Position ended.
type TradeResult string

const (
	ResultWin       TradeResult = "WIN"
	ResultLoss      TradeResult = "LOSS"
	ResultStopped   TradeResult = "STOP-LOSS"
	ResultTarget    TradeResult = "TARGET"
	ResultEmergency TradeResult = "EMERGENCY"
	// ResultForced marks a timeout resolution: no evidence arrived before the
	// deadline. Flagged distinctly so operators can audit it — never merged
	// with authoritative WIN/LOSS results.
	ResultForced  TradeResult = "FORCED"
	ResultAborted TradeResult = "ABORTED"
)

// validTransitions encodes the state machine. Anything not listed here is a
// programming error, not a market condition.
var validTransitions = map[PositionState][]PositionState{
	StatePendingEntry:   {StateEntrySubmitted, StateAborted},
	StateEntrySubmitted: {StateOpen, StateAborted},
	StateOpen:           {StateExitSubmitted, StateClosed},
	StateExitSubmitted:  {StateClosed},
}

// Position is one attempted-or-open trade on a single outcome token.
type Position struct {
	ID          string
	Market      MarketRef
	Outcome     OutcomeToken
	State       PositionState
	StrategyTag string

	EntryOrder *OrderRef
	// FillPrice is the price the entry actually executed at — never the
	// requested limit price. Late fills frequently execute below the request,
	// and anchoring risk to the request price silently doubles intended risk.
	FillPrice    decimal.Decimal
	Shares       decimal.Decimal
	NotionalCost decimal.Decimal

	// Stop and target triggers, derived from FillPrice at fill time.
	StopPrice   decimal.Decimal
	TargetPrice decimal.Decimal

	ExitOrder *OrderRef
	// ExitReason records why the exit was submitted (stop, target, emergency)
	// so the terminal result survives a crash between submission and fill.
	ExitReason  TradeResult
	ExitPrice   decimal.Decimal
	RealizedPnL decimal.Decimal
	Result      TradeResult
	// Forced is true when the position was settled by the timeout fallback
	// instead of real evidence.
	Forced bool

	OpenedAt time.Time
	ClosedAt *time.Time

	// EntryDeadline is when an unfilled entry order gets cancelled.
	EntryDeadline time.Time
}

// Terminal devuelve true si la Position ya no avanza más.
func (p *Position) Terminal() bool {
	return p.State == StateClosed || p.State == StateAborted
}

// Clone devuelve una copia desligada de la Position, segura de leer fuera del
// loop que la posee.
func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	cp := *p
	if p.EntryOrder != nil {
		o := *p.EntryOrder
		cp.EntryOrder = &o
	}
	if p.ExitOrder != nil {
		o := *p.ExitOrder
		cp.ExitOrder = &o
	}
	if p.ClosedAt != nil {
		at := *p.ClosedAt
		cp.ClosedAt = &at
	}
	return &cp
}

// TransitionTo moves the Position to next, enforcing the state machine.
// Invalid transitions are bugs and fail loudly.
func (p *Position) TransitionTo(next PositionState) error {
	for _, allowed := range validTransitions[p.State] {
		if allowed == next {
			p.State = next
			return nil
		}
	}
	return fmt.Errorf("domain.TransitionTo: invalid transition %s → %s (position %s)", p.State, next, p.ID)
}

// RecordFill sets the fill data and derives the stop/target triggers from the
// actual fill price.
func (p *Position) RecordFill(fillPrice, shares, stopDistance, targetDistance decimal.Decimal) error {
	if err := p.TransitionTo(StateOpen); err != nil {
		return err
	}
	p.FillPrice = fillPrice
	p.Shares = shares
	p.NotionalCost = shares.Mul(fillPrice)
	if stopDistance.IsPositive() {
		p.StopPrice = StopTrigger(fillPrice, stopDistance)
	}
	if targetDistance.IsPositive() {
		p.TargetPrice = TargetTrigger(fillPrice, targetDistance)
	}
	return nil
}

// Close marks the Position terminal with an exit fill (stop, target or
// emergency sell). realized = shares*exitPrice - cost.
func (p *Position) Close(exitPrice decimal.Decimal, result TradeResult, at time.Time) error {
	if err := p.TransitionTo(StateClosed); err != nil {
		return err
	}
	p.ExitPrice = exitPrice
	p.RealizedPnL = p.Shares.Mul(exitPrice).Sub(p.NotionalCost)
	p.Result = result
	p.ClosedAt = &at
	return nil
}

// Settle marks the Position terminal through market resolution: winning
// tokens pay 1.0 per share, losing tokens pay nothing.
func (p *Position) Settle(won bool, at time.Time) error {
	if err := p.TransitionTo(StateClosed); err != nil {
		return err
	}
	if won {
		p.RealizedPnL = p.Shares.Sub(p.NotionalCost) // payout 1.0/share
		p.Result = ResultWin
	} else {
		p.RealizedPnL = p.NotionalCost.Neg()
		p.Result = ResultLoss
	}
	p.ClosedAt = &at
	return nil
}

// SettleForced closes the Position via the timeout fallback. No evidence ever
// arrived, so PnL is unknown: recorded as zero and excluded from win/loss
// stats rather than inheriting the source-of-truth-less optimism of assuming
// a win.
func (p *Position) SettleForced(at time.Time) error {
	if err := p.TransitionTo(StateClosed); err != nil {
		return err
	}
	p.RealizedPnL = decimal.Zero
	p.Result = ResultForced
	p.Forced = true
	p.ClosedAt = &at
	return nil
}

// Abort marks an unfilled entry as terminal.
func (p *Position) Abort(at time.Time) error {
	if err := p.TransitionTo(StateAborted); err != nil {
		return err
	}
	p.Result = ResultAborted
	p.RealizedPnL = decimal.Zero
	p.ClosedAt = &at
	return nil
}
