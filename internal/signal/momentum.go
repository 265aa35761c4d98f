// Package signal contiene los entry signals: deciden si entrar y en qué lado,
// nada más. Todo el ciclo de vida posterior es del engine.
package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/engine"
)

// SpotFeed es el precio externo del subyacente (Binance en producción).
type SpotFeed interface {
	// Spot devuelve el último precio del símbolo.
	Spot(ctx context.Context, symbol string) (decimal.Decimal, error)
	// PeriodOpen devuelve el precio de apertura de la vela que empieza en
	// start con la duración dada.
	PeriodOpen(ctx context.Context, symbol string, start time.Time, interval time.Duration) (decimal.Decimal, error)
}

// Quoter cotiza el mid price de un outcome token.
type Quoter interface {
	MidPrice(ctx context.Context, tokenID string) (decimal.Decimal, error)
}

// Momentum compra el lado hacia el que ya se movió el subyacente: si el spot
// está por encima del open del periodo por al menos MinMove compra "Up", por
// debajo compra "Down". Sin movimiento suficiente no hay entrada.
type Momentum struct {
	feed   SpotFeed
	quoter Quoter
	symbol string

	interval time.Duration
	minMove  decimal.Decimal
}

// NewMomentum builds the momentum signal for one underlying symbol.
func NewMomentum(feed SpotFeed, quoter Quoter, symbol string, cfg domain.StrategyConfig) *Momentum {
	return &Momentum{
		feed:     feed,
		quoter:   quoter,
		symbol:   symbol,
		interval: cfg.Interval,
		minMove:  cfg.MinMove,
	}
}

// Evaluate implementa engine.EntrySignal.
func (s *Momentum) Evaluate(ctx context.Context, m *domain.MarketRef, now time.Time) (*engine.EntryDecision, error) {
	periodStart := m.CloseTime.Add(-s.interval)

	open, err := s.feed.PeriodOpen(ctx, s.symbol, periodStart, s.interval)
	if err != nil {
		return nil, fmt.Errorf("signal.Momentum: period open: %w", err)
	}
	spot, err := s.feed.Spot(ctx, s.symbol)
	if err != nil {
		return nil, fmt.Errorf("signal.Momentum: spot: %w", err)
	}

	move := spot.Sub(open)
	var wantUp bool
	switch {
	case move.GreaterThanOrEqual(s.minMove):
		wantUp = true
	case move.LessThanOrEqual(s.minMove.Neg()):
		wantUp = false
	default:
		return nil, nil // sin momentum claro, no entrar
	}

	token, ok := pickSide(m, wantUp)
	if !ok {
		return nil, fmt.Errorf("signal.Momentum: market %s has no up/down outcome", m.ID)
	}

	mid, err := s.quoter.MidPrice(ctx, token.TokenID)
	if err != nil {
		return nil, fmt.Errorf("signal.Momentum: mid price: %w", err)
	}
	if !mid.IsPositive() {
		return nil, nil
	}

	return &engine.EntryDecision{
		Token:      token,
		LimitPrice: mid,
		Reason:     fmt.Sprintf("spot %s vs open %s (move %s)", spot, open, move),
	}, nil
}

// pickSide encuentra el token de la polaridad pedida normalizando sinónimos.
func pickSide(m *domain.MarketRef, up bool) (domain.OutcomeToken, bool) {
	want := "down"
	if up {
		want = "up"
	}
	for _, t := range m.Tokens {
		if domain.Matches(strings.ToLower(t.Label), want) {
			return t, true
		}
	}
	return domain.OutcomeToken{}, false
}
