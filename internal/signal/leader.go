package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/engine"
)

// defaultMinLeadProb: por debajo de esto el mercado aún no tiene favorito
// claro y no merece entrada.
var defaultMinLeadProb = decimal.NewFromFloat(0.55)

// Leader compra el outcome que el propio mercado ya considera favorito:
// recorre todos los tokens, se queda con el de mayor mid price y entra solo
// si su probabilidad implícita supera el umbral. Útil en mercados
// multi-outcome (tiempo, deportes) donde el favorito tardío suele confirmar.
type Leader struct {
	quoter      Quoter
	minLeadProb decimal.Decimal
}

// NewLeader builds the leader signal.
func NewLeader(quoter Quoter, cfg domain.StrategyConfig) *Leader {
	min := cfg.MinLeadProb
	if !min.IsPositive() {
		min = defaultMinLeadProb
	}
	return &Leader{quoter: quoter, minLeadProb: min}
}

// Evaluate implementa engine.EntrySignal.
func (s *Leader) Evaluate(ctx context.Context, m *domain.MarketRef, now time.Time) (*engine.EntryDecision, error) {
	var (
		best     domain.OutcomeToken
		bestMid  decimal.Decimal
		quotedOK bool
	)

	for _, t := range m.Tokens {
		mid, err := s.quoter.MidPrice(ctx, t.TokenID)
		if err != nil {
			// Un token sin cotización no invalida a los demás.
			continue
		}
		if !quotedOK || mid.GreaterThan(bestMid) {
			best = t
			bestMid = mid
			quotedOK = true
		}
	}

	if !quotedOK {
		return nil, fmt.Errorf("signal.Leader: no quotes for market %s", m.ID)
	}
	if bestMid.LessThan(s.minLeadProb) {
		return nil, nil // sin favorito claro todavía
	}

	return &engine.EntryDecision{
		Token:      best,
		LimitPrice: bestMid,
		Reason:     fmt.Sprintf("leader %q at %s (min %s)", best.Label, bestMid, s.minLeadProb),
	}, nil
}
