package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/engine"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const (
	// copyFreshness: un trade grande más viejo que esto ya no es señal, el
	// precio se movió.
	copyFreshness = 2 * time.Minute

	copyTapeLimit = 100

	// copyMaxPerTraderPerDay: un trade grande copiado por contraparte y día.
	copyMaxPerTraderPerDay = 1
)

// CopyTrade espeja las compras grandes que aparecen en la cinta pública:
// cuando una cartera compra por encima del umbral, entra en el mismo lado
// con el notional del tier correspondiente. Máximo una copia por cartera y
// día — el cap corta a los whales que promedian a la baja todo el día.
type CopyTrade struct {
	tape ports.TradeTape
	cap  *domain.DailyCap
}

// NewCopyTrade builds the copy signal. The cap is per-instance state and
// survives only in memory — a restart resets the daily counters.
func NewCopyTrade(tape ports.TradeTape) *CopyTrade {
	return &CopyTrade{
		tape: tape,
		cap:  domain.NewDailyCap(copyMaxPerTraderPerDay),
	}
}

// Evaluate implementa engine.EntrySignal.
func (s *CopyTrade) Evaluate(ctx context.Context, m *domain.MarketRef, now time.Time) (*engine.EntryDecision, error) {
	trades, err := s.tape.RecentTrades(ctx, m, copyTapeLimit)
	if err != nil {
		return nil, fmt.Errorf("signal.CopyTrade: %w", err)
	}

	for _, t := range trades {
		if t.Side != domain.SideBuy {
			continue
		}
		if now.Sub(t.At) > copyFreshness {
			// La cinta viene ordenada por recencia: a partir de aquí todo es
			// viejo.
			break
		}
		notional := t.Notional()
		if notional.LessThan(domain.BigTradeThreshold) {
			continue
		}
		if t.Trader == "" || !s.cap.Allow(t.Trader, now) {
			continue
		}
		token, ok := m.Token(t.TokenID)
		if !ok {
			continue
		}

		s.cap.Record(t.Trader, now)
		return &engine.EntryDecision{
			Token:            token,
			LimitPrice:       t.Price,
			NotionalOverride: domain.TierNotional(notional),
			Reason:           fmt.Sprintf("copying %s $%s buy of %q", shortWallet(t.Trader), notional.StringFixed(0), token.Label),
		}, nil
	}
	return nil, nil
}

func shortWallet(w string) string {
	if len(w) > 10 {
		return w[:10] + "…"
	}
	return w
}
