package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const dataAPIBase = "https://data-api.polymarket.com"

type rawDataTrade struct {
	ID          string      `json:"id"`
	ProxyWallet string      `json:"proxyWallet"`
	ConditionID string      `json:"conditionId"`
	Asset       string      `json:"asset"`
	Side        string      `json:"side"`
	Price       json.Number `json:"price"`
	Size        json.Number `json:"size"`
	Timestamp   json.Number `json:"timestamp"`
}

// Tape implementa ports.TradeTape usando la Data API pública.
type Tape struct {
	client *Client
	base   string
}

// NewTape crea la cinta de trades. base vacío usa producción.
func NewTape(client *Client, base string) *Tape {
	if base == "" {
		base = dataAPIBase
	}
	return &Tape{client: client, base: base}
}

var _ ports.TradeTape = (*Tape)(nil)

// RecentTrades devuelve los últimos trades del mercado, más reciente primero.
// Consulta por condition_id para ver ambos lados del book.
func (t *Tape) RecentTrades(ctx context.Context, m *domain.MarketRef, limit int) ([]domain.ObservedTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	url := fmt.Sprintf("%s/trades?market=%s&limit=%d", t.base, m.ID, limit)

	var resp []rawDataTrade
	if err := t.client.get(ctx, t.client.clobLimiter, url, &resp); err != nil {
		return nil, fmt.Errorf("polymarket.RecentTrades: %w", err)
	}

	out := make([]domain.ObservedTrade, 0, len(resp))
	for _, rt := range resp {
		price, err := decimal.NewFromString(rt.Price.String())
		if err != nil {
			continue
		}
		size, err := decimal.NewFromString(rt.Size.String())
		if err != nil {
			continue
		}

		side := domain.SideBuy
		if strings.EqualFold(rt.Side, "SELL") {
			side = domain.SideSell
		}

		out = append(out, domain.ObservedTrade{
			ID:      rt.ID,
			Trader:  rt.ProxyWallet,
			TokenID: rt.Asset,
			Side:    side,
			Price:   price,
			Size:    size,
			At:      parseTradeTimestamp(rt.Timestamp),
		})
	}
	return out, nil
}

func parseTradeTimestamp(n json.Number) time.Time {
	ts, err := n.Int64()
	if err != nil || ts <= 0 {
		return time.Time{}
	}
	if ts > 1e12 {
		return time.UnixMilli(ts).UTC()
	}
	return time.Unix(ts, 0).UTC()
}
