package polymarket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.

// gammaMarket es el shape crudo de Gamma /markets. Los campos que son arrays
// llegan como strings JSON-encoded dentro del JSON (sic).
type gammaMarket struct {
	ID            string `json:"id"`
	ConditionID   string `json:"conditionId"`
	Slug          string `json:"slug"`
	Question      string `json:"question"`
	Outcomes      string `json:"outcomes"`      // p.ej. `["Up","Down"]`
	OutcomePrices string `json:"outcomePrices"` // p.ej. `["1","0"]` tras resolver
	ClobTokenIDs  string `json:"clobTokenIds"`  // p.ej. `["123...","456..."]`
	EndDate       string `json:"endDate"`
	Closed        bool   `json:"closed"`
	UMAStatus     string `json:"umaResolutionStatus"`
}

type gammaMarketsResponse []gammaMarket

// mapGammaMarket convierte el shape de Gamma a un MarketRef del dominio.
func mapGammaMarket(gm gammaMarket) (*domain.MarketRef, error) {
	var labels, tokenIDs []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &labels); err != nil {
		return nil, fmt.Errorf("outcomes field: %w", err)
	}
	if err := json.Unmarshal([]byte(gm.ClobTokenIDs), &tokenIDs); err != nil {
		return nil, fmt.Errorf("clobTokenIds field: %w", err)
	}
	if len(labels) != len(tokenIDs) {
		return nil, fmt.Errorf("outcomes/tokens length mismatch: %d vs %d", len(labels), len(tokenIDs))
	}

	closeTime, err := parseGammaTime(gm.EndDate)
	if err != nil {
		return nil, fmt.Errorf("endDate %q: %w", gm.EndDate, err)
	}

	tokens := make([]domain.OutcomeToken, len(labels))
	for i := range labels {
		tokens[i] = domain.OutcomeToken{TokenID: tokenIDs[i], Label: labels[i]}
	}

	return &domain.MarketRef{
		ID:        gm.ConditionID,
		Slug:      gm.Slug,
		Question:  gm.Question,
		Tokens:    tokens,
		CloseTime: closeTime,
	}, nil
}

// declaredOutcome extrae el outcome ganador de un gammaMarket resuelto:
// el label cuyo outcomePrice llegó a 1. ok=false si todavía no hay ganador.
func declaredOutcome(gm gammaMarket) (string, bool) {
	var labels, prices []string
	if err := json.Unmarshal([]byte(gm.Outcomes), &labels); err != nil {
		return "", false
	}
	if err := json.Unmarshal([]byte(gm.OutcomePrices), &prices); err != nil {
		return "", false
	}
	for i, p := range prices {
		if p == "1" && i < len(labels) {
			return labels[i], true
		}
	}
	return "", false
}

func parseGammaTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format")
}

// --- CLOB API ---

type clobOrderResponse struct {
	ErrorMsg     string `json:"errorMsg"`
	OrderID      string `json:"orderID"`
	TakingAmount string `json:"takingAmount"`
	MakingAmount string `json:"makingAmount"`
	Status       string `json:"status"`
	Success      bool   `json:"success"`
}

type clobOrderQuery struct {
	ID               string      `json:"id"`
	AssetID          string      `json:"asset_id"`
	Side             string      `json:"side"`
	OriginalSize     string      `json:"original_size"`
	SizeMatched      string      `json:"size_matched"`
	Price            string      `json:"price"`
	Status           string      `json:"status"`
	AssociatedTrades []clobTrade `json:"associate_trades"`
}

type clobTrade struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type clobMidpointResponse struct {
	Mid string `json:"mid"`
}
