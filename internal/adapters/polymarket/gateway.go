package polymarket

// gateway.go — order placement, cancellation and monitoring on the CLOB.
//
// Every error leaving this file is a *ports.GatewayError so the engine can
// treat it as "status unknown, retry next tick". A timed-out placement call
// in particular must never be read as "the order was not placed".

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

// clobOrderRequest is the JSON body sent to POST /order.
type clobOrderRequest struct {
	Order     clobOrderBody `json:"order"`
	Owner     string        `json:"owner"`
	OrderType string        `json:"orderType"`
}

type clobOrderBody struct {
	Salt          json.Number `json:"salt"`
	Maker         string      `json:"maker"`
	Signer        string      `json:"signer"`
	Taker         string      `json:"taker"`
	TokenID       string      `json:"tokenId"`
	MakerAmount   string      `json:"makerAmount"`
	TakerAmount   string      `json:"takerAmount"`
	Expiration    string      `json:"expiration"`
	Nonce         string      `json:"nonce"`
	FeeRateBps    string      `json:"feeRateBps"`
	Side          string      `json:"side"`
	SignatureType int         `json:"signatureType"`
	Signature     string      `json:"signature"`
}

// Gateway implements ports.OrderGateway against the Polymarket CLOB.
type Gateway struct {
	auth *AuthClient
}

// NewGateway creates the CLOB order gateway.
func NewGateway(auth *AuthClient) *Gateway {
	return &Gateway{auth: auth}
}

var _ ports.OrderGateway = (*Gateway)(nil)

// PlaceLimitBuy submits a GTC limit buy.
func (g *Gateway) PlaceLimitBuy(ctx context.Context, tokenID string, price, shares decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, tokenID, price, shares, domain.SideBuy, "GTC")
}

// PlaceLimitSell submits a GTC limit sell.
func (g *Gateway) PlaceLimitSell(ctx context.Context, tokenID string, price, shares decimal.Decimal) (domain.OrderRef, error) {
	return g.placeOrder(ctx, tokenID, price, shares, domain.SideSell, "GTC")
}

// PlaceMarketSell submits an immediate FOK sell priced at the floor so it
// crosses whatever the book offers.
func (g *Gateway) PlaceMarketSell(ctx context.Context, tokenID string, shares decimal.Decimal) (domain.OrderRef, error) {
	floor := decimal.NewFromFloat(0.01)
	ref, err := g.placeOrder(ctx, tokenID, floor, shares, domain.SideSell, "FOK")
	if err != nil {
		return ref, err
	}
	ref.LimitPrice = decimal.Zero // market order, no meaningful limit
	return ref, nil
}

func (g *Gateway) placeOrder(ctx context.Context, tokenID string, price, shares decimal.Decimal, side domain.OrderSide, orderType string) (domain.OrderRef, error) {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return domain.OrderRef{}, g.wrap("place", err)
	}

	signed, err := g.auth.buildSignedOrder(tokenID, price, shares, side)
	if err != nil {
		// Firma local, nunca llegó al upstream.
		return domain.OrderRef{}, &ports.GatewayError{Kind: ports.GatewayRejected, Op: "place", Err: err}
	}

	body := clobOrderRequest{
		Order: clobOrderBody{
			Salt:          json.Number(signed.Order.Salt.String()),
			Maker:         signed.Order.Maker.Hex(),
			Signer:        signed.Order.Signer.Hex(),
			Taker:         signed.Order.Taker.Hex(),
			TokenID:       tokenID,
			MakerAmount:   signed.Order.MakerAmount.String(),
			TakerAmount:   signed.Order.TakerAmount.String(),
			Expiration:    signed.Order.Expiration.String(),
			Nonce:         signed.Order.Nonce.String(),
			FeeRateBps:    signed.Order.FeeRateBps.String(),
			Side:          string(side),
			SignatureType: int(signed.Order.SignatureType.Int64()),
			Signature:     "0x" + hex.EncodeToString(signed.Signature),
		},
		Owner:     g.auth.creds.APIKey,
		OrderType: orderType,
	}

	var resp clobOrderResponse
	if err := g.auth.doL2(ctx, http.MethodPost, "/order", body, &resp); err != nil {
		return domain.OrderRef{}, g.wrap("place", err)
	}
	if !resp.Success || resp.ErrorMsg != "" {
		return domain.OrderRef{}, &ports.GatewayError{
			Kind: ports.GatewayRejected, Op: "place",
			Err: fmt.Errorf("clob error: %s", resp.ErrorMsg),
		}
	}

	return domain.OrderRef{
		ExternalID:    resp.OrderID,
		Side:          side,
		LimitPrice:    price,
		RequestedSize: shares,
		Status:        domain.OrderSubmitted,
	}, nil
}

// Cancel cancels an open order by its CLOB order ID.
func (g *Gateway) Cancel(ctx context.Context, orderID string) error {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return g.wrap("cancel", err)
	}
	if err := g.auth.doL2(ctx, http.MethodDelete, "/order/"+orderID, nil, nil); err != nil {
		return g.wrap("cancel", err)
	}
	return nil
}

// OrderState queries current status and fill info for one order.
func (g *Gateway) OrderState(ctx context.Context, orderID string) (ports.OrderState, error) {
	if err := g.auth.EnsureCreds(ctx); err != nil {
		return ports.OrderState{}, g.wrap("order-state", err)
	}

	var o clobOrderQuery
	if err := g.auth.doL2(ctx, http.MethodGet, "/data/order/"+orderID, nil, &o); err != nil {
		return ports.OrderState{}, g.wrap("order-state", err)
	}

	st := ports.OrderState{Status: mapOrderStatus(o.Status)}
	if o.SizeMatched != "" {
		if sz, err := decimal.NewFromString(o.SizeMatched); err == nil {
			st.FilledSize = sz
		}
	}
	st.AvgFillPrice = avgTradePrice(o.AssociatedTrades)
	// Parcialmente llenada pero marcada LIVE: el engine decide, aquí solo
	// reportamos lo que dice el book.
	return st, nil
}

// MidPrice returns the current midpoint for a token.
func (g *Gateway) MidPrice(ctx context.Context, tokenID string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/midpoint?token_id=%s", g.auth.clobBase, tokenID)

	var resp clobMidpointResponse
	if err := g.auth.get(ctx, g.auth.quoteLimiter, url, &resp); err != nil {
		return decimal.Zero, g.wrap("midpoint", err)
	}
	mid, err := decimal.NewFromString(resp.Mid)
	if err != nil {
		return decimal.Zero, &ports.GatewayError{
			Kind: ports.GatewayRejected, Op: "midpoint",
			Err: fmt.Errorf("bad mid %q: %w", resp.Mid, err),
		}
	}
	return mid, nil
}

// wrap clasifica un error de transporte: deadline/cancel → timeout (la orden
// puede existir igualmente), el resto → rejected.
func (g *Gateway) wrap(op string, err error) *ports.GatewayError {
	kind := ports.GatewayRejected
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		strings.Contains(err.Error(), "timeout") || strings.Contains(err.Error(), "after") {
		kind = ports.GatewayTimeout
	}
	return &ports.GatewayError{Kind: kind, Op: op, Err: err}
}

func mapOrderStatus(s string) domain.OrderStatus {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "MATCHED"), strings.Contains(upper, "FILLED"):
		return domain.OrderFilled
	case strings.Contains(upper, "CANCEL"), strings.Contains(upper, "INVALID"):
		return domain.OrderCancelled
	case strings.Contains(upper, "LIVE"), strings.Contains(upper, "OPEN"):
		return domain.OrderLive
	case upper == "":
		return domain.OrderUnknown
	default:
		return domain.OrderLive
	}
}

// avgTradePrice pondera los fills parciales por tamaño.
func avgTradePrice(trades []clobTrade) decimal.Decimal {
	var notional, size decimal.Decimal
	for _, t := range trades {
		p, err1 := decimal.NewFromString(t.Price)
		s, err2 := decimal.NewFromString(t.Size)
		if err1 != nil || err2 != nil {
			continue
		}
		notional = notional.Add(p.Mul(s))
		size = size.Add(s)
	}
	if size.IsZero() {
		return decimal.Zero
	}
	return notional.Div(size).Round(4)
}
