package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// GatewayErrorKind clasifica los fallos del gateway.
type GatewayErrorKind string

const (
	// GatewayTimeout: la llamada no respondió a tiempo. La orden PUEDE haber
	// sido aceptada igualmente — nunca tratar como "no pasó".
	GatewayTimeout GatewayErrorKind = "timeout"
	// GatewayRejected: el upstream respondió con error (4xx/5xx).
	GatewayRejected GatewayErrorKind = "rejected"
)

// GatewayError es un fallo de una llamada externa. El engine lo trata como
// "estado desconocido, reintentar el próximo tick", nunca como negativo
// definitivo.
type GatewayError struct {
	Kind GatewayErrorKind
	Op   string
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayError devuelve el *GatewayError si err lo contiene.
func IsGatewayError(err error) (*GatewayError, bool) {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

// OrderState es lo que el gateway sabe de una orden al consultarla.
type OrderState struct {
	Status       domain.OrderStatus
	FilledSize   decimal.Decimal // shares
	AvgFillPrice decimal.Decimal // zero si el gateway no lo reporta
}

// OrderGateway places, cancels, and monitors real orders on the exchange.
// Treated as unreliable and rate-limited: every call is a suspension point
// and every failure means "unknown", not "no".
type OrderGateway interface {
	// PlaceLimitBuy submits a GTC limit buy for the given token.
	PlaceLimitBuy(ctx context.Context, tokenID string, price, shares decimal.Decimal) (domain.OrderRef, error)

	// PlaceLimitSell submits a GTC limit sell.
	PlaceLimitSell(ctx context.Context, tokenID string, price, shares decimal.Decimal) (domain.OrderRef, error)

	// PlaceMarketSell submits an immediate (FOK) sell. Used for stop-loss
	// escalation and emergency closes.
	PlaceMarketSell(ctx context.Context, tokenID string, shares decimal.Decimal) (domain.OrderRef, error)

	// Cancel cancels an open order by its external ID.
	Cancel(ctx context.Context, orderID string) error

	// OrderState queries current order status and fill information.
	OrderState(ctx context.Context, orderID string) (OrderState, error)

	// MidPrice returns the current midpoint for a token, the fair-value proxy
	// used for stop/target checks before and after a fill.
	MidPrice(ctx context.Context, tokenID string) (decimal.Decimal, error)
}
