package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ObservedTrade es un trade ajeno visto en la cinta pública del mercado.
type ObservedTrade struct {
	ID      string
	Trader  string // proxy wallet del que operó
	TokenID string
	Side    OrderSide
	Price   decimal.Decimal
	Size    decimal.Decimal // shares
	At      time.Time
}

// Notional devuelve el valor en USDC del trade.
func (t ObservedTrade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Size)
}
