package domain

import "github.com/shopspring/decimal"

// OrderStatus is the lifecycle of an order as the gateway reports it.
type OrderStatus string

const (
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderLive      OrderStatus = "LIVE"
	OrderFilled    OrderStatus = "FILLED"
	OrderCancelled OrderStatus = "CANCELLED"
	// OrderUnknown means the gateway could not tell us — a timed-out call is
	// never treated as "the order does not exist".
	OrderUnknown OrderStatus = "UNKNOWN"
)

// OrderSide distinguishes entry buys from exit sells.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRef is our record of one order placed on the gateway. Owned
// exclusively by the Position that created it, never shared.
type OrderRef struct {
	ExternalID    string
	Side          OrderSide
	LimitPrice    decimal.Decimal // zero for market orders
	RequestedSize decimal.Decimal // shares
	Status        OrderStatus
}
