package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de validación local — nunca llegan al gateway.
var (
	ErrInvalidPrice = errors.New("invalid price: must be in (0, 1)")
	ErrInvalidSize  = errors.New("invalid size: target notional must be positive")
)

// SizedOrder es el resultado de convertir un gasto objetivo en una orden válida.
type SizedOrder struct {
	Price    decimal.Decimal // redondeado al tick
	Shares   decimal.Decimal
	Notional decimal.Decimal // Shares * Price, re-derivado tras el redondeo
}

// SizeForSpend convierte un notional objetivo en una orden válida:
// redondea el precio al tick, calcula shares = notional/price, sube al
// mínimo de shares si hace falta, y re-deriva el notional real.
// Los precios de mercados binarios son probabilidades: fuera de (0,1) es error.
func SizeForSpend(targetNotional, price decimal.Decimal, minShares int64, tickSize decimal.Decimal) (SizedOrder, error) {
	if price.LessThanOrEqual(decimal.Zero) || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return SizedOrder{}, fmt.Errorf("domain.SizeForSpend: price %s: %w", price, ErrInvalidPrice)
	}
	if targetNotional.LessThanOrEqual(decimal.Zero) {
		return SizedOrder{}, fmt.Errorf("domain.SizeForSpend: notional %s: %w", targetNotional, ErrInvalidSize)
	}

	tick := tickSize
	if tick.LessThanOrEqual(decimal.Zero) {
		tick = decimal.New(1, -2) // 0.01
	}
	rounded := price.Div(tick).Round(0).Mul(tick)
	if rounded.LessThanOrEqual(decimal.Zero) || rounded.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return SizedOrder{}, fmt.Errorf("domain.SizeForSpend: price %s rounds outside (0,1): %w", price, ErrInvalidPrice)
	}

	shares := targetNotional.Div(rounded).RoundDown(2)
	min := decimal.NewFromInt(minShares)
	if minShares > 0 && shares.LessThan(min) {
		shares = min
	}

	return SizedOrder{
		Price:    rounded,
		Shares:   shares,
		Notional: shares.Mul(rounded),
	}, nil
}

// StopTrigger computes the stop-loss trigger from the ACTUAL fill price.
func StopTrigger(fillPrice, stopDistance decimal.Decimal) decimal.Decimal {
	return fillPrice.Sub(stopDistance)
}

// TargetTrigger computes the profit-target trigger from the ACTUAL fill price.
func TargetTrigger(fillPrice, targetDistance decimal.Decimal) decimal.Decimal {
	return fillPrice.Add(targetDistance)
}

// TierNotional maps an observed counterparty trade size to how much we spend
// mirroring it. The top tier is additionally limited by the daily big-trade
// cap (see DailyCap).
//
//	< $1   → copy exact
//	$1-10  → $1
//	$10-20 → $2
//	$20-50 → $3
//	$50+   → $5
func TierNotional(observed decimal.Decimal) decimal.Decimal {
	switch {
	case observed.LessThan(decimal.NewFromInt(1)):
		return observed
	case observed.LessThan(decimal.NewFromInt(10)):
		return decimal.NewFromInt(1)
	case observed.LessThan(decimal.NewFromInt(20)):
		return decimal.NewFromInt(2)
	case observed.LessThan(decimal.NewFromInt(50)):
		return decimal.NewFromInt(3)
	default:
		return decimal.NewFromInt(5)
	}
}

// BigTradeThreshold es el notional observado a partir del cual aplica el
// límite diario por contraparte.
var BigTradeThreshold = decimal.NewFromInt(50)
