package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyConfig son los parámetros inmutables de una Strategy Instance.
// Se crean al arrancar la estrategia y solo cambian con stop + restart.
type StrategyConfig struct {
	Tag    string // identifica la instancia; dueña de sus Positions
	Signal string // nombre del entry signal registrado

	// Market selection
	Interval time.Duration // duración del periodo del mercado (15m, 1h, ...)
	Series   string        // prefijo de slug de la serie, p.ej. "btc-updown-15m"
	Symbol   string        // subyacente en el feed de referencia, p.ej. "BTCUSDT"

	// Entry
	NotionalPerTrade  decimal.Decimal
	EntryPriceCeiling decimal.Decimal // no entrar si el precio supera esto
	EntryWindow       time.Duration   // entrar solo cuando falte <= esto para el cierre
	EntryTimeout      time.Duration   // cancelar la entrada si no llena en esto

	// Exit
	StopDistance     decimal.Decimal // céntimos bajo el fill price
	TargetDistance   decimal.Decimal // céntimos sobre el fill price (cero = sin target)
	HoldToResolution bool            // true: sin exit, esperar el payout del mercado

	// Safety
	CloseSafetyMargin time.Duration // ventana "no new entries" antes del cierre
	ExitDeadline      time.Duration // escalar a market sell cuando falte <= esto

	MinShares int64
	TickSize  decimal.Decimal

	// Parámetros del entry signal (cada signal interpreta los suyos)
	MinMove     decimal.Decimal // momentum: movimiento mínimo del spot desde el open del periodo
	MinLeadProb decimal.Decimal // leader: probabilidad implícita mínima del outcome líder
}

// StoppedSummary is returned when an operator stops a strategy.
type StoppedSummary struct {
	Tag          string
	Stats        AggregateStats
	OpenPosition *Position // nil if nothing was live
	CancelledIDs []string  // orders cancelled during shutdown
}

// TradeRecord es una fila del ledger de trades terminales.
type TradeRecord struct {
	PositionID  string
	StrategyTag string
	MarketID    string
	Question    string
	Outcome     string
	EntryPrice  decimal.Decimal
	ExitPrice   decimal.Decimal
	Shares      decimal.Decimal
	Notional    decimal.Decimal
	PnL         decimal.Decimal
	Result      TradeResult
	Forced      bool
	ClosedAt    time.Time
}
