package ports

import (
	"context"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// MarketQuery describe qué mercado busca una estrategia.
type MarketQuery struct {
	Series   string // slug prefix de la serie time-boxed, p.ej. "btc-updown-15m"
	Interval int64  // duración del periodo en segundos
	Slug     string // slug exacto, si la estrategia ya lo conoce
}

// MarketDiscovery encuentra el mercado vivo de una serie. Los resultados se
// cachean con TTL corto: un MarketRef no cambia una vez descubierto.
type MarketDiscovery interface {
	DiscoverMarket(ctx context.Context, q MarketQuery) (*domain.MarketRef, error)
}

// ResolutionSource es la fuente autoritativa de resolución de mercados.
type ResolutionSource interface {
	// MarketResolution devuelve el outcome declarado del mercado si ya está
	// cerrado y resuelto. ok=false significa "todavía no" — no es un error.
	MarketResolution(ctx context.Context, marketID string) (declared string, ok bool, err error)
}

// ReferenceFeed es la fuente de evidencia independiente (precio externo que
// replica la regla de settlement del mercado). Solo se consulta tras el
// periodo de gracia de la fuente autoritativa.
type ReferenceFeed interface {
	// ReferenceSettlement derives the would-be outcome from external data.
	// ok=false when the feed cannot determine it either.
	ReferenceSettlement(ctx context.Context, m *domain.MarketRef) (declared string, ok bool, err error)
}

// TradeTape expone los trades públicos recientes de un mercado, más reciente
// primero. La usa el signal de copytrade para detectar entradas grandes.
type TradeTape interface {
	RecentTrades(ctx context.Context, m *domain.MarketRef, limit int) ([]domain.ObservedTrade, error)
}
