package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

// SnapshotVersion identifica el layout del snapshot persistido. Un snapshot
// con otra versión se rechaza en vez de leerse mal en silencio.
const SnapshotVersion = 2

// Snapshot es el estado recuperable de una Strategy Instance: config, stats
// y todas sus Positions no terminales. El store guarda una copia débil — al
// recargar se promueve a ownership vivo SOLO tras re-consultar el gateway.
type Snapshot struct {
	Version   int
	Tag       string
	Config    domain.StrategyConfig
	Stats     domain.AggregateStats
	Positions []*domain.Position
	SavedAt   time.Time
}

// SnapshotStore persiste snapshots versionados, el ledger de trades y los
// registros de idempotencia por (estrategia, mercado).
type SnapshotStore interface {
	// SaveSnapshot escribe el snapshot completo de una instancia. Se llama en
	// cada transición de estado.
	SaveSnapshot(ctx context.Context, snap Snapshot) error

	// LoadSnapshot carga el último snapshot de la instancia. ok=false si no
	// hay ninguno. Un snapshot con versión incompatible devuelve error.
	LoadSnapshot(ctx context.Context, tag string) (Snapshot, bool, error)

	// AppendTrade añade una Position terminal al ledger.
	AppendTrade(ctx context.Context, rec domain.TradeRecord) error

	// Trades devuelve el ledger de una instancia, más reciente primero.
	Trades(ctx context.Context, tag string, limit int) ([]domain.TradeRecord, error)

	// MarkAttempted registra que la estrategia ya intentó entrar en el
	// mercado. Con eviction por close time — no es un set que crece sin fin.
	MarkAttempted(ctx context.Context, tag, marketID string, closeTime time.Time) error

	// WasAttempted consulta el registro de idempotencia.
	WasAttempted(ctx context.Context, tag, marketID string) (bool, error)

	// EvictExpiredAttempts borra registros de mercados ya cerrados.
	EvictExpiredAttempts(ctx context.Context, before time.Time) (int64, error)

	Close() error
}
