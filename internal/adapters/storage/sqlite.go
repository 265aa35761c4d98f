package storage

// sqlite.go — persistencia del estado recuperable.
//
// Estrategia:
//   - `snapshots`: UNA fila por estrategia (UPSERT en cada transición de
//     estado). Config, stats y positions vivas serializadas como JSON, con
//     número de versión explícito: un snapshot de otra versión se rechaza al
//     cargar en vez de leerse mal en silencio.
//   - `trades`: ledger append-only de Positions terminales.
//   - `attempts`: registro de idempotencia (estrategia, mercado) con eviction
//     por close time — no es un set que crece sin fin.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const schema = `
-- Último snapshot por estrategia
CREATE TABLE IF NOT EXISTS snapshots (
    tag        TEXT PRIMARY KEY,
    version    INTEGER  NOT NULL,
    config     TEXT     NOT NULL,
    stats      TEXT     NOT NULL,
    positions  TEXT     NOT NULL,
    saved_at   DATETIME NOT NULL
);

-- Ledger append-only de trades terminales
CREATE TABLE IF NOT EXISTS trades (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    position_id  TEXT NOT NULL,
    tag          TEXT NOT NULL,
    market_id    TEXT NOT NULL,
    question     TEXT,
    outcome      TEXT,
    entry_price  TEXT NOT NULL DEFAULT '0',
    exit_price   TEXT NOT NULL DEFAULT '0',
    shares       TEXT NOT NULL DEFAULT '0',
    notional     TEXT NOT NULL DEFAULT '0',
    pnl          TEXT NOT NULL DEFAULT '0',
    result       TEXT NOT NULL,
    forced       INTEGER NOT NULL DEFAULT 0,
    closed_at    DATETIME NOT NULL
);

-- Registro de idempotencia: una fila por (estrategia, mercado) intentado
CREATE TABLE IF NOT EXISTS attempts (
    tag        TEXT NOT NULL,
    market_id  TEXT NOT NULL,
    close_time DATETIME NOT NULL,
    marked_at  DATETIME NOT NULL,
    PRIMARY KEY (tag, market_id)
);

CREATE INDEX IF NOT EXISTS idx_trades_tag    ON trades(tag, closed_at DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_close ON attempts(close_time);
`

// SQLiteStore implementa ports.SnapshotStore usando SQLite (pure Go, sin CGo).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStore: apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

var _ ports.SnapshotStore = (*SQLiteStore)(nil)

// SaveSnapshot hace upsert del snapshot completo de una estrategia.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap ports.Snapshot) error {
	cfg, err := json.Marshal(snap.Config)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: marshal config: %w", err)
	}
	stats, err := json.Marshal(snap.Stats)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: marshal stats: %w", err)
	}
	positions, err := json.Marshal(snap.Positions)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: marshal positions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (tag, version, config, stats, positions, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(tag) DO UPDATE SET
			version   = excluded.version,
			config    = excluded.config,
			stats     = excluded.stats,
			positions = excluded.positions,
			saved_at  = excluded.saved_at
	`, snap.Tag, snap.Version, string(cfg), string(stats), string(positions), snap.SavedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: upsert %s: %w", snap.Tag, err)
	}
	return nil
}

// LoadSnapshot carga el último snapshot de una estrategia. Un snapshot con
// versión distinta a la actual devuelve error: mejor arrancar de cero a
// sabiendas que interpretar mal el layout.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, tag string) (ports.Snapshot, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT version, config, stats, positions, saved_at
		FROM snapshots WHERE tag = ?
	`, tag)

	var (
		snap                  ports.Snapshot
		cfg, stats, positions string
		savedAt               string
	)
	err := row.Scan(&snap.Version, &cfg, &stats, &positions, &savedAt)
	if err == sql.ErrNoRows {
		return ports.Snapshot{}, false, nil
	}
	if err != nil {
		return ports.Snapshot{}, false, fmt.Errorf("storage.LoadSnapshot: %s: %w", tag, err)
	}

	if snap.Version != ports.SnapshotVersion {
		return ports.Snapshot{}, false, fmt.Errorf(
			"storage.LoadSnapshot: %s: snapshot version %d, want %d", tag, snap.Version, ports.SnapshotVersion)
	}

	snap.Tag = tag
	if err := json.Unmarshal([]byte(cfg), &snap.Config); err != nil {
		return ports.Snapshot{}, false, fmt.Errorf("storage.LoadSnapshot: %s: config: %w", tag, err)
	}
	if err := json.Unmarshal([]byte(stats), &snap.Stats); err != nil {
		return ports.Snapshot{}, false, fmt.Errorf("storage.LoadSnapshot: %s: stats: %w", tag, err)
	}
	if err := json.Unmarshal([]byte(positions), &snap.Positions); err != nil {
		return ports.Snapshot{}, false, fmt.Errorf("storage.LoadSnapshot: %s: positions: %w", tag, err)
	}
	snap.SavedAt = parseDBTime(savedAt)
	return snap, true, nil
}

// AppendTrade añade una fila al ledger.
func (s *SQLiteStore) AppendTrade(ctx context.Context, rec domain.TradeRecord) error {
	forced := 0
	if rec.Forced {
		forced = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(position_id, tag, market_id, question, outcome,
			 entry_price, exit_price, shares, notional, pnl, result, forced, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.PositionID, rec.StrategyTag, rec.MarketID, rec.Question, rec.Outcome,
		rec.EntryPrice.String(), rec.ExitPrice.String(), rec.Shares.String(),
		rec.Notional.String(), rec.PnL.String(), string(rec.Result), forced,
		rec.ClosedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.AppendTrade: %s: %w", rec.PositionID, err)
	}
	return nil
}

// Trades devuelve el ledger de una estrategia, más reciente primero.
func (s *SQLiteStore) Trades(ctx context.Context, tag string, limit int) ([]domain.TradeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, tag, market_id, question, outcome,
		       entry_price, exit_price, shares, notional, pnl, result, forced, closed_at
		FROM trades WHERE tag = ?
		ORDER BY closed_at DESC, id DESC
		LIMIT ?
	`, tag, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.Trades: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var (
			rec                                        domain.TradeRecord
			entry, exit, shares, notional, pnl, result string
			forced                                     int
			closedAt                                   string
		)
		if err := rows.Scan(
			&rec.PositionID, &rec.StrategyTag, &rec.MarketID, &rec.Question, &rec.Outcome,
			&entry, &exit, &shares, &notional, &pnl, &result, &forced, &closedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.Trades: scan: %w", err)
		}
		rec.EntryPrice = mustDecimal(entry)
		rec.ExitPrice = mustDecimal(exit)
		rec.Shares = mustDecimal(shares)
		rec.Notional = mustDecimal(notional)
		rec.PnL = mustDecimal(pnl)
		rec.Result = domain.TradeResult(result)
		rec.Forced = forced == 1
		rec.ClosedAt = parseDBTime(closedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// MarkAttempted registra que la estrategia ya intentó entrar en el mercado.
func (s *SQLiteStore) MarkAttempted(ctx context.Context, tag, marketID string, closeTime time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (tag, market_id, close_time, marked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tag, market_id) DO NOTHING
	`, tag, marketID, closeTime.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.MarkAttempted: %s/%s: %w", tag, marketID, err)
	}
	return nil
}

// WasAttempted consulta el registro de idempotencia.
func (s *SQLiteStore) WasAttempted(ctx context.Context, tag, marketID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attempts WHERE tag = ? AND market_id = ?`, tag, marketID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.WasAttempted: %s/%s: %w", tag, marketID, err)
	}
	return true, nil
}

// EvictExpiredAttempts borra registros de mercados que cerraron antes de before.
func (s *SQLiteStore) EvictExpiredAttempts(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM attempts WHERE close_time < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("storage.EvictExpiredAttempts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// mustDecimal parsea un decimal guardado por nosotros mismos; un valor
// corrupto vuelve como cero en vez de tirar el listado entero.
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDBTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
