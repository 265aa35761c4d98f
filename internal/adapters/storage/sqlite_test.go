package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func sampleSnapshot(tag string) ports.Snapshot {
	closeAt := time.Date(2026, 9, 1, 12, 15, 0, 0, time.UTC)
	return ports.Snapshot{
		Version: ports.SnapshotVersion,
		Tag:     tag,
		Config: domain.StrategyConfig{
			Tag:              tag,
			Signal:           "momentum",
			Series:           "btc-updown-15m",
			Interval:         15 * time.Minute,
			NotionalPerTrade: dec("1"),
		},
		Stats: domain.AggregateStats{Wins: 2, Losses: 1, TotalTrades: 3, TotalPnL: dec("1.25")},
		Positions: []*domain.Position{{
			ID:          "pos-1",
			StrategyTag: tag,
			State:       domain.StateOpen,
			Market: domain.MarketRef{
				ID: "0xmarket", Slug: "btc-updown-15m-x", Question: "BTC up?",
				Tokens:    []domain.OutcomeToken{{TokenID: "tok-up", Label: "Up"}},
				CloseTime: closeAt,
			},
			Outcome:      domain.OutcomeToken{TokenID: "tok-up", Label: "Up"},
			FillPrice:    dec("0.42"),
			Shares:       dec("5"),
			NotionalCost: dec("2.10"),
			StopPrice:    dec("0.27"),
			TargetPrice:  dec("0.52"),
		}},
		SavedAt: time.Date(2026, 9, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSnapshot(ctx, sampleSnapshot("btc-15m")))

	got, ok, err := s.LoadSnapshot(ctx, "btc-15m")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "btc-15m", got.Tag)
	assert.Equal(t, 2, got.Stats.Wins)
	assert.True(t, got.Stats.TotalPnL.Equal(dec("1.25")))
	require.Len(t, got.Positions, 1)
	pos := got.Positions[0]
	assert.Equal(t, domain.StateOpen, pos.State)
	assert.True(t, pos.FillPrice.Equal(dec("0.42")))
	assert.True(t, pos.StopPrice.Equal(dec("0.27")))
	assert.Equal(t, "Up", pos.Outcome.Label)
}

func TestSnapshot_UpsertReplacesPrevious(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("btc-15m")
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	snap.Positions = nil // la posición terminó
	snap.Stats.Wins = 3
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	got, ok, err := s.LoadSnapshot(ctx, "btc-15m")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, got.Stats.Wins)
	assert.Empty(t, got.Positions)
}

func TestSnapshot_MissingTag(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.LoadSnapshot(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshot_WrongVersionRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := sampleSnapshot("btc-15m")
	snap.Version = ports.SnapshotVersion + 1
	require.NoError(t, s.SaveSnapshot(ctx, snap))

	_, _, err := s.LoadSnapshot(ctx, "btc-15m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot version")
}

func TestTrades_AppendAndListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	for i, result := range []domain.TradeResult{domain.ResultWin, domain.ResultStopped} {
		require.NoError(t, s.AppendTrade(ctx, domain.TradeRecord{
			PositionID:  "pos-" + string(rune('a'+i)),
			StrategyTag: "btc-15m",
			MarketID:    "0xmarket",
			Question:    "BTC up?",
			Outcome:     "Up",
			EntryPrice:  dec("0.42"),
			ExitPrice:   dec("0.27"),
			Shares:      dec("5"),
			Notional:    dec("2.10"),
			PnL:         dec("-0.75"),
			Result:      result,
			ClosedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}
	// Un trade de otra estrategia no aparece en el listado.
	require.NoError(t, s.AppendTrade(ctx, domain.TradeRecord{
		PositionID: "pos-z", StrategyTag: "eth-1h", MarketID: "0xother",
		Result: domain.ResultWin, ClosedAt: base,
	}))

	got, err := s.Trades(ctx, "btc-15m", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.ResultStopped, got[0].Result, "newest first")
	assert.True(t, got[0].PnL.Equal(dec("-0.75")))
	assert.True(t, got[1].EntryPrice.Equal(dec("0.42")))
}

func TestTrades_ForcedFlagSurvives(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendTrade(ctx, domain.TradeRecord{
		PositionID: "pos-f", StrategyTag: "btc-15m", MarketID: "0xmarket",
		Result: domain.ResultForced, Forced: true,
		ClosedAt: time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}))

	got, err := s.Trades(ctx, "btc-15m", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Forced)
	assert.Equal(t, domain.ResultForced, got[0].Result)
}

func TestAttempts_MarkAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	closeAt := time.Date(2026, 9, 1, 12, 15, 0, 0, time.UTC)

	was, err := s.WasAttempted(ctx, "btc-15m", "0xmarket")
	require.NoError(t, err)
	assert.False(t, was)

	require.NoError(t, s.MarkAttempted(ctx, "btc-15m", "0xmarket", closeAt))
	// Marcar dos veces es idempotente.
	require.NoError(t, s.MarkAttempted(ctx, "btc-15m", "0xmarket", closeAt))

	was, err = s.WasAttempted(ctx, "btc-15m", "0xmarket")
	require.NoError(t, err)
	assert.True(t, was)

	// La marca es por estrategia.
	was, err = s.WasAttempted(ctx, "eth-1h", "0xmarket")
	require.NoError(t, err)
	assert.False(t, was)
}

func TestAttempts_EvictionByCloseTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.MarkAttempted(ctx, "btc-15m", "0xold", base.Add(-time.Hour)))
	require.NoError(t, s.MarkAttempted(ctx, "btc-15m", "0xlive", base.Add(time.Hour)))

	n, err := s.EvictExpiredAttempts(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	was, _ := s.WasAttempted(ctx, "btc-15m", "0xold")
	assert.False(t, was)
	was, _ = s.WasAttempted(ctx, "btc-15m", "0xlive")
	assert.True(t, was)
}
