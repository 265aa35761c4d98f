package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
engine:
  tick_seconds: 5
api:
  clob_base: "https://clob.example.com"
storage:
  dsn: "test.db"
log:
  level: debug
strategies:
  - tag: btc-15m-momentum
    signal: momentum
    series: btc-updown-15m
    interval_minutes: 15
    symbol: BTCUSDT
    notional_per_trade: 1.0
    entry_price_ceiling: 0.70
    entry_window_minutes: 10
    stop_distance: 0.15
    target_distance: 0.10
    hold_to_resolution: true
    min_move: 25
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "0xdeadbeef")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.TickInterval())
	assert.Equal(t, "https://clob.example.com", cfg.API.CLOBBase)
	assert.Equal(t, "test.db", cfg.Storage.DSN)
	assert.Equal(t, "0xdeadbeef", cfg.API.PrivateKey)

	require.Len(t, cfg.Strategies, 1)
	s := cfg.Strategies[0]
	assert.Equal(t, "btc-15m-momentum", s.Tag)
	assert.True(t, s.HoldToResolution)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
strategies:
  - tag: minimal
    signal: momentum
    series: btc-updown-15m
`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.TickSeconds)
	assert.Equal(t, 15, cfg.Engine.ResolutionDelaySeconds)
	assert.Equal(t, 120, cfg.Engine.ReferenceGraceSeconds)
	assert.Equal(t, 600, cfg.Engine.MaxWaitSeconds)
	assert.Equal(t, "https://clob.polymarket.com", cfg.API.CLOBBase)
	assert.Equal(t, "https://data-api.polymarket.com", cfg.API.DataBase)

	s := cfg.Strategies[0]
	assert.Equal(t, 15, s.IntervalMinutes)
	assert.Equal(t, 60, s.EntryTimeoutSecs)
	assert.Equal(t, 120, s.CloseSafetySecs)
	assert.Equal(t, 30, s.ExitDeadlineSecs)
	assert.Equal(t, 5, s.MinShares)
	assert.Equal(t, "BTCUSDT", s.Symbol)
}

func TestLoad_EnvOverridesDSN(t *testing.T) {
	t.Setenv("SNIPER_DSN", ":memory:")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
}

func TestLoad_PrivateKeyNeverFromYAML(t *testing.T) {
	t.Setenv("POLY_PRIVATE_KEY", "")

	// Una private_key en el YAML se ignora: la clave solo entra por entorno.
	cfg, err := Load(writeConfig(t, `
api:
  private_key: "0xleaked"
strategies:
  - tag: keytest
    signal: momentum
    series: btc-updown-15m
`))
	require.NoError(t, err)
	assert.Empty(t, cfg.API.PrivateKey)
}

func TestLoad_DuplicateTagRejected(t *testing.T) {
	_, err := Load(writeConfig(t, `
strategies:
  - tag: dup
    signal: momentum
    series: btc-updown-15m
  - tag: dup
    signal: leader
    series: eth-updown-1h
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoad_MissingSignalRejected(t *testing.T) {
	_, err := Load(writeConfig(t, `
strategies:
  - tag: broken
    series: btc-updown-15m
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing signal")
}

func TestLoad_CeilingOutOfRange(t *testing.T) {
	_, err := Load(writeConfig(t, `
strategies:
  - tag: broken
    signal: momentum
    series: btc-updown-15m
    entry_price_ceiling: 1.5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry_price_ceiling")
}

func TestStrategyConfig_Domain(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	d := cfg.Strategies[0].Domain()

	assert.Equal(t, "btc-15m-momentum", d.Tag)
	assert.Equal(t, 15*time.Minute, d.Interval)
	assert.Equal(t, 10*time.Minute, d.EntryWindow)
	assert.Equal(t, 2*time.Minute, d.CloseSafetyMargin)
	assert.True(t, d.NotionalPerTrade.Equal(decimal.NewFromInt(1)))
	assert.True(t, d.StopDistance.Equal(decimal.NewFromFloat(0.15)))
	assert.True(t, d.MinMove.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, int64(5), d.MinShares)
}
