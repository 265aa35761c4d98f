// Package binance es la fuente de precios del subyacente: spot para los
// signals y klines como evidencia independiente de settlement cuando el
// oráculo de Polymarket se retrasa.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const (
	defaultBase = "https://api.binance.com"

	// Binance permite 1200 weight/min; nos quedamos muy por debajo.
	requestsPerSec = 5
)

// Feed consulta la API pública de Binance para un símbolo concreto.
// Implementa signal.SpotFeed y ports.ReferenceFeed.
type Feed struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter

	symbol   string
	interval time.Duration
}

// NewFeed crea el feed para un símbolo (p.ej. "BTCUSDT") y el intervalo de
// la serie que arbitra. base vacío usa producción.
func NewFeed(base, symbol string, interval time.Duration) *Feed {
	if base == "" {
		base = defaultBase
	}
	return &Feed{
		http:     &http.Client{Timeout: 10 * time.Second},
		base:     base,
		limiter:  rate.NewLimiter(requestsPerSec, 5),
		symbol:   symbol,
		interval: interval,
	}
}

var _ ports.ReferenceFeed = (*Feed)(nil)

// Spot devuelve el último precio del símbolo.
func (f *Feed) Spot(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		symbol = f.symbol
	}
	u := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", f.base, symbol)

	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := f.get(ctx, u, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("binance.Spot: %w", err)
	}
	p, err := decimal.NewFromString(resp.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance.Spot: bad price %q: %w", resp.Price, err)
	}
	return p, nil
}

// PeriodOpen devuelve el precio de apertura de la vela que empieza en start.
func (f *Feed) PeriodOpen(ctx context.Context, symbol string, start time.Time, interval time.Duration) (decimal.Decimal, error) {
	k, err := f.kline(ctx, symbol, start, interval)
	if err != nil {
		return decimal.Zero, fmt.Errorf("binance.PeriodOpen: %w", err)
	}
	return k.open, nil
}

// ReferenceSettlement replica la regla de settlement de un mercado updown:
// close de la vela del periodo por encima del open → "Up", por debajo →
// "Down". ok=false si la vela aún no cerró o no está disponible.
func (f *Feed) ReferenceSettlement(ctx context.Context, m *domain.MarketRef) (string, bool, error) {
	start := m.CloseTime.Add(-f.interval)

	// La vela tiene que estar cerrada para que su close sea definitivo.
	if time.Now().UTC().Before(m.CloseTime) {
		return "", false, nil
	}

	k, err := f.kline(ctx, f.symbol, start, f.interval)
	if err != nil {
		return "", false, fmt.Errorf("binance.ReferenceSettlement: %w", err)
	}

	if k.close.GreaterThan(k.open) {
		return "Up", true, nil
	}
	if k.close.LessThan(k.open) {
		return "Down", true, nil
	}
	// Empate exacto: sin evidencia utilizable, que decida otra fuente.
	return "", false, nil
}

type candle struct {
	open  decimal.Decimal
	close decimal.Decimal
}

// kline obtiene la vela que empieza exactamente en start.
func (f *Feed) kline(ctx context.Context, symbol string, start time.Time, interval time.Duration) (candle, error) {
	iv, err := binanceInterval(interval)
	if err != nil {
		return candle{}, err
	}

	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&startTime=%d&limit=1",
		f.base, symbol, iv, start.UnixMilli())

	// Cada kline llega como array heterogéneo: [openTime, open, high, low, close, ...]
	var raw [][]json.RawMessage
	if err := f.get(ctx, u, &raw); err != nil {
		return candle{}, err
	}
	if len(raw) == 0 || len(raw[0]) < 5 {
		return candle{}, fmt.Errorf("no kline for %s at %s", symbol, start.Format(time.RFC3339))
	}

	open, err := klineField(raw[0][1])
	if err != nil {
		return candle{}, fmt.Errorf("open: %w", err)
	}
	cls, err := klineField(raw[0][4])
	if err != nil {
		return candle{}, fmt.Errorf("close: %w", err)
	}
	return candle{open: open, close: cls}, nil
}

func klineField(raw json.RawMessage) (decimal.Decimal, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

// binanceInterval mapea una duración a los intervalos que acepta la API.
func binanceInterval(d time.Duration) (string, error) {
	switch d {
	case time.Minute:
		return "1m", nil
	case 5 * time.Minute:
		return "5m", nil
	case 15 * time.Minute:
		return "15m", nil
	case 30 * time.Minute:
		return "30m", nil
	case time.Hour:
		return "1h", nil
	case 4 * time.Hour:
		return "4h", nil
	case 24 * time.Hour:
		return "1d", nil
	default:
		return "", fmt.Errorf("unsupported interval %s", d)
	}
}

func (f *Feed) get(ctx context.Context, url string, out any) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
