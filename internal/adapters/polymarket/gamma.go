package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

const gammaMarketsPath = "/markets"

// Discovery localiza el mercado vivo de una serie time-boxed vía Gamma y
// consulta resoluciones declaradas. Implementa ports.MarketDiscovery y
// ports.ResolutionSource.
type Discovery struct {
	client *Client
}

// NewDiscovery crea el adapter de Gamma.
func NewDiscovery(client *Client) *Discovery {
	return &Discovery{client: client}
}

var (
	_ ports.MarketDiscovery  = (*Discovery)(nil)
	_ ports.ResolutionSource = (*Discovery)(nil)
)

// DiscoverMarket busca el mercado del periodo actual. Con Slug explícito lo
// usa tal cual; si no, lo deriva de la serie y el reloj.
func (d *Discovery) DiscoverMarket(ctx context.Context, q ports.MarketQuery) (*domain.MarketRef, error) {
	slug := q.Slug
	if slug == "" {
		if q.Series == "" || q.Interval <= 0 {
			return nil, fmt.Errorf("gamma.DiscoverMarket: need slug or series+interval")
		}
		slug = PeriodSlug(q.Series, time.Duration(q.Interval)*time.Second, time.Now().UTC())
	}

	gm, ok, err := d.fetchBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("gamma.DiscoverMarket: %w", err)
	}
	if !ok {
		slog.Debug("market not found for slug", "slug", slug)
		return nil, nil
	}

	m, err := mapGammaMarket(gm)
	if err != nil {
		return nil, fmt.Errorf("gamma.DiscoverMarket: map %s: %w", slug, err)
	}
	return m, nil
}

// MarketResolution devuelve el outcome declarado si el mercado ya resolvió.
func (d *Discovery) MarketResolution(ctx context.Context, marketID string) (string, bool, error) {
	u := fmt.Sprintf("%s%s?condition_ids=%s&limit=1", d.client.gammaBase, gammaMarketsPath, url.QueryEscape(marketID))

	var resp gammaMarketsResponse
	if err := d.client.get(ctx, d.client.gammaLimiter, u, &resp); err != nil {
		return "", false, fmt.Errorf("gamma.MarketResolution: %w", err)
	}
	if len(resp) == 0 {
		return "", false, nil
	}

	gm := resp[0]
	if !gm.Closed {
		return "", false, nil
	}
	declared, ok := declaredOutcome(gm)
	if !ok {
		// Cerrado pero sin precio ganador todavía — el oráculo sigue en ello.
		return "", false, nil
	}
	return declared, true, nil
}

func (d *Discovery) fetchBySlug(ctx context.Context, slug string) (gammaMarket, bool, error) {
	u := fmt.Sprintf("%s%s?slug=%s&limit=1", d.client.gammaBase, gammaMarketsPath, url.QueryEscape(slug))

	var resp gammaMarketsResponse
	if err := d.client.get(ctx, d.client.gammaLimiter, u, &resp); err != nil {
		return gammaMarket{}, false, err
	}
	if len(resp) == 0 {
		return gammaMarket{}, false, nil
	}
	return resp[0], true, nil
}

// PeriodSlug deriva el slug del mercado del periodo que contiene a now:
// "<series>-<unix del inicio del periodo>". Los mercados updown usan el
// timestamp de APERTURA del periodo, no el de cierre.
func PeriodSlug(series string, interval time.Duration, now time.Time) string {
	start := now.Truncate(interval)
	return fmt.Sprintf("%s-%d", series, start.Unix())
}
