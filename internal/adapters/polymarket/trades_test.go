package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

func TestParseTradeTimestamp(t *testing.T) {
	// Epoch en segundos.
	got := parseTradeTimestamp(json.Number("1756728000"))
	assert.Equal(t, time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC), got)

	// Epoch en milisegundos.
	got = parseTradeTimestamp(json.Number("1756728000000"))
	assert.Equal(t, time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC), got)

	assert.True(t, parseTradeTimestamp(json.Number("0")).IsZero())
	assert.True(t, parseTradeTimestamp(json.Number("nope")).IsZero())
}

func TestRecentTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trades", r.URL.Path)
		assert.Equal(t, "0xcondition", r.URL.Query().Get("market"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			{"id":"t1","proxyWallet":"0xwhale","conditionId":"0xcondition","asset":"111",
			 "side":"BUY","price":0.60,"size":200,"timestamp":1756728000},
			{"id":"t2","proxyWallet":"0xother","conditionId":"0xcondition","asset":"222",
			 "side":"sell","price":0.40,"size":10,"timestamp":1756727940}
		]`)
	}))
	defer srv.Close()

	tape := NewTape(NewClient("", ""), srv.URL)
	m := &domain.MarketRef{ID: "0xcondition"}

	got, err := tape.RecentTrades(context.Background(), m, 50)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "0xwhale", got[0].Trader)
	assert.Equal(t, domain.SideBuy, got[0].Side)
	assert.True(t, got[0].Price.Equal(decimal.RequireFromString("0.6")))
	assert.True(t, got[0].Notional().Equal(decimal.RequireFromString("120")))
	assert.Equal(t, domain.SideSell, got[1].Side)
}
