package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/polysniper/internal/domain"
	"github.com/alejandrodnm/polysniper/internal/ports"
)

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ── gateway ──────────────────────────────────────────────────

type fakeGateway struct {
	buyCalls int
	buyErr   error

	sellCalls int
	sellErr   error

	mktCalls int
	mktErr   error

	cancelled []string
	cancelErr error

	states   map[string]ports.OrderState
	stateErr error

	mid    decimal.Decimal
	midErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		states: make(map[string]ports.OrderState),
		mid:    dec("0.5"),
	}
}

func (g *fakeGateway) PlaceLimitBuy(_ context.Context, _ string, price, shares decimal.Decimal) (domain.OrderRef, error) {
	g.buyCalls++
	if g.buyErr != nil {
		return domain.OrderRef{}, g.buyErr
	}
	return domain.OrderRef{
		ExternalID:    "buy-1",
		Side:          domain.SideBuy,
		LimitPrice:    price,
		RequestedSize: shares,
		Status:        domain.OrderLive,
	}, nil
}

func (g *fakeGateway) PlaceLimitSell(_ context.Context, _ string, price, shares decimal.Decimal) (domain.OrderRef, error) {
	g.sellCalls++
	if g.sellErr != nil {
		return domain.OrderRef{}, g.sellErr
	}
	return domain.OrderRef{
		ExternalID:    "sell-1",
		Side:          domain.SideSell,
		LimitPrice:    price,
		RequestedSize: shares,
		Status:        domain.OrderLive,
	}, nil
}

func (g *fakeGateway) PlaceMarketSell(_ context.Context, _ string, shares decimal.Decimal) (domain.OrderRef, error) {
	g.mktCalls++
	if g.mktErr != nil {
		return domain.OrderRef{}, g.mktErr
	}
	return domain.OrderRef{
		ExternalID:    "mkt-1",
		Side:          domain.SideSell,
		RequestedSize: shares,
		Status:        domain.OrderSubmitted,
	}, nil
}

func (g *fakeGateway) Cancel(_ context.Context, orderID string) error {
	g.cancelled = append(g.cancelled, orderID)
	return g.cancelErr
}

func (g *fakeGateway) OrderState(_ context.Context, orderID string) (ports.OrderState, error) {
	if g.stateErr != nil {
		return ports.OrderState{}, g.stateErr
	}
	return g.states[orderID], nil
}

func (g *fakeGateway) MidPrice(_ context.Context, _ string) (decimal.Decimal, error) {
	if g.midErr != nil {
		return decimal.Zero, g.midErr
	}
	return g.mid, nil
}

// ── store ────────────────────────────────────────────────────

type fakeStore struct {
	snaps    map[string]ports.Snapshot
	trades   []domain.TradeRecord
	attempts map[string]time.Time // tag|marketID → closeTime
	saves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snaps:    make(map[string]ports.Snapshot),
		attempts: make(map[string]time.Time),
	}
}

func (s *fakeStore) SaveSnapshot(_ context.Context, snap ports.Snapshot) error {
	s.snaps[snap.Tag] = snap
	s.saves++
	return nil
}

func (s *fakeStore) LoadSnapshot(_ context.Context, tag string) (ports.Snapshot, bool, error) {
	snap, ok := s.snaps[tag]
	return snap, ok, nil
}

func (s *fakeStore) AppendTrade(_ context.Context, rec domain.TradeRecord) error {
	s.trades = append(s.trades, rec)
	return nil
}

func (s *fakeStore) Trades(_ context.Context, tag string, _ int) ([]domain.TradeRecord, error) {
	var out []domain.TradeRecord
	for _, t := range s.trades {
		if t.StrategyTag == tag {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) MarkAttempted(_ context.Context, tag, marketID string, closeTime time.Time) error {
	s.attempts[tag+"|"+marketID] = closeTime
	return nil
}

func (s *fakeStore) WasAttempted(_ context.Context, tag, marketID string) (bool, error) {
	_, ok := s.attempts[tag+"|"+marketID]
	return ok, nil
}

func (s *fakeStore) EvictExpiredAttempts(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for k, ct := range s.attempts {
		if ct.Before(before) {
			delete(s.attempts, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) Close() error { return nil }

// ── discovery / events / resolution ──────────────────────────

type fakeDiscovery struct {
	market *domain.MarketRef
	err    error
}

func (f *fakeDiscovery) DiscoverMarket(context.Context, ports.MarketQuery) (*domain.MarketRef, error) {
	return f.market, f.err
}

type fakeSink struct {
	events []domain.Event
}

func (f *fakeSink) Publish(_ context.Context, ev domain.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeSink) last() domain.Event {
	if len(f.events) == 0 {
		return domain.Event{}
	}
	return f.events[len(f.events)-1]
}

type fakeResolver struct {
	declared string
	ok       bool
	err      error
	calls    int
}

func (f *fakeResolver) MarketResolution(context.Context, string) (string, bool, error) {
	f.calls++
	return f.declared, f.ok, f.err
}

type fakeFeed struct {
	declared string
	ok       bool
	err      error
	calls    int
}

func (f *fakeFeed) ReferenceSettlement(context.Context, *domain.MarketRef) (string, bool, error) {
	f.calls++
	return f.declared, f.ok, f.err
}

// ── fixture ──────────────────────────────────────────────────

var testBase = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func testConfig() domain.StrategyConfig {
	return domain.StrategyConfig{
		Tag:               "btc-15m-test",
		Signal:            "momentum",
		Interval:          15 * time.Minute,
		Series:            "btc-updown-15m",
		Symbol:            "BTCUSDT",
		NotionalPerTrade:  dec("1"),
		EntryWindow:       10 * time.Minute,
		EntryTimeout:      time.Minute,
		StopDistance:      dec("0.15"),
		TargetDistance:    dec("0.10"),
		CloseSafetyMargin: 2 * time.Minute,
		ExitDeadline:      30 * time.Second,
		MinShares:         5,
		TickSize:          dec("0.01"),
	}
}

func testMarket(closeAt time.Time) *domain.MarketRef {
	return &domain.MarketRef{
		ID:       "0xmarket",
		Slug:     "btc-updown-15m-1767268800",
		Question: "Bitcoin Up or Down?",
		Tokens: []domain.OutcomeToken{
			{TokenID: "tok-up", Label: "Up"},
			{TokenID: "tok-down", Label: "Down"},
		},
		CloseTime: closeAt,
	}
}

func enterUpAt(price string) EntrySignalFunc {
	return func(_ context.Context, m *domain.MarketRef, _ time.Time) (*EntryDecision, error) {
		return &EntryDecision{Token: m.Tokens[0], LimitPrice: dec(price), Reason: "test"}, nil
	}
}

func neverEnter() EntrySignalFunc {
	return func(context.Context, *domain.MarketRef, time.Time) (*EntryDecision, error) {
		return nil, nil
	}
}

type fixture struct {
	cfg   domain.StrategyConfig
	gw    *fakeGateway
	store *fakeStore
	sink  *fakeSink
	disc  *fakeDiscovery
	res   *fakeResolver
	feed  *fakeFeed
	inst  *Instance
}

func newFixture(cfg domain.StrategyConfig, sig EntrySignal, m *domain.MarketRef) *fixture {
	f := &fixture{
		cfg:   cfg,
		gw:    newFakeGateway(),
		store: newFakeStore(),
		sink:  &fakeSink{},
		disc:  &fakeDiscovery{market: m},
		res:   &fakeResolver{},
		feed:  &fakeFeed{},
	}
	r := NewReconciler(f.res, f.feed)
	f.inst = NewInstance(cfg, sig, f.gw, f.disc, f.store, f.sink, r)
	return f
}

// openPosition crea una Position abierta con fill 0.42 x 5 shares.
func (f *fixture) openPosition(m *domain.MarketRef) *domain.Position {
	p := &domain.Position{
		ID:          "pos-1",
		Market:      *m,
		Outcome:     m.Tokens[0],
		State:       domain.StateOpen,
		StrategyTag: f.cfg.Tag,
		EntryOrder: &domain.OrderRef{
			ExternalID: "buy-1", Side: domain.SideBuy,
			LimitPrice: dec("0.50"), RequestedSize: dec("5"),
			Status: domain.OrderFilled,
		},
		FillPrice:    dec("0.42"),
		Shares:       dec("5"),
		NotionalCost: dec("2.10"),
		StopPrice:    dec("0.27"),
		TargetPrice:  dec("0.52"),
		OpenedAt:     testBase,
	}
	f.inst.pos = p
	return p
}
