package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

func newTestEngine() (*Engine, *fakeGateway, *fakeStore) {
	gw := newFakeGateway()
	store := newFakeStore()
	disc := &fakeDiscovery{market: testMarket(testBase.Add(8 * time.Minute))}
	factory := func(domain.StrategyConfig) *Reconciler {
		return NewReconciler(&fakeResolver{}, &fakeFeed{})
	}
	e := New(gw, disc, store, &fakeSink{}, factory, time.Second)
	e.RegisterSignal("momentum", func(domain.StrategyConfig) (EntrySignal, error) {
		return neverEnter(), nil
	})
	return e, gw, store
}

func TestStartStrategy_UnknownSignal(t *testing.T) {
	e, _, _ := newTestEngine()
	cfg := testConfig()
	cfg.Signal = "astrology"

	err := e.StartStrategy(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown signal")
}

func TestStartStrategy_DuplicateTagRejected(t *testing.T) {
	e, _, _ := newTestEngine()
	cfg := testConfig()

	require.NoError(t, e.StartStrategy(context.Background(), cfg))
	err := e.StartStrategy(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestStartStrategy_RestoresBeforeFirstTick(t *testing.T) {
	e, _, store := newTestEngine()
	cfg := testConfig()
	m := testMarket(testBase.Add(8 * time.Minute))
	open := submittedPosition(m, cfg.Tag)
	open.State = domain.StateOpen
	open.FillPrice = dec("0.42")
	open.Shares = dec("5")
	open.NotionalCost = dec("2.10")
	store.snaps[cfg.Tag] = snapshotWith(cfg, open)

	require.NoError(t, e.StartStrategy(context.Background(), cfg))

	statuses := e.Status()
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].Position)
	assert.Equal(t, domain.StateOpen, statuses[0].Position.State)
	assert.Equal(t, 4, statuses[0].Stats.TotalTrades)
}

func TestStatus_SortedByTag(t *testing.T) {
	e, _, _ := newTestEngine()
	for _, tag := range []string{"zzz-leader", "aaa-momentum", "mid-copy"} {
		cfg := testConfig()
		cfg.Tag = tag
		require.NoError(t, e.StartStrategy(context.Background(), cfg))
	}

	statuses := e.Status()
	require.Len(t, statuses, 3)
	assert.Equal(t, "aaa-momentum", statuses[0].Tag)
	assert.Equal(t, "mid-copy", statuses[1].Tag)
	assert.Equal(t, "zzz-leader", statuses[2].Tag)
}

func TestStatus_PositionIsACopy(t *testing.T) {
	e, _, store := newTestEngine()
	cfg := testConfig()
	m := testMarket(testBase.Add(8 * time.Minute))
	open := submittedPosition(m, cfg.Tag)
	open.State = domain.StateOpen
	open.FillPrice = dec("0.42")
	open.Shares = dec("5")
	store.snaps[cfg.Tag] = snapshotWith(cfg, open)
	require.NoError(t, e.StartStrategy(context.Background(), cfg))

	first := e.Status()
	require.NotNil(t, first[0].Position)
	// A consumer scribbling on its copy must not reach the engine's state.
	first[0].Position.State = domain.StateClosed
	first[0].Position.EntryOrder.ExternalID = "scribbled"

	second := e.Status()
	assert.Equal(t, domain.StateOpen, second[0].Position.State)
	assert.Equal(t, "buy-1", second[0].Position.EntryOrder.ExternalID)
}

func TestStatus_SafeWhileTicking(t *testing.T) {
	gw := newFakeGateway()
	store := newFakeStore()
	disc := &fakeDiscovery{market: testMarket(time.Now().UTC().Add(8 * time.Minute))}
	factory := func(domain.StrategyConfig) *Reconciler {
		return NewReconciler(&fakeResolver{}, &fakeFeed{})
	}
	e := New(gw, disc, store, &fakeSink{}, factory, time.Second)
	e.RegisterSignal("momentum", func(domain.StrategyConfig) (EntrySignal, error) {
		return enterUpAt("0.50"), nil
	})
	require.NoError(t, e.StartStrategy(context.Background(), testConfig()))

	// A status consumer polling while the loop runs a full entry lifecycle:
	// it only ever sees published copies, never the loop's live position.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			for _, st := range e.Status() {
				if st.Position != nil {
					_ = st.Position.State
					_ = st.Position.EntryOrder.LimitPrice
				}
			}
		}
	}()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		e.tickAll(ctx)
	}
	<-done

	statuses := e.Status()
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].Position)
	assert.Equal(t, domain.StateEntrySubmitted, statuses[0].Position.State)
	assert.Equal(t, 1, gw.buyCalls)
}

func TestStopStrategy(t *testing.T) {
	e, _, _ := newTestEngine()
	cfg := testConfig()
	require.NoError(t, e.StartStrategy(context.Background(), cfg))

	summary, err := e.StopStrategy(context.Background(), cfg.Tag)
	require.NoError(t, err)
	assert.Equal(t, cfg.Tag, summary.Tag)
	assert.Empty(t, e.Status())

	_, err = e.StopStrategy(context.Background(), cfg.Tag)
	assert.Error(t, err)
}
