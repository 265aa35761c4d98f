package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polysniper/internal/domain"
)

func TestResolve_NothingBeforeInitialDelay(t *testing.T) {
	res := &fakeResolver{declared: "Up", ok: true}
	feed := &fakeFeed{}
	r := NewReconciler(res, feed)
	m := testMarket(testBase)

	_, ok, err := r.Resolve(context.Background(), m, testBase.Add(5*time.Second))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, res.calls, "no queries at all inside the initial delay")
}

func TestResolve_AuthoritativeWins(t *testing.T) {
	res := &fakeResolver{declared: "Up", ok: true}
	feed := &fakeFeed{declared: "Down", ok: true}
	r := NewReconciler(res, feed)
	m := testMarket(testBase)

	// Well past the reference grace: the authoritative verdict still wins.
	got, ok, err := r.Resolve(context.Background(), m, testBase.Add(5*time.Minute))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Up", got.Declared)
	assert.Equal(t, domain.SourceAuthoritative, got.Source)
	assert.Equal(t, 0, feed.calls)
}

func TestResolve_ReferenceOnlyAfterGrace(t *testing.T) {
	res := &fakeResolver{} // never resolves
	feed := &fakeFeed{declared: "Down", ok: true}
	r := NewReconciler(res, feed)
	m := testMarket(testBase)

	// Inside the grace period the feed is not consulted yet.
	_, ok, err := r.Resolve(context.Background(), m, testBase.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, feed.calls)

	got, ok, err := r.Resolve(context.Background(), m, testBase.Add(3*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Down", got.Declared)
	assert.Equal(t, domain.SourceReference, got.Source)
}

func TestResolve_AuthoritativeErrorFallsThrough(t *testing.T) {
	res := &fakeResolver{err: errors.New("gamma 502")}
	feed := &fakeFeed{declared: "Up", ok: true}
	r := NewReconciler(res, feed)
	m := testMarket(testBase)

	got, ok, err := r.Resolve(context.Background(), m, testBase.Add(3*time.Minute))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceReference, got.Source)
}

func TestResolve_ForcedAfterMaxWait(t *testing.T) {
	r := NewReconciler(&fakeResolver{}, &fakeFeed{})
	m := testMarket(testBase)

	_, ok, err := r.Resolve(context.Background(), m, testBase.Add(9*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "still waiting inside max wait")

	got, ok, err := r.Resolve(context.Background(), m, testBase.Add(10*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.SourceForced, got.Source)
	assert.Empty(t, got.Declared)
}

func TestResolve_NilReferenceFeed(t *testing.T) {
	r := NewReconciler(&fakeResolver{}, nil)
	m := testMarket(testBase)

	_, ok, err := r.Resolve(context.Background(), m, testBase.Add(3*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
}
