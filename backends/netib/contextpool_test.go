package netib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/goshmem/goshmem/heap"
	"github.com/goshmem/goshmem/transport/loopback"
)

// poolBackend builds the minimal backend state the context pool needs.
func poolBackend(t *testing.T) *Backend {
	t.Helper()
	f, err := loopback.NewFabric(1)
	require.NoError(t, err)
	tr, err := f.Endpoint(0)
	require.NoError(t, err)
	hp, err := heap.New(1 << 16)
	require.NoError(t, err)
	require.NoError(t, tr.Init(hp))
	return &Backend{tr: tr, hp: hp, numPEs: 1}
}

func TestPoolExhaustionIsAnError(t *testing.T) {
	b := poolBackend(t)
	team := &Team{backend: b, numPEs: 1}
	pool, err := newContextPool(b, 3)
	require.NoError(t, err)

	var held []*Context
	for i := 0; i < 3; i++ {
		ctx, err := pool.acquire(team, 0)
		require.NoError(t, err)
		held = append(held, ctx)
	}
	_, err = pool.acquire(team, 0)
	require.Error(t, err)
	require.Equal(t, 3, pool.outstanding())

	pool.release(held[0])
	ctx, err := pool.acquire(team, 0)
	require.NoError(t, err)
	require.Equal(t, held[0], ctx, "freed slot is reused")
}

func TestReleaseResetsTransientState(t *testing.T) {
	b := poolBackend(t)
	team := &Team{backend: b, numPEs: 1}
	pool, err := newContextPool(b, 1)
	require.NoError(t, err)

	ctx, err := pool.acquire(team, 42)
	require.NoError(t, err)
	ctx.pending.Store(7)
	pool.release(ctx)

	again, err := pool.acquire(team, 0)
	require.NoError(t, err)
	require.Equal(t, ctx, again)
	require.Zero(t, again.pending.Load(), "pending ops never leak to the next holder")
	require.Zero(t, again.options)
}

func TestDrainForceReleasesLeaks(t *testing.T) {
	b := poolBackend(t)
	team := &Team{backend: b, numPEs: 1}
	pool, err := newContextPool(b, 4)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := pool.acquire(team, 0)
		require.NoError(t, err)
	}
	require.Equal(t, 3, pool.drain())
	require.Zero(t, pool.outstanding())
	require.Zero(t, pool.drain(), "second drain finds nothing")
}

func TestTrackerDestroysExactlyOnce(t *testing.T) {
	tt := newTeamTracker()
	teams := []*Team{{slot: 1}, {slot: 2}, {slot: 3}}
	for _, tm := range teams {
		tt.track(tm)
	}
	require.Equal(t, 3, tt.numUserTeams())

	tt.untrack(teams[1])
	require.Equal(t, 2, tt.numUserTeams())

	destroyed := map[int]int{}
	tt.destroyAll(func(tm *Team) error {
		destroyed[tm.slot]++
		return nil
	})
	require.Equal(t, map[int]int{1: 1, 3: 1}, destroyed)
	require.Zero(t, tt.numUserTeams())

	// A second sweep has nothing left to do.
	tt.destroyAll(func(tm *Team) error {
		t.Fatalf("team %d destroyed twice", tm.slot)
		return nil
	})
}

func TestTrackerCtxSweep(t *testing.T) {
	b := poolBackend(t)
	tt := newTeamTracker()
	c1 := &Context{backend: b, slot: 0}
	c2 := &Context{backend: b, slot: 1}
	tt.trackCtx(c1)
	tt.trackCtx(c2)
	tt.untrackCtx(c1)

	var swept []*Context
	tt.destroyRemainingCtxs(func(c *Context) { swept = append(swept, c) })
	require.Equal(t, []*Context{c2}, swept)
}
