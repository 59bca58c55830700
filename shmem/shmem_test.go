package shmem_test

import (
	"sync"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshmem/goshmem/backends"
	_ "github.com/goshmem/goshmem/backends/netib"
	"github.com/goshmem/goshmem/bootstrap/local"
	"github.com/goshmem/goshmem/shmem"
	"github.com/goshmem/goshmem/transport/loopback"
)

// runJob boots an n-PE in-process job through the public API and finalizes it.
func runJob(t *testing.T, n int, body func(t *testing.T, rt *shmem.Runtime)) {
	t.Helper()
	world, err := local.NewWorld(n)
	require.NoError(t, err)
	fabric, err := loopback.NewFabric(n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for pe := 0; pe < n; pe++ {
		pe := pe
		wg.Add(1)
		go func() {
			defer wg.Done()
			group, err := world.Join(pe)
			if !assert.NoError(t, err) {
				return
			}
			tr, err := fabric.Endpoint(pe)
			if !assert.NoError(t, err) {
				return
			}
			rt := shmem.Init(shmem.Options{Group: group, Transport: tr})
			defer rt.Finalize()
			body(t, rt)
		}()
	}
	wg.Wait()
}

func TestInitAndIdentity(t *testing.T) {
	const n = 4
	runJob(t, n, func(t *testing.T, rt *shmem.Runtime) {
		assert.Equal(t, n, rt.NumPEs())
		assert.GreaterOrEqual(t, rt.MyPE(), 0)
		assert.Less(t, rt.MyPE(), n)
		assert.Equal(t, "ib", rt.Backend().Name())
	})
}

func TestTypedPutGet(t *testing.T) {
	const n = 2
	runJob(t, n, func(t *testing.T, rt *shmem.Runtime) {
		ctx := rt.DefaultCtx()
		pe := rt.MyPE()
		vec := rt.Malloc(4 * 8)

		if pe == 0 {
			shmem.Put(ctx, vec, []float64{1.5, 2.5, 3.5, 4.5}, 1)
		}
		rt.Barrier()
		if pe == 1 {
			got := make([]float64, 4)
			shmem.Get(ctx, got, vec, 1)
			assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, got)
		}
		rt.Barrier()

		// Single-element put/get across types.
		shmem.P(ctx, vec, int32(-12), (pe+1)%n)
		rt.Barrier()
		assert.Equal(t, int32(-12), shmem.G[int32](ctx, vec, pe))
		rt.Barrier()
		rt.Free(vec)
	})
}

func TestTypedAtomicsAndWait(t *testing.T) {
	const n = 4
	runJob(t, n, func(t *testing.T, rt *shmem.Runtime) {
		ctx := rt.DefaultCtx()
		pe := rt.MyPE()
		counter := rt.Malloc(8)
		flag := rt.Malloc(8)

		shmem.AtomicFetchAdd(ctx, counter, uint64(1), 0)
		rt.Barrier()
		if pe == 0 {
			assert.Equal(t, uint64(n), shmem.AtomicFetch[uint64](ctx, counter, 0))
			old := shmem.AtomicCompareSwap(ctx, counter, uint64(n), uint64(0), 0)
			assert.Equal(t, uint64(n), old)
			// Release all PEs.
			for target := 0; target < n; target++ {
				shmem.AtomicSet(ctx, flag, int64(1), target)
			}
		}
		shmem.WaitUntil(ctx, flag, backends.CmpEq, int64(1))
		assert.True(t, shmem.Test(ctx, flag, backends.CmpGe, int64(1)))

		rt.Barrier()
		rt.Free(flag)
		rt.Free(counter)
	})
}

func TestRuntimeTeams(t *testing.T) {
	const n = 8
	runJob(t, n, func(t *testing.T, rt *shmem.Runtime) {
		pe := rt.MyPE()
		team := rt.TeamSplitStrided(rt.TeamWorld(), 1, 3, 3) // world PEs 1, 4, 7
		member := pe == 1 || pe == 4 || pe == 7
		if !member {
			assert.Nil(t, team)
		} else if assert.NotNil(t, team) {
			assert.Equal(t, 3, team.NumPEs())
			assert.Equal(t, (pe-1)/3, team.MyPE())
			assert.Equal(t, pe, rt.TeamTranslatePE(team, team.MyPE(), rt.TeamWorld()))

			ctx := rt.CtxCreateForTeam(team, 0)
			assert.Equal(t, team, ctx.Team())
			rt.CtxDestroy(ctx)
		}
		rt.TeamDestroy(team)
		rt.Barrier()
	})
}

func TestMalformedSplitPanicsWithError(t *testing.T) {
	runJob(t, 2, func(t *testing.T, rt *shmem.Runtime) {
		err := exceptions.TryCatch[error](func() {
			rt.TeamSplitStrided(rt.TeamWorld(), 0, 0, 1)
		})
		assert.Error(t, err)
	})
}

func TestInitFailurePanicsWithError(t *testing.T) {
	// No process group or transport: the backend constructor refuses, and the
	// failure surfaces as a catchable exception like the rest of the API.
	err := exceptions.TryCatch[error](func() { shmem.Init(shmem.Options{}) })
	require.Error(t, err)
	require.ErrorContains(t, err, "initializing goshmem")
}

func TestDoubleFinalizePanics(t *testing.T) {
	world, err := local.NewWorld(1)
	require.NoError(t, err)
	fabric, err := loopback.NewFabric(1)
	require.NoError(t, err)
	group, err := world.Join(0)
	require.NoError(t, err)
	tr, err := fabric.Endpoint(0)
	require.NoError(t, err)

	rt := shmem.Init(shmem.Options{Group: group, Transport: tr})
	rt.Finalize()
	err = exceptions.TryCatch[error](func() { rt.Finalize() })
	require.Error(t, err)
}

func TestAsyncInitBlocksFirstOperation(t *testing.T) {
	const n = 2
	world, err := local.NewWorld(n)
	require.NoError(t, err)
	fabric, err := loopback.NewFabric(n)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for pe := 0; pe < n; pe++ {
		pe := pe
		wg.Add(1)
		go func() {
			defer wg.Done()
			group, err := world.Join(pe)
			if !assert.NoError(t, err) {
				return
			}
			tr, err := fabric.Endpoint(pe)
			if !assert.NoError(t, err) {
				return
			}
			rt := shmem.Init(shmem.Options{Group: group, Transport: tr, Async: true})
			defer rt.Finalize()
			// The first operation waits for the helper goroutine to finish
			// bootstrap; no explicit synchronization is needed.
			p := rt.Malloc(8)
			shmem.P(ctxOf(rt), p, int64(7), pe)
			assert.Equal(t, int64(7), shmem.G[int64](ctxOf(rt), p, pe))
			rt.Barrier()
			rt.Free(p)
		}()
	}
	wg.Wait()
}

func ctxOf(rt *shmem.Runtime) backends.Context { return rt.DefaultCtx() }
