package netib_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goshmem/goshmem/backends"
)

func TestBroadcast(t *testing.T) {
	const n, root, words = 8, 3, 5
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(words * 8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(words * 8)
		if !assert.NoError(t, err) {
			return
		}
		if pe == root {
			for i := 0; i < words; i++ {
				b.Heap().Int64s(src, words)[i] = int64(1000 + i)
			}
		}
		assert.NoError(t, ctx.Broadcast(dst, src, words*8, root))
		for i, w := range b.Heap().Int64s(dst, words) {
			assert.Equal(t, int64(1000+i), w, "PE %d word %d", pe, i)
		}

		// A second broadcast from a different root must not be confused with
		// the first one. Broadcast does not synchronize, so a barrier must
		// separate the reads above from the reuse of dst.
		assert.NoError(t, ctx.Barrier())
		if pe == 0 {
			b.Heap().Int64s(src, words)[0] = -7
		}
		assert.NoError(t, ctx.Broadcast(dst, src, 8, 0))
		assert.Equal(t, int64(-7), b.Heap().Int64s(dst, 1)[0])

		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestBroadcastRejectsBadRoot(t *testing.T) {
	runJob(t, 2, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		assert.Error(t, ctx.Broadcast(8, 8, 8, 2))
		assert.Error(t, ctx.Broadcast(8, 8, 8, -1))
	})
}

func TestReduceInt64Sum(t *testing.T) {
	// 40 words is longer than one scratch chunk, exercising the chunked path.
	const n, words = 8, 40
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(words * 8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(words * 8)
		if !assert.NoError(t, err) {
			return
		}
		for i := 0; i < words; i++ {
			b.Heap().Int64s(src, words)[i] = int64(pe + i)
		}
		assert.NoError(t, ctx.ReduceInt64s(dst, src, words, backends.ReduceSum))
		for i, w := range b.Heap().Int64s(dst, words) {
			assert.Equal(t, int64(n*(n-1)/2+n*i), w, "PE %d word %d", pe, i)
		}
		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestReduceInt64MinMaxProd(t *testing.T) {
	const n = 4
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		word := b.Heap().Int64s(src, 1)

		word[0] = int64(pe) - 2 // -2, -1, 0, 1
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceMin))
		assert.Equal(t, int64(-2), b.Heap().Int64s(dst, 1)[0])
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceMax))
		assert.Equal(t, int64(1), b.Heap().Int64s(dst, 1)[0])

		word[0] = int64(pe) + 1 // 1, 2, 3, 4
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceProd))
		assert.Equal(t, int64(24), b.Heap().Int64s(dst, 1)[0])

		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestReduceInt64Bitwise(t *testing.T) {
	const n = 4
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		word := b.Heap().Int64s(src, 1)

		word[0] = ^(int64(1) << pe)
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceAnd))
		assert.Equal(t, ^int64(0b1111), b.Heap().Int64s(dst, 1)[0])

		word[0] = int64(1) << pe
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceOr))
		assert.Equal(t, int64(0b1111), b.Heap().Int64s(dst, 1)[0])
		assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceXor))
		assert.Equal(t, int64(0b1111), b.Heap().Int64s(dst, 1)[0])

		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestReduceFloat64(t *testing.T) {
	const n = 8
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		bits := b.Heap().Int64s(src, 1)
		bits[0] = int64(math.Float64bits(float64(pe) + 0.5))

		assert.NoError(t, ctx.ReduceFloat64s(dst, src, 1, backends.ReduceMax))
		assert.Equal(t, 7.5, math.Float64frombits(uint64(b.Heap().Int64s(dst, 1)[0])))
		assert.NoError(t, ctx.ReduceFloat64s(dst, src, 1, backends.ReduceSum))
		assert.Equal(t, float64(n*(n-1)/2)+0.5*n, math.Float64frombits(uint64(b.Heap().Int64s(dst, 1)[0])))

		assert.Error(t, ctx.ReduceFloat64s(dst, src, 1, backends.ReduceXor),
			"bitwise ops have no float meaning")

		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestAllToAll(t *testing.T) {
	const n, perPE = 4, 20 // 20 words per peer exercises chunking
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		src, err := b.Malloc(n * perPE * 8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(n * perPE * 8)
		if !assert.NoError(t, err) {
			return
		}
		for r := 0; r < n; r++ {
			for i := 0; i < perPE; i++ {
				b.Heap().Int64s(src, n*perPE)[r*perPE+i] = int64(pe*1_000_000 + r*1000 + i)
			}
		}
		assert.NoError(t, ctx.AllToAllInt64s(dst, src, perPE))
		for r := 0; r < n; r++ {
			for i := 0; i < perPE; i++ {
				got := b.Heap().Int64s(dst, n*perPE)[r*perPE+i]
				assert.Equal(t, int64(r*1_000_000+pe*1000+i), got, "PE %d block %d word %d", pe, r, i)
			}
		}
		assert.NoError(t, ctx.Barrier())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestTeamScopedCollectives(t *testing.T) {
	const n = 8
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		// Odd world PEs 1, 3, 5, 7 form their own team; their collectives
		// must not touch the even PEs.
		src, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		dst, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		team, err := b.TeamSplitStrided(b.TeamWorld(), 1, 2, 4)
		assert.NoError(t, err)
		if pe%2 == 1 && assert.NotNil(t, team) {
			ctx, err := b.CtxCreateForTeam(team, 0)
			if assert.NoError(t, err) {
				b.Heap().Int64s(src, 1)[0] = int64(pe)
				assert.NoError(t, ctx.ReduceInt64s(dst, src, 1, backends.ReduceSum))
				assert.Equal(t, int64(1+3+5+7), b.Heap().Int64s(dst, 1)[0])

				// Team rank 0 (world PE 1) broadcasts to the team. The
				// barrier keeps the broadcast into dst from racing the
				// reduction reads above.
				assert.NoError(t, ctx.Barrier())
				if team.MyPE() == 0 {
					b.Heap().Int64s(src, 1)[0] = 99
				}
				assert.NoError(t, ctx.Broadcast(dst, src, 8, 0))
				assert.Equal(t, int64(99), b.Heap().Int64s(dst, 1)[0])

				assert.NoError(t, ctx.Barrier())
				assert.NoError(t, b.CtxDestroy(ctx))
			}
		}
		assert.NoError(t, b.TeamDestroy(team))
		assert.NoError(t, b.BarrierAll())
		assert.NoError(t, b.Free(dst))
		assert.NoError(t, b.Free(src))
	})
}

func TestBarrierOrdersPriorPuts(t *testing.T) {
	const n = 4
	runJob(t, n, func(t *testing.T, pe int, b backends.Backend) {
		ctx := b.DefaultCtx()
		cell, err := b.Malloc(8)
		if !assert.NoError(t, err) {
			return
		}
		for round := int64(1); round <= 10; round++ {
			putInt64(t, ctx, cell, round, (pe+1)%n)
			assert.NoError(t, ctx.Barrier())
			assert.Equal(t, round, b.Heap().Int64s(cell, 1)[0], "round %d", round)
			assert.NoError(t, ctx.Barrier())
		}
		assert.NoError(t, b.Free(cell))
	})
}
