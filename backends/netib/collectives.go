package netib

import (
	"math"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/heap"
)

// Collectives are built from one-sided puts and fetch-adds on the sync
// scratch pools. Arrival flags are monotonic counters, never reset: each
// collective waits for the counter to reach its own epoch, so a fast PE
// racing into the next collective cannot corrupt a slow PE's wait.

// Barrier synchronizes the context's team and implies Quiet.
func (c *Context) Barrier() error {
	if err := c.Quiet(); err != nil {
		return err
	}
	if err := c.backend.barrierSync(c.team); err != nil {
		return err
	}
	c.backend.stats.barriers.Add(1)
	return nil
}

// Sync synchronizes the team without the implied Quiet: arrival only, no
// completion of outstanding one-sided operations.
func (c *Context) Sync() error {
	if err := c.backend.barrierSync(c.team); err != nil {
		return err
	}
	c.backend.stats.barriers.Add(1)
	return nil
}

// barrierSync runs one dissemination barrier over the team, without the
// implied Quiet. Round k signals the member 2^k ranks ahead and waits for the
// matching signal from 2^k ranks behind.
func (b *Backend) barrierSync(t *Team) error {
	n := t.numPEs
	if n == 1 {
		return nil
	}
	epoch := t.barrierEpoch.Add(1)
	for k := 0; 1<<k < n; k++ {
		slot := b.pools.barrierSlot(t.slot, k)
		peer := t.worldPE((t.myPE + 1<<k) % n)
		if _, err := b.tr.AmoFetchAdd(peer, slot, 1); err != nil {
			return errors.WithMessagef(err, "barrier round %d", k)
		}
		word := b.hp.AtomicInt64(slot)
		for word.Load() < epoch {
			runtime.Gosched()
		}
	}
	b.flusher.RequestFlush()
	return nil
}

// Broadcast replicates nbytes at src on root into dst on every member.
func (c *Context) Broadcast(dst, src heap.Ptr, nbytes int64, root int) error {
	t := c.team
	b := c.backend
	if root < 0 || root >= t.numPEs {
		return errors.Errorf("broadcast root %d out of range [0,%d)", root, t.numPEs)
	}
	if nbytes < 0 {
		return errors.Errorf("broadcast of %d bytes", nbytes)
	}
	epoch := t.bcastEpoch.Add(1)
	if t.numPEs == 1 {
		if dst != src {
			copy(b.hp.Bytes(dst, nbytes), b.hp.Bytes(src, nbytes))
		}
		return nil
	}
	if t.myPE == root {
		payload := b.hp.Bytes(src, nbytes)
		for r := 0; r < t.numPEs; r++ {
			if r == root {
				if dst != src {
					copy(b.hp.Bytes(dst, nbytes), payload)
				}
				continue
			}
			if err := b.tr.Put(t.worldPE(r), dst, payload); err != nil {
				return errors.WithMessagef(err, "broadcast to member %d", r)
			}
		}
		if err := b.tr.Fence(); err != nil {
			return err
		}
	}
	// Every member's flag advances by exactly one per broadcast, root
	// included, so the counters stay uniform across root changes.
	flag := b.pools.bcastFlagSlot(t.slot)
	if t.myPE == root {
		for r := 0; r < t.numPEs; r++ {
			if _, err := b.tr.AmoFetchAdd(t.worldPE(r), flag, 1); err != nil {
				return errors.WithMessagef(err, "broadcast signal to member %d", r)
			}
		}
	}
	word := b.hp.AtomicInt64(flag)
	for word.Load() < epoch {
		runtime.Gosched()
	}
	b.flusher.RequestFlush()
	c.backend.stats.broadcasts.Add(1)
	return nil
}

// ReduceInt64s element-wise reduces n words from src across the team into dst
// on every member.
func (c *Context) ReduceInt64s(dst, src heap.Ptr, n int, op backends.ReduceOp) error {
	if !op.IsAReduceOp() {
		return errors.Errorf("unknown reduce op %d", op)
	}
	return c.reduceWords(dst, src, n, func(acc, w int64) int64 {
		switch op {
		case backends.ReduceAnd:
			return acc & w
		case backends.ReduceOr:
			return acc | w
		case backends.ReduceXor:
			return acc ^ w
		default:
			return arith(op, acc, w)
		}
	})
}

// ReduceFloat64s is ReduceInt64s for float64 elements. Bitwise operators have
// no float meaning and are rejected.
func (c *Context) ReduceFloat64s(dst, src heap.Ptr, n int, op backends.ReduceOp) error {
	switch op {
	case backends.ReduceSum, backends.ReduceMin, backends.ReduceMax, backends.ReduceProd:
	default:
		return errors.Errorf("reduce op %s does not apply to float64 elements", op)
	}
	return c.reduceWords(dst, src, n, func(acc, w int64) int64 {
		r := arith(op, math.Float64frombits(uint64(acc)), math.Float64frombits(uint64(w)))
		return int64(math.Float64bits(r))
	})
}

func arith[T constraints.Integer | constraints.Float](op backends.ReduceOp, a, b T) T {
	switch op {
	case backends.ReduceSum:
		return a + b
	case backends.ReduceMin:
		if b < a {
			return b
		}
		return a
	case backends.ReduceMax:
		if b > a {
			return b
		}
		return a
	case backends.ReduceProd:
		return a * b
	}
	return a
}

// reduceWords runs the reduction chunk by chunk through the team's scratch.
// Each member contributes its chunk into every member's per-rank work block,
// waits for all contributions, and combines locally, so every member computes
// the identical result in the identical order.
func (c *Context) reduceWords(dst, src heap.Ptr, n int, combine func(acc, w int64) int64) error {
	t := c.team
	b := c.backend
	if n < 0 {
		return errors.Errorf("reduction of %d elements", n)
	}
	flag := b.pools.reduceFlagSlot(t.slot)
	word := b.hp.AtomicInt64(flag)
	members := int64(t.numPEs)

	for off := 0; off < n; off += reduceWorkWords {
		w := min(reduceWorkWords, n-off)
		epoch := t.reduceEpoch.Add(1)
		chunk := b.hp.Bytes(src+heap.Ptr(off*8), int64(w*8))
		mine := b.pools.reduceWorkBlock(t.slot, t.myPE)
		for r := 0; r < t.numPEs; r++ {
			if err := b.tr.Put(t.worldPE(r), mine, chunk); err != nil {
				return errors.WithMessagef(err, "reduce scatter to member %d", r)
			}
		}
		if err := b.tr.Fence(); err != nil {
			return err
		}
		for r := 0; r < t.numPEs; r++ {
			if _, err := b.tr.AmoFetchAdd(t.worldPE(r), flag, 1); err != nil {
				return errors.WithMessagef(err, "reduce signal to member %d", r)
			}
		}
		for word.Load() < epoch*members {
			runtime.Gosched()
		}
		b.flusher.RequestFlush()

		out := b.hp.Int64s(dst+heap.Ptr(off*8), w)
		copy(out, b.hp.Int64s(b.pools.reduceWorkBlock(t.slot, 0), w))
		for r := 1; r < t.numPEs; r++ {
			block := b.hp.Int64s(b.pools.reduceWorkBlock(t.slot, r), w)
			for i, v := range block {
				out[i] = combine(out[i], v)
			}
		}
		// The work blocks are reused by the next chunk; nobody may write
		// theirs until everybody has read this one.
		if err := b.barrierSync(t); err != nil {
			return err
		}
	}
	b.stats.reductions.Add(1)
	return nil
}

// AllToAllInt64s exchanges nPerPE words with every member: block i of src
// goes to member i, which stores it at block MyPE of dst.
func (c *Context) AllToAllInt64s(dst, src heap.Ptr, nPerPE int) error {
	t := c.team
	b := c.backend
	if nPerPE < 0 {
		return errors.Errorf("all-to-all of %d elements per PE", nPerPE)
	}
	flag := b.pools.ataFlagSlot(t.slot)
	word := b.hp.AtomicInt64(flag)
	members := int64(t.numPEs)

	for off := 0; off < nPerPE; off += ataWorkWords {
		w := min(ataWorkWords, nPerPE-off)
		epoch := t.ataEpoch.Add(1)
		mine := b.pools.ataWorkBlock(t.slot, t.myPE)
		for r := 0; r < t.numPEs; r++ {
			chunk := b.hp.Bytes(src+heap.Ptr((r*nPerPE+off)*8), int64(w*8))
			if err := b.tr.Put(t.worldPE(r), mine, chunk); err != nil {
				return errors.WithMessagef(err, "all-to-all send to member %d", r)
			}
		}
		if err := b.tr.Fence(); err != nil {
			return err
		}
		for r := 0; r < t.numPEs; r++ {
			if _, err := b.tr.AmoFetchAdd(t.worldPE(r), flag, 1); err != nil {
				return errors.WithMessagef(err, "all-to-all signal to member %d", r)
			}
		}
		for word.Load() < epoch*members {
			runtime.Gosched()
		}
		b.flusher.RequestFlush()

		for r := 0; r < t.numPEs; r++ {
			out := b.hp.Bytes(dst+heap.Ptr((r*nPerPE+off)*8), int64(w*8))
			copy(out, b.hp.Bytes(b.pools.ataWorkBlock(t.slot, r), int64(w*8)))
		}
		if err := b.barrierSync(t); err != nil {
			return err
		}
	}
	b.stats.alltoalls.Add(1)
	return nil
}

// WaitUntil spins until the local word at p satisfies cmp against val.
func (c *Context) WaitUntil(p heap.Ptr, cmp backends.Compare, val int64) {
	word := c.backend.hp.AtomicInt64(p)
	for !cmp.Satisfies(word.Load(), val) {
		runtime.Gosched()
	}
}

// Test reports whether the local word at p satisfies cmp against val.
func (c *Context) Test(p heap.Ptr, cmp backends.Compare, val int64) bool {
	return cmp.Satisfies(c.backend.hp.AtomicInt64(p).Load(), val)
}
