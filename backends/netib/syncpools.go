package netib

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/heap"
)

// Sync scratch sizing, in 8-byte words. The pools are carved per team-pool
// slot so that every team owns disjoint scratch; the slot consensus during
// team creation is what guarantees all members index the same region.
const (
	// barrierSyncWords bounds the dissemination-barrier rounds, covering any
	// PE count representable in an int.
	barrierSyncWords = 64

	// reduceWorkWords is the per-PE contribution block of one reduction
	// chunk; longer vectors are reduced in chunks of this many words.
	reduceWorkWords = 16

	// ataWorkWords is the per-PE block of one all-to-all exchange.
	ataWorkWords = 16
)

// syncPools are the symmetric-heap scratch regions backing collectives:
// barrier rounds, broadcast/reduce/alltoall arrival flags, and the gather
// areas for reduce and all-to-all payloads.
//
// Regions are never reused by two collectives that could interleave without a
// separating barrier; that discipline is the caller's, per the one-sided model.
type syncPools struct {
	hp       *heap.Heap
	maxTeams int
	maxPEs   int

	barrier    heap.Ptr // maxTeams * barrierSyncWords
	bcastFlag  heap.Ptr // maxTeams
	reduceFlag heap.Ptr // maxTeams
	reduceWork heap.Ptr // maxTeams * maxPEs * reduceWorkWords
	ataFlag    heap.Ptr // maxTeams
	ataWork    heap.Ptr // maxTeams * maxPEs * ataWorkWords
}

// newSyncPools allocates the scratch regions. Allocation order is identical
// on every PE, so all offsets come out congruent without any exchange.
func newSyncPools(hp *heap.Heap, maxTeams, maxPEs int) (*syncPools, error) {
	p := &syncPools{hp: hp, maxTeams: maxTeams, maxPEs: maxPEs}
	var err error
	alloc := func(words int) heap.Ptr {
		if err != nil {
			return 0
		}
		var ptr heap.Ptr
		ptr, err = hp.Malloc(int64(words) * 8)
		return ptr
	}
	p.barrier = alloc(maxTeams * barrierSyncWords)
	p.bcastFlag = alloc(maxTeams)
	p.reduceFlag = alloc(maxTeams)
	p.reduceWork = alloc(maxTeams * maxPEs * reduceWorkWords)
	p.ataFlag = alloc(maxTeams)
	p.ataWork = alloc(maxTeams * maxPEs * ataWorkWords)
	if err != nil {
		return nil, errors.WithMessage(err, "allocating sync scratch pools")
	}
	return p, nil
}

// release returns the scratch regions to the heap at finalize.
func (p *syncPools) release() {
	for _, ptr := range []heap.Ptr{p.barrier, p.bcastFlag, p.reduceFlag, p.reduceWork, p.ataFlag, p.ataWork} {
		if err := p.hp.Free(ptr); err != nil {
			klog.Warningf("releasing sync scratch at %d: %+v", ptr, err)
		}
	}
}

func (p *syncPools) barrierSlot(slot, round int) heap.Ptr {
	return p.barrier + heap.Ptr((slot*barrierSyncWords+round)*8)
}

func (p *syncPools) bcastFlagSlot(slot int) heap.Ptr {
	return p.bcastFlag + heap.Ptr(slot*8)
}

func (p *syncPools) reduceFlagSlot(slot int) heap.Ptr {
	return p.reduceFlag + heap.Ptr(slot*8)
}

// reduceWorkBlock is the contribution block of the given team rank within the
// team's scratch.
func (p *syncPools) reduceWorkBlock(slot, rank int) heap.Ptr {
	return p.reduceWork + heap.Ptr(((slot*p.maxPEs+rank)*reduceWorkWords)*8)
}

func (p *syncPools) ataFlagSlot(slot int) heap.Ptr {
	return p.ataFlag + heap.Ptr(slot*8)
}

func (p *syncPools) ataWorkBlock(slot, rank int) heap.Ptr {
	return p.ataWork + heap.Ptr(((slot*p.maxPEs+rank)*ataWorkWords)*8)
}
