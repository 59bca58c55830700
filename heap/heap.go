// Package heap implements the symmetric heap: a per-PE memory region laid out
// at congruent offsets on every PE of the job.
//
// Symmetric pointers are plain offsets into the region. Because every PE
// negotiates the same region size at bootstrap, an offset obtained from Malloc
// on one PE names the same object in every other PE's copy of the heap, which
// is what lets one-sided operations target a remote PE without any per-transfer
// metadata exchange.
package heap

import (
	"sort"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Ptr is a symmetric pointer: an offset into the heap region, congruent across
// all PEs. The zero value is not a valid allocation (offset 0 is reserved so
// that Ptr(0) can serve as a nil sentinel).
type Ptr int64

// Alignment of every allocation, in bytes. Atomics require their target word
// to be 8-byte aligned.
const Alignment = 8

// Heap is one PE's copy of the symmetric region plus its allocator state.
//
// The allocator is a first-fit free list over a bump pointer. It is only ever
// driven from host code (Malloc/Free are collective in the public API), so a
// plain mutex suffices; the data region itself is accessed concurrently by
// transports and is deliberately unguarded, per the one-sided model.
type Heap struct {
	data []byte
	size int64

	mu     sync.Mutex
	next   int64            // bump pointer, starts at Alignment (offset 0 reserved)
	allocs map[Ptr]int64    // live allocation sizes
	free   []freeBlock      // reusable blocks, sorted by offset
}

type freeBlock struct {
	off  int64
	size int64
}

// New allocates a heap of the given size. The size must be identical on every
// PE; the backend validates this during bootstrap before the heap is used.
func New(size int64) (*Heap, error) {
	if size < Alignment*2 {
		return nil, errors.Errorf("symmetric heap size %d too small, need at least %d bytes", size, Alignment*2)
	}
	h := &Heap{
		data:   make([]byte, size),
		size:   size,
		next:   Alignment,
		allocs: make(map[Ptr]int64),
	}
	klog.V(1).Infof("symmetric heap allocated: %s", humanize.IBytes(uint64(size)))
	return h, nil
}

// Size returns the total region size in bytes.
func (h *Heap) Size() int64 { return h.size }

// Malloc reserves n bytes and returns their symmetric offset.
// Exhaustion is an error, not a retry condition: the region size is a
// bootstrap-time decision shared by all PEs.
func (h *Heap) Malloc(n int64) (Ptr, error) {
	if n <= 0 {
		return 0, errors.Errorf("heap.Malloc: size must be positive, got %d", n)
	}
	n = align(n)
	h.mu.Lock()
	defer h.mu.Unlock()

	// First fit from the free list.
	for i, blk := range h.free {
		if blk.size >= n {
			p := Ptr(blk.off)
			if rest := blk.size - n; rest > 0 {
				h.free[i] = freeBlock{off: blk.off + n, size: rest}
			} else {
				h.free = append(h.free[:i], h.free[i+1:]...)
			}
			h.allocs[p] = n
			return p, nil
		}
	}

	if h.next+n > h.size {
		return 0, errors.Errorf("symmetric heap exhausted: requested %s, %s free of %s",
			humanize.IBytes(uint64(n)), humanize.IBytes(uint64(h.size-h.next)), humanize.IBytes(uint64(h.size)))
	}
	p := Ptr(h.next)
	h.next += n
	h.allocs[p] = n
	return p, nil
}

// Free releases an allocation previously returned by Malloc.
func (h *Heap) Free(p Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	n, ok := h.allocs[p]
	if !ok {
		return errors.Errorf("heap.Free: %#x is not a live allocation", int64(p))
	}
	delete(h.allocs, p)
	h.free = append(h.free, freeBlock{off: int64(p), size: n})
	sort.Slice(h.free, func(i, j int) bool { return h.free[i].off < h.free[j].off })
	h.coalesceLocked()
	return nil
}

// coalesceLocked merges adjacent free blocks and returns trailing space to the
// bump pointer.
func (h *Heap) coalesceLocked() {
	merged := h.free[:0]
	for _, blk := range h.free {
		if len(merged) > 0 {
			last := &merged[len(merged)-1]
			if last.off+last.size == blk.off {
				last.size += blk.size
				continue
			}
		}
		merged = append(merged, blk)
	}
	h.free = merged
	if len(h.free) > 0 {
		last := h.free[len(h.free)-1]
		if last.off+last.size == h.next {
			h.next = last.off
			h.free = h.free[:len(h.free)-1]
		}
	}
}

// Bytes returns the local backing bytes for [p, p+n). It does not validate
// against live allocations: transports address raw registered memory.
func (h *Heap) Bytes(p Ptr, n int64) []byte {
	return h.data[int64(p) : int64(p)+n : int64(p)+n]
}

// Int64s views [p, p+8n) as a slice of int64. The offset must be 8-byte
// aligned, which Malloc guarantees.
func (h *Heap) Int64s(p Ptr, n int) []int64 {
	b := h.Bytes(p, int64(n)*8)
	return unsafe.Slice((*int64)(unsafe.Pointer(&b[0])), n)
}

// AtomicInt64 returns an atomic view of the 8-byte word at p. This is the
// accessor used by spin-wait primitives so that host goroutines observe
// transport-written values without tearing.
func (h *Heap) AtomicInt64(p Ptr) *atomic.Int64 {
	b := h.Bytes(p, 8)
	return (*atomic.Int64)(unsafe.Pointer(&b[0]))
}

// InUse returns the number of live allocations, for leak reporting at finalize.
func (h *Heap) InUse() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.allocs)
}

func align(n int64) int64 {
	return (n + Alignment - 1) &^ (Alignment - 1)
}
