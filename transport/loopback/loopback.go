// Package loopback implements transport.Transport for PEs sharing one node.
//
// It is the on-node shortcut: every endpoint holds a reference to each peer's
// heap and moves bytes with plain memory copies, atomics with the host CPU's
// own atomic instructions. Completion is immediate, so Fence and Quiet are
// trivially satisfied; FlushCache only needs a memory barrier, which the
// atomics already provide.
package loopback

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/goshmem/goshmem/heap"
	"github.com/goshmem/goshmem/transport"
)

// Fabric connects the endpoints of one in-process job. All endpoints must be
// created before any PE initializes its backend.
type Fabric struct {
	mu    sync.Mutex
	heaps []*heap.Heap
}

// NewFabric creates a fabric for n PEs.
func NewFabric(n int) (*Fabric, error) {
	if n < 1 {
		return nil, errors.Errorf("loopback fabric needs at least one PE, got %d", n)
	}
	return &Fabric{heaps: make([]*heap.Heap, n)}, nil
}

// Endpoint returns pe's transport endpoint.
func (f *Fabric) Endpoint(pe int) (transport.Transport, error) {
	if pe < 0 || pe >= len(f.heaps) {
		return nil, errors.Errorf("loopback endpoint rank %d out of range [0,%d)", pe, len(f.heaps))
	}
	return &endpoint{fabric: f, pe: pe}, nil
}

type endpoint struct {
	fabric *Fabric
	pe     int
	closed atomic.Bool

	// flushes counts FlushCache invocations, surfaced in backend stats.
	flushes atomic.Int64
}

var _ transport.Transport = (*endpoint)(nil)

func (e *endpoint) Name() string { return "loopback" }

func (e *endpoint) Init(h *heap.Heap) error {
	f := e.fabric
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.heaps[e.pe] != nil {
		return errors.Errorf("loopback endpoint %d already initialized", e.pe)
	}
	f.heaps[e.pe] = h
	return nil
}

func (e *endpoint) RegisterContext(int) error { return nil }

// peer looks up the target heap. A nil entry means the target PE has not
// finished its own bootstrap yet, which the backend's bootstrap barrier rules
// out for well-formed programs.
func (e *endpoint) peer(pe int) (*heap.Heap, error) {
	f := e.fabric
	f.mu.Lock()
	defer f.mu.Unlock()
	if pe < 0 || pe >= len(f.heaps) {
		return nil, errors.Errorf("target PE %d out of range [0,%d)", pe, len(f.heaps))
	}
	if f.heaps[pe] == nil {
		return nil, errors.Errorf("target PE %d has no registered heap", pe)
	}
	return f.heaps[pe], nil
}

func (e *endpoint) Put(pe int, dst heap.Ptr, src []byte) error {
	h, err := e.peer(pe)
	if err != nil {
		return errors.WithMessage(err, "loopback Put")
	}
	copy(h.Bytes(dst, int64(len(src))), src)
	return nil
}

func (e *endpoint) Get(pe int, src heap.Ptr, dst []byte) error {
	h, err := e.peer(pe)
	if err != nil {
		return errors.WithMessage(err, "loopback Get")
	}
	copy(dst, h.Bytes(src, int64(len(dst))))
	return nil
}

func (e *endpoint) AmoFetchAdd(pe int, p heap.Ptr, delta int64) (int64, error) {
	h, err := e.peer(pe)
	if err != nil {
		return 0, errors.WithMessage(err, "loopback AmoFetchAdd")
	}
	return h.AtomicInt64(p).Add(delta) - delta, nil
}

func (e *endpoint) AmoCompareSwap(pe int, p heap.Ptr, cond, val int64) (int64, error) {
	h, err := e.peer(pe)
	if err != nil {
		return 0, errors.WithMessage(err, "loopback AmoCompareSwap")
	}
	w := h.AtomicInt64(p)
	for {
		old := w.Load()
		if old != cond {
			return old, nil
		}
		if w.CompareAndSwap(cond, val) {
			return cond, nil
		}
	}
}

func (e *endpoint) AmoSet(pe int, p heap.Ptr, val int64) error {
	h, err := e.peer(pe)
	if err != nil {
		return errors.WithMessage(err, "loopback AmoSet")
	}
	h.AtomicInt64(p).Store(val)
	return nil
}

func (e *endpoint) AmoFetch(pe int, p heap.Ptr) (int64, error) {
	h, err := e.peer(pe)
	if err != nil {
		return 0, errors.WithMessage(err, "loopback AmoFetch")
	}
	return h.AtomicInt64(p).Load(), nil
}

// Fence and Quiet: loopback copies complete synchronously, nothing to drain.
func (e *endpoint) Fence() error { return nil }
func (e *endpoint) Quiet() error { return nil }

func (e *endpoint) FlushCache() {
	// The Add doubles as a full barrier on the architectures we run on.
	e.flushes.Add(1)
}

// Flushes reports how many cache flushes this endpoint has served.
func (e *endpoint) Flushes() int64 { return e.flushes.Load() }

func (e *endpoint) Teardown() error {
	if e.closed.Swap(true) {
		return errors.Errorf("loopback endpoint %d torn down twice", e.pe)
	}
	f := e.fabric
	f.mu.Lock()
	f.heaps[e.pe] = nil
	f.mu.Unlock()
	return nil
}
