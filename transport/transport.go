// Package transport defines the network-transport collaborator through which
// a backend moves bytes between symmetric heaps.
//
// The wire protocol (queue pairs, completion queues, doorbells) lives entirely
// behind this interface: the backend core sees connect/post/poll semantics and
// nothing else. Offsets are symmetric heap.Ptr values, so no per-transfer
// address exchange is needed.
package transport

import "github.com/goshmem/goshmem/heap"

// Transport is one PE's endpoint into the fabric.
//
// One-sided data operations may be issued concurrently from many execution
// units; implementations must tolerate that without imposing ordering beyond
// what Fence/Quiet promise.
type Transport interface {
	// Name of the transport, e.g. "loopback".
	Name() string

	// Init registers the local symmetric heap for remote access.
	// It must run after heap allocation: registration pins the region.
	Init(h *heap.Heap) error

	// RegisterContext prepares any per-context endpoint state (windows,
	// registration descriptors) for the context slot.
	RegisterContext(slot int) error

	// Put writes src into pe's copy of the heap at dst.
	Put(pe int, dst heap.Ptr, src []byte) error

	// Get reads pe's copy of the heap at src into dst.
	Get(pe int, src heap.Ptr, dst []byte) error

	// AmoFetchAdd atomically adds delta to the 8-byte word at p on pe and
	// returns the prior value.
	AmoFetchAdd(pe int, p heap.Ptr, delta int64) (int64, error)

	// AmoCompareSwap atomically replaces the word at p on pe with val if it
	// equals cond, returning the prior value.
	AmoCompareSwap(pe int, p heap.Ptr, cond, val int64) (int64, error)

	// AmoSet atomically stores val into the word at p on pe.
	AmoSet(pe int, p heap.Ptr, val int64) error

	// AmoFetch atomically reads the word at p on pe.
	AmoFetch(pe int, p heap.Ptr) (int64, error)

	// Fence orders operations issued before it against operations issued
	// after it, per target PE.
	Fence() error

	// Quiet blocks until every operation issued through this endpoint has
	// completed remotely.
	Quiet() error

	// FlushCache makes locally cached writes visible to the fabric and
	// incoming remote writes visible to local readers. Invoked by the
	// backend's consistency protocol, never directly by applications.
	FlushCache()

	// Teardown disconnects the endpoint and releases registrations.
	Teardown() error
}
