package backends

import "github.com/goshmem/goshmem/heap"

// Backend is the API every transport backend implements for one PE.
//
// A Backend is created once per process by the shmem package and destroyed by
// Finalize; a half-initialized backend is never observable by application
// code. All methods except Finalize may be called concurrently.
type Backend interface {
	// Name returns the short name of the backend, e.g. "ib".
	Name() string

	// Description is a longer description of the backend for pretty-printing.
	Description() string

	// Capabilities reports what this backend supports.
	Capabilities() Capabilities

	// MyPE is this process's world rank, stable for the process lifetime.
	MyPE() int

	// NumPEs is the world size.
	NumPEs() int

	// Heap exposes the local symmetric heap region.
	Heap() *heap.Heap

	// Malloc allocates from the symmetric heap on every PE and barriers, so
	// the returned offset is usable remotely as soon as the call returns.
	Malloc(n int64) (heap.Ptr, error)

	// Free barriers and releases a symmetric allocation on every PE.
	Free(p heap.Ptr) error

	// CtxCreate checks a context out of the pool, bound to the world team.
	// Pool exhaustion is a hard failure: capacity is fixed at init.
	CtxCreate(options int64) (Context, error)

	// CtxCreateForTeam checks out a context bound to the given team: target
	// ranks and collectives are then team-relative.
	CtxCreateForTeam(team Team, options int64) (Context, error)

	// CtxDestroy quiets and returns a context to the pool.
	CtxDestroy(ctx Context) error

	// DefaultCtx is the ambient context usable without explicit creation.
	DefaultCtx() Context

	// TeamWorld is the root team containing every PE.
	TeamWorld() Team

	// TeamSplitStrided derives a team from parent's (start, stride, size)
	// active set. Every PE of parent must call it with identical arguments
	// (a documented precondition, not enforced). Non-members receive a nil
	// team with a nil error; malformed arguments yield a nil team and an
	// error, with no backend state mutated.
	TeamSplitStrided(parent Team, start, stride, size int) (Team, error)

	// TeamDestroy releases a team created by TeamSplitStrided. Destroying
	// the world team or a nil team is a no-op.
	TeamDestroy(team Team) error

	// TeamTranslatePE maps srcPE (a rank in src) to its rank in dst, or -1
	// if it is not a member of dst.
	TeamTranslatePE(src Team, srcPE int, dst Team) int

	// BarrierAll blocks until every PE reaches it and all prior one-sided
	// operations are complete.
	BarrierAll() error

	// DumpStats logs the backend's operation counters.
	DumpStats()

	// ResetStats zeroes the backend's operation counters.
	ResetStats()

	// GlobalExit terminates the entire job with the given status.
	GlobalExit(status int)

	// Finalize destroys every leaked context, then every leaked team, stops
	// service goroutines, and tears down transport, heap and process group.
	// The backend is invalid afterwards.
	Finalize()
}

// Team is a named, ordered subset of PEs. The root team of the application is
// the world team; all others come from TeamSplitStrided.
type Team interface {
	// NumPEs is the team size; identical on every member.
	NumPEs() int

	// MyPE is the caller's rank within the team.
	MyPE() int
}

// Context is the per-issuer handle through which one-sided operations are
// issued. While checked out it belongs exclusively to one caller; ordering
// between its operations is bounded only by Fence and Quiet.
//
// Target PEs are ranks within the context's team.
type Context interface {
	// Team the context is bound to.
	Team() Team

	// Put writes src into pe's heap at dst and blocks for local completion.
	Put(dst heap.Ptr, src []byte, pe int) error

	// PutNBI is the non-blocking Put; completion is bounded by Quiet.
	PutNBI(dst heap.Ptr, src []byte, pe int) error

	// Get reads pe's heap at src into dst.
	Get(dst []byte, src heap.Ptr, pe int) error

	// GetNBI is the non-blocking Get; completion is bounded by Quiet.
	GetNBI(dst []byte, src heap.Ptr, pe int) error

	// AmoFetchAdd atomically adds delta to the word at p on pe.
	AmoFetchAdd(p heap.Ptr, delta int64, pe int) (int64, error)

	// AmoCompareSwap atomically replaces the word at p on pe if it equals cond.
	AmoCompareSwap(p heap.Ptr, cond, val int64, pe int) (int64, error)

	// AmoSet atomically stores val into the word at p on pe.
	AmoSet(p heap.Ptr, val int64, pe int) error

	// AmoFetch atomically reads the word at p on pe.
	AmoFetch(p heap.Ptr, pe int) (int64, error)

	// Fence orders preceding operations before subsequent ones, per target.
	Fence() error

	// Quiet completes every outstanding operation of this context and runs
	// the cache-flush consistency protocol so completions are host-visible.
	Quiet() error

	// Barrier synchronizes the context's team and implies Quiet.
	Barrier() error

	// Sync synchronizes the context's team without completing outstanding
	// one-sided operations (Barrier minus the implied Quiet).
	Sync() error

	// Broadcast replicates nbytes at src on root into dst on every member.
	Broadcast(dst, src heap.Ptr, nbytes int64, root int) error

	// ReduceInt64s element-wise reduces n words from src across the team
	// into dst on every member.
	ReduceInt64s(dst, src heap.Ptr, n int, op ReduceOp) error

	// ReduceFloat64s is ReduceInt64s for float64 elements; bitwise ops are
	// rejected.
	ReduceFloat64s(dst, src heap.Ptr, n int, op ReduceOp) error

	// AllToAllInt64s exchanges nPerPE words with every member: block i of
	// src goes to member i, which stores it at block MyPE of dst.
	AllToAllInt64s(dst, src heap.Ptr, nPerPE int) error

	// WaitUntil spins until the local word at p satisfies cmp against val.
	WaitUntil(p heap.Ptr, cmp Compare, val int64)

	// Test reports whether the local word at p satisfies cmp against val.
	Test(p heap.Ptr, cmp Compare, val int64) bool
}

// ReduceOp selects the operator of a reduction. Arithmetic ops apply to both
// element categories, bitwise ops to integers only.
type ReduceOp int

const (
	ReduceSum ReduceOp = iota
	ReduceMin
	ReduceMax
	ReduceProd
	ReduceAnd
	ReduceOr
	ReduceXor
)

// Compare selects the predicate of WaitUntil/Test.
type Compare int

const (
	CmpEq Compare = iota
	CmpNe
	CmpGt
	CmpGe
	CmpLt
	CmpLe
)

// Satisfies evaluates the predicate.
func (c Compare) Satisfies(got, want int64) bool {
	switch c {
	case CmpEq:
		return got == want
	case CmpNe:
		return got != want
	case CmpGt:
		return got > want
	case CmpGe:
		return got >= want
	case CmpLt:
		return got < want
	case CmpLe:
		return got <= want
	}
	return false
}
