// Package shmem is the public API of goshmem: a partitioned global address
// space of PEs (processing elements) with a symmetric heap, one-sided
// put/get/atomics, teams and collectives.
//
// Errors at this boundary are converted to panics with stack traces, see
// github.com/gomlx/exceptions; use exceptions.Try to capture them as errors
// where that is more convenient.
package shmem

import (
	"sync/atomic"

	"github.com/gomlx/exceptions"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/bootstrap"
	"github.com/goshmem/goshmem/heap"
	"github.com/goshmem/goshmem/transport"
)

// Options configure Init. Group and Transport are the two collaborators every
// backend needs; how they were established (MPI, PMIx, in-process) is up to
// the caller.
type Options struct {
	// Group is the already-joined world process group for this PE.
	Group bootstrap.ProcessGroup

	// Transport is this PE's endpoint into the fabric.
	Transport transport.Transport

	// Async returns from Init as soon as the heap and transport are up; the
	// first operation blocks until the rest of bootstrap finishes.
	Async bool
}

// Runtime is one PE's handle to the job. A distributed job has one Runtime
// per process; an in-process job (bootstrap/local) holds one per PE
// goroutine. All methods are safe for concurrent use except Finalize.
type Runtime struct {
	backend   backends.Backend
	finalized atomic.Bool
}

// Init brings up this PE and rendezvouses with the rest of the job. The
// backend is selected by GOSHMEM_BACKEND (see package backends). It panics on
// failure. Each PE must Init exactly once.
func Init(opts Options) *Runtime {
	backend, err := backends.New(backends.Config{
		Group:     opts.Group,
		Transport: opts.Transport,
		Async:     opts.Async,
	})
	if err != nil {
		exceptions.Panicf("initializing goshmem: %+v", err)
	}
	return &Runtime{backend: backend}
}

// Finalize tears down this PE collectively with the rest of the job. The
// Runtime is invalid afterwards.
func (rt *Runtime) Finalize() {
	if rt.finalized.Swap(true) {
		exceptions.Panicf("goshmem Runtime finalized twice")
	}
	rt.backend.Finalize()
}

// Backend exposes the underlying backend, for diagnostics.
func (rt *Runtime) Backend() backends.Backend { return rt.backend }

// MyPE is this process's world rank.
func (rt *Runtime) MyPE() int { return rt.backend.MyPE() }

// NumPEs is the world size.
func (rt *Runtime) NumPEs() int { return rt.backend.NumPEs() }

// Malloc allocates n bytes from the symmetric heap. Collective: every PE must
// call it with the same size, in the same order; the returned offset is
// congruent and remotely usable on return.
func (rt *Runtime) Malloc(n int64) heap.Ptr {
	p, err := rt.backend.Malloc(n)
	if err != nil {
		panic(err)
	}
	return p
}

// Free releases a symmetric allocation. Collective, like Malloc.
func (rt *Runtime) Free(p heap.Ptr) {
	if err := rt.backend.Free(p); err != nil {
		panic(err)
	}
}

// Heap exposes the local copy of the symmetric region.
func (rt *Runtime) Heap() *heap.Heap { return rt.backend.Heap() }

// Barrier blocks until every PE reaches it and all prior one-sided operations
// are complete.
func (rt *Runtime) Barrier() {
	if err := rt.backend.BarrierAll(); err != nil {
		panic(err)
	}
}

// TeamWorld is the root team containing every PE.
func (rt *Runtime) TeamWorld() backends.Team { return rt.backend.TeamWorld() }

// TeamSplitStrided derives a team from parent's (start, stride, size) active
// set. Collective over parent, with identical arguments everywhere;
// non-members receive nil. Malformed arguments panic without mutating any
// state.
func (rt *Runtime) TeamSplitStrided(parent backends.Team, start, stride, size int) backends.Team {
	team, err := rt.backend.TeamSplitStrided(parent, start, stride, size)
	if err != nil {
		panic(err)
	}
	return team
}

// TeamDestroy releases a team from TeamSplitStrided; nil and world teams are
// no-ops.
func (rt *Runtime) TeamDestroy(team backends.Team) {
	if err := rt.backend.TeamDestroy(team); err != nil {
		panic(err)
	}
}

// TeamTranslatePE maps srcPE, a rank in src, to its rank in dst, or -1 when
// it is not a member of dst.
func (rt *Runtime) TeamTranslatePE(src backends.Team, srcPE int, dst backends.Team) int {
	return rt.backend.TeamTranslatePE(src, srcPE, dst)
}

// CtxCreate checks a context out of the fixed-capacity pool. Exhaustion
// panics; capacity is set by GOSHMEM_MAX_NUM_CONTEXTS at Init.
func (rt *Runtime) CtxCreate(options int64) backends.Context {
	ctx, err := rt.backend.CtxCreate(options)
	if err != nil {
		panic(err)
	}
	return ctx
}

// CtxCreateForTeam checks out a context bound to team: target ranks and
// collectives become team-relative.
func (rt *Runtime) CtxCreateForTeam(team backends.Team, options int64) backends.Context {
	ctx, err := rt.backend.CtxCreateForTeam(team, options)
	if err != nil {
		panic(err)
	}
	return ctx
}

// CtxDestroy quiets a context and returns it to the pool.
func (rt *Runtime) CtxDestroy(ctx backends.Context) {
	if err := rt.backend.CtxDestroy(ctx); err != nil {
		panic(err)
	}
}

// DefaultCtx is the ambient context bound to the world team.
func (rt *Runtime) DefaultCtx() backends.Context { return rt.backend.DefaultCtx() }

// GlobalExit terminates the entire job with the given status.
func (rt *Runtime) GlobalExit(status int) { rt.backend.GlobalExit(status) }

// DumpStats logs the backend's operation counters.
func (rt *Runtime) DumpStats() { rt.backend.DumpStats() }

// ResetStats zeroes the backend's operation counters.
func (rt *Runtime) ResetStats() { rt.backend.ResetStats() }
