// Package netib implements the "ib" backend: symmetric heap, context pool,
// team algebra and the host-device cache-flush protocol for one PE, on top of
// a pluggable transport and bootstrap process group.
//
// The package registers itself with the backends registry on import:
//
//	import _ "github.com/goshmem/goshmem/backends/netib"
package netib

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/bootstrap"
	"github.com/goshmem/goshmem/heap"
	"github.com/goshmem/goshmem/transport"
)

// BackendName to use in GOSHMEM_BACKEND to select this backend.
const BackendName = "ib"

func init() {
	backends.Register(BackendName, New)
}

// Backend holds one PE's runtime: heap, pools, teams and service goroutines.
type Backend struct {
	id    string
	conf  config
	group bootstrap.ProcessGroup
	tr    transport.Transport

	myPE   int
	numPEs int

	hp      *heap.Heap
	pool    *contextPool
	tracker *teamTracker
	pools   *syncPools
	flusher *syncFlusher

	// teamBitmask has a 1 bit for every free team-pool slot. Only mutated
	// from team creation/destruction, which the caller serializes.
	teamBitmask []uint64
	teamWorld   *Team
	defaultCtx  *Context

	state    atomic.Int64
	shutdown atomic.Bool

	// ready is closed once bootstrap finished (successfully or not); bootErr
	// carries the failure. Public operations gate on it so an Async
	// constructor can return early.
	ready   chan struct{}
	bootErr error

	stats stats
}

var _ backends.Backend = (*Backend)(nil)

// New builds the backend for one PE. The heap and transport come up on the
// calling goroutine; with cfg.Async the pools, world team and default context
// are finished on a helper goroutine while the caller proceeds.
func New(cfg backends.Config) (backends.Backend, error) {
	conf, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.Group == nil {
		return nil, errors.Errorf("backend %q needs a bootstrap process group", BackendName)
	}
	if cfg.Transport == nil {
		return nil, errors.Errorf("backend %q needs a transport", BackendName)
	}
	b := &Backend{
		id:     uuid.NewString(),
		conf:   conf,
		group:  cfg.Group,
		tr:     cfg.Transport,
		myPE:   cfg.Group.Rank(),
		numPEs: cfg.Group.Size(),
		ready:  make(chan struct{}),
	}
	b.setState(StateGroupJoined)
	if b.numPEs > conf.maxPEs {
		return nil, errors.Errorf("world has %d PEs, %s allows %d", b.numPEs, envMaxPEs, conf.maxPEs)
	}

	// Every PE must bring up a heap of the same size, or symmetric offsets
	// would diverge. PE 0's size is authoritative; a disagreeing PE fails
	// loudly instead of silently corrupting remote memory later.
	var sizeWire [8]byte
	binary.LittleEndian.PutUint64(sizeWire[:], uint64(conf.heapSize))
	if err := b.group.Broadcast(0, sizeWire[:]); err != nil {
		return nil, errors.WithMessage(err, "negotiating heap size")
	}
	if got := int64(binary.LittleEndian.Uint64(sizeWire[:])); got != conf.heapSize {
		return nil, errors.Errorf("PE %d configured a %d byte heap but PE 0 uses %d: set %s identically on every PE",
			b.myPE, conf.heapSize, got, envHeapSize)
	}

	if b.hp, err = heap.New(conf.heapSize); err != nil {
		return nil, err
	}
	b.setState(StateHeapReady)
	if err = b.tr.Init(b.hp); err != nil {
		return nil, errors.WithMessage(err, "transport init")
	}
	b.setState(StateTransportReady)

	if cfg.Async {
		go func() {
			defer close(b.ready)
			b.bootErr = b.finishBootstrap()
		}()
	} else {
		b.bootErr = b.finishBootstrap()
		close(b.ready)
		if b.bootErr != nil {
			return nil, b.bootErr
		}
	}
	return b, nil
}

// finishBootstrap builds the pools, the world team and the default context,
// then rendezvouses with the other PEs.
func (b *Backend) finishBootstrap() error {
	var err error
	if b.pool, err = newContextPool(b, b.conf.maxContexts); err != nil {
		return err
	}
	b.tracker = newTeamTracker()
	if b.pools, err = newSyncPools(b.hp, b.conf.maxTeams, b.conf.maxPEs); err != nil {
		return err
	}

	b.teamBitmask = make([]uint64, (b.conf.maxTeams+63)/64)
	for i := range b.teamBitmask {
		b.teamBitmask[i] = ^uint64(0)
	}
	for slot := b.conf.maxTeams; slot < len(b.teamBitmask)*64; slot++ {
		b.teamBitmask[slot/64] &^= 1 << (slot % 64)
	}
	b.teamWorld = b.newWorldTeam()
	b.setState(StatePoolsReady)

	if b.defaultCtx, err = b.pool.acquire(b.teamWorld, 0); err != nil {
		return err
	}
	b.flusher = newSyncFlusher(b.tr, b.conf.flushPolicy, &b.shutdown)
	b.setState(StateDefaultsReady)

	if err = b.group.Barrier(); err != nil {
		return errors.WithMessage(err, "bootstrap rendezvous")
	}
	b.setState(StateRunning)
	klog.V(1).Infof("backend %s up: PE %d of %d, heap %d bytes, %d contexts, %d teams",
		b.id, b.myPE, b.numPEs, b.conf.heapSize, b.conf.maxContexts, b.conf.maxTeams)
	return nil
}

// waitReady blocks until bootstrap finished and reports its outcome.
func (b *Backend) waitReady() error {
	<-b.ready
	return b.bootErr
}

func (b *Backend) setState(s State) {
	b.state.Store(int64(s))
	klog.V(2).Infof("PE %d backend state -> %s", b.myPE, s)
}

// State reports the bootstrap/teardown phase, for tests and diagnostics.
func (b *Backend) State() State {
	return State(b.state.Load())
}

func (b *Backend) Name() string { return BackendName }

func (b *Backend) Description() string {
	return fmt.Sprintf("one-sided symmetric-memory backend %q (instance %s) over transport %q",
		BackendName, b.id, b.tr.Name())
}

func (b *Backend) Capabilities() backends.Capabilities {
	return backends.Capabilities{
		MaxContexts:      b.conf.maxContexts,
		MaxTeams:         b.conf.maxTeams,
		MaxPEs:           b.conf.maxPEs,
		NativeCacheFlush: b.conf.flushPolicy == flushDeviceNative,
		RemoteAtomics:    true,
	}
}

func (b *Backend) MyPE() int        { return b.myPE }
func (b *Backend) NumPEs() int      { return b.numPEs }
func (b *Backend) Heap() *heap.Heap { return b.hp }

// Malloc allocates on every PE and barriers, so the returned offset is
// remotely usable as soon as the call returns. Collective: every PE must call
// it with the same size, in the same order.
func (b *Backend) Malloc(n int64) (heap.Ptr, error) {
	if err := b.waitReady(); err != nil {
		return 0, err
	}
	p, err := b.hp.Malloc(n)
	if err != nil {
		return 0, err
	}
	if err = b.BarrierAll(); err != nil {
		return 0, err
	}
	return p, nil
}

// Free barriers first, so no PE releases memory a peer may still target, then
// returns the allocation to the heap.
func (b *Backend) Free(p heap.Ptr) error {
	if err := b.waitReady(); err != nil {
		return err
	}
	if err := b.BarrierAll(); err != nil {
		return err
	}
	return b.hp.Free(p)
}

// CtxCreate checks a context out of the pool, bound to the world team.
func (b *Backend) CtxCreate(options int64) (backends.Context, error) {
	if err := b.waitReady(); err != nil {
		return nil, err
	}
	return b.ctxForTeam(b.teamWorld, options)
}

// CtxCreateForTeam checks out a context whose target ranks and collectives
// are relative to the given team.
func (b *Backend) CtxCreateForTeam(team backends.Team, options int64) (backends.Context, error) {
	if err := b.waitReady(); err != nil {
		return nil, err
	}
	t, ok := team.(*Team)
	if !ok || t == nil {
		return nil, errors.Errorf("cannot bind a context to the invalid team")
	}
	return b.ctxForTeam(t, options)
}

func (b *Backend) ctxForTeam(t *Team, options int64) (backends.Context, error) {
	ctx, err := b.pool.acquire(t, options)
	if err != nil {
		return nil, err
	}
	b.tracker.trackCtx(ctx)
	b.stats.ctxCreated.Add(1)
	return ctx, nil
}

// CtxDestroy quiets a context and returns it to the pool. Destroying the
// default context is a no-op.
func (b *Backend) CtxDestroy(ctx backends.Context) error {
	if err := b.waitReady(); err != nil {
		return err
	}
	c, ok := ctx.(*Context)
	if !ok || c == nil {
		return errors.Errorf("cannot destroy a context not created by this backend")
	}
	if c == b.defaultCtx {
		return nil
	}
	if err := c.Quiet(); err != nil {
		return err
	}
	b.tracker.untrackCtx(c)
	b.pool.release(c)
	b.stats.ctxFreed.Add(1)
	return nil
}

// DefaultCtx is the ambient context bound to the world team.
func (b *Backend) DefaultCtx() backends.Context {
	if err := b.waitReady(); err != nil {
		return nil
	}
	return b.defaultCtx
}

// TeamWorld is the root team containing every PE.
func (b *Backend) TeamWorld() backends.Team {
	if err := b.waitReady(); err != nil {
		return nil
	}
	return b.teamWorld
}

// BarrierAll synchronizes every PE and completes all prior one-sided
// operations.
func (b *Backend) BarrierAll() error {
	if err := b.waitReady(); err != nil {
		return err
	}
	return b.defaultCtx.Barrier()
}

func (b *Backend) DumpStats()  { b.stats.dump(b.id, b.myPE) }
func (b *Backend) ResetStats() { b.stats.reset() }

// GlobalExit terminates the whole job with the given status, not just this PE.
func (b *Backend) GlobalExit(status int) {
	klog.Warningf("PE %d requested global exit with status %d", b.myPE, status)
	b.group.Abort(status)
}

// Finalize tears the backend down: leaked contexts first (they may reference
// team metadata), then leaked teams, then service goroutines, scratch pools,
// transport and process group. Collective; the backend is invalid afterwards.
func (b *Backend) Finalize() {
	if b.waitReady() != nil {
		return
	}
	if !b.state.CompareAndSwap(int64(StateRunning), int64(StateFinalizing)) {
		klog.Warningf("PE %d: Finalize called in state %s, ignored", b.myPE, b.State())
		return
	}
	klog.V(2).Infof("PE %d backend state -> %s", b.myPE, StateFinalizing)

	// Settle in-flight traffic while the flusher still runs, then make sure
	// every PE got here before anything is dismantled.
	if err := b.defaultCtx.Quiet(); err != nil {
		klog.Warningf("quiet at finalize: %+v", err)
	}
	if err := b.group.Barrier(); err != nil {
		klog.Warningf("finalize rendezvous: %+v", err)
	}

	b.tracker.destroyRemainingCtxs(func(c *Context) {
		b.pool.release(c)
		b.stats.ctxFreed.Add(1)
	})
	b.pool.release(b.defaultCtx)
	b.defaultCtx = nil
	b.pool.drain()
	b.tracker.destroyAll(b.destroyTeam)

	b.shutdown.Store(true)
	b.flusher.join()
	b.pools.release()
	if n := b.hp.InUse(); n > 0 {
		klog.V(1).Infof("PE %d: %d symmetric allocations leaked at finalize", b.myPE, n)
	}
	if err := b.tr.Teardown(); err != nil {
		klog.Warningf("transport teardown: %+v", err)
	}
	if err := b.group.Close(); err != nil {
		klog.Warningf("closing world process group: %+v", err)
	}
	b.setState(StateDestroyed)
}
