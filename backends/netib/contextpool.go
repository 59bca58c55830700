package netib

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/heap"
)

// Context is the per-issuer handle through which one-sided operations flow.
// While checked out of the pool it belongs exclusively to one caller.
type Context struct {
	backend *Backend
	slot    int
	team    *Team
	options int64

	// pending counts non-blocking operations not yet bounded by Quiet.
	// It is transient ordering state: release resets it so the next holder
	// never inherits it.
	pending atomic.Int64

	checkedOut bool
}

var _ backends.Context = (*Context)(nil)

// contextPool is the fixed-capacity free list of pre-constructed contexts.
//
// All slots are constructed once at init and destroyed once at finalize;
// acquire/release only moves slot indices. Exhaustion is a hard allocation
// failure, never a retry: capacity is a static decision made at init.
//
// Concurrent acquire/release from many execution units is the dominant case,
// so the free list is guarded by a single mutex held only for the index push
// and pop.
type contextPool struct {
	mu   sync.Mutex
	ctxs []*Context
	free []int
}

func newContextPool(b *Backend, capacity int) (*contextPool, error) {
	p := &contextPool{
		ctxs: make([]*Context, capacity),
		free: make([]int, 0, capacity),
	}
	for slot := 0; slot < capacity; slot++ {
		if err := b.tr.RegisterContext(slot); err != nil {
			return nil, errors.WithMessagef(err, "registering context slot %d", slot)
		}
		p.ctxs[slot] = &Context{backend: b, slot: slot}
	}
	// LIFO: slot 0 comes out first.
	for slot := capacity - 1; slot >= 0; slot-- {
		p.free = append(p.free, slot)
	}
	return p, nil
}

// acquire pops a free slot and binds it to team. Fails when the free list is
// empty.
func (p *contextPool) acquire(team *Team, options int64) (*Context, error) {
	p.mu.Lock()
	if len(p.free) == 0 {
		p.mu.Unlock()
		return nil, errors.Errorf("no contexts available: all %d in use (capacity is fixed at init)", len(p.ctxs))
	}
	slot := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	ctx := p.ctxs[slot]
	p.mu.Unlock()

	ctx.team = team
	ctx.options = options
	ctx.checkedOut = true
	return ctx, nil
}

// release resets the context's transient ordering state and pushes its slot
// back on the free list.
func (p *contextPool) release(ctx *Context) {
	ctx.pending.Store(0)
	ctx.options = 0
	ctx.team = nil
	ctx.checkedOut = false

	p.mu.Lock()
	p.free = append(p.free, ctx.slot)
	p.mu.Unlock()
}

// outstanding reports how many contexts are currently checked out.
func (p *contextPool) outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ctxs) - len(p.free)
}

// drain force-releases every checked-out context at finalize. Residual
// contexts are abandoned by their holders, never waited for: teardown must
// not block on application mistakes.
func (p *contextPool) drain() int {
	var leaked []*Context
	p.mu.Lock()
	inFree := make(map[int]bool, len(p.free))
	for _, slot := range p.free {
		inFree[slot] = true
	}
	for _, ctx := range p.ctxs {
		if !inFree[ctx.slot] {
			leaked = append(leaked, ctx)
		}
	}
	p.mu.Unlock()

	for _, ctx := range leaked {
		p.release(ctx)
	}
	if len(leaked) > 0 {
		klog.V(1).Infof("context pool drained %d leaked contexts at finalize", len(leaked))
	}
	return len(leaked)
}

// Team the context is bound to.
func (c *Context) Team() backends.Team { return c.team }

// worldPE maps a team rank to a world rank, validating range.
func (c *Context) worldPE(pe int) (int, error) {
	if pe < 0 || pe >= c.team.numPEs {
		return -1, errors.Errorf("target PE %d out of range [0,%d) for team", pe, c.team.numPEs)
	}
	return c.team.worldPE(pe), nil
}

// Put writes src into pe's heap at dst and blocks for local completion.
func (c *Context) Put(dst heap.Ptr, src []byte, pe int) error {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return err
	}
	c.backend.stats.puts.Add(1)
	return c.backend.tr.Put(wpe, dst, src)
}

// PutNBI is the non-blocking Put; completion is bounded by Quiet.
func (c *Context) PutNBI(dst heap.Ptr, src []byte, pe int) error {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return err
	}
	c.pending.Add(1)
	c.backend.stats.puts.Add(1)
	return c.backend.tr.Put(wpe, dst, src)
}

// Get reads pe's heap at src into dst.
func (c *Context) Get(dst []byte, src heap.Ptr, pe int) error {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return err
	}
	c.backend.stats.gets.Add(1)
	return c.backend.tr.Get(wpe, src, dst)
}

// GetNBI is the non-blocking Get; completion is bounded by Quiet.
func (c *Context) GetNBI(dst []byte, src heap.Ptr, pe int) error {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return err
	}
	c.pending.Add(1)
	c.backend.stats.gets.Add(1)
	return c.backend.tr.Get(wpe, src, dst)
}

func (c *Context) AmoFetchAdd(p heap.Ptr, delta int64, pe int) (int64, error) {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return 0, err
	}
	c.backend.stats.amos.Add(1)
	return c.backend.tr.AmoFetchAdd(wpe, p, delta)
}

func (c *Context) AmoCompareSwap(p heap.Ptr, cond, val int64, pe int) (int64, error) {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return 0, err
	}
	c.backend.stats.amos.Add(1)
	return c.backend.tr.AmoCompareSwap(wpe, p, cond, val)
}

func (c *Context) AmoSet(p heap.Ptr, val int64, pe int) error {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return err
	}
	c.backend.stats.amos.Add(1)
	return c.backend.tr.AmoSet(wpe, p, val)
}

func (c *Context) AmoFetch(p heap.Ptr, pe int) (int64, error) {
	wpe, err := c.worldPE(pe)
	if err != nil {
		return 0, err
	}
	c.backend.stats.amos.Add(1)
	return c.backend.tr.AmoFetch(wpe, p)
}

// Fence orders operations issued before it ahead of those issued after it.
func (c *Context) Fence() error {
	return c.backend.tr.Fence()
}

// Quiet completes all outstanding operations of this context and runs the
// cache-flush protocol so the completions are host-visible.
func (c *Context) Quiet() error {
	if err := c.backend.tr.Quiet(); err != nil {
		return err
	}
	c.backend.flusher.RequestFlush()
	c.pending.Store(0)
	c.backend.stats.quiets.Add(1)
	return nil
}
