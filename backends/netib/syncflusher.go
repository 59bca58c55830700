package netib

import (
	"runtime"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/transport"
)

// flushPolicy selects how the cache-flush consistency protocol is serviced.
type flushPolicy int

const (
	// flushHostPoll runs a persistent host goroutine that observes the
	// device-set request counter and issues the platform flush on its
	// behalf. This is the fallback when the device cannot flush its own
	// cache path to the fabric.
	flushHostPoll flushPolicy = iota

	// flushDeviceNative issues the flush inline from the requesting
	// execution unit, with no service goroutine.
	flushDeviceNative
)

// syncFlusher makes accelerator-cached writes visible to the transport (and
// incoming remote writes visible to local readers) before completion is
// treated as host-observable.
//
// The shared state is a pair of monotonic counters: request is bumped by
// issuers, ack is published by the servicer once the flush covering that
// request has run. RequestFlush spins until ack catches up with its own
// request, never blocking on an OS primitive, because the issuer may be an
// execution unit that cannot make syscalls.
type syncFlusher struct {
	tr     transport.Transport
	policy flushPolicy

	request atomic.Int64
	ack     atomic.Int64

	// shutdown is the backend-wide exit flag; the poller checks it on every
	// iteration so teardown can join without an explicit stop message. A
	// request issued before shutdown is still drained before the poller
	// exits.
	shutdown *atomic.Bool
	done     chan struct{}
}

func newSyncFlusher(tr transport.Transport, policy flushPolicy, shutdown *atomic.Bool) *syncFlusher {
	f := &syncFlusher{
		tr:       tr,
		policy:   policy,
		shutdown: shutdown,
		done:     make(chan struct{}),
	}
	if policy == flushHostPoll {
		go f.poll()
	} else {
		close(f.done)
	}
	return f
}

// poll services flush requests until the shutdown flag is set and no request
// is pending. Between requests it sleeps briefly; the backoff trades a little
// latency for not burning a core.
func (f *syncFlusher) poll() {
	defer close(f.done)
	for {
		req := f.request.Load()
		if f.ack.Load() < req {
			f.tr.FlushCache()
			f.ack.Store(req)
			continue
		}
		if f.shutdown.Load() {
			return
		}
		time.Sleep(5 * time.Microsecond)
	}
}

// RequestFlush does not return until a flush issued at or after the call has
// been acknowledged complete.
func (f *syncFlusher) RequestFlush() {
	if f.policy == flushDeviceNative {
		f.tr.FlushCache()
		seq := f.request.Add(1)
		f.ack.Store(seq)
		return
	}
	seq := f.request.Add(1)
	for f.ack.Load() < seq {
		if f.shutdown.Load() {
			// Teardown already signaled and the poller may have exited;
			// service the request inline rather than spin forever.
			klog.V(2).Info("flush requested during shutdown, serviced inline")
			f.tr.FlushCache()
			for {
				cur := f.ack.Load()
				if cur >= seq || f.ack.CompareAndSwap(cur, seq) {
					return
				}
			}
		}
		runtime.Gosched()
	}
}

// join waits for the poller to observe shutdown and exit. Pending requests
// are completed first.
func (f *syncFlusher) join() {
	<-f.done
}

// flushes reports how many flushes have been acknowledged.
func (f *syncFlusher) flushes() int64 {
	return f.ack.Load()
}
