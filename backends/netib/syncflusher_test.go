package netib

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goshmem/goshmem/transport"
)

// countingTransport stubs the transport with just enough behavior to observe
// the flush protocol.
type countingTransport struct {
	transport.Transport // panics if anything else is called
	flushed             atomic.Int64
}

func (c *countingTransport) FlushCache() { c.flushed.Add(1) }

func TestFlusherServicesRequests(t *testing.T) {
	tr := &countingTransport{}
	var shutdown atomic.Bool
	f := newSyncFlusher(tr, flushHostPoll, &shutdown)

	f.RequestFlush()
	require.GreaterOrEqual(t, tr.flushed.Load(), int64(1))
	require.Equal(t, int64(1), f.flushes())

	f.RequestFlush()
	f.RequestFlush()
	require.Equal(t, int64(3), f.flushes())

	shutdown.Store(true)
	f.join()
}

func TestFlusherConcurrentRequesters(t *testing.T) {
	tr := &countingTransport{}
	var shutdown atomic.Bool
	f := newSyncFlusher(tr, flushHostPoll, &shutdown)

	const requesters, rounds = 8, 50
	done := make(chan struct{})
	for i := 0; i < requesters; i++ {
		go func() {
			for j := 0; j < rounds; j++ {
				f.RequestFlush()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < requesters; i++ {
		<-done
	}
	// Every request was acknowledged, though flushes may be coalesced.
	assert.Equal(t, int64(requesters*rounds), f.flushes())
	assert.LessOrEqual(t, tr.flushed.Load(), int64(requesters*rounds))
	assert.Positive(t, tr.flushed.Load())

	shutdown.Store(true)
	f.join()
}

func TestFlusherRequestAfterShutdownCompletesInline(t *testing.T) {
	tr := &countingTransport{}
	var shutdown atomic.Bool
	f := newSyncFlusher(tr, flushHostPoll, &shutdown)
	shutdown.Store(true)
	f.join()

	before := tr.flushed.Load()
	finished := make(chan struct{})
	go func() {
		f.RequestFlush()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("RequestFlush hung after shutdown")
	}
	require.Greater(t, tr.flushed.Load(), before)
}

func TestNativePolicyFlushesInline(t *testing.T) {
	tr := &countingTransport{}
	var shutdown atomic.Bool
	f := newSyncFlusher(tr, flushDeviceNative, &shutdown)
	f.RequestFlush()
	require.Equal(t, int64(1), tr.flushed.Load())
	f.join() // no poller; returns immediately
}
