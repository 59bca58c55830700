package netib

import (
	"sync/atomic"

	"k8s.io/klog/v2"
)

// stats are the per-backend operation counters behind DumpStats/ResetStats.
// Counters are monotonically increasing between resets; updates race freely
// with dumps, which is fine for diagnostics.
type stats struct {
	puts       atomic.Int64
	gets       atomic.Int64
	amos       atomic.Int64
	barriers   atomic.Int64
	broadcasts atomic.Int64
	reductions atomic.Int64
	alltoalls  atomic.Int64
	quiets     atomic.Int64
	ctxCreated atomic.Int64
	ctxFreed   atomic.Int64
	teamsSplit atomic.Int64
	teamsFreed atomic.Int64
}

func (s *stats) reset() {
	s.puts.Store(0)
	s.gets.Store(0)
	s.amos.Store(0)
	s.barriers.Store(0)
	s.broadcasts.Store(0)
	s.reductions.Store(0)
	s.alltoalls.Store(0)
	s.quiets.Store(0)
	s.ctxCreated.Store(0)
	s.ctxFreed.Store(0)
	s.teamsSplit.Store(0)
	s.teamsFreed.Store(0)
}

func (s *stats) dump(id string, pe int) {
	klog.Infof("backend %s (PE %d) stats:", id, pe)
	klog.Infof("  puts=%d gets=%d amos=%d quiets=%d", s.puts.Load(), s.gets.Load(), s.amos.Load(), s.quiets.Load())
	klog.Infof("  barriers=%d broadcasts=%d reductions=%d alltoalls=%d",
		s.barriers.Load(), s.broadcasts.Load(), s.reductions.Load(), s.alltoalls.Load())
	klog.Infof("  contexts created=%d freed=%d, teams split=%d freed=%d",
		s.ctxCreated.Load(), s.ctxFreed.Load(), s.teamsSplit.Load(), s.teamsFreed.Load())
}
