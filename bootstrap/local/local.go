// Package local implements bootstrap.ProcessGroup for PEs that live in a
// single process, one goroutine (or more) per PE.
//
// It exists for single-node deployments and for tests: collectives are matched
// by call order per member, exactly as a network process group would match
// them, so backend code behaves identically on top of it.
package local

import (
	"os"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/bootstrap"
)

// World is the root group factory for an in-process job of n PEs.
type World struct {
	size  int
	state *groupState
}

// NewWorld creates the shared state for an n-PE in-process job.
func NewWorld(n int) (*World, error) {
	if n < 1 {
		return nil, errors.Errorf("local world needs at least one PE, got %d", n)
	}
	return &World{size: n, state: newGroupState(n)}, nil
}

// Join returns rank's handle on the world group. Each rank must join exactly
// once.
func (w *World) Join(rank int) (bootstrap.ProcessGroup, error) {
	if rank < 0 || rank >= w.size {
		return nil, errors.Errorf("rank %d out of range [0,%d)", rank, w.size)
	}
	return &Group{state: w.state, rank: rank}, nil
}

// Group is one member's handle on a (sub)group. Handles are not safe for
// concurrent use by multiple goroutines of the same member.
type Group struct {
	state *groupState
	rank  int

	// Per-collective call counters. The i-th call of an operation on any
	// member matches the i-th call on every other member.
	barrierSeq uint64
	reduceSeq  uint64
	bcastSeq   uint64
	splitSeq   uint64
}

var _ bootstrap.ProcessGroup = (*Group)(nil)

// groupState is the state shared by all members of one group.
type groupState struct {
	size int

	mu      sync.Mutex
	cond    *sync.Cond
	barrier map[uint64]*collOp
	reduce  map[uint64]*collOp
	bcast   map[uint64]*collOp
	split   map[uint64]*splitOp
}

func newGroupState(n int) *groupState {
	s := &groupState{
		size:    n,
		barrier: make(map[uint64]*collOp),
		reduce:  make(map[uint64]*collOp),
		bcast:   make(map[uint64]*collOp),
		split:   make(map[uint64]*splitOp),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// collOp is one in-flight collective. The last arriver marks it done; the last
// reader removes it from the pending map so the sequence number can be reused
// safely by a later generation of the group.
type collOp struct {
	arrived int
	read    int
	done    bool
	words   []uint64 // reduce accumulator
	buf     []byte   // broadcast payload
}

type splitOp struct {
	arrived int
	read    int
	done    bool
	colors  []int
	keys    []int
	groups  map[int]*splitResult
}

type splitResult struct {
	state   *groupState
	members []int // parent ranks, ordered by (key, parent rank)
}

func (g *Group) Rank() int { return g.rank }
func (g *Group) Size() int { return g.state.size }

func (g *Group) Barrier() error {
	seq := g.barrierSeq
	g.barrierSeq++

	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.barrier[seq]
	if op == nil {
		op = &collOp{}
		s.barrier[seq] = op
	}
	op.arrived++
	if op.arrived == s.size {
		op.done = true
		s.cond.Broadcast()
	}
	for !op.done {
		s.cond.Wait()
	}
	op.read++
	if op.read == s.size {
		delete(s.barrier, seq)
	}
	return nil
}

func (g *Group) AllReduceAnd(words []uint64) ([]uint64, error) {
	seq := g.reduceSeq
	g.reduceSeq++

	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.reduce[seq]
	if op == nil {
		op = &collOp{}
		s.reduce[seq] = op
	}
	if op.words == nil {
		op.words = append([]uint64(nil), words...)
	} else {
		if len(op.words) != len(words) {
			return nil, errors.Errorf("AllReduceAnd length mismatch: %d vs %d words", len(op.words), len(words))
		}
		for i, w := range words {
			op.words[i] &= w
		}
	}
	op.arrived++
	if op.arrived == s.size {
		op.done = true
		s.cond.Broadcast()
	}
	for !op.done {
		s.cond.Wait()
	}
	out := append([]uint64(nil), op.words...)
	op.read++
	if op.read == s.size {
		delete(s.reduce, seq)
	}
	return out, nil
}

func (g *Group) Broadcast(root int, buf []byte) error {
	if root < 0 || root >= g.state.size {
		return errors.Errorf("broadcast root %d out of range [0,%d)", root, g.state.size)
	}
	seq := g.bcastSeq
	g.bcastSeq++

	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.bcast[seq]
	if op == nil {
		op = &collOp{}
		s.bcast[seq] = op
	}
	if g.rank == root {
		op.buf = append([]byte(nil), buf...)
	}
	op.arrived++
	if op.arrived == s.size {
		op.done = true
		s.cond.Broadcast()
	}
	for !op.done {
		s.cond.Wait()
	}
	if len(op.buf) != len(buf) {
		return errors.Errorf("broadcast length mismatch: root sent %d bytes, member expects %d", len(op.buf), len(buf))
	}
	copy(buf, op.buf)
	op.read++
	if op.read == s.size {
		delete(s.bcast, seq)
	}
	return nil
}

func (g *Group) Split(color, key int) (bootstrap.ProcessGroup, error) {
	seq := g.splitSeq
	g.splitSeq++

	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.split[seq]
	if op == nil {
		op = &splitOp{
			colors: make([]int, s.size),
			keys:   make([]int, s.size),
		}
		s.split[seq] = op
	}
	op.colors[g.rank] = color
	op.keys[g.rank] = key
	op.arrived++
	if op.arrived == s.size {
		op.groups = partition(op.colors, op.keys)
		op.done = true
		s.cond.Broadcast()
	}
	for !op.done {
		s.cond.Wait()
	}

	var sub bootstrap.ProcessGroup
	if color != bootstrap.ColorUndefined {
		res := op.groups[color]
		for i, parentRank := range res.members {
			if parentRank == g.rank {
				sub = &Group{state: res.state, rank: i}
				break
			}
		}
	}
	op.read++
	if op.read == s.size {
		delete(s.split, seq)
	}
	return sub, nil
}

// partition computes the subgroup for each distinct color, ordered by
// (key, parent rank).
func partition(colors, keys []int) map[int]*splitResult {
	byColor := make(map[int][]int)
	for rank, c := range colors {
		if c == bootstrap.ColorUndefined {
			continue
		}
		byColor[c] = append(byColor[c], rank)
	}
	out := make(map[int]*splitResult, len(byColor))
	for c, members := range byColor {
		sort.SliceStable(members, func(i, j int) bool {
			if keys[members[i]] != keys[members[j]] {
				return keys[members[i]] < keys[members[j]]
			}
			return members[i] < members[j]
		})
		out[c] = &splitResult{state: newGroupState(len(members)), members: members}
	}
	return out
}

// Abort ends the whole in-process job: with every PE sharing one address
// space, there is no narrower unit of failure.
func (g *Group) Abort(status int) {
	klog.Errorf("process group abort requested by rank %d (status %d)", g.rank, status)
	klog.Flush()
	os.Exit(status)
}

func (g *Group) Close() error { return nil }
