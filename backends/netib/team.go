package netib

import (
	"math/bits"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/goshmem/goshmem/backends"
	"github.com/goshmem/goshmem/bootstrap"
	"github.com/goshmem/goshmem/internal/activeset"
)

// TeamInfo is an immutable active-set triplet together with the team it is
// relative to. Every non-root team carries one relative to its parent and one
// relative to the world.
type TeamInfo struct {
	// Base is the team Set is expressed against.
	Base *Team
	Set  activeset.Set
}

// TeamMirror is the accelerator-resident image of a team: the fields kernels
// read to translate ranks without calling into the host.
type TeamMirror struct {
	Start  int64
	Stride int64
	Size   int64
	NumPEs int64
	MyPE   int64
}

// Team is a named, ordered subset of PEs able to run collectives together.
type Team struct {
	backend *Backend
	numPEs  int
	myPE    int

	wrtParent *TeamInfo
	wrtWorld  *TeamInfo

	// group is the host-side process subgroup for this team's collectives.
	group bootstrap.ProcessGroup

	// slot indexes the team pool and thereby the team's sync scratch
	// regions; the bitmask consensus guarantees it is identical on every
	// member.
	slot  int
	world bool

	mirror *TeamMirror

	// Collective epochs. Arrival flags in the sync pools are monotonic
	// counters; epochs tell each member which count to wait for.
	barrierEpoch atomic.Int64
	bcastEpoch   atomic.Int64
	reduceEpoch  atomic.Int64
	ataEpoch     atomic.Int64
}

var _ backends.Team = (*Team)(nil)

// NumPEs is the team size; identical on every member.
func (t *Team) NumPEs() int { return t.numPEs }

// MyPE is the caller's rank within the team.
func (t *Team) MyPE() int { return t.myPE }

// worldPE maps a team rank to its world rank.
func (t *Team) worldPE(rank int) int {
	return t.wrtWorld.Set.PE(rank)
}

// Mirror exposes the accelerator-resident team image.
func (t *Team) Mirror() *TeamMirror { return t.mirror }

// newWorldTeam builds the root team during bootstrap. It always occupies team
// pool slot 0.
func (b *Backend) newWorldTeam() *Team {
	set := activeset.Set{Start: 0, Stride: 1, Size: b.numPEs}
	t := &Team{
		backend: b,
		numPEs:  b.numPEs,
		myPE:    b.myPE,
		group:   b.group,
		slot:    0,
		world:   true,
	}
	t.wrtWorld = &TeamInfo{Base: t, Set: set}
	t.wrtParent = t.wrtWorld
	t.mirror = &TeamMirror{
		Start:  0,
		Stride: 1,
		Size:   int64(b.numPEs),
		NumPEs: int64(b.numPEs),
		MyPE:   int64(b.myPE),
	}
	b.teamBitmask[0] &^= 1 // slot 0 taken
	return t
}

// TeamSplitStrided derives a new team from parent's (start, stride, size)
// active set.
//
// Every PE of the parent team must call this with identical arguments; that
// precondition is documented, not enforced. PEs whose local arguments differ
// can diverge before the collective split and hang or corrupt team state.
//
// The team-pool slot consensus below mutates the shared bitmask without
// locking: concurrent team creation from multiple goroutines of one PE must
// be serialized by the caller.
func (b *Backend) TeamSplitStrided(parent backends.Team, start, stride, size int) (backends.Team, error) {
	if err := b.waitReady(); err != nil {
		return nil, err
	}
	parentTeam, ok := parent.(*Team)
	if !ok || parentTeam == nil {
		return nil, errors.Errorf("cannot split the invalid team")
	}

	// Local validation against the parent's extent: rejected before anything
	// is mutated and before any collective step.
	if start < 0 || start >= parentTeam.numPEs || size < 1 || size > parentTeam.numPEs || stride < 1 {
		return nil, errors.Errorf("invalid active set (start=%d, stride=%d, size=%d) for parent of %d PEs",
			start, stride, size, parentTeam.numPEs)
	}

	// Project the triplet into world coordinates.
	childSet := activeset.Set{Start: start, Stride: stride, Size: size}
	worldSet := childSet.Project(parentTeam.wrtWorld.Set)
	if worldSet.End() >= b.numPEs {
		return nil, errors.Errorf("active set (start=%d, stride=%d, size=%d) projects past the last world PE %d",
			start, stride, size, b.numPEs-1)
	}

	myIdx, member := worldSet.Translate(b.myPE)

	// Every PE of the parent participates in the collective split, members
	// with a shared color, the rest undefined, all keyed by world rank so
	// the new group's ordering is deterministic.
	color := 1
	if !member {
		color = bootstrap.ColorUndefined
	}
	group, err := parentTeam.group.Split(color, b.myPE)
	if err != nil {
		return nil, errors.WithMessage(err, "process group split")
	}
	if !member {
		return nil, nil
	}

	// Members converge on a free team-pool slot: every member ANDs its
	// availability bitmask with the others', and all pick the same lowest
	// free bit. A uniform result is guaranteed by the reduction being
	// deterministic over identical inputs; this is also the sole exhaustion
	// check, so members fail uniformly instead of diverging before the
	// collective steps above.
	reduced, err := group.AllReduceAnd(b.teamBitmask)
	if err != nil {
		return nil, errors.WithMessage(err, "team slot consensus")
	}
	slot := lowestSetBit(reduced)
	if slot < 0 || slot >= b.conf.maxTeams {
		if cerr := group.Close(); cerr != nil {
			klog.Warningf("closing subgroup of failed split: %+v", cerr)
		}
		return nil, errors.Errorf("team pool exhausted: no free slot among %d", b.conf.maxTeams)
	}
	b.teamBitmask[slot/64] &^= 1 << (slot % 64)

	world := b.teamWorld
	t := &Team{
		backend: b,
		numPEs:  size,
		myPE:    myIdx,
		group:   group,
		slot:    slot,
	}
	t.wrtParent = &TeamInfo{Base: parentTeam, Set: childSet}
	t.wrtWorld = &TeamInfo{Base: world, Set: worldSet}
	t.mirror = &TeamMirror{
		Start:  int64(worldSet.Start),
		Stride: int64(worldSet.Stride),
		Size:   int64(worldSet.Size),
		NumPEs: int64(size),
		MyPE:   int64(myIdx),
	}

	b.tracker.track(t)
	b.stats.teamsSplit.Add(1)
	klog.V(1).Infof("PE %d: split team slot=%d world set (start=%d, stride=%d, size=%d), my rank %d",
		b.myPE, slot, worldSet.Start, worldSet.Stride, worldSet.Size, myIdx)
	return t, nil
}

// TeamDestroy releases a team created by TeamSplitStrided. Nil and world
// teams are left alone.
func (b *Backend) TeamDestroy(team backends.Team) error {
	if err := b.waitReady(); err != nil {
		return err
	}
	t, ok := team.(*Team)
	if !ok || t == nil || t.world {
		return nil
	}
	b.tracker.untrack(t)
	return b.destroyTeam(t)
}

// destroyTeam frees the team's pool slot and host subgroup. Used both by
// TeamDestroy and by the finalize sweep.
func (b *Backend) destroyTeam(t *Team) error {
	b.teamBitmask[t.slot/64] |= 1 << (t.slot % 64)
	t.mirror = nil
	err := t.group.Close()
	b.stats.teamsFreed.Add(1)
	return errors.WithMessage(err, "closing team process group")
}

// TeamTranslatePE maps srcPE, a rank within src, to the corresponding rank
// within dst, or -1 when it is not a member of dst.
func (b *Backend) TeamTranslatePE(src backends.Team, srcPE int, dst backends.Team) int {
	srcTeam, ok := src.(*Team)
	if !ok || srcTeam == nil {
		return -1
	}
	dstTeam, ok := dst.(*Team)
	if !ok || dstTeam == nil {
		return -1
	}
	if srcPE < 0 || srcPE >= srcTeam.numPEs {
		return -1
	}
	world := srcTeam.worldPE(srcPE)
	idx, member := dstTeam.wrtWorld.Set.Translate(world)
	if !member {
		return -1
	}
	return idx
}

// lowestSetBit returns the index of the lowest 1 bit across words, or -1.
func lowestSetBit(words []uint64) int {
	for i, w := range words {
		if w != 0 {
			return i*64 + bits.TrailingZeros64(w)
		}
	}
	return -1
}
