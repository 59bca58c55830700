// Package bootstrap defines the process-group collaborator used to assemble a
// set of processes into a PE group and to run the host-side collectives that
// team construction depends on.
//
// The wire mechanism behind a group (MPI, PMIx, an in-process fabric for
// single-node runs) is out of scope here: backends consume only this interface.
package bootstrap

// ColorUndefined is the split color of a PE that is not a member of the
// subgroup being formed. Such a PE still participates in the Split call (the
// operation is collective over the parent group) but receives a nil group.
const ColorUndefined = -1

// ProcessGroup is an ordered set of cooperating processes.
//
// All collective methods must be called by every member of the group, in the
// same order. Mismatched participation deadlocks; no timeout is imposed here.
type ProcessGroup interface {
	// Rank of the calling process within this group, in [0, Size).
	Rank() int

	// Size is the number of members.
	Size() int

	// Split partitions the group into subgroups of equal color, each ordered
	// by (key, parent rank). Callers passing ColorUndefined participate in the
	// collective but get a nil subgroup.
	Split(color, key int) (ProcessGroup, error)

	// Broadcast replicates root's buf into every member's buf.
	// len(buf) must agree across members.
	Broadcast(root int, buf []byte) error

	// AllReduceAnd bitwise-ANDs words across all members and returns the
	// reduced result to each of them. Used for the team-pool slot consensus.
	AllReduceAnd(words []uint64) ([]uint64, error)

	// Barrier blocks until every member has entered it.
	Barrier() error

	// Abort terminates the entire job, not just the caller. There is no
	// partial-failure mode across independent address spaces.
	Abort(status int)

	// Close releases the group. The world group is closed only at finalize.
	Close() error
}
