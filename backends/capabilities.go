package backends

// Capabilities describes the fixed-at-init resource ceilings and feature
// choices of a backend instance. There is no hot-reload: these are decided
// once, before the first context is handed out.
type Capabilities struct {
	// MaxContexts is the context pool capacity.
	MaxContexts int

	// MaxTeams is the team pool capacity, counting the world team.
	MaxTeams int

	// MaxPEs is the ceiling the sync scratch pools are sized for.
	MaxPEs int

	// NativeCacheFlush is true when the platform flushes device caches with
	// a device-native instruction, with no host service thread.
	NativeCacheFlush bool

	// RemoteAtomics is true when the transport executes atomics remotely
	// rather than emulating them through the host.
	RemoteAtomics bool
}
