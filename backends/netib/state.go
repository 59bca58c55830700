package netib

//go:generate go run github.com/dmarkham/enumer -type=State -trimprefix=State -output=state_enumer.go

// State of the backend bootstrap/teardown machine. Transitions are strictly
// forward; a failed phase aborts instead of leaving the machine parked in an
// intermediate state, so application code can never observe a half-initialized
// backend.
type State int

const (
	StateUninit State = iota
	StateGroupJoined
	StateHeapReady
	StateTransportReady
	StatePoolsReady
	StateDefaultsReady
	StateRunning
	StateFinalizing
	StateDestroyed
)
