// Package backends defines the interface a goshmem transport backend needs to
// implement, and the registry through which exactly one of them is selected at
// startup.
//
// A backend owns the symmetric heap, the context pool, team bookkeeping and
// the host-device synchronization protocol for one PE. The wire-level RDMA
// protocol and the bootstrap process group are collaborators passed in through
// Config; the backend never crafts verbs or speaks PMI itself.
//
// To simplify error handling at the public API boundary, the shmem package
// converts errors into panics with stack traces. See package
// github.com/gomlx/exceptions. Backends themselves return wrapped errors.
package backends

import (
	"os"
	"strings"

	"github.com/gomlx/exceptions"

	"github.com/goshmem/goshmem/bootstrap"
	"github.com/goshmem/goshmem/transport"
)

//go:generate go run github.com/dmarkham/enumer -type=ReduceOp -trimprefix=Reduce -output=reduceop_enumer.go
//go:generate go run github.com/dmarkham/enumer -type=Compare -trimprefix=Cmp -output=compare_enumer.go

// Config carries everything a backend constructor needs.
type Config struct {
	// Spec is the backend-specific part of the configuration string.
	Spec string

	// Group is the already-joined world process group for this PE.
	Group bootstrap.ProcessGroup

	// Transport is this PE's endpoint into the fabric.
	Transport transport.Transport

	// Async lets the constructor return after the heap and transport are up,
	// finishing pool and default-object construction on a helper goroutine.
	// The backend blocks public operations until the helper signals ready.
	Async bool
}

// Constructor takes a Config and returns a Backend.
type Constructor func(cfg Config) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register a backend constructor under the given name.
//
// To be safe, call Register during initialization of a package. A deployment
// links exactly the backends it wants and typically imports just one.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// DefaultConfig is the backend configuration to use if GOSHMEM_BACKEND is not
// set. See New for the format.
var DefaultConfig string

// GOSHMEM_BACKEND is the environment variable with the default backend
// configuration.
//
// The format is "<backend_name>:<backend_configuration>". "<backend_name>" is
// the name of a registered backend (e.g.: "ib") and "<backend_configuration>"
// is backend specific.
const GOSHMEM_BACKEND = "GOSHMEM_BACKEND"

// New returns a Backend built from cfg, picking the implementation from:
//
// 1. The environment variable GOSHMEM_BACKEND, if set.
// 2. The variable DefaultConfig, if set.
// 3. The first registered backend, with an empty configuration.
//
// It panics if no backend was registered.
func New(cfg Config) (Backend, error) {
	config, found := os.LookupEnv(GOSHMEM_BACKEND)
	if !found {
		config = DefaultConfig
	}
	return NewWithConfig(config, cfg)
}

// NewWithConfig returns a Backend built from cfg using the given
// "<backend_name>:<backend_configuration>" string, ignoring GOSHMEM_BACKEND
// and DefaultConfig.
func NewWithConfig(config string, cfg Config) (Backend, error) {
	if len(registeredConstructors) == 0 {
		exceptions.Panicf(`no registered goshmem backends -- import one, e.g. _ "github.com/goshmem/goshmem/backends/netib"`)
	}
	backendName := firstRegistered
	backendConfig := ""
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	} else if config != "" {
		backendName = config
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		exceptions.Panicf("can't find backend %q for configuration %q", backendName, config)
	}
	cfg.Spec = backendConfig
	return constructor(cfg)
}
