package netib

import (
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
)

// Environment variables read once at init. There is no hot-reload: every
// ceiling here is a static capacity decision baked into pool construction.
const (
	// GOSHMEM_HEAP_SIZE is the symmetric heap size, in humanized bytes
	// (e.g. "64MiB"). Must agree on every PE.
	envHeapSize = "GOSHMEM_HEAP_SIZE"

	// GOSHMEM_MAX_NUM_CONTEXTS is the context pool capacity.
	envMaxContexts = "GOSHMEM_MAX_NUM_CONTEXTS"

	// GOSHMEM_MAX_NUM_TEAMS is the team pool capacity, world team included.
	envMaxTeams = "GOSHMEM_MAX_NUM_TEAMS"

	// GOSHMEM_MAX_NUM_PES sizes the sync scratch pools.
	envMaxPEs = "GOSHMEM_MAX_NUM_PES"

	// GOSHMEM_FLUSH_POLICY selects the cache-flush consistency protocol:
	// "host" (polling service goroutine) or "native" (inline device flush).
	envFlushPolicy = "GOSHMEM_FLUSH_POLICY"
)

const (
	defaultHeapSize    = 64 << 20
	defaultMaxContexts = 1024
	defaultMaxTeams    = 40
	defaultMaxPEs      = 256
)

type config struct {
	heapSize    int64
	maxContexts int
	maxTeams    int
	maxPEs      int
	flushPolicy flushPolicy
}

func configFromEnv() (config, error) {
	cfg := config{
		heapSize:    defaultHeapSize,
		maxContexts: defaultMaxContexts,
		maxTeams:    defaultMaxTeams,
		maxPEs:      defaultMaxPEs,
		flushPolicy: flushHostPoll,
	}
	if v := os.Getenv(envHeapSize); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return cfg, errors.Wrapf(err, "parsing %s=%q", envHeapSize, v)
		}
		cfg.heapSize = int64(n)
	}
	var err error
	if cfg.maxContexts, err = intFromEnv(envMaxContexts, cfg.maxContexts); err != nil {
		return cfg, err
	}
	if cfg.maxTeams, err = intFromEnv(envMaxTeams, cfg.maxTeams); err != nil {
		return cfg, err
	}
	if cfg.maxPEs, err = intFromEnv(envMaxPEs, cfg.maxPEs); err != nil {
		return cfg, err
	}
	switch v := os.Getenv(envFlushPolicy); v {
	case "", "host":
		cfg.flushPolicy = flushHostPoll
	case "native":
		cfg.flushPolicy = flushDeviceNative
	default:
		return cfg, errors.Errorf("%s=%q: want \"host\" or \"native\"", envFlushPolicy, v)
	}
	return cfg, nil
}

func intFromEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, errors.Wrapf(err, "parsing %s=%q", name, v)
	}
	if n < 1 {
		return def, errors.Errorf("%s must be positive, got %d", name, n)
	}
	return n, nil
}
