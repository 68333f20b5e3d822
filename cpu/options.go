package cpu

import (
	"runtime"
	"time"

	"github.com/joeycumines/go-popcorn"
)

// PoolOption configures a Pool at construction time. The functional-options
// shape (apply onto an unexported config struct, returning nothing) is the
// same one eventloop.LoopOption uses.
type PoolOption interface {
	applyPool(*poolConfig)
}

type poolConfig struct {
	size        int
	idleBackoff time.Duration
	logger      popcorn.Logger
}

func resolvePoolOptions(options []PoolOption) poolConfig {
	cfg := poolConfig{
		size:        runtime.NumCPU(),
		idleBackoff: 50 * time.Microsecond,
		logger:      popcorn.NopLogger(),
	}
	for _, o := range options {
		o.applyPool(&cfg)
	}
	if cfg.size < 1 {
		cfg.size = 1
	}
	return cfg
}

type poolOptionFunc func(*poolConfig)

func (f poolOptionFunc) applyPool(cfg *poolConfig) { f(cfg) }

// WithPoolSize sets the number of worker goroutines. Defaults to
// runtime.NumCPU().
func WithPoolSize(n int) PoolOption {
	return poolOptionFunc(func(cfg *poolConfig) { cfg.size = n })
}

// WithQueueBackoff sets how long an idle worker sleeps between empty
// dequeue attempts. Defaults to 50 microseconds.
func WithQueueBackoff(d time.Duration) PoolOption {
	return poolOptionFunc(func(cfg *poolConfig) { cfg.idleBackoff = d })
}

// WithLogger attaches a structured logger to the pool. Defaults to
// popcorn.NopLogger(). A Device sharing the pool via WithDevicePool does not
// inherit it; a Device's own logger is set with WithDeviceLogger.
func WithLogger(logger popcorn.Logger) PoolOption {
	return poolOptionFunc(func(cfg *poolConfig) { cfg.logger = logger })
}

// DeviceOption configures a Device at construction time.
type DeviceOption interface {
	applyDevice(*deviceConfig)
}

type deviceConfig struct {
	pool   *Pool
	logger popcorn.Logger
}

func resolveDeviceOptions(options []DeviceOption) deviceConfig {
	cfg := deviceConfig{logger: popcorn.NopLogger()}
	for _, o := range options {
		o.applyDevice(&cfg)
	}
	return cfg
}

type deviceOptionFunc func(*deviceConfig)

func (f deviceOptionFunc) applyDevice(cfg *deviceConfig) { f(cfg) }

// WithDevicePool attaches an existing Pool to a new Device instead of
// letting NewDevice build a dedicated one. Multiple devices may legitimately
// share a pool; the original CPU backend's WorkerPool is likewise a
// standalone object a Device merely borrows a reference to.
func WithDevicePool(pool *Pool) DeviceOption {
	return deviceOptionFunc(func(cfg *deviceConfig) { cfg.pool = pool })
}

// WithDeviceLogger attaches a structured logger to a Device.
func WithDeviceLogger(logger popcorn.Logger) DeviceOption {
	return deviceOptionFunc(func(cfg *deviceConfig) { cfg.logger = logger })
}
