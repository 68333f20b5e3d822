package cpu

import (
	"github.com/joeycumines/go-popcorn"
)

// Device is the reference CPU backend: "device-local" memory is ordinary
// host memory. Host copies are thunks dispatched onto the device's worker
// Pool and Allocate returns an already-resolved future, so both are exposed
// through the same future-returning interface as any other backend.
type Device struct {
	id     popcorn.DeviceID
	pool   *Pool
	logger popcorn.Logger
	owns   bool
}

var _ popcorn.Device = (*Device)(nil)

// NewDevice builds a CPU device. By default it starts a dedicated Pool
// (see WithPoolSize et al via NewPool's own options, applied through
// WithDevicePool if the caller wants to share one); pass WithDevicePool to
// attach to an existing Pool instead, e.g. to run several devices over one
// shared worker set.
func NewDevice(options ...DeviceOption) *Device {
	cfg := resolveDeviceOptions(options)
	pool := cfg.pool
	owns := false
	if pool == nil {
		pool = NewPool(WithLogger(cfg.logger))
		owns = true
	}
	return &Device{
		id:     popcorn.NewDeviceID(),
		pool:   pool,
		logger: cfg.logger,
		owns:   owns,
	}
}

// ID implements popcorn.Device.
func (d *Device) ID() popcorn.DeviceID { return d.id }

// Spawn implements popcorn.Scheduler by delegating to the device's pool.
func (d *Device) Spawn(f func()) { d.pool.Spawn(f) }

// Close shuts down the device's pool, if this Device created it rather
// than borrowing one via WithDevicePool.
func (d *Device) Close() {
	if d.owns {
		d.pool.Close()
	}
}

// CreateEvent implements popcorn.Device.
func (d *Device) CreateEvent() *popcorn.Future[struct{}] {
	return d.pool.CreateEvent().Future()
}

func recoverAsError[T any](e *Event[T]) {
	if r := recover(); r != nil {
		var zero T
		e.Complete(zero, popcorn.NewError(popcorn.KindPanic, "panic in cpu worker"))
	}
}

// Allocate implements popcorn.Device. The CPU backend allocates
// synchronously: the returned future is already resolved by the time
// Allocate returns, matching the reference implementation's allocation
// path (no pool dispatch needed for a plain host make()).
func (d *Device) Allocate(size, elementSize int) (popcorn.Memory, *popcorn.Future[popcorn.Memory]) {
	mem := &Memory{device: d.id, data: make([]byte, size*elementSize), elementSize: elementSize}
	return mem, popcorn.Resolved[popcorn.Memory](mem)
}

// CopyFromHost implements popcorn.Device: copies data into mem's backing
// slice, reallocating if the incoming payload is larger.
func (d *Device) CopyFromHost(mem popcorn.Memory, data []byte) *popcorn.Future[popcorn.Memory] {
	cm, ok := mem.(*Memory)
	if !ok {
		return popcorn.Failed[popcorn.Memory](popcorn.ErrInvalidDevice)
	}
	event := newEvent[popcorn.Memory](d.pool)
	d.pool.Spawn(func() {
		defer recoverAsError(event)
		if len(cm.data) != len(data) {
			cm.data = make([]byte, len(data))
		}
		copy(cm.data, data)
		event.Complete(cm, nil)
	})
	return event.Future()
}

// CopyToHost implements popcorn.Device: copies mem's bytes out into a fresh
// host-owned slice.
func (d *Device) CopyToHost(mem popcorn.Memory) *popcorn.Future[popcorn.HostCopy] {
	cm, ok := mem.(*Memory)
	if !ok {
		return popcorn.Failed[popcorn.HostCopy](popcorn.ErrInvalidDevice)
	}
	event := newEvent[popcorn.HostCopy](d.pool)
	d.pool.Spawn(func() {
		defer recoverAsError(event)
		out := make([]byte, len(cm.data))
		copy(out, cm.data)
		event.Complete(popcorn.HostCopy{Mem: cm, Data: out}, nil)
	})
	return event.Future()
}
