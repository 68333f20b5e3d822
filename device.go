package popcorn

import "github.com/google/uuid"

// DeviceID is a stable, hashable identity for a device. Two handles to the
// same execution context (e.g. two clones of a *cpu.Device) must compare
// equal; two distinct execution contexts must not.
type DeviceID uuid.UUID

// NewDeviceID generates a fresh random device identity.
func NewDeviceID() DeviceID {
	return DeviceID(uuid.New())
}

// String implements fmt.Stringer.
func (d DeviceID) String() string {
	return uuid.UUID(d).String()
}

// Device abstracts an execution context: something that can hand out
// completable events, allocate device-local memory, and move bytes between
// host and device. Concrete implementations live in sub-packages (see
// package cpu for the reference CPU backend); GPU-class backends would
// implement the same interface, with DMA-backed CopyFromHost/CopyToHost
// instead of CPU's memcpy.
//
// Device equality (by ID) drives Buffer's copy-key identity: cloning a
// Device handle must never produce a new logical device. Device embeds
// Scheduler because every device needs some way to run thunks asynchronously
// on its own resources; for the CPU backend this delegates to its worker
// pool.
type Device interface {
	Scheduler

	// ID returns this device's stable identity.
	ID() DeviceID

	// CreateEvent returns a new event that will complete on this device.
	CreateEvent() *Future[struct{}]

	// Allocate reserves size*elementSize bytes of device-local memory,
	// returning the memory handle and a future that resolves once the
	// allocation is ready. For the CPU backend this future is already
	// resolved by the time Allocate returns.
	Allocate(size, elementSize int) (Memory, *Future[Memory])

	// CopyFromHost copies data into mem, returning a future that resolves
	// with the (possibly moved) memory handle once the copy completes.
	CopyFromHost(mem Memory, data []byte) *Future[Memory]

	// CopyToHost copies mem's bytes out into a freshly allocated host slice.
	CopyToHost(mem Memory) *Future[HostCopy]
}

// HostCopy is the result of Device.CopyToHost: the (possibly moved) memory
// handle, paired with the bytes copied out of it.
type HostCopy struct {
	Mem  Memory
	Data []byte
}

// Memory is a device-owned, byte-addressable region backing exactly one
// copy in a Buffer's rawBuffer. Memory is owned by exactly one device at a time;
// there is no aliasing between Memory values.
type Memory interface {
	// Device returns the owning device's identity.
	Device() DeviceID

	// Len returns the length of the region in bytes.
	Len() int

	// ElementSize returns the size, in bytes, of one logical element.
	ElementSize() int
}
