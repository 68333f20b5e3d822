package cpu

import "github.com/joeycumines/go-popcorn"

// Memory is a CPU-backed popcorn.Memory: a plain host byte slice standing
// in for "device-local" storage, since the CPU is its own host.
type Memory struct {
	device      popcorn.DeviceID
	data        []byte
	elementSize int
}

var _ popcorn.Memory = (*Memory)(nil)

func (m *Memory) Device() popcorn.DeviceID { return m.device }
func (m *Memory) Len() int                 { return len(m.data) }
func (m *Memory) ElementSize() int         { return m.elementSize }
