// Package gpu describes the compute device the GPUCompute algorithm drives, and provides
// a software device running the same kernel on goroutines.
//
// A device owns two persistently mapped storage buffers sized for the flock: the host
// writes the previous frame into the read buffer, the kernel writes one boid per
// invocation into the write buffer, and a fence tells the host when the write buffer
// can be copied back.
package gpu

import (
	"errors"
	"time"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

var (
	// ErrClosed is returned by every Backend method called after Close.
	ErrClosed = errors.New("gpu backend is closed")
	// ErrNoDispatch is returned by Wait and Download when no kernel was dispatched.
	ErrNoDispatch = errors.New("no compute dispatch in flight")
	// ErrCapacity is returned when a transfer is larger than the reserved buffers.
	ErrCapacity = errors.New("transfer exceeds reserved gpu buffer capacity")
	// ErrUnsupported is returned when the binary was built without a real device.
	ErrUnsupported = errors.New("gpu compute not supported by this build")
)

// Status is the outcome of waiting on a fence.
type Status int

const (
	Signaled Status = iota
	TimedOut
)

func (s Status) String() string {
	if s == Signaled {
		return "signaled"
	}
	return "timed out"
}

// Uniforms are the per dispatch constants of the kernel.
type Uniforms struct {
	Delta  float32
	World  geometry.Rectangle
	Params behavior.Params
}

// Backend is a compute device holding the flock in mapped buffers.
// Methods are not safe for concurrent use.
type Backend interface {
	// Name identifies the device in logs.
	Name() string
	// EnsureCapacity grows both buffers to hold at least n boids, recreating their mappings.
	EnsureCapacity(n int) error
	// Upload copies the previous frame into the read buffer and makes it visible to the device.
	Upload(read []behavior.Boid) error
	// Dispatch starts one kernel invocation per boid and arms a fence behind it.
	Dispatch(u Uniforms, n int) error
	// Wait blocks until the fence signals or timeout elapses.
	Wait(timeout time.Duration) (Status, error)
	// Download copies the write buffer back once the fence has signaled.
	Download(write []behavior.Boid) error
	// Close unmaps and releases the buffers.
	Close() error
}

// Kernel is the body of one compute invocation: the all pairs update of boid i.
func Kernel(i int, read, write []behavior.Boid, u Uniforms) {
	write[i] = u.Params.NextAllPairs(i, read, u.World, u.Delta)
}
