package gpu

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
)

// Emulator is a Backend that keeps its "device" buffers in host memory and runs the
// kernel on a pool of goroutines. It is used where no OpenGL 4.5 context is available
// and to exercise the fence handling of GPUCompute.
type Emulator struct {
	// Latency delays the fence of every dispatch, to emulate a slow device.
	Latency time.Duration
	// Workers bounds the goroutines running invocations; 0 means GOMAXPROCS.
	Workers int

	mu       sync.Mutex
	read     *mapping
	write    *mapping
	capacity int
	fence    chan struct{}
	count    int
	closed   bool
}

// mapping stands for a persistently mapped buffer. Unmap must run before the memory is dropped.
type mapping struct {
	data   []behavior.Boid
	mapped bool
}

func newMapping(n int) *mapping {
	return &mapping{data: make([]behavior.Boid, n), mapped: true}
}

func (m *mapping) slice(n int) []behavior.Boid {
	if m == nil {
		return nil
	}
	return m.data[:n]
}

func (m *mapping) unmap() {
	if m == nil {
		return
	}
	m.mapped = false
	m.data = nil
}

// NewEmulator returns an emulated device with no reserved capacity.
func NewEmulator() *Emulator {
	return &Emulator{}
}

// Name implements Backend.
func (e *Emulator) Name() string {
	return "emulator"
}

// Capacity returns the number of boids both buffers can hold.
func (e *Emulator) Capacity() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.capacity
}

// EnsureCapacity implements Backend.
func (e *Emulator) EnsureCapacity(n int) error {
	if err := e.settle(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n <= e.capacity {
		return nil
	}
	e.read.unmap()
	e.write.unmap()
	e.read, e.write = newMapping(n), newMapping(n)
	e.capacity = n
	return nil
}

// Upload implements Backend. It waits for a kernel still running from a timed out
// frame so host writes never overlap device reads.
func (e *Emulator) Upload(read []behavior.Boid) error {
	if err := e.settle(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(read) > e.capacity {
		return fmt.Errorf("%w: upload of %d boids, capacity %d", ErrCapacity, len(read), e.capacity)
	}
	copy(e.read.slice(len(read)), read)
	return nil
}

// Dispatch implements Backend.
func (e *Emulator) Dispatch(u Uniforms, n int) error {
	if err := e.settle(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if n > e.capacity {
		return fmt.Errorf("%w: dispatch of %d invocations, capacity %d", ErrCapacity, n, e.capacity)
	}

	fence := make(chan struct{})
	e.fence, e.count = fence, n
	read, write := e.read.slice(n), e.write.slice(n)
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	latency := e.Latency

	go func() {
		defer close(fence)
		start := time.Now()
		runKernel(read, write, u, workers)
		if rest := latency - time.Since(start); rest > 0 {
			time.Sleep(rest)
		}
	}()
	return nil
}

func runKernel(read, write []behavior.Boid, u Uniforms, workers int) {
	var g errgroup.Group
	g.SetLimit(workers)
	chunk := (len(read) + workers - 1) / workers
	for lo := 0; lo < len(read); lo += chunk {
		hi := min(lo+chunk, len(read))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				Kernel(i, read, write, u)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Wait implements Backend.
func (e *Emulator) Wait(timeout time.Duration) (Status, error) {
	e.mu.Lock()
	fence, closed := e.fence, e.closed
	e.mu.Unlock()
	if closed {
		return TimedOut, ErrClosed
	}
	if fence == nil {
		return TimedOut, ErrNoDispatch
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-fence:
		return Signaled, nil
	case <-timer.C:
		return TimedOut, nil
	}
}

// Download implements Backend.
func (e *Emulator) Download(write []behavior.Boid) error {
	e.mu.Lock()
	fence, n, closed := e.fence, e.count, e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if fence == nil {
		return ErrNoDispatch
	}
	select {
	case <-fence:
	default:
		return fmt.Errorf("download before the fence signaled: %w", ErrNoDispatch)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	copy(write, e.write.slice(min(n, len(write))))
	return nil
}

// Close implements Backend. A running kernel is allowed to finish before the buffers are unmapped.
func (e *Emulator) Close() error {
	e.mu.Lock()
	fence := e.fence
	e.mu.Unlock()
	if fence != nil {
		<-fence
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.read.unmap()
	e.write.unmap()
	e.read, e.write, e.capacity = nil, nil, 0
	return nil
}

// settle blocks until no kernel is running and reports whether the device is still open.
func (e *Emulator) settle() error {
	e.mu.Lock()
	fence, closed := e.fence, e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if fence != nil {
		<-fence
	}
	return nil
}
