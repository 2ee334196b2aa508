//go:build gl

// Package glcompute runs the flock kernel as an OpenGL 4.5 compute shader.
//
// The device creates a hidden GLFW window to own its context. OpenGL calls must all
// come from the thread the context is current on, so the device runs them on one
// locked goroutine and every method hands its work over and waits for it. GLFW
// wants that thread to be the main one on macOS, which this package does not handle.
package glcompute

import (
	_ "embed"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"
	"unsafe"

	"github.com/go-gl/gl/v4.5-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu"
)

//go:embed shaders/flock.comp
var computeSource string

const (
	boidSize  = int(unsafe.Sizeof(behavior.Boid{}))
	localSize = 64
)

var uniformNames = []string{
	"u_count", "u_delta", "u_bounds_center", "u_bounds_size", "u_scale",
	"u_max_speed", "u_max_force", "u_cohesive_radius", "u_disruptive_radius",
	"u_soft_bound", "u_hard_bound",
	"u_containment_weight", "u_cruise_weight", "u_separation_weight",
	"u_alignment_weight", "u_cohesion_weight",
}

// mappedBuffer is a persistently mapped shader storage buffer.
// release always unmaps before deleting the buffer object.
type mappedBuffer struct {
	id       uint32
	ptr      unsafe.Pointer
	capacity int
}

func newMappedBuffer(n int, storage, access uint32) (*mappedBuffer, error) {
	b := &mappedBuffer{capacity: n}
	gl.CreateBuffers(1, &b.id)
	gl.NamedBufferStorage(b.id, n*boidSize, nil, storage)
	b.ptr = gl.MapNamedBufferRange(b.id, 0, n*boidSize, access)
	if b.ptr == nil {
		b.release()
		return nil, fmt.Errorf("mapping storage buffer of %d boids failed (gl error 0x%x)", n, gl.GetError())
	}
	return b, nil
}

func (b *mappedBuffer) boids(n int) []behavior.Boid {
	return unsafe.Slice((*behavior.Boid)(b.ptr), n)
}

func (b *mappedBuffer) release() {
	if b == nil {
		return
	}
	if b.ptr != nil {
		gl.UnmapNamedBuffer(b.id)
		b.ptr = nil
	}
	if b.id != 0 {
		gl.DeleteBuffers(1, &b.id)
		b.id = 0
	}
}

// Device is a gpu.Backend backed by an OpenGL 4.5 context.
type Device struct {
	window   *glfw.Window
	program  uint32
	uniforms map[string]int32

	read, write *mappedBuffer
	capacity    int

	fence    uintptr
	count    int
	signaled bool
	closed   bool

	mu      sync.Mutex
	stopped bool
	calls   chan func()
	done    chan struct{}
}

// do runs f on the context thread and waits for it. It reports false once the
// device is closed.
func (d *Device) do(f func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return false
	}
	finished := make(chan struct{})
	d.calls <- func() {
		defer close(finished)
		f()
	}
	<-finished
	return true
}

func (d *Device) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(d.done)

	if err := d.init(); err != nil {
		ready <- err
		return
	}
	ready <- nil
	for f := range d.calls {
		f()
	}
}

// New creates the context, compiles the kernel and returns the device.
func New() (gpu.Backend, error) {
	d := &Device{
		uniforms: make(map[string]int32, len(uniformNames)),
		calls:    make(chan func()),
		done:     make(chan struct{}),
	}
	ready := make(chan error, 1)
	go d.loop(ready)
	if err := <-ready; err != nil {
		<-d.done
		return nil, err
	}
	return d, nil
}

func (d *Device) init() error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initializing glfw: %w", err)
	}
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 5)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	window, err := glfw.CreateWindow(1, 1, "flox compute", nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("creating opengl 4.5 context: %w", err)
	}
	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return fmt.Errorf("loading opengl functions: %w", err)
	}

	program, err := compileProgram(computeSource)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return err
	}
	d.window, d.program = window, program
	for _, name := range uniformNames {
		d.uniforms[name] = gl.GetUniformLocation(program, gl.Str(name+"\x00"))
	}
	return nil
}

func compileProgram(source string) (uint32, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)
	defer gl.DeleteShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		return 0, fmt.Errorf("compiling compute shader: %v", strings.TrimRight(log, "\x00"))
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("linking compute program: %v", strings.TrimRight(log, "\x00"))
	}
	return program, nil
}

func (d *Device) name() string {
	return "opengl " + gl.GoStr(gl.GetString(gl.RENDERER))
}

func (d *Device) ensureCapacity(n int) error {
	if d.closed {
		return gpu.ErrClosed
	}
	if n <= d.capacity {
		return nil
	}
	d.dropFence()
	d.read.release()
	d.write.release()
	d.read, d.write, d.capacity = nil, nil, 0

	read, err := newMappedBuffer(n,
		gl.MAP_WRITE_BIT|gl.MAP_PERSISTENT_BIT,
		gl.MAP_WRITE_BIT|gl.MAP_PERSISTENT_BIT|gl.MAP_FLUSH_EXPLICIT_BIT)
	if err != nil {
		return fmt.Errorf("read buffer: %w", err)
	}
	write, err := newMappedBuffer(n,
		gl.MAP_READ_BIT|gl.MAP_PERSISTENT_BIT|gl.CLIENT_STORAGE_BIT,
		gl.MAP_READ_BIT|gl.MAP_PERSISTENT_BIT)
	if err != nil {
		read.release()
		return fmt.Errorf("write buffer: %w", err)
	}
	d.read, d.write, d.capacity = read, write, n
	return nil
}

func (d *Device) upload(read []behavior.Boid) error {
	if d.closed {
		return gpu.ErrClosed
	}
	if len(read) > d.capacity {
		return fmt.Errorf("%w: upload of %d boids, capacity %d", gpu.ErrCapacity, len(read), d.capacity)
	}
	if len(read) == 0 {
		return nil
	}
	copy(d.read.boids(len(read)), read)
	gl.FlushMappedNamedBufferRange(d.read.id, 0, len(read)*boidSize)
	gl.MemoryBarrier(gl.CLIENT_MAPPED_BUFFER_BARRIER_BIT)
	return nil
}

func (d *Device) dispatch(u gpu.Uniforms, n int) error {
	if d.closed {
		return gpu.ErrClosed
	}
	if n > d.capacity {
		return fmt.Errorf("%w: dispatch of %d invocations, capacity %d", gpu.ErrCapacity, n, d.capacity)
	}
	d.dropFence()

	var previous int32
	gl.GetIntegerv(gl.CURRENT_PROGRAM, &previous)
	gl.UseProgram(d.program)
	if n > 0 {
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 0, d.write.id)
		gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 1, d.read.id)
	}

	p := u.Params
	gl.Uniform1ui(d.uniforms["u_count"], uint32(n))
	gl.Uniform1f(d.uniforms["u_delta"], u.Delta)
	gl.Uniform2f(d.uniforms["u_bounds_center"], u.World.Center.X, u.World.Center.Y)
	gl.Uniform2f(d.uniforms["u_bounds_size"], u.World.Size.X, u.World.Size.Y)
	gl.Uniform1f(d.uniforms["u_scale"], p.Scale)
	gl.Uniform1f(d.uniforms["u_max_speed"], p.MaxSpeed)
	gl.Uniform1f(d.uniforms["u_max_force"], p.MaxForce)
	gl.Uniform1f(d.uniforms["u_cohesive_radius"], p.CohesiveRadius)
	gl.Uniform1f(d.uniforms["u_disruptive_radius"], p.DisruptiveRadius)
	gl.Uniform1f(d.uniforms["u_soft_bound"], p.SoftBound)
	gl.Uniform1f(d.uniforms["u_hard_bound"], p.HardBound)
	gl.Uniform1f(d.uniforms["u_containment_weight"], p.Weights.Containment)
	gl.Uniform1f(d.uniforms["u_cruise_weight"], p.Weights.Cruise)
	gl.Uniform1f(d.uniforms["u_separation_weight"], p.Weights.Separation)
	gl.Uniform1f(d.uniforms["u_alignment_weight"], p.Weights.Alignment)
	gl.Uniform1f(d.uniforms["u_cohesion_weight"], p.Weights.Cohesion)

	if n > 0 {
		gl.DispatchCompute(uint32((n+localSize-1)/localSize), 1, 1)
	}
	gl.MemoryBarrier(gl.CLIENT_MAPPED_BUFFER_BARRIER_BIT)
	d.fence = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	d.count = n
	d.signaled = false
	gl.UseProgram(uint32(previous))
	return nil
}

func (d *Device) wait(timeout time.Duration) (gpu.Status, error) {
	if d.closed {
		return gpu.TimedOut, gpu.ErrClosed
	}
	if d.fence == 0 {
		return gpu.TimedOut, gpu.ErrNoDispatch
	}
	switch gl.ClientWaitSync(d.fence, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(timeout.Nanoseconds())) {
	case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
		d.signaled = true
		return gpu.Signaled, nil
	case gl.TIMEOUT_EXPIRED:
		return gpu.TimedOut, nil
	default:
		return gpu.TimedOut, fmt.Errorf("waiting on compute fence failed (gl error 0x%x)", gl.GetError())
	}
}

func (d *Device) download(write []behavior.Boid) error {
	if d.closed {
		return gpu.ErrClosed
	}
	if d.fence == 0 || !d.signaled {
		return fmt.Errorf("download before the fence signaled: %w", gpu.ErrNoDispatch)
	}
	if d.count == 0 {
		return nil
	}
	copy(write, d.write.boids(min(d.count, len(write))))
	return nil
}

func (d *Device) close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.dropFence()
	d.read.release()
	d.write.release()
	gl.DeleteProgram(d.program)
	d.window.Destroy()
	glfw.Terminate()
	return nil
}

func (d *Device) dropFence() {
	if d.fence != 0 {
		gl.DeleteSync(d.fence)
		d.fence = 0
	}
}

// Name implements gpu.Backend.
func (d *Device) Name() string {
	name := "opengl (closed)"
	d.do(func() { name = d.name() })
	return name
}

// EnsureCapacity implements gpu.Backend.
func (d *Device) EnsureCapacity(n int) error {
	err := gpu.ErrClosed
	d.do(func() { err = d.ensureCapacity(n) })
	return err
}

// Upload implements gpu.Backend.
func (d *Device) Upload(read []behavior.Boid) error {
	err := gpu.ErrClosed
	d.do(func() { err = d.upload(read) })
	return err
}

// Dispatch implements gpu.Backend.
func (d *Device) Dispatch(u gpu.Uniforms, n int) error {
	err := gpu.ErrClosed
	d.do(func() { err = d.dispatch(u, n) })
	return err
}

// Wait implements gpu.Backend.
func (d *Device) Wait(timeout time.Duration) (gpu.Status, error) {
	status, err := gpu.TimedOut, gpu.ErrClosed
	d.do(func() { status, err = d.wait(timeout) })
	return status, err
}

// Download implements gpu.Backend.
func (d *Device) Download(write []behavior.Boid) error {
	err := gpu.ErrClosed
	d.do(func() { err = d.download(write) })
	return err
}

// Close implements gpu.Backend. The context thread exits afterwards.
func (d *Device) Close() error {
	var err error
	if !d.do(func() { err = d.close() }) {
		return nil
	}
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.calls)
	}
	d.mu.Unlock()
	<-d.done
	return err
}
