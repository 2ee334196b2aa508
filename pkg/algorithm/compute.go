package algorithm

import (
	"fmt"
	"strings"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu"
)

// TimeoutPolicy decides what a frame does when the compute fence does not signal in time.
type TimeoutPolicy int

const (
	// DropFrame repeats the previous frame: the read slot is copied into the write slot.
	DropFrame TimeoutPolicy = iota
	// Retry waits on the same fence up to Config.Retries more times, then drops the frame.
	Retry
	// FallbackCPU computes the frame with the all pairs CPU loop.
	FallbackCPU
)

var policyNames = [...]string{
	DropFrame:   "drop",
	Retry:       "retry",
	FallbackCPU: "fallback",
}

// String implements fmt.Stringer.
func (p TimeoutPolicy) String() string {
	if p < 0 || int(p) >= len(policyNames) {
		return fmt.Sprintf("TimeoutPolicy(%d)", int(p))
	}
	return policyNames[p]
}

// ParsePolicy converts a name produced by TimeoutPolicy.String back into a policy.
func ParsePolicy(name string) (TimeoutPolicy, error) {
	for i, n := range policyNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return TimeoutPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown timeout policy %q", ErrInvalidConfig, name)
}

// ComputeStats counts how the fences of a Compute strategy went.
type ComputeStats struct {
	Frames    uint64
	Timeouts  uint64
	Retries   uint64
	Dropped   uint64
	Fallbacks uint64
}

// Compute hands the whole frame to a gpu.Backend running the all pairs kernel.
type Compute struct {
	backend gpu.Backend
	world   geometry.Rectangle
	params  behavior.Params
	cfg     Config
	logger  log.Logger
	stats   ComputeStats
}

// NewCompute returns the gpu strategy driving cfg.Backend.
func NewCompute(cfg Config) (*Compute, error) {
	if cfg.Backend == nil {
		return nil, ErrNoBackend
	}
	return &Compute{
		backend: cfg.Backend,
		world:   cfg.World,
		params:  cfg.Params,
		cfg:     cfg,
		logger:  cfg.logger(),
	}, nil
}

// Update implements Algorithm.
func (c *Compute) Update(boids *Boids, dt float32) error {
	if err := checkDelta(dt); err != nil {
		return err
	}
	read, write := boids.Read(), boids.Write()
	n := len(read)
	c.stats.Frames++

	if err := c.backend.EnsureCapacity(n); err != nil {
		return fmt.Errorf("reserving %d boids on %s: %w", n, c.backend.Name(), err)
	}
	if err := c.backend.Upload(read); err != nil {
		return fmt.Errorf("uploading frame to %s: %w", c.backend.Name(), err)
	}
	u := gpu.Uniforms{Delta: dt, World: c.world, Params: c.params}
	if err := c.backend.Dispatch(u, n); err != nil {
		return fmt.Errorf("dispatching kernel on %s: %w", c.backend.Name(), err)
	}

	status, err := c.backend.Wait(c.cfg.Timeout)
	for attempt := 0; err == nil && status == gpu.TimedOut && c.cfg.Policy == Retry && attempt < c.cfg.Retries; attempt++ {
		c.stats.Retries++
		status, err = c.backend.Wait(c.cfg.Timeout)
	}
	if err != nil {
		return fmt.Errorf("waiting on %s: %w", c.backend.Name(), err)
	}
	if status == gpu.Signaled {
		if err := c.backend.Download(write); err != nil {
			return fmt.Errorf("downloading frame from %s: %w", c.backend.Name(), err)
		}
		return nil
	}

	c.stats.Timeouts++
	if c.cfg.Policy == FallbackCPU {
		c.stats.Fallbacks++
		c.logger.Warnf("%s fence timed out after %v, computing frame %d on the cpu", c.backend.Name(), c.cfg.Timeout, c.stats.Frames)
		stepAllPairs(c.params, c.world, read, write, dt)
		return nil
	}
	c.stats.Dropped++
	c.logger.Warnf("%s fence timed out after %v, dropping frame %d (%d dropped so far)", c.backend.Name(), c.cfg.Timeout, c.stats.Frames, c.stats.Dropped)
	copy(write, read)
	return nil
}

// Stats returns the fence counters.
func (c *Compute) Stats() ComputeStats {
	return c.stats
}

// Close releases the backend.
func (c *Compute) Close() error {
	return c.backend.Close()
}
