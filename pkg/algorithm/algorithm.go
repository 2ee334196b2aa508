// Package algorithm contains the per-frame flock update strategies.
//
// Every strategy reads the previous frame from DoubleBuffer.Read, writes the full new
// state of every boid into DoubleBuffer.Write and leaves publishing (Swap or Flip) to the
// caller. The strategies differ only in how neighbors are found and where the work runs.
package algorithm

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/buffer"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu"
	"github.com/lao-tseu-is-alive/go-flox/pkg/quadtree"
)

var (
	// ErrInvalidDelta is returned when the frame delta is not a finite positive number.
	ErrInvalidDelta = errors.New("frame delta must be finite and positive")
	// ErrUnknownKind is returned by ParseKind and New for an unsupported algorithm name.
	ErrUnknownKind = errors.New("unknown algorithm kind")
	// ErrNoBackend is returned by New when GPUCompute is requested without a device.
	ErrNoBackend = errors.New("compute algorithm needs a gpu backend")
	// ErrInvalidConfig wraps every configuration problem reported by Config.Validate.
	ErrInvalidConfig = errors.New("invalid algorithm config")
)

// Boids is the state container every algorithm works on.
type Boids = buffer.DoubleBuffer[behavior.Boid]

// Algorithm advances a flock by one frame.
type Algorithm interface {
	Update(boids *Boids, dt float32) error
}

// TreeAlgorithm is implemented by the strategies that index the flock in a quadtree.
// The tree is only valid to read between two updates.
type TreeAlgorithm interface {
	Algorithm
	Tree() *quadtree.Quadtree[int32]
}

// Kind names one of the available strategies.
type Kind int

const (
	DirectLoop Kind = iota
	QuadtreeSingle
	QuadtreeMulti
	GPUCompute
)

var kindNames = [...]string{
	DirectLoop:     "direct",
	QuadtreeSingle: "quadtree",
	QuadtreeMulti:  "threaded",
	GPUCompute:     "compute",
}

// Kinds lists every strategy in declaration order.
func Kinds() []Kind {
	return []Kind{DirectLoop, QuadtreeSingle, QuadtreeMulti, GPUCompute}
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a name produced by Kind.String back into a Kind. Case is ignored.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Config gathers what the strategies need besides the flock itself.
type Config struct {
	World       geometry.Rectangle
	Params      behavior.Params
	Tree        quadtree.Config
	ThreadCount int

	// Backend, Timeout, Policy and Retries are only used by GPUCompute.
	Backend gpu.Backend
	Timeout time.Duration
	Policy  TimeoutPolicy
	Retries int

	Logger log.Logger
}

// DefaultConfig returns a 400x400 world centered on the origin, the default
// behavior, 4 threads and an 8ms fence timeout that drops late frames.
func DefaultConfig() Config {
	return Config{
		World:       geometry.NewRectangle(geometry.Vector2D{}, geometry.Vector2D{X: 200, Y: 200}),
		Params:      behavior.DefaultParams(),
		Tree:        quadtree.DefaultConfig(),
		ThreadCount: 4,
		Timeout:     8 * time.Millisecond,
		Policy:      DropFrame,
		Retries:     2,
		Logger:      log.DiscardLogger,
	}
}

// Validate reports the first inconsistency found in c.
func (c Config) Validate() error {
	if c.World.Size.X <= 0 || c.World.Size.Y <= 0 {
		return fmt.Errorf("%w: world %v has no area", ErrInvalidConfig, c.World)
	}
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Tree.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ThreadCount < 1 {
		return fmt.Errorf("%w: thread count %d must be at least 1", ErrInvalidConfig, c.ThreadCount)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: fence timeout %v must be positive", ErrInvalidConfig, c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries %d must not be negative", ErrInvalidConfig, c.Retries)
	}
	return nil
}

func (c Config) logger() log.Logger {
	if c.Logger == nil {
		return log.DiscardLogger
	}
	return c.Logger
}

// New builds the strategy named by kind.
func New(kind Kind, cfg Config) (Algorithm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch kind {
	case DirectLoop:
		return NewDirect(cfg), nil
	case QuadtreeSingle:
		return NewQuadtree(cfg)
	case QuadtreeMulti:
		return NewThreaded(cfg)
	case GPUCompute:
		return NewCompute(cfg)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}

func checkDelta(dt float32) error {
	if !(dt > 0) || math.IsInf(float64(dt), 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidDelta, dt)
	}
	return nil
}
