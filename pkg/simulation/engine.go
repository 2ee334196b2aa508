package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/log"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
)

const askTimeout = 5 * time.Second

// Engine runs a WorldActor inside its own actor system.
type Engine struct {
	System     actor.ActorSystem
	worldPID   *actor.PID
	snapshotCh chan *Snapshot
	cfg        *Config
}

type engineOptions struct {
	logger    log.Logger
	open      BackendOpener
	snapshots int
}

// EngineOption customizes NewEngine.
type EngineOption func(*engineOptions)

// WithLogger sets the actor system logger. The default is Config.Logger().
func WithLogger(l log.Logger) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

// WithBackendOpener replaces OpenBackend.
func WithBackendOpener(open BackendOpener) EngineOption {
	return func(o *engineOptions) { o.open = open }
}

// WithSnapshots enables the snapshot channel with room for n frames.
func WithSnapshots(n int) EngineOption {
	return func(o *engineOptions) { o.snapshots = n }
}

// NewEngine starts the actor system and spawns the world.
func NewEngine(ctx context.Context, cfg *Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := engineOptions{logger: cfg.Logger()}
	for _, opt := range opts {
		opt(&o)
	}

	system, err := actor.NewActorSystem("FloxWorld",
		actor.WithLogger(o.logger),
		actor.WithActorInitMaxRetries(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create actor system: %w", err)
	}
	if err := system.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start actor system: %w", err)
	}

	e := &Engine{System: system, cfg: cfg}
	var sink chan<- *Snapshot
	if o.snapshots > 0 {
		e.snapshotCh = make(chan *Snapshot, o.snapshots)
		sink = e.snapshotCh
	}
	e.worldPID, err = system.Spawn(ctx, "world", NewWorldActor(cfg, o.open, sink))
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to spawn world: %w", err), system.Stop(ctx))
	}
	return e, nil
}

// Config returns the settings the world was started with.
func (e *Engine) Config() *Config {
	return e.cfg
}

// Advance queues one frame of dt without waiting for it.
func (e *Engine) Advance(ctx context.Context, dt time.Duration) error {
	return actor.Tell(ctx, e.worldPID, Tick(dt))
}

// Step advances one frame of dt and waits for its Stats.
func (e *Engine) Step(ctx context.Context, dt time.Duration) (Stats, error) {
	if err := e.Advance(ctx, dt); err != nil {
		return Stats{}, err
	}
	return e.checked(ctx)
}

// SetAlgorithm switches the world to kind. On failure the previous strategy stays.
func (e *Engine) SetAlgorithm(ctx context.Context, kind algorithm.Kind) (Stats, error) {
	if err := actor.Tell(ctx, e.worldPID, SwitchAlgorithm(kind)); err != nil {
		return Stats{}, err
	}
	return e.checked(ctx)
}

// Resize changes the population to n boids.
func (e *Engine) Resize(ctx context.Context, n uint32) (Stats, error) {
	if err := actor.Tell(ctx, e.worldPID, ResizeFlock(n)); err != nil {
		return Stats{}, err
	}
	return e.checked(ctx)
}

// Stats asks the world how it is doing. The mailbox is ordered, so the answer
// reflects every message sent before.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	reply, err := actor.Ask(ctx, e.worldPID, StatsRequest(), askTimeout)
	if err != nil {
		return Stats{}, fmt.Errorf("asking world for stats: %w", err)
	}
	st, ok := reply.(*structpb.Struct)
	if !ok {
		return Stats{}, fmt.Errorf("unexpected stats reply %T", reply)
	}
	return statsFromStruct(st), nil
}

// checked returns the Stats, turning a failure reported by the world into an error.
func (e *Engine) checked(ctx context.Context) (Stats, error) {
	s, err := e.Stats(ctx)
	if err != nil {
		return s, err
	}
	if s.Err != "" {
		return s, errors.New(s.Err)
	}
	return s, nil
}

// Snapshots returns the channel frames are pushed to, nil without WithSnapshots.
func (e *Engine) Snapshots() <-chan *Snapshot {
	return e.snapshotCh
}

// Stop shuts the world and the actor system down.
func (e *Engine) Stop(ctx context.Context) error {
	return e.System.Stop(ctx)
}
