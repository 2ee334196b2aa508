package simulation

import (
	"fmt"
	"time"

	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu"
	"github.com/lao-tseu-is-alive/go-flox/pkg/gpu/glcompute"
)

// BackendOpener creates the compute device the first time the compute strategy is selected.
type BackendOpener func(name string) (gpu.Backend, error)

// OpenBackend opens the device named by Config.ComputeBackend.
func OpenBackend(name string) (gpu.Backend, error) {
	switch name {
	case BackendEmulator:
		return gpu.NewEmulator(), nil
	case BackendOpenGL:
		return glcompute.New()
	}
	return nil, fmt.Errorf("%w: unknown compute backend %q", ErrInvalidConfig, name)
}

// WorldActor owns the flock and the strategy updating it. Every frame goes through
// its mailbox, so the flock is never touched by two goroutines at once.
type WorldActor struct {
	cfg   *Config
	flock *Flock
	kind  algorithm.Kind
	alg   algorithm.Algorithm

	open    BackendOpener
	backend gpu.Backend

	// Communication with UI
	snapshotCh chan<- *Snapshot

	frame      uint64
	lastUpdate time.Duration
	lastErr    error

	// --- Benchmark Stats ---
	framesSinceLog int
	updateSinceLog time.Duration
	lastLogTime    time.Time
}

// NewWorldActor creates the world logic unit. snapshotCh may be nil.
func NewWorldActor(cfg *Config, open BackendOpener, snapshotCh chan<- *Snapshot) *WorldActor {
	if open == nil {
		open = OpenBackend
	}
	return &WorldActor{
		cfg:         cfg,
		open:        open,
		snapshotCh:  snapshotCh,
		lastLogTime: time.Now(),
	}
}

func (w *WorldActor) PreStart(ctx *actor.Context) error {
	kind, err := w.cfg.Kind()
	if err != nil {
		return err
	}
	w.flock = NewFlock(w.cfg.FlockSize, w.cfg.Behavior.MaxSpeed)
	if err := w.switchTo(kind); err != nil {
		return err
	}
	ctx.ActorSystem().Logger().Infof("World is seeded with %d boids, running %s", w.flock.Len(), w.kind)
	return nil
}

func (w *WorldActor) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Info("World Started.")

	// The Main Simulation Step
	case *durationpb.Duration:
		w.lastErr = w.step(msg.AsDuration())
		if w.lastErr != nil {
			ctx.Logger().Errorf("frame %d failed: %v", w.frame, w.lastErr)
			return
		}
		w.logBenchmarks(ctx)
		w.pushSnapshot()

	case *wrapperspb.StringValue:
		kind, err := algorithm.ParseKind(msg.GetValue())
		if err == nil {
			err = w.switchTo(kind)
		}
		w.lastErr = err
		if err != nil {
			ctx.Logger().Warnf("keeping %s: %v", w.kind, err)
			return
		}
		ctx.Logger().Infof("switched to %s", w.kind)

	case *wrapperspb.UInt32Value:
		w.flock.Resize(int(msg.GetValue()))
		w.lastErr = nil
		ctx.Logger().Infof("flock resized to %d boids", w.flock.Len())

	case *emptypb.Empty:
		reply, err := w.stats().toStruct()
		if err != nil {
			ctx.Err(err)
			return
		}
		ctx.Response(reply)

	default:
		ctx.Unhandled()
	}
}

func (w *WorldActor) step(dt time.Duration) error {
	start := time.Now()
	if err := w.flock.Update(w.alg, float32(dt.Seconds())); err != nil {
		return err
	}
	w.lastUpdate = time.Since(start)
	w.frame++
	w.framesSinceLog++
	w.updateSinceLog += w.lastUpdate
	return nil
}

// switchTo builds the strategy for kind, opening the compute device on first use.
func (w *WorldActor) switchTo(kind algorithm.Kind) error {
	cfg := w.cfg.algorithmConfig()
	if kind == algorithm.GPUCompute {
		if w.backend == nil {
			backend, err := w.open(w.cfg.ComputeBackend)
			if err != nil {
				return fmt.Errorf("opening %s backend: %w", w.cfg.ComputeBackend, err)
			}
			w.backend = backend
		}
		cfg.Backend = w.backend
	}
	alg, err := algorithm.New(kind, cfg)
	if err != nil {
		return err
	}
	w.kind, w.alg = kind, alg
	return nil
}

func (w *WorldActor) logBenchmarks(ctx *actor.ReceiveContext) {
	if time.Since(w.lastLogTime) >= time.Second && w.framesSinceLog > 0 {
		ctx.Logger().Infof("📊 FRAME RATE: %d/sec | %s avg update %.3fms | Boids: %d",
			w.framesSinceLog, w.kind, float64(w.updateSinceLog.Microseconds())/1000/float64(w.framesSinceLog), w.flock.Len())
		w.framesSinceLog = 0
		w.updateSinceLog = 0
		w.lastLogTime = time.Now()
	}
}

func (w *WorldActor) pushSnapshot() {
	if w.snapshotCh == nil {
		return
	}
	select {
	case w.snapshotCh <- w.buildSnapshot():
	default:
		// UI busy, skip frame
	}
}

func (w *WorldActor) buildSnapshot() *Snapshot {
	snap := &Snapshot{
		Frame:     w.frame,
		Algorithm: w.kind.String(),
		World:     w.cfg.World(),
		Boids:     w.flock.Snapshot(),
	}
	if tree, ok := w.alg.(algorithm.TreeAlgorithm); ok {
		for n := range tree.Tree().Nodes() {
			if n.Leaf {
				snap.Cells = append(snap.Cells, n.Bounds)
			}
		}
	}
	return snap
}

func (w *WorldActor) stats() Stats {
	s := Stats{
		Frame:      w.frame,
		Agents:     w.flock.Len(),
		Algorithm:  w.kind.String(),
		LastUpdate: w.lastUpdate,
	}
	if f, ok := w.alg.(interface{ FailedInserts() int }); ok {
		s.FailedInserts = f.FailedInserts()
	}
	if c, ok := w.alg.(*algorithm.Compute); ok {
		cs := c.Stats()
		s.Timeouts, s.Dropped, s.Fallbacks = cs.Timeouts, cs.Dropped, cs.Fallbacks
	}
	if w.lastErr != nil {
		s.Err = w.lastErr.Error()
	}
	return s
}

func (w *WorldActor) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("World is shutdown...")
	if w.backend != nil {
		return w.backend.Close()
	}
	return nil
}
