//go:build ebiten

package main

import (
	"context"
	"fmt"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/simulation"
	"github.com/lao-tseu-is-alive/go-flox/pkg/ui"
)

const panelWidth = 280

var (
	whiteImage = ebiten.NewImage(3, 3)
	background = color.RGBA{R: 10, G: 10, B: 30, A: 255}
	cellColor  = color.RGBA{R: 60, G: 200, B: 120, A: 90}
	worldColor = color.RGBA{R: 120, G: 120, B: 160, A: 255}
)

func init() {
	whiteImage.Fill(color.RGBA{R: 100, G: 200, B: 255, A: 255})
}

type Game struct {
	ctx    context.Context
	engine *simulation.Engine
	cfg    *simulation.Config
	logger log.Logger

	lastState *simulation.Snapshot
	stats     simulation.Stats

	// UI Controls
	panel      *ui.Panel
	algorithms *ui.Choice
	showTree   *ui.Checkbox
	paused     *ui.Checkbox

	// scratch for the boid triangles
	vertices []ebiten.Vertex
	indices  []uint16

	// Timing instrumentation
	updateAvg float64 // Rolling average in ms
	drawAvg   float64 // Rolling average in ms
}

func NewGame(ctx context.Context, cfg *simulation.Config, engine *simulation.Engine) *Game {
	g := &Game{
		ctx:       ctx,
		engine:    engine,
		cfg:       cfg,
		logger:    cfg.Logger(),
		lastState: &simulation.Snapshot{World: cfg.World()},
	}

	var names []string
	for _, k := range algorithm.Kinds() {
		names = append(names, k.String())
	}
	current, _ := cfg.Kind()

	g.panel = ui.NewPanel("Flox", 10, 10, panelWidth-20, float64(screenHeight(cfg))-20)
	g.panel.AddSection("Algorithm (1-4)")
	g.algorithms = ui.NewChoice(names, int(current), func(i int, _ string) { g.switchTo(algorithm.Kind(i)) })
	g.panel.Add("Update strategy", g.algorithms)

	g.panel.AddSection("Population")
	g.panel.Add("Boids", ui.NewSlider(0, 20000, 100, float64(cfg.FlockSize), g.resize))

	g.panel.AddSection("Visualization")
	g.showTree = ui.NewCheckbox(cfg.DisplayTree, nil)
	g.panel.Add("Show quadtree (T)", g.showTree)
	g.paused = ui.NewCheckbox(false, nil)
	g.panel.Add("Pause (space)", g.paused)
	return g
}

func (g *Game) switchTo(kind algorithm.Kind) {
	s, err := g.engine.SetAlgorithm(g.ctx, kind)
	if err != nil {
		g.logger.Warnf("cannot switch to %s: %v", kind, err)
		if k, perr := algorithm.ParseKind(s.Algorithm); perr == nil {
			g.algorithms.Select(int(k))
		}
		return
	}
	g.algorithms.Select(int(kind))
}

func (g *Game) resize(v float64) {
	if _, err := g.engine.Resize(g.ctx, uint32(v)); err != nil {
		g.logger.Warnf("cannot resize the flock: %v", err)
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		// Rolling average (exponential moving average)
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	// 1. Keyboard shortcuts
	for i, key := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(key) {
			g.switchTo(algorithm.Kind(i))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.showTree.Value = !g.showTree.Value
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused.Value = !g.paused.Value
	}

	// 2. Update UI Panel
	g.panel.Update(ui.CursorPointer())

	// 3. Retrieve Latest State (Non-blocking)
	select {
	case snap := <-g.engine.Snapshots():
		g.lastState = snap
	default:
		// Use previous state if new one isn't ready
	}

	// 4. Trigger Simulation Step
	if !g.paused.Value {
		s, err := g.engine.Step(g.ctx, g.cfg.TickInterval())
		if err != nil {
			return fmt.Errorf("simulation step: %w", err)
		}
		g.stats = s
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	screen.Fill(background)
	view := newViewport(g.lastState.World, screen.Bounds().Dx(), screen.Bounds().Dy())

	lo, hi := view.project(g.lastState.World.Min()), view.project(g.lastState.World.Max())
	vector.StrokeRect(screen, lo.X, hi.Y, hi.X-lo.X, lo.Y-hi.Y, 1, worldColor, true)

	// 1. Quadtree leaves
	if g.showTree.Value {
		for _, cell := range g.lastState.Cells {
			a, b := view.project(cell.Min()), view.project(cell.Max())
			vector.StrokeRect(screen, a.X, b.Y, b.X-a.X, a.Y-b.Y, 1, cellColor, false)
		}
	}

	// 2. Boids, batched in one triangle list
	g.drawBoids(screen, view)

	// 3. UI Panel
	g.panel.Draw(screen)

	// Display timing breakdown for performance analysis
	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\n\n%s\nBoids:  %d\nFrame:  %d\nStep:   %.2fms\nUpdate: %.2fms\nDraw:   %.2fms",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		g.stats.Algorithm,
		len(g.lastState.Boids),
		g.stats.Frame,
		float64(g.stats.LastUpdate.Microseconds())/1000,
		g.updateAvg,
		g.drawAvg)
	if g.stats.FailedInserts > 0 {
		msg += fmt.Sprintf("\nOut of tree: %d", g.stats.FailedInserts)
	}
	if g.stats.Timeouts > 0 {
		msg += fmt.Sprintf("\nGPU timeouts: %d", g.stats.Timeouts)
	}
	ebitenutil.DebugPrintAt(screen, msg, screen.Bounds().Dx()-170, 10)
}

// drawBoids draws every boid as a triangle pointing along its velocity.
func (g *Game) drawBoids(screen *ebiten.Image, view viewport) {
	g.vertices = g.vertices[:0]
	g.indices = g.indices[:0]
	for _, b := range g.lastState.Boids {
		// 16 bit indices: flush before they overflow
		if len(g.vertices)+3 > math.MaxUint16 {
			screen.DrawTriangles(g.vertices, g.indices, whiteImage, &ebiten.DrawTrianglesOptions{})
			g.vertices, g.indices = g.vertices[:0], g.indices[:0]
		}
		g.appendBoid(b, view)
	}
	if len(g.vertices) > 0 {
		screen.DrawTriangles(g.vertices, g.indices, whiteImage, &ebiten.DrawTrianglesOptions{})
	}
}

func (g *Game) appendBoid(b behavior.Boid, view viewport) {
	p := view.project(b.Position)
	// Screen y grows downward
	angle := math.Atan2(-float64(b.Velocity.Y), float64(b.Velocity.X))
	size := math.Max(float64(g.cfg.Behavior.Scale*view.scale), 3)

	base := uint16(len(g.vertices))
	for _, corner := range [3]struct{ turn, length float64 }{{0, 1.2}, {2.5, 1}, {-2.5, 1}} {
		g.vertices = append(g.vertices, ebiten.Vertex{
			DstX:   p.X + float32(math.Cos(angle+corner.turn)*size*corner.length),
			DstY:   p.Y + float32(math.Sin(angle+corner.turn)*size*corner.length),
			SrcX:   1,
			SrcY:   1,
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		})
	}
	g.indices = append(g.indices, base, base+1, base+2)
}

func (g *Game) Layout(w, h int) (int, int) { return screenWidth(g.cfg), screenHeight(g.cfg) }
