//go:build ebiten

// Command flox shows the flock live and lets you switch update strategies while it runs.
package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/lao-tseu-is-alive/go-flox/pkg/simulation"
)

func main() {
	configPath := flag.String("config", "", "JSON or TOML config file (defaults when empty)")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	ctx := context.Background()
	engine, err := simulation.NewEngine(ctx, cfg, simulation.WithSnapshots(2))
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Stop(ctx)

	ebiten.SetWindowSize(screenWidth(cfg), screenHeight(cfg))
	ebiten.SetWindowTitle("Flox: quadtree boids")
	ebiten.SetTPS(cfg.TicksPerSecond)
	if err := ebiten.RunGame(NewGame(ctx, cfg, engine)); err != nil && !errors.Is(err, ebiten.Termination) {
		log.Fatal(err)
	}
}
