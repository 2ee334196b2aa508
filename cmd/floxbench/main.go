// Command floxbench runs every flock update strategy headless and reports frame times.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/internal/timings"
	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/simulation"
)

func main() {
	configPath := flag.String("config", "", "JSON or TOML config file (defaults when empty)")
	frames := flag.Int("frames", 600, "frames to simulate per algorithm")
	agents := flag.Int("agents", 0, "flock size, overrides the config when positive")
	algorithms := flag.String("algorithms", "direct,quadtree,threaded,compute", "comma separated algorithms to run")
	dbPath := flag.String("db", "", "SQLite file to record frame times in (overrides timingsDb)")
	label := flag.String("label", "", "free text stored with each run")
	flag.Parse()

	cfg := simulation.DefaultConfig()
	if *configPath != "" {
		loaded, err := simulation.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *agents > 0 {
		cfg.FlockSize = *agents
	}
	if *dbPath != "" {
		cfg.TimingsDB = *dbPath
	}
	logger := cfg.Logger()

	kinds, err := parseKinds(*algorithms)
	if err != nil {
		logger.Fatal(err)
	}

	var store *timings.Store
	if cfg.TimingsDB != "" {
		if store, err = timings.Open(cfg.TimingsDB); err != nil {
			logger.Fatal(err)
		}
		defer store.Close()
	}

	ctx := context.Background()
	fmt.Printf("%d boids, %d frames per algorithm, dt %v\n", cfg.FlockSize, *frames, cfg.TickInterval())
	for _, kind := range kinds {
		ds, err := benchmark(ctx, cfg, kind, *frames, logger)
		if err != nil {
			logger.Errorf("%s: %v", kind, err)
			continue
		}
		fmt.Printf("%-9s %s\n", kind, timings.Summarize(ds))
		if store != nil {
			if err := record(store, cfg, kind, *label, ds); err != nil {
				logger.Errorf("recording %s: %v", kind, err)
			}
		}
	}
}

func parseKinds(list string) ([]algorithm.Kind, error) {
	var kinds []algorithm.Kind
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := algorithm.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no algorithm selected")
	}
	return kinds, nil
}

// benchmark runs a fresh world with kind and returns the update time of every frame.
func benchmark(ctx context.Context, base *simulation.Config, kind algorithm.Kind, frames int, logger log.Logger) ([]time.Duration, error) {
	cfg := *base
	cfg.Algorithm = kind.String()
	engine, err := simulation.NewEngine(ctx, &cfg, simulation.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer engine.Stop(ctx)

	ds := make([]time.Duration, 0, frames)
	var last simulation.Stats
	for i := 0; i < frames; i++ {
		if last, err = engine.Step(ctx, cfg.TickInterval()); err != nil {
			return ds, fmt.Errorf("frame %d: %w", i, err)
		}
		ds = append(ds, last.LastUpdate)
	}
	if last.FailedInserts > 0 || last.Timeouts > 0 {
		logger.Warnf("%s ended with %d failed inserts and %d fence timeouts", kind, last.FailedInserts, last.Timeouts)
	}
	return ds, nil
}

func record(store *timings.Store, cfg *simulation.Config, kind algorithm.Kind, label string, ds []time.Duration) error {
	threads := 1
	if kind == algorithm.QuadtreeMulti {
		threads = cfg.ThreadCount
	}
	run, err := store.BeginRun(timings.Run{
		Algorithm: kind.String(),
		Agents:    cfg.FlockSize,
		Threads:   threads,
		Label:     label,
	})
	if err != nil {
		return err
	}
	for i, d := range ds {
		if err := store.Record(run, i, d); err != nil {
			return err
		}
	}
	return store.Flush()
}
