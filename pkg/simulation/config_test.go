package simulation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestDefaultConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "flox.json", `{
		"worldWidth": 800,
		"worldHeight": 600,
		"flockSize": 256,
		"algorithm": "threaded",
		"threadCount": 8,
		"behavior": {"maxSpeed": 80, "weights": {"cohesion": 0.3}}
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorldWidth != 800 || cfg.WorldHeight != 600 || cfg.FlockSize != 256 || cfg.ThreadCount != 8 {
		t.Errorf("top level fields not loaded: %+v", cfg)
	}
	if kind, _ := cfg.Kind(); kind != algorithm.QuadtreeMulti {
		t.Errorf("Kind() = %v, want threaded", kind)
	}
	if cfg.Behavior.MaxSpeed != 80 || cfg.Behavior.Weights.Cohesion != 0.3 {
		t.Errorf("behavior overrides not loaded: %+v", cfg.Behavior)
	}

	// Everything the file leaves out keeps its default.
	def := behavior.DefaultParams()
	if cfg.Behavior.MaxForce != def.MaxForce || cfg.Behavior.Weights.Separation != def.Weights.Separation {
		t.Errorf("defaults lost in merge: %+v", cfg.Behavior)
	}
	if cfg.TicksPerSecond != 60 || cfg.ComputeBackend != BackendEmulator {
		t.Errorf("defaults lost in merge: %+v", cfg)
	}
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeConfig(t, "flox.toml", `
worldWidth = 1000.0
worldHeight = 500.0
flockSize = 64
algorithm = "compute"
timeoutPolicy = "fallback"
computeTimeoutMs = 20
logLevel = "none"

[behavior]
cohesiveRadius = 20.0

[behavior.weights]
alignment = 0.1
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorldWidth != 1000 || cfg.FlockSize != 64 || cfg.Algorithm != "compute" {
		t.Errorf("top level fields not loaded: %+v", cfg)
	}
	if cfg.Behavior.CohesiveRadius != 20 || cfg.Behavior.Weights.Alignment != 0.1 {
		t.Errorf("nested tables not loaded: %+v", cfg.Behavior)
	}

	ac := cfg.algorithmConfig()
	if ac.Policy != algorithm.FallbackCPU {
		t.Errorf("policy = %v, want fallback", ac.Policy)
	}
	if ac.Timeout != 20*time.Millisecond {
		t.Errorf("timeout = %v, want 20ms", ac.Timeout)
	}
	if ac.World.Size.X != 500 || ac.World.Size.Y != 250 {
		t.Errorf("world half extents = %v, want (500, 250)", ac.World.Size)
	}
}

func TestLoadConfig_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown key", "a.json", `{"numRedAtStart": 5}`},
		{"unknown algorithm", "b.json", `{"algorithm": "octree"}`},
		{"negative flock", "c.json", `{"flockSize": -1}`},
		{"wrong type", "d.json", `{"worldWidth": "wide"}`},
		{"depth too deep", "e.json", `{"maxDepth": 40}`},
		{"radii inverted", "f.json", `{"behavior": {"disruptiveRadius": 40}}`},
		{"soft outside hard", "g.toml", "[behavior]\nsoftBound = 0.95\n"},
		{"broken json", "h.json", `{"flockSize": `},
		{"broken toml", "i.toml", `flockSize = = 3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.file, tt.content)); err == nil {
				t.Errorf("LoadConfig accepted %s", tt.content)
			}
		})
	}
}

func TestLoadConfig_InvalidIsWrapped(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "flox.json", `{"behavior": {"disruptiveRadius": 40}}`))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
	_, err = LoadConfig(writeConfig(t, "flox.yaml", "flockSize: 3"))
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig for yaml, got %v", err)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestConfig_Timing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TicksPerSecond = 50
	if got := cfg.Delta(); got != 0.02 {
		t.Errorf("Delta() = %v, want 0.02", got)
	}
	if got := cfg.TickInterval(); got != 20*time.Millisecond {
		t.Errorf("TickInterval() = %v, want 20ms", got)
	}
}

func TestConfig_Logger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "none", "INFO"} {
		cfg := DefaultConfig()
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			t.Errorf("level %q rejected: %v", level, err)
		}
		if cfg.Logger() == nil {
			t.Errorf("level %q has no logger", level)
		}
	}
	cfg := DefaultConfig()
	cfg.LogLevel = "chatty"
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
