package simulation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sugawarayuuta/sonnet"
	"github.com/tochemey/goakt/v3/log"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flox/pkg/quadtree"
)

//go:embed config.schema.json
var schemaSource string

// ErrInvalidConfig wraps every problem reported while loading or validating a Config.
var ErrInvalidConfig = errors.New("invalid simulation config")

// Names accepted by Config.ComputeBackend.
const (
	BackendEmulator = "emulator"
	BackendOpenGL   = "opengl"
)

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("config.schema.json", schemaSource)
})

type Config struct {
	// World Dimensions, centered on the origin
	WorldWidth  float32 `json:"worldWidth"`
	WorldHeight float32 `json:"worldHeight"`

	// Population
	FlockSize int `json:"flockSize"`

	// Update strategy
	Algorithm   string `json:"algorithm"` // direct, quadtree, threaded or compute
	ThreadCount int    `json:"threadCount"`
	MaxDepth    int    `json:"maxDepth"`
	BucketSize  int    `json:"bucketSize"`

	// Compute device
	ComputeBackend   string `json:"computeBackend"`
	ComputeTimeoutMs int    `json:"computeTimeoutMs"`
	TimeoutPolicy    string `json:"timeoutPolicy"` // drop, retry or fallback
	ComputeRetries   int    `json:"computeRetries"`

	// Physics / Behavior
	Behavior behavior.Params `json:"behavior"`

	// Frame pacing
	TicksPerSecond int `json:"ticksPerSecond"`

	// Diagnostics
	LogLevel  string `json:"logLevel"` // debug, info, warn, error or none
	TimingsDB string `json:"timingsDb"`

	// Visualization, initial state of the viewer toggles
	DisplayTree bool `json:"displayTree"`
}

func DefaultConfig() *Config {
	tree := quadtree.DefaultConfig()
	return &Config{
		WorldWidth:       400,
		WorldHeight:      400,
		FlockSize:        1024,
		Algorithm:        algorithm.QuadtreeSingle.String(),
		ThreadCount:      4,
		MaxDepth:         tree.MaxDepth,
		BucketSize:       tree.BucketSize,
		ComputeBackend:   BackendEmulator,
		ComputeTimeoutMs: 8,
		TimeoutPolicy:    algorithm.DropFrame.String(),
		ComputeRetries:   2,
		Behavior:         behavior.DefaultParams(),
		TicksPerSecond:   60,
		LogLevel:         "info",
	}
}

// LoadConfig reads a .json or .toml file, validates it against the embedded schema
// and merges it over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		var doc map[string]any
		if _, err := toml.Decode(string(raw), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode config toml: %w", err)
		}
		if raw, err = sonnet.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert config toml: %w", err)
		}
	case ".json":
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrInvalidConfig, ext)
	}
	return ParseConfig(raw)
}

// ParseConfig validates a JSON document against the schema and merges it over DefaultConfig.
func ParseConfig(raw []byte) (*Config, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	var v any
	if err := sonnet.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode config json: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if err := sonnet.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs the cross-field checks the schema cannot express.
func (c *Config) Validate() error {
	if _, err := c.Kind(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := algorithm.ParsePolicy(c.TimeoutPolicy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.ComputeBackend != BackendEmulator && c.ComputeBackend != BackendOpenGL {
		return fmt.Errorf("%w: unknown compute backend %q", ErrInvalidConfig, c.ComputeBackend)
	}
	if c.FlockSize < 0 {
		return fmt.Errorf("%w: flock size %d is negative", ErrInvalidConfig, c.FlockSize)
	}
	if c.TicksPerSecond < 1 {
		return fmt.Errorf("%w: %d ticks per second", ErrInvalidConfig, c.TicksPerSecond)
	}
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if err := c.algorithmConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// World returns the simulated area.
func (c *Config) World() geometry.Rectangle {
	return geometry.NewRectangle(geometry.Vector2D{}, geometry.Vector2D{X: c.WorldWidth / 2, Y: c.WorldHeight / 2})
}

// Kind parses the Algorithm field.
func (c *Config) Kind() (algorithm.Kind, error) {
	return algorithm.ParseKind(c.Algorithm)
}

// Delta is the simulated time of one tick.
func (c *Config) Delta() float32 {
	return 1 / float32(c.TicksPerSecond)
}

// TickInterval is the wall clock time between two ticks.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TicksPerSecond)
}

var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarningLevel,
	"error": log.ErrorLevel,
	"none":  log.InvalidLevel,
}

// Logger returns a logger writing to stderr at LogLevel, or a discarding one for "none".
func (c *Config) Logger() log.Logger {
	level, ok := logLevels[strings.ToLower(c.LogLevel)]
	if !ok || level == log.InvalidLevel {
		return log.DiscardLogger
	}
	return log.New(level, os.Stderr)
}

// algorithmConfig maps c onto the strategy settings, without a compute backend.
func (c *Config) algorithmConfig() algorithm.Config {
	policy, _ := algorithm.ParsePolicy(c.TimeoutPolicy)
	cfg := algorithm.DefaultConfig()
	cfg.World = c.World()
	cfg.Params = c.Behavior
	cfg.Tree = quadtree.Config{MaxDepth: c.MaxDepth, BucketSize: c.BucketSize}
	cfg.ThreadCount = c.ThreadCount
	cfg.Timeout = time.Duration(c.ComputeTimeoutMs) * time.Millisecond
	cfg.Policy = policy
	cfg.Retries = c.ComputeRetries
	return cfg
}
