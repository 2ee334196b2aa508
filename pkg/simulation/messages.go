package simulation

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/lao-tseu-is-alive/go-flox/pkg/algorithm"
	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

// The world actor speaks protobuf well-known types:
//
//	*durationpb.Duration      advance the flock by that much simulated time
//	*wrapperspb.StringValue   switch to the named algorithm
//	*wrapperspb.UInt32Value   resize the flock
//	*emptypb.Empty            ask for Stats, answered with a *structpb.Struct

// Tick asks the world to advance by dt.
func Tick(dt time.Duration) *durationpb.Duration {
	return durationpb.New(dt)
}

// SwitchAlgorithm asks the world to continue with kind.
func SwitchAlgorithm(kind algorithm.Kind) *wrapperspb.StringValue {
	return wrapperspb.String(kind.String())
}

// ResizeFlock asks the world to change the population to n boids.
func ResizeFlock(n uint32) *wrapperspb.UInt32Value {
	return wrapperspb.UInt32(n)
}

// StatsRequest asks the world for its Stats.
func StatsRequest() *emptypb.Empty {
	return &emptypb.Empty{}
}

// Stats describes the world after its last message.
type Stats struct {
	Frame         uint64
	Agents        int
	Algorithm     string
	LastUpdate    time.Duration
	FailedInserts int
	Timeouts      uint64
	Dropped       uint64
	Fallbacks     uint64
	// Err is the failure of the last tick or command, empty when it succeeded.
	Err string
}

func (s Stats) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"frame":         s.Frame,
		"agents":        s.Agents,
		"algorithm":     s.Algorithm,
		"lastUpdateMs":  float64(s.LastUpdate) / float64(time.Millisecond),
		"failedInserts": s.FailedInserts,
		"timeouts":      s.Timeouts,
		"dropped":       s.Dropped,
		"fallbacks":     s.Fallbacks,
		"error":         s.Err,
	})
}

func statsFromStruct(st *structpb.Struct) Stats {
	f := st.GetFields()
	return Stats{
		Frame:         uint64(f["frame"].GetNumberValue()),
		Agents:        int(f["agents"].GetNumberValue()),
		Algorithm:     f["algorithm"].GetStringValue(),
		LastUpdate:    time.Duration(f["lastUpdateMs"].GetNumberValue() * float64(time.Millisecond)),
		FailedInserts: int(f["failedInserts"].GetNumberValue()),
		Timeouts:      uint64(f["timeouts"].GetNumberValue()),
		Dropped:       uint64(f["dropped"].GetNumberValue()),
		Fallbacks:     uint64(f["fallbacks"].GetNumberValue()),
		Err:           f["error"].GetStringValue(),
	}
}

// String implements fmt.Stringer.
func (s Stats) String() string {
	return fmt.Sprintf("frame %d | %d boids | %s %.3fms | failed inserts %d | timeouts %d",
		s.Frame, s.Agents, s.Algorithm, float64(s.LastUpdate)/float64(time.Millisecond), s.FailedInserts, s.Timeouts)
}

// Snapshot is a copy of one frame, pushed to the viewer.
type Snapshot struct {
	Frame     uint64
	Algorithm string
	World     geometry.Rectangle
	Boids     []behavior.Boid
	// Cells holds the leaf bounds of the quadtree for the tree strategies.
	Cells []geometry.Rectangle
}
