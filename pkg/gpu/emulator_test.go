package gpu

import (
	"errors"
	"testing"
	"time"

	"github.com/lao-tseu-is-alive/go-flox/pkg/behavior"
	"github.com/lao-tseu-is-alive/go-flox/pkg/geometry"
)

func testUniforms() Uniforms {
	return Uniforms{
		Delta:  1.0 / 60,
		World:  geometry.NewRectangle(geometry.Vector2D{}, geometry.Vector2D{X: 200, Y: 200}),
		Params: behavior.DefaultParams(),
	}
}

func ring(n int) []behavior.Boid {
	flock := make([]behavior.Boid, n)
	for i := range flock {
		flock[i].Position = geometry.NewVectorPolar(20, float32(i))
		flock[i].Velocity = geometry.NewVectorPolar(50, float32(i)+1)
	}
	return flock
}

func TestEmulator_RoundTrip(t *testing.T) {
	e := NewEmulator()
	e.Workers = 3
	defer e.Close()

	read := ring(37)
	u := testUniforms()
	if err := e.EnsureCapacity(len(read)); err != nil {
		t.Fatalf("EnsureCapacity: %v", err)
	}
	if err := e.Upload(read); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := e.Dispatch(u, len(read)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	status, err := e.Wait(time.Second)
	if err != nil || status != Signaled {
		t.Fatalf("Wait = %v, %v; want signaled", status, err)
	}
	got := make([]behavior.Boid, len(read))
	if err := e.Download(got); err != nil {
		t.Fatalf("Download: %v", err)
	}

	for i := range read {
		want := u.Params.NextAllPairs(i, read, u.World, u.Delta)
		if got[i] != want {
			t.Fatalf("boid %d = %+v; want %+v", i, got[i], want)
		}
	}
}

func TestEmulator_Timeout(t *testing.T) {
	e := NewEmulator()
	e.Latency = 200 * time.Millisecond
	defer e.Close()

	read := ring(8)
	if err := e.EnsureCapacity(len(read)); err != nil {
		t.Fatal(err)
	}
	if err := e.Upload(read); err != nil {
		t.Fatal(err)
	}
	if err := e.Dispatch(testUniforms(), len(read)); err != nil {
		t.Fatal(err)
	}
	status, err := e.Wait(time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if status != TimedOut {
		t.Fatalf("Wait returned %v before the latency elapsed", status)
	}
	if err := e.Download(make([]behavior.Boid, len(read))); !errors.Is(err, ErrNoDispatch) {
		t.Errorf("Download before the fence = %v; want ErrNoDispatch", err)
	}
	if status, _ := e.Wait(time.Second); status != Signaled {
		t.Errorf("second Wait = %v; want signaled", status)
	}
}

func TestEmulator_Capacity(t *testing.T) {
	e := NewEmulator()
	defer e.Close()

	if err := e.Upload(ring(4)); !errors.Is(err, ErrCapacity) {
		t.Errorf("Upload without capacity = %v; want ErrCapacity", err)
	}
	if err := e.EnsureCapacity(16); err != nil {
		t.Fatal(err)
	}
	if err := e.EnsureCapacity(8); err != nil || e.Capacity() != 16 {
		t.Errorf("shrinking EnsureCapacity changed capacity to %d (err %v)", e.Capacity(), err)
	}
	if err := e.Dispatch(testUniforms(), 17); !errors.Is(err, ErrCapacity) {
		t.Errorf("Dispatch over capacity = %v; want ErrCapacity", err)
	}
	if _, err := e.Wait(time.Millisecond); !errors.Is(err, ErrNoDispatch) {
		t.Errorf("Wait without dispatch = %v; want ErrNoDispatch", err)
	}
}

func TestEmulator_Closed(t *testing.T) {
	e := NewEmulator()
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close = %v; want nil", err)
	}
	if err := e.EnsureCapacity(1); !errors.Is(err, ErrClosed) {
		t.Errorf("EnsureCapacity after Close = %v; want ErrClosed", err)
	}
	if _, err := e.Wait(time.Millisecond); !errors.Is(err, ErrClosed) {
		t.Errorf("Wait after Close = %v; want ErrClosed", err)
	}
}
