package timings

import (
	"fmt"
	"slices"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of frame times of a run.
type Summary struct {
	Frames int
	Mean   time.Duration
	StdDev time.Duration
	Min    time.Duration
	Median time.Duration
	P95    time.Duration
	Max    time.Duration
}

// Summarize computes the statistics of ds. An empty slice gives a zero Summary.
func Summarize(ds []time.Duration) Summary {
	if len(ds) == 0 {
		return Summary{}
	}
	xs := make([]float64, len(ds))
	for i, d := range ds {
		xs[i] = float64(d)
	}
	slices.Sort(xs)

	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) == 1 {
		std = 0
	}
	return Summary{
		Frames: len(xs),
		Mean:   time.Duration(mean),
		StdDev: time.Duration(std),
		Min:    time.Duration(xs[0]),
		Median: time.Duration(stat.Quantile(0.5, stat.Empirical, xs, nil)),
		P95:    time.Duration(stat.Quantile(0.95, stat.Empirical, xs, nil)),
		Max:    time.Duration(xs[len(xs)-1]),
	}
}

// String implements fmt.Stringer.
func (s Summary) String() string {
	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	return fmt.Sprintf("%6d frames | mean %8.3fms ± %7.3fms | min %8.3fms | p50 %8.3fms | p95 %8.3fms | max %8.3fms",
		s.Frames, ms(s.Mean), ms(s.StdDev), ms(s.Min), ms(s.Median), ms(s.P95), ms(s.Max))
}
