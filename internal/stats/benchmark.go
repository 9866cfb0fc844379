package stats

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/aegyost/dictattack/internal/digest"
)

// ErrUnstableDigest is returned when a provider yields different digests
// for the same input.
var ErrUnstableDigest = errors.New("digest is not deterministic")

const (
	benchmarkCandidate = "testpassword123"

	DefaultBenchmarkIterations = 10000
)

// Clock returns the current time.
type Clock func() time.Time

// Measurement is the observed speed of one algorithm on one provider.
type Measurement struct {
	Algorithm  digest.Algorithm
	Iterations int
	Elapsed    time.Duration
	Rate       float64
}

// PerHash is the mean time spent on a single candidate.
func (m Measurement) PerHash() time.Duration {
	if m.Iterations <= 0 {
		return 0
	}
	return m.Elapsed / time.Duration(m.Iterations)
}

func (m Measurement) Rating() Rating { return RateSpeed(m.Rate) }

// Benchmark checks a fixed candidate against its own digest iterations
// times, which is the per-candidate work of an attack. A nil clock means
// time.Now.
func Benchmark(p digest.Provider, alg digest.Algorithm, iterations int, now Clock) (Measurement, error) {
	if iterations <= 0 {
		return Measurement{}, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	if now == nil {
		now = time.Now
	}
	want, err := p.Digest(benchmarkCandidate, alg)
	if err != nil {
		return Measurement{}, err
	}

	start := now()
	for i := 0; i < iterations; i++ {
		ok, err := digest.Verify(p, benchmarkCandidate, want, alg)
		if err != nil {
			return Measurement{}, err
		}
		if !ok {
			return Measurement{}, fmt.Errorf("%w: %s", ErrUnstableDigest, alg)
		}
	}
	m := Measurement{Algorithm: alg, Iterations: iterations, Elapsed: now().Sub(start)}
	if m.Elapsed > 0 {
		m.Rate = float64(iterations) / m.Elapsed.Seconds()
	}
	return m, nil
}

// CompareAlgorithms benchmarks each algorithm and orders the results from
// fastest to slowest.
func CompareAlgorithms(p digest.Provider, algs []digest.Algorithm, iterations int, now Clock) ([]Measurement, error) {
	out := make([]Measurement, 0, len(algs))
	for _, alg := range algs {
		m, err := Benchmark(p, alg, iterations, now)
		if err != nil {
			return nil, fmt.Errorf("benchmark %s: %w", alg, err)
		}
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b Measurement) int {
		switch {
		case a.Rate > b.Rate:
			return -1
		case a.Rate < b.Rate:
			return 1
		}
		return 0
	})
	return out, nil
}
