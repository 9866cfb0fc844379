// Package stats derives timing and throughput figures from attack progress
// and stored results. Everything here is a pure function of recorded state,
// so figures can be recomputed long after a run has finished.
package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/aegyost/dictattack/internal/attack"
	"github.com/aegyost/dictattack/internal/digest"
)

// Reference candidates-per-second rates used for estimates.
var referenceRates = map[digest.Algorithm]float64{
	digest.MD5:    50000,
	digest.SHA1:   40000,
	digest.SHA256: 30000,
	digest.SHA512: 20000,
}

const defaultReferenceRate = 30000

type Estimate struct {
	Algorithm digest.Algorithm
	Rate      float64
	Duration  time.Duration
}

func (e Estimate) String() string {
	return FormatDuration(e.Duration)
}

// EstimateDuration predicts how long exhausting a dictionary of size entries
// takes at the reference rate for alg.
func EstimateDuration(size int, alg digest.Algorithm) Estimate {
	rate, ok := referenceRates[alg]
	if !ok {
		rate = defaultReferenceRate
	}
	return EstimateAt(size, alg, rate)
}

// EstimateAt predicts the same duration at a given rate, typically one
// returned by Benchmark. A non-positive rate falls back to the reference.
func EstimateAt(size int, alg digest.Algorithm, rate float64) Estimate {
	if rate <= 0 {
		return EstimateDuration(size, alg)
	}
	secs := float64(size) / rate
	return Estimate{
		Algorithm: alg,
		Rate:      rate,
		Duration:  time.Duration(secs * float64(time.Second)),
	}
}

// SuccessProbability is the percentage of keyspace covered by a dictionary,
// capped at 100.
func SuccessProbability(dictionarySize int, keyspace uint64) float64 {
	if keyspace == 0 {
		return 0
	}
	return math.Min(float64(dictionarySize)/float64(keyspace)*100, 100)
}

type Rating string

const (
	RatingExcellent    Rating = "Excellent"
	RatingGood         Rating = "Good"
	RatingAverage      Rating = "Average"
	RatingBelowAverage Rating = "Below Average"
)

func RateSpeed(perSecond float64) Rating {
	switch {
	case perSecond > 100000:
		return RatingExcellent
	case perSecond > 50000:
		return RatingGood
	case perSecond > 20000:
		return RatingAverage
	default:
		return RatingBelowAverage
	}
}

type Analysis struct {
	Rate         float64
	PerCandidate time.Duration
	Rating       Rating
}

// Analyze recomputes performance figures for a stored result.
func Analyze(res attack.Result) Analysis {
	rate := res.Throughput()
	a := Analysis{Rate: rate, Rating: RateSpeed(rate)}
	if res.Tested > 0 {
		a.PerCandidate = res.Elapsed / time.Duration(res.Tested)
	}
	return a
}

// SpeedMeter tracks the current and peak rate seen across progress updates.
type SpeedMeter struct {
	mu      sync.Mutex
	current float64
	peak    float64
}

func (m *SpeedMeter) Observe(p attack.Progress) {
	if p.Elapsed <= 0 {
		return
	}
	rate := p.Throughput()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = rate
	if rate > m.peak {
		m.peak = rate
	}
}

func (m *SpeedMeter) Current() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *SpeedMeter) Peak() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

// FormatDuration renders d as "850ms", "12.3s", "4m 5s" or "2h 3m".
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	switch {
	case secs < 1:
		return fmt.Sprintf("%dms", int64(math.Round(secs*1000)))
	case secs < 60:
		return fmt.Sprintf("%.1fs", secs)
	case secs < 3600:
		return fmt.Sprintf("%dm %ds", int64(secs)/60, int64(math.Round(math.Mod(secs, 60))))
	}
	h := int64(secs) / 3600
	m := (int64(secs) % 3600) / 60
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatRate renders a per-second rate as "950", "1.20K" or "3.40M".
func FormatRate(perSecond float64) string {
	switch {
	case perSecond >= 1e6:
		return fmt.Sprintf("%.2fM", perSecond/1e6)
	case perSecond >= 1e3:
		return fmt.Sprintf("%.2fK", perSecond/1e3)
	}
	return fmt.Sprintf("%d", int64(math.Round(perSecond)))
}
