package pipeline

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationMs int64
	blocks     int
}

// StatsSnapshot is a point-in-time aggregate of conversion latency samples.
type StatsSnapshot struct {
	Count        int     `json:"count"`
	Blocks       int     `json:"blocks"`
	AvgBlocks    float64 `json:"avg_blocks"`
	BlocksPerSec float64 `json:"blocks_per_sec"`
	MinMs        int64   `json:"min_ms"`
	MaxMs        int64   `json:"max_ms"`
	AvgMs        float64 `json:"avg_ms"`
	P50Ms        float64 `json:"p50_ms"`
	P95Ms        float64 `json:"p95_ms"`
	P99Ms        float64 `json:"p99_ms"`
}

// ConversionStats tracks recent conversion latencies within a rolling window.
type ConversionStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
	now     func() time.Time
}

func NewConversionStats(maxAge time.Duration) *ConversionStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &ConversionStats{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one conversion that produced the given number of blocks.
func (s *ConversionStats) Record(d time.Duration, blocks int) {
	durationMs := d.Milliseconds()
	if durationMs < 0 {
		durationMs = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationMs: durationMs,
		blocks:     blocks,
	})
}

func (s *ConversionStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	blocks := 0
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
		blocks += sm.blocks
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	// Throughput is blocks over total conversion time; sub-millisecond
	// conversions leave it at zero.
	var perSec float64
	if sum > 0 {
		perSec = float64(blocks) * 1000 / float64(sum)
	}

	return StatsSnapshot{
		Count:        len(values),
		Blocks:       blocks,
		AvgBlocks:    float64(blocks) / float64(len(values)),
		BlocksPerSec: perSec,
		MinMs:        values[0],
		MaxMs:        values[len(values)-1],
		AvgMs:        float64(sum) / float64(len(values)),
		P50Ms:        percentile(values, 50),
		P95Ms:        percentile(values, 95),
		P99Ms:        percentile(values, 99),
	}
}

func (s *ConversionStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

// percentile interpolates linearly between the closest ranks.
func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}
