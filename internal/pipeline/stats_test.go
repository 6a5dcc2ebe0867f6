package pipeline

import (
	"math"
	"testing"
	"time"
)

func TestConversionStatsSnapshotPercentiles(t *testing.T) {
	stats := NewConversionStats(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms)*time.Millisecond, 10)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.Blocks != 50 {
		t.Fatalf("expected blocks=50, got %d", snap.Blocks)
	}
	if snap.AvgBlocks != 10 {
		t.Fatalf("expected avg_blocks=10, got %f", snap.AvgBlocks)
	}
	// 50 blocks over 1.5s of conversion time.
	if math.Abs(snap.BlocksPerSec-100.0/3) > 1e-9 {
		t.Fatalf("expected blocks_per_sec=33.33, got %f", snap.BlocksPerSec)
	}
	if snap.MinMs != 100 {
		t.Fatalf("expected min=100, got %d", snap.MinMs)
	}
	if snap.MaxMs != 500 {
		t.Fatalf("expected max=500, got %d", snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestConversionStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewConversionStats(time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stats.now = func() time.Time { return now }

	stats.Record(100*time.Millisecond, 1)
	now = now.Add(2 * time.Minute)

	snap := stats.Snapshot()
	if snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200*time.Millisecond, 1)
	snap = stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
}

func TestConversionStatsRecordClampsNegativeDuration(t *testing.T) {
	stats := NewConversionStats(time.Hour)
	stats.Record(-10*time.Millisecond, 0)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%d max=%d", snap.MinMs, snap.MaxMs)
	}
	if snap.BlocksPerSec != 0 {
		t.Fatalf("expected zero throughput without elapsed time, got %f", snap.BlocksPerSec)
	}
}

func TestConversionStatsEmpty(t *testing.T) {
	snap := NewConversionStats(0).Snapshot()
	if snap != (StatsSnapshot{}) {
		t.Errorf("expected zero snapshot, got %+v", snap)
	}
}
