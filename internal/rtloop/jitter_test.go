package rtloop

import (
	"testing"
	"time"
)

func TestJitterHistogramBucketsAndMean(t *testing.T) {
	var h jitterHistogram
	h.Observe(30 * time.Microsecond)
	h.Observe(300 * time.Microsecond)
	h.Observe(10 * time.Millisecond)

	buckets, count, mean := h.Snapshot()
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	if buckets[0] != 1 {
		t.Fatalf("buckets[0] = %d, want 1 (the 30us sample)", buckets[0])
	}
	if buckets[len(buckets)-1] != 1 {
		t.Fatalf("last bucket = %d, want 1 (the 10ms sample)", buckets[len(buckets)-1])
	}
	if mean <= 0 {
		t.Fatalf("mean = %v, want > 0", mean)
	}
}

func TestJitterHistogramBucketsByMagnitudeRegardlessOfSign(t *testing.T) {
	var h jitterHistogram
	h.Observe(-30 * time.Microsecond)
	h.Observe(30 * time.Microsecond)

	buckets, count, mean := h.Snapshot()
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if buckets[0] != 2 {
		t.Fatalf("buckets[0] = %d, want 2 (both 30us samples, signs cancel for bucketing)", buckets[0])
	}
	if mean != 0 {
		t.Fatalf("mean = %v, want 0 (a fast cycle and an equally slow one should cancel)", mean)
	}
}
