package rtloop

import "time"

// jitterHistogram buckets the signed deviation between consecutive cycle
// starts and the configured cycle target: a positive value ran long, a
// negative value ran short. Bucket bounds are fixed rather than
// configurable: the cycle period itself is fixed by configuration, so the
// interesting signal is how far a cycle strayed from target, not an
// arbitrary distribution shape. Bucketing is by magnitude; the running sum
// keeps the sign, so Snapshot's mean reflects whether the loop trends fast
// or slow rather than just how noisy it is.
type jitterHistogram struct {
	buckets [len(jitterBoundsUS)]uint64
	count   uint64
	sum     time.Duration
}

// jitterBoundsUS are per-bucket upper bounds on |jitter| in microseconds.
// A sample is counted once, in the first bucket whose bound it does not
// exceed; samples above the highest bound are counted in the last bucket.
var jitterBoundsUS = [...]int64{50, 100, 200, 500, 1000, 5000}

func (h *jitterHistogram) Observe(d time.Duration) {
	h.count++
	h.sum += d
	us := d.Microseconds()
	if us < 0 {
		us = -us
	}
	for i, bound := range jitterBoundsUS {
		if us <= bound {
			h.buckets[i]++
			return
		}
	}
	h.buckets[len(h.buckets)-1]++
}

// Snapshot returns the bucket counts, total observation count, and mean
// signed jitter so far.
func (h *jitterHistogram) Snapshot() (buckets []uint64, count uint64, mean time.Duration) {
	out := make([]uint64, len(h.buckets))
	copy(out, h.buckets[:])
	if h.count == 0 {
		return out, 0, 0
	}
	return out, h.count, h.sum / time.Duration(h.count)
}
