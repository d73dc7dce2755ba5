// Package bandwidth implements the harmonic-mean bitrate estimator used to
// populate the `bandwidth` attribute on each DASH/HLS representation
// (spec.md §4.9), grounded on
// original_source/packager/mpd/base/bandwidth_estimator.{h,cc}.
package bandwidth

import "sync"

// Estimator accumulates (size, duration) blocks and reports their
// harmonic-mean bitrate. The zero value is not usable; use New.
type Estimator struct {
	mu    sync.Mutex
	n     int // SearchWindow: 0 = all blocks, >0 = last n, <0 = first |n|
	sizes []uint64
	durs  []float64

	// firstN caches the first |n| blocks once that many have been seen, so
	// a long-running estimate with n < 0 does not need to retain every
	// block observed afterward.
	firstN bool
}

// New returns an Estimator using searchWindow blocks to compute Estimate:
// the last searchWindow blocks if searchWindow > 0, the first
// |searchWindow| blocks if searchWindow < 0, or all blocks if
// searchWindow == 0.
func New(searchWindow int) *Estimator {
	return &Estimator{n: searchWindow, firstN: searchWindow < 0}
}

// AddBlock records one block of sizeBytes produced over durationSeconds.
// Zero/negative durations are ignored: they cannot contribute a finite
// bitrate to a harmonic mean.
func (e *Estimator) AddBlock(sizeBytes uint64, durationSeconds float64) {
	if durationSeconds <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.firstN && len(e.sizes) >= -e.n {
		return // first |n| blocks already captured; later blocks are dropped
	}
	e.sizes = append(e.sizes, sizeBytes)
	e.durs = append(e.durs, durationSeconds)

	if e.n > 0 && len(e.sizes) > e.n {
		drop := len(e.sizes) - e.n
		e.sizes = e.sizes[drop:]
		e.durs = e.durs[drop:]
	}
}

// Estimate returns the harmonic-mean bitrate in bits per second across the
// configured window, rounded up. Zero if no eligible block has been
// recorded yet.
func (e *Estimator) Estimate() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return harmonicMeanBitrate(e.sizes, e.durs)
}

// harmonicMeanBitrate computes ceil(sum(size_i*8) / sum(size_i*8/rate_i))
// weighted by byte count, the same formula
// bandwidth_estimator.cc's Estimate() uses: the harmonic mean of each
// block's bitrate, weighted by its byte size, so large blocks dominate the
// estimate the way sustained throughput should.
func harmonicMeanBitrate(sizes []uint64, durs []float64) uint64 {
	if len(sizes) == 0 {
		return 0
	}
	var totalBits, weightedInverseSum float64
	for i, size := range sizes {
		bits := float64(size) * 8
		rate := bits / durs[i]
		if rate <= 0 {
			continue
		}
		totalBits += bits
		weightedInverseSum += bits / rate
	}
	if weightedInverseSum <= 0 {
		return 0
	}
	estimate := totalBits / weightedInverseSum
	return ceilUint64(estimate)
}

func ceilUint64(v float64) uint64 {
	u := uint64(v)
	if float64(u) < v {
		u++
	}
	return u
}
