// Package cuequeue implements the cross-stream cue rendezvous described in
// spec.md §4.3: a shared queue of unpromoted (pending) and promoted
// (accepted) cues, keyed by presentation time in seconds, that lets
// independent per-stream chunkers agree on the same splice boundary
// without a central scheduler.
package cuequeue

import (
	"sort"
	"sync"
)

// Queue is the only synchronization point between per-stream chunkers
// (spec.md §5). The zero value is not usable; use New.
type Queue struct {
	mu         sync.Mutex
	cond       *sync.Cond
	unpromoted map[float64]string // time -> cue id
	promoted   map[float64]string

	waiters   int
	parties   int // number of streams expected to rendezvous here
	cancelled bool
}

// New returns a Queue that expects `parties` concurrent streams to call
// GetNext; when all of them are blocked simultaneously with no promotion
// pending, the earliest unpromoted cue is self-promoted to break the
// deadlock (spec.md §4.3).
func New(parties int) *Queue {
	q := &Queue{
		unpromoted: make(map[float64]string),
		promoted:   make(map[float64]string),
		parties:    parties,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// AddCue registers a pending cue at time t. Cues are typically added up
// front (from an ad-cue list) or as they are discovered mid-stream.
func (q *Queue) AddCue(t float64, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unpromoted[t] = id
	q.cond.Broadcast()
}

// GetHint returns the smallest unpromoted cue time >= t, or t if none
// exists; chunkers use this to decide how far ahead to look before closing
// a segment on duration alone.
func (q *Queue) GetHint(t float64) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	best := t
	found := false
	for ct := range q.unpromoted {
		if ct >= t && (!found || ct < best) {
			best = ct
			found = true
		}
	}
	return best
}

// PromoteAt promotes the earliest unpromoted cue <= t, discards every other
// unpromoted cue <= t (they can never be reached now), and wakes waiters. A
// no-op if there is no unpromoted cue at or before t.
func (q *Queue) PromoteAt(t float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.promoteAtLocked(t)
}

func (q *Queue) promoteAtLocked(t float64) {
	var times []float64
	for ct := range q.unpromoted {
		if ct <= t {
			times = append(times, ct)
		}
	}
	if len(times) == 0 {
		return
	}
	sort.Float64s(times)
	chosen := times[0]
	id := q.unpromoted[chosen]
	q.promoted[chosen] = id
	for _, ct := range times {
		delete(q.unpromoted, ct)
	}
	q.cond.Broadcast()
}

// PeekPromoted is a non-blocking query: it returns the first promoted cue
// with after < time <= atMost, if any. Chunkers use this (rather than the
// blocking GetNext) to decide whether to close a segment on a cue without
// ever suspending inside a single stream's synchronous Process call
// (spec.md §5); GetNext remains available for callers that deliberately
// want to wait for cross-stream resolution.
func (q *Queue) PeekPromoted(after, atMost float64) (float64, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	best := 0.0
	found := false
	for t := range q.promoted {
		if t > after && t <= atMost && (!found || t < best) {
			best = t
			found = true
		}
	}
	if !found {
		return 0, "", false
	}
	return best, q.promoted[best], true
}

// GetNext blocks until a promoted cue strictly greater than hint exists, a
// deadlock-break self-promotion occurs, or the queue is cancelled. Returns
// (time, id, ok); ok is false on cancellation, or when every party is
// waiting and there is no unpromoted cue left to self-promote.
func (q *Queue) GetNext(hint float64) (float64, string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.waiters++
	defer func() { q.waiters-- }()

	for {
		if q.cancelled {
			return 0, "", false
		}
		if t, id, ok := q.firstPromotedAfterLocked(hint); ok {
			return t, id, true
		}
		if q.waiters >= q.parties && q.parties > 0 {
			// All participating streams are blocked and nobody has
			// promoted anything: self-promote the earliest eligible
			// unpromoted cue to break the deadlock.
			if q.selfPromoteLocked(hint) {
				continue
			}
			// No unpromoted cue exists either: nothing will ever
			// satisfy this wait; treat as cancelled-equivalent so
			// callers do not hang forever.
			return 0, "", false
		}
		q.cond.Wait()
	}
}

func (q *Queue) firstPromotedAfterLocked(hint float64) (float64, string, bool) {
	best := 0.0
	found := false
	for t := range q.promoted {
		if t > hint && (!found || t < best) {
			best = t
			found = true
		}
	}
	if !found {
		return 0, "", false
	}
	return best, q.promoted[best], true
}

func (q *Queue) selfPromoteLocked(hint float64) bool {
	best := 0.0
	found := false
	for t := range q.unpromoted {
		if t >= hint && (!found || t < best) {
			best = t
			found = true
		}
	}
	if !found {
		return false
	}
	q.promoteAtLocked(best)
	return true
}

// Cancel wakes all waiters with no result; used on job failure so sibling
// streams waiting at the rendezvous do not hang forever.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancelled = true
	q.cond.Broadcast()
}

// Cancelled reports whether Cancel has been called.
func (q *Queue) Cancelled() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancelled
}
