package scheduler

import (
	"sort"
	"time"

	"github.com/BaSui01/batchflow/types"
)

// requestQueue is the priority-sorted holding area for requests awaiting
// batch assignment. All mutations happen under a single mutex owned by the
// Engine so that a request is observable in exactly one place at a time:
// the queue, an active batch, or nowhere (completed).
//
// Ordering is total and stable: higher priority first, FIFO within a tier.
type requestQueue struct {
	pending []*types.Request
	max     int
	closed  bool
}

func newRequestQueue(max int) *requestQueue {
	return &requestQueue{
		pending: make([]*types.Request, 0, 64),
		max:     max,
	}
}

// push appends a request and restores priority order. Returns false when
// the queue is closed or at capacity.
func (q *requestQueue) push(req *types.Request) bool {
	if q.closed || len(q.pending) >= q.max {
		return false
	}
	q.pending = append(q.pending, req)
	// Stable sort keeps insertion order within a priority tier.
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].Priority > q.pending[j].Priority
	})
	return true
}

// drainUpTo removes and returns up to n requests from the front.
func (q *requestQueue) drainUpTo(n int) []*types.Request {
	if n <= 0 || len(q.pending) == 0 {
		return nil
	}
	if n > len(q.pending) {
		n = len(q.pending)
	}
	drained := make([]*types.Request, n)
	copy(drained, q.pending[:n])
	remaining := len(q.pending) - n
	copy(q.pending, q.pending[n:])
	for i := remaining; i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = q.pending[:remaining]
	return drained
}

// removeExpired removes and returns every request whose deadline has passed.
func (q *requestQueue) removeExpired(now time.Time) []*types.Request {
	var expired []*types.Request
	kept := q.pending[:0]
	for _, req := range q.pending {
		if req.Expired(now) {
			expired = append(expired, req)
			continue
		}
		kept = append(kept, req)
	}
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = nil
	}
	q.pending = kept
	return expired
}

// drainAll empties the queue and returns everything that was pending.
func (q *requestQueue) drainAll() []*types.Request {
	drained := q.pending
	q.pending = make([]*types.Request, 0, 64)
	return drained
}

// close marks the queue terminal and returns everything still pending.
// Every later push fails, even from a caller that observed a stale
// lifecycle state before the shutdown drain ran.
func (q *requestQueue) close() []*types.Request {
	q.closed = true
	return q.drainAll()
}

// reopen clears the closed flag for an engine restart.
func (q *requestQueue) reopen() {
	q.closed = false
}

// urgentCount counts queued requests whose deadline is within window of now.
func (q *requestQueue) urgentCount(now time.Time, window time.Duration) int {
	count := 0
	for _, req := range q.pending {
		if req.Urgent(now, window) {
			count++
		}
	}
	return count
}

func (q *requestQueue) len() int {
	return len(q.pending)
}
