// Package notify implements the process-wide notification slot: one visible
// message at a time, auto-expiring, newest wins. It intentionally is not a
// queue; messages posted while one is visible replace it.
package notify

import (
	"sync"
	"time"
)

// DefaultTTL is the banner auto-dismiss interval.
const DefaultTTL = 3 * time.Second

// Queue is the single-slot notification channel. The zero value is not
// usable; construct with New.
type Queue struct {
	mu        sync.Mutex
	message   string
	expiresAt time.Time
	timer     *time.Timer
	seq       uint64
	sink      func(message string)
}

// New creates an empty notification slot.
func New() *Queue {
	return &Queue{}
}

// SetSink registers a callback invoked on every slot change: with the new
// message on Post, and with "" when the slot auto-clears. The callback runs
// without the queue lock held.
func (q *Queue) SetSink(fn func(message string)) {
	q.mu.Lock()
	q.sink = fn
	q.mu.Unlock()
}

// Post replaces the current message and restarts the countdown. A pending
// expiry for a superseded message is cancelled. ttl <= 0 uses DefaultTTL.
func (q *Queue) Post(message string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	q.mu.Lock()
	if q.timer != nil {
		q.timer.Stop()
	}
	q.seq++
	seq := q.seq
	q.message = message
	q.expiresAt = time.Now().Add(ttl)
	q.timer = time.AfterFunc(ttl, func() { q.expire(seq) })
	sink := q.sink
	q.mu.Unlock()

	if sink != nil {
		sink(message)
	}
}

// expire clears the slot if no newer Post superseded seq.
func (q *Queue) expire(seq uint64) {
	q.mu.Lock()
	if q.seq != seq {
		q.mu.Unlock()
		return
	}
	q.message = ""
	q.expiresAt = time.Time{}
	q.timer = nil
	sink := q.sink
	q.mu.Unlock()

	if sink != nil {
		sink("")
	}
}

// Current returns the visible message, if any.
func (q *Queue) Current() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.message == "" {
		return "", false
	}
	return q.message, true
}

// ExpiresAt returns the current message's expiry time (zero if the slot is
// empty).
func (q *Queue) ExpiresAt() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.expiresAt
}
