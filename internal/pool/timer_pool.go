// Package pool holds reusable runtime objects.
package pool

import (
	"sync"
	"time"
)

var timerPool = sync.Pool{}

// GetTimer returns a stopped-and-reset timer that fires after d.
// Return it with PutTimer once it is no longer used.
func GetTimer(d time.Duration) *time.Timer {
	t, ok := timerPool.Get().(*time.Timer)
	if !ok {
		return time.NewTimer(d)
	}

	if t.Reset(d) {
		// still active, drop a stale tick if one slipped in
		select {
		case <-t.C:
		default:
		}
	}

	return t
}

// PutTimer returns t to the pool. t must not be used afterwards.
func PutTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)
}

// Sleep blocks for d using a pooled timer. A non-positive d returns immediately.
func Sleep(d time.Duration) {
	if d <= 0 {
		return
	}

	t := GetTimer(d)
	<-t.C
	timerPool.Put(t)
}
