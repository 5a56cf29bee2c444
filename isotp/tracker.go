package isotp

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// DefaultSessionTTL is how long a session waits for Flow Control before it is
// considered abandoned. It matches the ISO 15765-2 N_Bs timeout.
const DefaultSessionTTL = time.Second

// Tracker holds the transmissions waiting for Flow Control.
//
// Keys are reply addresses (see ReplyAddress), so a First Frame answered to a functional
// request is continued by Flow Control sent on the physical request identifier.
type Tracker interface {
	// Begin stores t under key, discarding any transmission already pending there.
	// It reports whether one was discarded.
	Begin(key uint32, t *Transmission) (replaced bool)
	// Take removes and returns the transmission pending under key.
	Take(key uint32) (*Transmission, bool)
	// Abort drops the transmission pending under key.
	Abort(key uint32) bool
	// Len returns the number of pending transmissions.
	Len() int
	// Sweep drops transmissions older than the tracker TTL and returns how many it dropped.
	Sweep(now time.Time) int
	// Reset drops every pending transmission.
	Reset()
}

// singleSlotTracker keeps at most one transmission for the whole bus.
type singleSlotTracker struct {
	slot atomic.Pointer[Transmission]
}

var _ Tracker = (*singleSlotTracker)(nil)

// NewSingleSlotTracker returns a Tracker holding one transmission regardless of key.
// Starting a new response discards the previous one, whichever tester it belonged to.
// Single-slot transmissions never expire.
func NewSingleSlotTracker() Tracker {
	return &singleSlotTracker{}
}

func (s *singleSlotTracker) Begin(_ uint32, t *Transmission) bool {
	return s.slot.Swap(t) != nil
}

func (s *singleSlotTracker) Take(_ uint32) (*Transmission, bool) {
	t := s.slot.Swap(nil)
	return t, t != nil
}

func (s *singleSlotTracker) Abort(key uint32) bool {
	_, ok := s.Take(key)
	return ok
}

func (s *singleSlotTracker) Len() int {
	if s.slot.Load() != nil {
		return 1
	}

	return 0
}

func (s *singleSlotTracker) Sweep(time.Time) int { return 0 }

func (s *singleSlotTracker) Reset() { s.slot.Store(nil) }

// sessionTracker keeps one transmission per reply address.
type sessionTracker struct {
	ttl      time.Duration
	sessions *xsync.MapOf[uint32, *Transmission]
}

var _ Tracker = (*sessionTracker)(nil)

// NewSessionTracker returns a Tracker with independent state per reply address.
// Transmissions older than ttl are dropped by Sweep; a non-positive ttl disables expiry.
func NewSessionTracker(ttl time.Duration) Tracker {
	return &sessionTracker{
		ttl:      ttl,
		sessions: xsync.NewMapOf[uint32, *Transmission](),
	}
}

func (s *sessionTracker) Begin(key uint32, t *Transmission) bool {
	_, loaded := s.sessions.LoadAndStore(key, t)
	return loaded
}

func (s *sessionTracker) Take(key uint32) (*Transmission, bool) {
	return s.sessions.LoadAndDelete(key)
}

func (s *sessionTracker) Abort(key uint32) bool {
	_, ok := s.sessions.LoadAndDelete(key)
	return ok
}

func (s *sessionTracker) Len() int {
	return s.sessions.Size()
}

func (s *sessionTracker) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	evicted := 0
	s.sessions.Range(func(key uint32, t *Transmission) bool {
		if now.Sub(t.created) > s.ttl {
			// only delete if the session was not restarted meanwhile
			s.sessions.Compute(key, func(cur *Transmission, loaded bool) (*Transmission, bool) {
				if loaded && cur == t {
					evicted++
					return nil, true
				}
				return cur, !loaded
			})
		}
		return true
	})

	return evicted
}

func (s *sessionTracker) Reset() {
	s.sessions.Clear()
}
