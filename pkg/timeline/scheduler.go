package timeline

import (
	"sort"
	"sync"
	"time"
)

// Timer is a pending callback returned by a [Scheduler].
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer, false if it already fired or was stopped.
	Stop() bool
}

// Scheduler arms one-shot callbacks.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// RealScheduler schedules callbacks on the wall clock.
type RealScheduler struct{}

// AfterFunc calls f in its own goroutine after d.
func (RealScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// =============================================================================
// ManualScheduler
// =============================================================================

// ManualScheduler is a [Scheduler] driven by explicit calls to
// [ManualScheduler.Advance]. Callbacks run synchronously on the goroutine
// calling Advance, in due-time order. It is safe for concurrent use.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
	armed  int
}

type manualTimer struct {
	s   *ManualScheduler
	at  time.Duration
	seq int
	f   func()
}

// NewManualScheduler returns a scheduler at virtual time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc arms f to run once virtual time reaches now+d.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.armed++
	t := &manualTimer{s: s, at: s.now + d, seq: s.seq, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.timers {
		if p == t {
			s.timers = append(s.timers[:i], s.timers[i+1:]...)
			return true
		}
	}
	return false
}

// Advance moves virtual time forward by d, firing every timer that becomes
// due, including timers armed by callbacks fired during this call.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	end := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		next := s.popDue(end)
		if next == nil {
			s.now = end
			s.mu.Unlock()
			return
		}
		s.now = next.at
		s.mu.Unlock()
		next.f()
	}
}

// popDue removes and returns the earliest timer due at or before end.
func (s *ManualScheduler) popDue(end time.Duration) *manualTimer {
	if len(s.timers) == 0 {
		return nil
	}
	sort.SliceStable(s.timers, func(i, j int) bool {
		if s.timers[i].at != s.timers[j].at {
			return s.timers[i].at < s.timers[j].at
		}
		return s.timers[i].seq < s.timers[j].seq
	})
	if s.timers[0].at > end {
		return nil
	}
	t := s.timers[0]
	s.timers = s.timers[1:]
	return t
}

// Pending returns the number of armed timers that have neither fired nor
// been stopped.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Armed returns the total number of timers ever armed.
func (s *ManualScheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Now returns the current virtual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
