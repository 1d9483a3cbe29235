// Package scheduler arms one-shot and periodic timers that deliver events into
// a session inbox. Timers never touch session state themselves.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Scheduler delivers events of type E into out when timers fire.
type Scheduler[E any] struct {
	clock clockwork.Clock
	out   chan<- E
	done  <-chan struct{}

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
}

// Handle cancels a pending timer.
type Handle struct {
	id      uint64
	stop    chan struct{}
	once    sync.Once
	release func()
}

// New creates a scheduler. Deliveries give up once done is closed.
func New[E any](clock clockwork.Clock, out chan<- E, done <-chan struct{}) *Scheduler[E] {
	return &Scheduler[E]{
		clock:   clock,
		out:     out,
		done:    done,
		handles: make(map[uint64]*Handle),
	}
}

// After delivers ev once d has elapsed.
func (s *Scheduler[E]) After(d time.Duration, ev E) *Handle {
	timer := s.clock.NewTimer(d)
	h := s.track(func() { stopAndDrainTimer(timer) })

	go func() {
		defer s.untrack(h)
		select {
		case <-timer.Chan():
			s.deliver(h, ev)
		case <-h.stop:
		case <-s.done:
			stopAndDrainTimer(timer)
		}
	}()

	log.Debug().Uint64("timer_id", h.id).Dur("delay", d).Msg("scheduled one-shot timer")
	return h
}

// Every delivers ev each interval until the handle is cancelled. Ticks that
// arrive while a previous delivery is still pending are coalesced.
func (s *Scheduler[E]) Every(interval time.Duration, ev E) *Handle {
	ticker := s.clock.NewTicker(interval)
	h := s.track(ticker.Stop)

	go func() {
		defer s.untrack(h)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				if !s.deliver(h, ev) {
					return
				}
			case <-h.stop:
				return
			case <-s.done:
				return
			}
		}
	}()

	log.Debug().Uint64("timer_id", h.id).Dur("interval", interval).Msg("scheduled periodic timer")
	return h
}

// CancelAll cancels every pending timer.
func (s *Scheduler[E]) CancelAll() {
	s.mu.Lock()
	pending := make([]*Handle, 0, len(s.handles))
	for _, h := range s.handles {
		pending = append(pending, h)
	}
	s.mu.Unlock()

	for _, h := range pending {
		h.Cancel()
	}
}

// Pending returns the number of armed timers.
func (s *Scheduler[E]) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler[E]) deliver(h *Handle, ev E) bool {
	if h.Cancelled() {
		return false
	}
	select {
	case s.out <- ev:
		return true
	case <-h.stop:
		return false
	case <-s.done:
		return false
	}
}

func (s *Scheduler[E]) track(release func()) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := &Handle{
		id:   s.nextID,
		stop: make(chan struct{}),
	}
	h.release = func() {
		release()
		s.untrack(h)
	}
	s.handles[h.id] = h
	return h
}

func (s *Scheduler[E]) untrack(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handles, h.id)
}

// Cancel stops the timer. Safe to call more than once and after it fired.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.release()
	})
}

// Cancelled reports whether Cancel has been called.
func (h *Handle) Cancelled() bool {
	select {
	case <-h.stop:
		return true
	default:
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
