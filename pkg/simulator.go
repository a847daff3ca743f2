package protocol

import (
	"tcpsim/eventQueue"
	"tcpsim/simconfig"
)

// Clock is the simulation's logical time in ticks. It advances only to the
// scheduled time of the next dequeued event, never spontaneously.
type Clock int64

// Simulator owns the event queue and the logical clock. It is the only
// control loop: all state transitions happen inside a Dispatch call that
// runs to completion before the next event is considered, so there is no
// shared-state concurrency anywhere in the simulation.
type Simulator struct {
	cfg   simconfig.Parameters
	queue *eventQueue.Queue[Event]
	now   Clock
}

// NewSimulator returns a simulator with an empty queue at time zero.
func NewSimulator(cfg simconfig.Parameters) *Simulator {
	return &Simulator{
		cfg:   cfg,
		queue: eventQueue.New[Event](),
	}
}

// Now returns the current logical time.
func (s *Simulator) Now() Clock {
	return s.now
}

// Pending returns the number of scheduled events.
func (s *Simulator) Pending() int {
	return s.queue.Len()
}

// Schedule enqueues ev for time at. Events scheduled for the same time
// dispatch in the order they were scheduled.
func (s *Simulator) Schedule(ev Event, at Clock) {
	s.queue.Enqueue(ev, int64(at))
}

// Step dequeues and dispatches the earliest event, advancing the clock to
// its scheduled time. It returns the dispatched event, or ok=false if the
// queue was empty.
func (s *Simulator) Step() (ev Event, ok bool) {
	ev, t, err := s.queue.DequeueEarliest()
	if err != nil {
		return nil, false
	}
	s.now = Clock(t)
	if s.cfg.EventTrace {
		log.Tracef("%s at time %d", ev, t)
	}
	ev.Dispatch(s, s.now)
	return ev, true
}

// Run dispatches events until the queue is empty.
func (s *Simulator) Run() {
	for {
		if _, ok := s.Step(); !ok {
			return
		}
	}
}

// RunUntil dispatches events until the queue is empty or the next event is
// scheduled past the horizon. Later events stay queued, which bounds runs
// that would otherwise retransmit forever (total loss never terminates on
// its own).
func (s *Simulator) RunUntil(horizon Clock) {
	for {
		at, ok := s.queue.PeekTime()
		if !ok || Clock(at) > horizon {
			return
		}
		s.Step()
	}
}
