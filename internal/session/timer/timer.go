package timer

import (
	"errors"
	"time"
)

// Step is the amount of time one Tick advances the clock.
const Step = time.Second

// ErrTimerMisuse is returned when Start is called on a timer that was not Reset.
var ErrTimerMisuse = errors.New("timer started twice without reset")

type state int

const (
	stateIdle state = iota
	stateRunning
	statePaused
	stateExpired
)

// Round is a single cooperative countdown. It does no work between ticks;
// the owner calls Tick once per wall-clock second.
type Round struct {
	limit     time.Duration
	remaining time.Duration
	state     state
}

// New returns an idle round timer.
func New() *Round {
	return &Round{}
}

// Start arms the countdown. Calling Start again before Reset is a programming error.
func (r *Round) Start(limit time.Duration) error {
	if r.state != stateIdle {
		return ErrTimerMisuse
	}
	if limit <= 0 {
		limit = Step
	}
	r.limit = limit
	r.remaining = limit
	r.state = stateRunning
	return nil
}

// Pause stops the countdown; expiry will not be reported for this start.
func (r *Round) Pause() {
	if r.state == stateRunning {
		r.state = statePaused
	}
}

// Reset returns the timer to idle so it can be started again.
func (r *Round) Reset() {
	r.limit = 0
	r.remaining = 0
	r.state = stateIdle
}

// Tick advances the clock by one Step. It returns true exactly once, on the
// tick that brings a running countdown to zero.
func (r *Round) Tick() bool {
	if r.state != stateRunning {
		return false
	}
	r.remaining -= Step
	if r.remaining > 0 {
		return false
	}
	r.remaining = 0
	r.state = stateExpired
	return true
}

// Remaining returns the time left on the current countdown.
func (r *Round) Remaining() time.Duration { return r.remaining }

// Limit returns the limit the countdown was started with.
func (r *Round) Limit() time.Duration { return r.limit }

// Running reports whether the countdown is live.
func (r *Round) Running() bool { return r.state == stateRunning }
