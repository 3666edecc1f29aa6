package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowThreshold is the duration above which a timed operation is logged as slow.
const SlowThreshold = 30 * time.Second

// Timer measures how long an operation took and logs it
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer creates a new timer with the given name
func NewTimer(name string, log zerolog.Logger) *Timer {
	return NewTimerWithClock(name, log, time.Now)
}

// NewTimerWithClock creates a timer that reads both ends of the measurement
// from now.
func NewTimerWithClock(name string, log zerolog.Logger, now func() time.Time) *Timer {
	return &Timer{
		start: now(),
		name:  name,
		log:   log,
		now:   now,
	}
}

// Stop logs the elapsed time at debug level, or at warn level when the
// operation exceeded SlowThreshold, and returns it.
func (t *Timer) Stop() time.Duration {
	return t.StopWithFields(nil)
}

// StopWithFields is Stop with extra log fields
func (t *Timer) StopWithFields(fields map[string]interface{}) time.Duration {
	duration := t.now().Sub(t.start)

	event := t.log.Debug()
	if duration > SlowThreshold {
		event = t.log.Warn()
	}

	event.
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Fields(fields).
		Msg("Operation completed")

	return duration
}
