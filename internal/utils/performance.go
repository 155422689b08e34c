package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold flags operations worth a louder log line. Scoring runs
// over a large universe are the expected caller; anything past this is
// a sign the worker pool is starved or a repository is misbehaving.
const slowThreshold = 30 * time.Second

// Timer measures the duration of one named operation.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
	}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)

	event := t.log.Debug()
	if elapsed > slowThreshold {
		event = t.log.Warn()
	}
	event.
		Str("operation", t.name).
		Dur("duration_ms", elapsed).
		Msg("Operation timed")

	return elapsed
}
