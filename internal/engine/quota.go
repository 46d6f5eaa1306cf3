package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxAttempts bounds the build-and-run attempts per failing test.
const DefaultMaxAttempts = 10

// QuotaEnforcer counts the attempts on one test and enforces the limit.
//
// Each test in the main loop gets its own enforcer. Check is called at the
// top of every attempt, so the attempt after the last allowed one fails
// before anything runs.
type QuotaEnforcer struct {
	maxAttempts int
	current     int
}

// NewQuotaEnforcer creates an enforcer allowing maxAttempts attempts.
func NewQuotaEnforcer(maxAttempts int) *QuotaEnforcer {
	return &QuotaEnforcer{maxAttempts: maxAttempts}
}

// Check increments the attempt counter and validates against the limit.
func (q *QuotaEnforcer) Check(test string) error {
	q.current++
	if q.current > q.maxAttempts {
		return &AttemptsExceededError{
			Test:  test,
			Limit: q.maxAttempts,
		}
	}
	return nil
}

// Current returns the number of attempts started, including a refused one.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxAttempts returns the limit.
func (q *QuotaEnforcer) MaxAttempts() int {
	return q.maxAttempts
}

// AttemptsExceededError is returned when a test still fails after the
// allowed number of attempts. It aborts the run.
type AttemptsExceededError struct {
	Test   string
	Limit  int
	Report string // latest report, filled in by the engine
}

func (e *AttemptsExceededError) Error() string {
	msg := fmt.Sprintf("could not fix %s after %d attempts", e.Test, e.Limit)
	if e.Report != "" {
		msg += " (see " + e.Report + ")"
	}
	return msg
}

// IsAttemptsExceededError returns true if the error is an
// AttemptsExceededError. Uses errors.As to handle wrapped errors.
func IsAttemptsExceededError(err error) bool {
	var ae *AttemptsExceededError
	return errors.As(err, &ae)
}
