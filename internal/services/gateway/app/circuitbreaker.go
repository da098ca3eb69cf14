package app

import (
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSettings tune the circuit breaker of one upstream.
type BreakerSettings struct {
	Failures int           // consecutive failures that open the breaker
	OpenFor  time.Duration // time spent open before a trial request
	Interval time.Duration // period after which closed counts reset
}

// NewBreaker returns a breaker opening after s.Failures consecutive failures.
// isSuccessful, when set, decides which errors count as failures.
func NewBreaker(name string, s BreakerSettings, isSuccessful func(error) bool) *gobreaker.CircuitBreaker {
	if s.Failures < 1 {
		s.Failures = 1
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 10 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: s.Interval,
		Timeout:  s.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(s.Failures)
		},
		IsSuccessful: isSuccessful,
	})
}
