package advisory

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breaker shields an advisory endpoint behind a circuit breaker so a dead
// model server fails fast instead of eating the whole retry budget on every
// scheduler tick.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a breaker that trips on three consecutive failures and
// probes again after a minute.
func NewBreaker(name string) *Breaker {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 3
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}
