package service

import (
	"sync"
	"time"

	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
)

// StateChangeFunc observes breaker transitions. It is called without the
// breaker lock held.
type StateChangeFunc func(from, to deliveryDomain.CircuitState)

// circuitBreaker is a mutex-guarded breaker owning its reset timer.
type circuitBreaker struct {
	mu            sync.Mutex
	state         deliveryDomain.CircuitState
	failures      int
	threshold     int
	resetTimeout  time.Duration
	resetTimer    *time.Timer
	generation    uint64
	closed        bool
	onStateChange StateChangeFunc
}

type transition struct {
	from, to deliveryDomain.CircuitState
}

// NewCircuitBreaker creates a closed breaker. onStateChange may be nil.
func NewCircuitBreaker(threshold int, resetTimeout time.Duration, onStateChange StateChangeFunc) CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &circuitBreaker{
		state:         deliveryDomain.CircuitClosed,
		threshold:     threshold,
		resetTimeout:  resetTimeout,
		onStateChange: onStateChange,
	}
}

func (c *circuitBreaker) AllowDispatch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != deliveryDomain.CircuitOpen
}

// RecordFailure is a no-op while open: the failure that opened the breaker
// was already counted and refused dispatches are not failures of the path.
// Only a closed breaker opens at the threshold; while half-open failures are
// counted and the breaker stays half-open until a success closes it.
func (c *circuitBreaker) RecordFailure() {
	c.mu.Lock()
	if c.state == deliveryDomain.CircuitOpen {
		c.mu.Unlock()
		return
	}

	c.failures++

	var changed *transition
	if c.state == deliveryDomain.CircuitClosed && c.failures >= c.threshold {
		changed = c.setState(deliveryDomain.CircuitOpen)
		c.scheduleReset()
	}
	c.mu.Unlock()

	c.notify(changed)
}

func (c *circuitBreaker) RecordSuccess() {
	c.mu.Lock()
	c.stopReset()
	c.failures = 0
	changed := c.setState(deliveryDomain.CircuitClosed)
	c.mu.Unlock()

	c.notify(changed)
}

// ForceState never schedules a reset timer, so a forced OPEN holds until
// overridden or until a success is recorded.
func (c *circuitBreaker) ForceState(state deliveryDomain.CircuitState) {
	c.mu.Lock()
	c.stopReset()
	c.failures = 0
	changed := c.setState(state)
	c.mu.Unlock()

	c.notify(changed)
}

func (c *circuitBreaker) Snapshot() deliveryDomain.CircuitSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return deliveryDomain.CircuitSnapshot{State: c.state, FailureCount: c.failures}
}

func (c *circuitBreaker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopReset()
}

// scheduleReset must be called with mu held.
func (c *circuitBreaker) scheduleReset() {
	c.stopReset()
	if c.closed {
		return
	}
	gen := c.generation
	c.resetTimer = time.AfterFunc(c.resetTimeout, func() {
		c.halfOpen(gen)
	})
}

// stopReset must be called with mu held. Bumping the generation invalidates
// a timer callback that already fired and is waiting on the lock.
func (c *circuitBreaker) stopReset() {
	c.generation++
	if c.resetTimer != nil {
		c.resetTimer.Stop()
		c.resetTimer = nil
	}
}

func (c *circuitBreaker) halfOpen(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.state != deliveryDomain.CircuitOpen {
		c.mu.Unlock()
		return
	}
	c.resetTimer = nil
	c.failures = 0
	changed := c.setState(deliveryDomain.CircuitHalfOpen)
	c.mu.Unlock()

	c.notify(changed)
}

// setState must be called with mu held.
func (c *circuitBreaker) setState(to deliveryDomain.CircuitState) *transition {
	from := c.state
	c.state = to
	if from == to {
		return nil
	}
	return &transition{from: from, to: to}
}

func (c *circuitBreaker) notify(t *transition) {
	if t != nil && c.onStateChange != nil {
		c.onStateChange(t.from, t.to)
	}
}
