package domain

import (
	"strings"

	"github.com/allisson/mailpipe/internal/errors"
)

// CircuitState is the state of the dispatch circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"
	CircuitOpen     CircuitState = "OPEN"
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// ParseCircuitState parses a state name case-insensitively.
func ParseCircuitState(s string) (CircuitState, error) {
	switch state := CircuitState(strings.ToUpper(strings.TrimSpace(s))); state {
	case CircuitClosed, CircuitOpen, CircuitHalfOpen:
		return state, nil
	default:
		return "", errors.Wrapf(ErrInvalidCircuitState, "%q", s)
	}
}

// CircuitSnapshot is a point-in-time view of the breaker.
type CircuitSnapshot struct {
	State        CircuitState
	FailureCount int
}
