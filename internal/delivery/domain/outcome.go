package domain

// OutcomeKind classifies the result of a best-effort operation.
type OutcomeKind int

const (
	// OutcomeSucceeded means the operation completed.
	OutcomeSucceeded OutcomeKind = iota
	// OutcomeDegraded means the operation failed but the pipeline continues.
	OutcomeDegraded
	// OutcomeFailed means the failure must propagate to the caller.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Outcome is the explicit result of a step whose failure may be non-fatal.
type Outcome struct {
	Kind OutcomeKind
	Err  error
}

// Succeeded returns a successful outcome.
func Succeeded() Outcome {
	return Outcome{Kind: OutcomeSucceeded}
}

// Degraded returns a non-fatal failure outcome.
func Degraded(err error) Outcome {
	return Outcome{Kind: OutcomeDegraded, Err: err}
}

// Failed returns a fatal failure outcome.
func Failed(err error) Outcome {
	return Outcome{Kind: OutcomeFailed, Err: err}
}

// IsFatal reports whether the outcome must propagate.
func (o Outcome) IsFatal() bool {
	return o.Kind == OutcomeFailed
}
