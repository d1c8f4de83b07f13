package resilience

import "time"

// Outcome labels the result of a guarded call
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeRejected  Outcome = "rejected"
	OutcomeAbandoned Outcome = "abandoned"
)

// Observer receives resilience events, typically for metrics
type Observer interface {
	CallFinished(dependency, op string, outcome Outcome, elapsed time.Duration)
	Retried(dependency, op string, attempt int, delay time.Duration)
	StateChanged(dependency string, from, to State)
}

// NopObserver discards every event
type NopObserver struct{}

func (NopObserver) CallFinished(string, string, Outcome, time.Duration) {}
func (NopObserver) Retried(string, string, int, time.Duration)          {}
func (NopObserver) StateChanged(string, State, State)                   {}
