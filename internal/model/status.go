package model

import "fmt"

const (
	StateWaiting   = "waiting"
	StateActive    = "active"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StateWaiting: true,
	},
	StateWaiting: {
		StateWaiting: true,
		StateActive:  true,
		StateFailed:  true, // stall limit exceeded while requeued
	},
	StateActive: {
		StateActive:    true,
		StateWaiting:   true, // retry or stalled requeue
		StateCompleted: true,
		StateFailed:    true,
	},
	StateCompleted: {
		StateCompleted: true,
	},
	StateFailed: {
		StateFailed: true,
	},
}

func IsKnownState(state string) bool {
	_, ok := allowedTransitions[state]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionJobState(job *Job, toState string) error {
	from := job.State
	if !CanTransition(from, toState) {
		return fmt.Errorf("invalid job state transition: %q -> %q (job_id=%s)", from, toState, job.ID)
	}
	job.State = toState
	return nil
}

// Terminal reports whether a state admits no further transitions.
func Terminal(state string) bool {
	return state == StateCompleted || state == StateFailed
}
