package message

import (
	"fmt"
	"slices"
)

// Status is the delivery state of a single send attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// validTransitions defines allowed status transitions within one attempt.
// A retry starts a new attempt back at pending.
var validTransitions = map[Status][]Status{
	StatusPending: {StatusSent, StatusFailed},
	StatusSent:    {},
	StatusFailed:  {},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// Transition moves m to the given status. Returns error if the transition is invalid.
func (m *Message) Transition(to Status) error {
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.Status, to)
	}
	m.Status = to
	return nil
}

// ParseStatus converts a stored status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSent, StatusFailed:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown message status %q", s)
}
