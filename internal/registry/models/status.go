package models

import (
	"fmt"

	dErrors "pedersen-identity/pkg/domain-errors"
)

// Status is the lifecycle position of a principal in the registry.
//
// Transitions:
//
//	(none) -> registered                       users, terminal except revocation
//	(none) -> pending_verification -> verified providers, one-shot decision
//	                               -> rejected
//	any non-revoked status         -> revoked  admin revocation, terminal
//
// verified and rejected never return to pending_verification.
type Status string

const (
	StatusRegistered          Status = "registered"
	StatusPendingVerification Status = "pending_verification"
	StatusVerified            Status = "verified"
	StatusRejected            Status = "rejected"
	StatusRevoked             Status = "revoked"
)

var statusTransitions = map[Status][]Status{
	StatusRegistered:          {StatusRevoked},
	StatusPendingVerification: {StatusVerified, StatusRejected, StatusRevoked},
	StatusVerified:            {StatusRevoked},
	StatusRejected:            {StatusRevoked},
	StatusRevoked:             nil,
}

// ParseStatus parses the stored text form.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := statusTransitions[st]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("unknown status %q", s))
	}
	return st, nil
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool { return len(statusTransitions[s]) == 0 }

func (s Status) String() string { return string(s) }

// Decision is the outcome an admin records for a pending provider.
type Decision string

const (
	DecisionVerified Decision = "Verified"
	DecisionRejected Decision = "Rejected"
)

// ParseDecision accepts the two decision variants; anything else is
// ERR_INVALID_SCALAR.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionVerified, DecisionRejected:
		return Decision(s), nil
	}
	return "", dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("unknown decision %q", s))
}

// Status returns the status the decision moves a provider to.
func (d Decision) Status() Status {
	if d == DecisionVerified {
		return StatusVerified
	}
	return StatusRejected
}
