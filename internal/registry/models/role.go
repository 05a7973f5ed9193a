package models

import (
	"fmt"

	dErrors "pedersen-identity/pkg/domain-errors"
)

// Role is the closed set of registry roles. The numeric values are the codes
// callers pass to register-identity.
type Role uint8

const (
	RoleUnknown  Role = 0
	RoleUser     Role = 1
	RoleProvider Role = 2
	RoleAdmin    Role = 3
)

// ParseRoleCode maps a call-surface role code to a Role. Unknown codes are
// rejected as ERR_INVALID_SCALAR rather than passed through.
func ParseRoleCode(code uint64) (Role, error) {
	if code >= uint64(RoleUser) && code <= uint64(RoleAdmin) {
		return Role(code), nil
	}
	return RoleUnknown, dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("unknown role code %d", code))
}

// ParseRole parses the text form used in storage and JSON.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "provider":
		return RoleProvider, nil
	case "admin":
		return RoleAdmin, nil
	}
	return RoleUnknown, dErrors.New(dErrors.CodeInvalidScalar, fmt.Sprintf("unknown role %q", s))
}

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleProvider:
		return "provider"
	case RoleAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// Code returns the call-surface code.
func (r Role) Code() uint64 { return uint64(r) }

// InitialStatus is the status a freshly assigned role starts in.
func (r Role) InitialStatus() Status {
	switch r {
	case RoleProvider:
		return StatusPendingVerification
	case RoleAdmin:
		return StatusVerified
	default:
		return StatusRegistered
	}
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
