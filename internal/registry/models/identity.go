package models

import (
	"unicode/utf8"

	"pedersen-identity/internal/commitment"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// MaxDisplayNameLength matches the utf8 argument bound of the call surface.
const MaxDisplayNameLength = 64

// Identity is the registry row for one principal.
//
// Invariants:
//   - Owner is unique across the table; rows are never deleted
//   - Commitment is set at registration and only replaced by a rotation call
//   - Role and Status mirror the principal's RoleRecord
//   - DisplayName is empty unless cleartext persistence is enabled
//   - RegisteredAtHeight is immutable after construction
type Identity struct {
	Owner              id.Principal          `json:"owner"`
	DisplayName        string                `json:"display_name,omitempty"`
	Role               Role                  `json:"role"`
	Commitment         commitment.Commitment `json:"commitment"`
	Status             Status                `json:"status"`
	RegisteredAtHeight id.Height             `json:"registered_at_height"`
	UpdatedAtHeight    id.Height             `json:"updated_at_height"`
	VerifiedBy         *id.Principal         `json:"verified_by,omitempty"`
}

// NewIdentity validates and builds a row at registration time.
func NewIdentity(owner id.Principal, role Role, c commitment.Commitment, displayName string, height id.Height) (*Identity, error) {
	if owner.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidScalar, "identity owner is required")
	}
	if c.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidScalar, "identity commitment is required")
	}
	if role == RoleUnknown {
		return nil, dErrors.New(dErrors.CodeInvalidScalar, "identity role is required")
	}
	return &Identity{
		Owner:              owner,
		DisplayName:        displayName,
		Role:               role,
		Commitment:         c,
		Status:             role.InitialStatus(),
		RegisteredAtHeight: height,
		UpdatedAtHeight:    height,
	}, nil
}

// ValidateDisplayName checks the attribute text before it is committed to.
func ValidateDisplayName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvalidScalar, "display name is required")
	}
	if !utf8.ValidString(name) {
		return dErrors.New(dErrors.CodeInvalidScalar, "display name must be valid UTF-8")
	}
	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		return dErrors.New(dErrors.CodeInvalidScalar, "display name exceeds maximum length")
	}
	return nil
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	out := *i
	if i.VerifiedBy != nil {
		by := *i.VerifiedBy
		out.VerifiedBy = &by
	}
	return &out
}

// ApplyStatus mirrors a role-registry status change onto the row. The deciding
// admin is recorded for verification decisions only.
func (i *Identity) ApplyStatus(status Status, by id.Principal, height id.Height) {
	i.Status = status
	i.UpdatedAtHeight = height
	if status == StatusVerified || status == StatusRejected {
		decidedBy := by
		i.VerifiedBy = &decidedBy
	}
}

// ApplyCommitment replaces the commitment after a rotation.
func (i *Identity) ApplyCommitment(c commitment.Commitment, height id.Height) {
	i.Commitment = c
	i.UpdatedAtHeight = height
}

// Provider is the provider-specific view of an Identity with role Provider.
type Provider struct {
	*Identity
	Verified bool `json:"verified"`
}

// ProviderView derives the provider view. ok is false for non-provider rows.
func (i *Identity) ProviderView() (*Provider, bool) {
	if i == nil || i.Role != RoleProvider {
		return nil, false
	}
	return &Provider{Identity: i.Clone(), Verified: i.Status == StatusVerified}, true
}

// RoleRecord is the authoritative role/status row consulted for authorization.
type RoleRecord struct {
	Principal        id.Principal  `json:"principal"`
	Role             Role          `json:"role"`
	Status           Status        `json:"status"`
	AssignedBy       id.Principal  `json:"assigned_by"`
	AssignedAtHeight id.Height     `json:"assigned_at_height"`
	DecidedBy        *id.Principal `json:"decided_by,omitempty"`
	DecidedAtHeight  *id.Height    `json:"decided_at_height,omitempty"`
}

// IsActiveAdmin reports whether the record grants admin authority.
func (r *RoleRecord) IsActiveAdmin() bool {
	return r != nil && r.Role == RoleAdmin && r.Status != StatusRevoked
}

// Clone returns a deep copy.
func (r *RoleRecord) Clone() *RoleRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.DecidedBy != nil {
		by := *r.DecidedBy
		out.DecidedBy = &by
	}
	if r.DecidedAtHeight != nil {
		h := *r.DecidedAtHeight
		out.DecidedAtHeight = &h
	}
	return &out
}

// ApplyStatus records a decided transition.
func (r *RoleRecord) ApplyStatus(status Status, by id.Principal, height id.Height) {
	r.Status = status
	decidedBy := by
	decidedAt := height
	r.DecidedBy = &decidedBy
	r.DecidedAtHeight = &decidedAt
}
