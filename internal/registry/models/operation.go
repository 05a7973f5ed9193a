package models

// Operation names a call on the registry's public surface.
type Operation string

const (
	OpRegisterIdentity Operation = "register-identity"
	OpRegisterProvider Operation = "register-provider"
	OpVerifyIdentity   Operation = "verify-identity"
	OpUpdateCommitment Operation = "update-commitment"
	OpRevokeIdentity   Operation = "revoke-identity"
	OpGetIdentity      Operation = "get-identity"
	OpGetProvider      Operation = "get-provider"
	OpGetRole          Operation = "get-role"
	OpOpenCommitment   Operation = "open-commitment"
)

// IsReadOnly reports whether the operation never mutates state.
func (o Operation) IsReadOnly() bool {
	switch o {
	case OpGetIdentity, OpGetProvider, OpGetRole, OpOpenCommitment:
		return true
	}
	return false
}

func (o Operation) String() string { return string(o) }
