package ledger

import (
	"encoding/json"
	"fmt"

	"pedersen-identity/internal/registry/models"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// Call is one signed contract call. Caller is set by the host from the
// transaction signature, never from the payload.
type Call struct {
	Operation models.Operation `json:"operation"`
	Caller    id.Principal     `json:"-"`
	Args      Args             `json:"args"`
}

// Args is the union of arguments across operations. Each operation reads the
// fields it needs and ignores the rest.
type Args struct {
	Principal   string `json:"principal,omitempty"`
	Target      string `json:"target,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Name        string `json:"name,omitempty"`
	RoleCode    uint64 `json:"role_code,omitempty"`
	Blinding    string `json:"blinding,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Commitment  string `json:"commitment,omitempty"`
}

// Response is the outcome of a call. Exactly one of Value and Err is
// meaningful: OK calls carry a Value (nil for none), failed calls a code.
type Response struct {
	OK    bool         `json:"ok"`
	Value any          `json:"value,omitempty"`
	Err   dErrors.Code `json:"error,omitempty"`
}

// Ok wraps a successful value.
func Ok(v any) Response { return Response{OK: true, Value: v} }

// Err wraps a failure. Role-registry conflicts surface as duplicates.
func Err(err error) Response {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeAlreadyRegistered:
		code = dErrors.CodeDuplicateIdentity
	case dErrors.CodeInvalidInput:
		code = dErrors.CodeInvalidScalar
	}
	return Response{Err: code}
}

// String renders results like (ok true) and (err ERR_UNAUTHORIZED). Absent
// values print as (ok none).
func (r Response) String() string {
	if !r.OK {
		return fmt.Sprintf("(err %s)", r.Err)
	}
	switch v := r.Value.(type) {
	case nil:
		return "(ok none)"
	case bool:
		return fmt.Sprintf("(ok %t)", v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "(ok (some ?))"
		}
		return fmt.Sprintf("(ok (some %s))", b)
	}
}
