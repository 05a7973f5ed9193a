package httptransport

import (
	"strings"

	"pedersen-identity/internal/ledger"
	"pedersen-identity/internal/registry/models"
	dErrors "pedersen-identity/pkg/domain-errors"
)

// maxCallsPerBlock bounds one submission.
const maxCallsPerBlock = 256

// CallRequest is one call inside a block submission.
type CallRequest struct {
	Operation string      `json:"operation"`
	Args      ledger.Args `json:"args"`
}

// MineBlockRequest is the body of POST /v1/blocks.
type MineBlockRequest struct {
	Calls []CallRequest `json:"calls"`
}

func (r *MineBlockRequest) Validate() error {
	if len(r.Calls) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "calls are required")
	}
	if len(r.Calls) > maxCallsPerBlock {
		return dErrors.New(dErrors.CodeInvalidInput, "too many calls in one block")
	}
	for i := range r.Calls {
		r.Calls[i].Operation = strings.TrimSpace(r.Calls[i].Operation)
		if r.Calls[i].Operation == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "operation is required")
		}
	}
	return nil
}

// OpenCommitmentRequest is the body of POST /v1/open.
type OpenCommitmentRequest struct {
	Principal   string `json:"principal"`
	DisplayName string `json:"display_name"`
	Blinding    string `json:"blinding,omitempty"`
}

func (r *OpenCommitmentRequest) Validate() error {
	r.Principal = strings.TrimSpace(r.Principal)
	if r.Principal == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	return nil
}

// OpenCommitmentResponse reports whether the opening matched.
type OpenCommitmentResponse struct {
	Opened bool `json:"opened"`
}

// EventsResponse is one page of the event log. NextAfter feeds the next
// request's after parameter.
type EventsResponse struct {
	Events    []*models.Event `json:"events"`
	NextAfter uint64          `json:"next_after"`
}

// ConsistencyResponse reports the replay check.
type ConsistencyResponse struct {
	Consistent bool   `json:"consistent"`
	LastSeq    uint64 `json:"last_seq"`
}

// HealthResponse reports liveness and the current height.
type HealthResponse struct {
	Status string `json:"status"`
	Height uint64 `json:"height"`
}
