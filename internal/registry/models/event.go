package models

import (
	"encoding/binary"

	"github.com/google/uuid"

	"pedersen-identity/internal/commitment"
	id "pedersen-identity/pkg/domain"
)

// EventType names an accepted state transition.
type EventType string

const (
	EventAdminSeeded        EventType = "admin_seeded"
	EventIdentityRegistered EventType = "identity_registered"
	EventProviderRegistered EventType = "provider_registered"
	EventIdentityVerified   EventType = "identity_verified"
	EventIdentityRejected   EventType = "identity_rejected"
	EventCommitmentRotated  EventType = "commitment_rotated"
	EventIdentityRevoked    EventType = "identity_revoked"
)

// Event is one EventLog row. Seq is assigned by the log on append and is the
// total order of accepted transitions. Each event carries every field replay
// needs to rebuild the identity and role tables without consulting them.
type Event struct {
	Seq             uint64                `json:"seq"`
	ID              uuid.UUID             `json:"id"`
	Height          id.Height             `json:"height"`
	Type            EventType             `json:"type"`
	Principal       id.Principal          `json:"principal"`
	Actor           id.Principal          `json:"actor"`
	Role            Role                  `json:"role,omitempty"`
	Status          Status                `json:"status,omitempty"`
	PriorStatus     Status                `json:"prior_status,omitempty"`
	DisplayName     string                `json:"display_name,omitempty"`
	Commitment      commitment.Commitment `json:"commitment,omitempty"`
	PriorCommitment commitment.Commitment `json:"prior_commitment,omitempty"`
}

// eventNamespace scopes event IDs so they never collide with UUIDs minted
// elsewhere.
var eventNamespace = uuid.MustParse("6f1c2a4e-8b3d-5e7f-9a01-c2d3e4f5a6b7")

// DeriveID returns the event ID for seq. It depends only on ledger data, so
// every node applying the same calls stores the same IDs.
func (e *Event) DeriveID(seq uint64) uuid.UUID {
	buf := make([]byte, 0, 16+len(e.Type)+1+len(e.Principal))
	buf = binary.BigEndian.AppendUint64(buf, seq)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.Height))
	buf = append(buf, e.Type...)
	buf = append(buf, 0)
	buf = append(buf, e.Principal...)
	return uuid.NewSHA1(eventNamespace, buf)
}

// Clone returns a copy.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	out := *e
	return &out
}

// NewAdminSeededEvent records the deployer bootstrap.
func NewAdminSeededEvent(deployer id.Principal, height id.Height) *Event {
	return &Event{
		Type:      EventAdminSeeded,
		Height:    height,
		Principal: deployer,
		Actor:     deployer,
		Role:      RoleAdmin,
		Status:    RoleAdmin.InitialStatus(),
	}
}

// NewRegisteredEvent records a new identity row and its role assignment.
func NewRegisteredEvent(identity *Identity, actor id.Principal) *Event {
	typ := EventIdentityRegistered
	if identity.Role == RoleProvider {
		typ = EventProviderRegistered
	}
	return &Event{
		Type:        typ,
		Height:      identity.RegisteredAtHeight,
		Principal:   identity.Owner,
		Actor:       actor,
		Role:        identity.Role,
		Status:      identity.Status,
		DisplayName: identity.DisplayName,
		Commitment:  identity.Commitment,
	}
}

// NewStatusEvent records a decided status transition.
func NewStatusEvent(record *RoleRecord, prior Status, actor id.Principal, height id.Height) *Event {
	var typ EventType
	switch record.Status {
	case StatusVerified:
		typ = EventIdentityVerified
	case StatusRejected:
		typ = EventIdentityRejected
	default:
		typ = EventIdentityRevoked
	}
	return &Event{
		Type:        typ,
		Height:      height,
		Principal:   record.Principal,
		Actor:       actor,
		Role:        record.Role,
		Status:      record.Status,
		PriorStatus: prior,
	}
}

// NewRotatedEvent records a commitment rotation with the commitment it replaced.
func NewRotatedEvent(identity *Identity, prior commitment.Commitment, actor id.Principal, height id.Height) *Event {
	return &Event{
		Type:            EventCommitmentRotated,
		Height:          height,
		Principal:       identity.Owner,
		Actor:           actor,
		Role:            identity.Role,
		Status:          identity.Status,
		Commitment:      identity.Commitment,
		PriorCommitment: prior,
	}
}
