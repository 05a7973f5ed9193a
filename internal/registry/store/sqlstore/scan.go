package sqlstore

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/registry/models"
	id "pedersen-identity/pkg/domain"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner) (*models.Identity, error) {
	var (
		owner, displayName, role, c, status string
		registeredAt, updatedAt             int64
		verifiedBy                          sql.NullString
	)
	if err := row.Scan(&owner, &displayName, &role, &c, &status, &registeredAt, &updatedAt, &verifiedBy); err != nil {
		return nil, err
	}
	ident := &models.Identity{
		Owner:              id.Principal(owner),
		DisplayName:        displayName,
		RegisteredAtHeight: id.Height(registeredAt),
		UpdatedAtHeight:    id.Height(updatedAt),
	}
	var err error
	if ident.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("identity %s: %w", owner, err)
	}
	if ident.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("identity %s: %w", owner, err)
	}
	if ident.Commitment, err = commitment.ParseCommitmentHex(c); err != nil {
		return nil, fmt.Errorf("identity %s: %w", owner, err)
	}
	if verifiedBy.Valid {
		by := id.Principal(verifiedBy.String)
		ident.VerifiedBy = &by
	}
	return ident, nil
}

func scanRole(row scanner) (*models.RoleRecord, error) {
	var (
		principal, role, status, assignedBy string
		assignedAt                          int64
		decidedBy                           sql.NullString
		decidedAt                           sql.NullInt64
	)
	if err := row.Scan(&principal, &role, &status, &assignedBy, &assignedAt, &decidedBy, &decidedAt); err != nil {
		return nil, err
	}
	record := &models.RoleRecord{
		Principal:        id.Principal(principal),
		AssignedBy:       id.Principal(assignedBy),
		AssignedAtHeight: id.Height(assignedAt),
	}
	var err error
	if record.Role, err = models.ParseRole(role); err != nil {
		return nil, fmt.Errorf("role %s: %w", principal, err)
	}
	if record.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("role %s: %w", principal, err)
	}
	if decidedBy.Valid {
		by := id.Principal(decidedBy.String)
		record.DecidedBy = &by
	}
	if decidedAt.Valid {
		h := id.Height(decidedAt.Int64)
		record.DecidedAtHeight = &h
	}
	return record, nil
}

func scanEvent(row scanner) (*models.Event, error) {
	var (
		seq, height                                  int64
		eventID, typ, principal, actor, role, status string
		priorStatus, displayName, c, priorCommitment string
	)
	if err := row.Scan(&seq, &eventID, &height, &typ, &principal, &actor, &role, &status,
		&priorStatus, &displayName, &c, &priorCommitment); err != nil {
		return nil, err
	}
	event := &models.Event{
		Seq:         uint64(seq),
		Height:      id.Height(height),
		Type:        models.EventType(typ),
		Principal:   id.Principal(principal),
		Actor:       id.Principal(actor),
		Status:      models.Status(status),
		PriorStatus: models.Status(priorStatus),
		DisplayName: displayName,
	}
	var err error
	if event.ID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("event %d id: %w", seq, err)
	}
	if role != "" {
		if event.Role, err = models.ParseRole(role); err != nil {
			return nil, fmt.Errorf("event %d: %w", seq, err)
		}
	}
	if event.Commitment, err = parseOptionalCommitment(c); err != nil {
		return nil, fmt.Errorf("event %d: %w", seq, err)
	}
	if event.PriorCommitment, err = parseOptionalCommitment(priorCommitment); err != nil {
		return nil, fmt.Errorf("event %d: %w", seq, err)
	}
	return event, nil
}

// parseOptionalCommitment maps the empty column to the zero commitment.
func parseOptionalCommitment(s string) (commitment.Commitment, error) {
	if s == "" {
		return commitment.Commitment{}, nil
	}
	return commitment.ParseCommitmentHex(s)
}
