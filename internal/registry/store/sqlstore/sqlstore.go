// Package sqlstore implements store.Store over database/sql. The sqlite and
// postgres packages supply a Dialect and open the connection; queries are
// written once with "?" placeholders and rebound per dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/platform/migrate"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
	txcontext "pedersen-identity/pkg/platform/tx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Dialect captures the driver differences the store cares about.
type Dialect struct {
	Name              string
	Placeholder       migrate.Placeholder
	IsUniqueViolation func(err error) bool
	TxOptions         *sql.TxOptions
}

// Store is a SQL-backed registry store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	queries map[string]string
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	if dialect.Placeholder == nil {
		dialect.Placeholder = migrate.QuestionMark
	}
	if dialect.IsUniqueViolation == nil {
		dialect.IsUniqueViolation = func(error) bool { return false }
	}
	s := &Store{db: db, dialect: dialect, queries: make(map[string]string, len(rawQueries))}
	for name, q := range rawQueries {
		s.queries[name] = rebind(q, dialect.Placeholder)
	}
	return s
}

// Migrate applies the embedded registry schema.
func (s *Store) Migrate(ctx context.Context) error {
	return migrate.Apply(ctx, s.db, migrationFS, "migrations", s.dialect.Placeholder)
}

// DB exposes the handle for health checks and test truncation.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer prefers a transaction carried on the context.
func (s *Store) execer(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Store) FindIdentity(ctx context.Context, owner id.Principal) (*models.Identity, error) {
	return s.findIdentity(ctx, s.execer(ctx), owner)
}

func (s *Store) FindRole(ctx context.Context, principal id.Principal) (*models.RoleRecord, error) {
	return s.findRole(ctx, s.execer(ctx), principal)
}

func (s *Store) ListIdentities(ctx context.Context) ([]*models.Identity, error) {
	return s.listIdentities(ctx, s.execer(ctx))
}

func (s *Store) ListRoles(ctx context.Context) ([]*models.RoleRecord, error) {
	return s.listRoles(ctx, s.execer(ctx))
}

func (s *Store) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]*models.Event, error) {
	return s.listEvents(ctx, s.execer(ctx), afterSeq, limit)
}

func (s *Store) LastSeq(ctx context.Context) (uint64, error) {
	return s.lastSeq(ctx, s.execer(ctx))
}

func (s *Store) ChainHeight(ctx context.Context) (id.Height, error) {
	return s.chainHeight(ctx, s.execer(ctx))
}

// RunInTx runs fn inside one database transaction using the dialect's
// isolation level.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return txcontext.Run(ctx, s.db, s.dialect.TxOptions, func(ctx context.Context, sqlTx *sql.Tx) error {
		return fn(ctx, &sqlTxStore{store: s, tx: sqlTx})
	})
}

type sqlTxStore struct {
	store *Store
	tx    *sql.Tx
}

func (t *sqlTxStore) FindIdentity(ctx context.Context, owner id.Principal) (*models.Identity, error) {
	return t.store.findIdentity(ctx, t.tx, owner)
}

func (t *sqlTxStore) FindRole(ctx context.Context, principal id.Principal) (*models.RoleRecord, error) {
	return t.store.findRole(ctx, t.tx, principal)
}

func (t *sqlTxStore) ListIdentities(ctx context.Context) ([]*models.Identity, error) {
	return t.store.listIdentities(ctx, t.tx)
}

func (t *sqlTxStore) ListRoles(ctx context.Context) ([]*models.RoleRecord, error) {
	return t.store.listRoles(ctx, t.tx)
}

func (t *sqlTxStore) ListEvents(ctx context.Context, afterSeq uint64, limit int) ([]*models.Event, error) {
	return t.store.listEvents(ctx, t.tx, afterSeq, limit)
}

func (t *sqlTxStore) LastSeq(ctx context.Context) (uint64, error) {
	return t.store.lastSeq(ctx, t.tx)
}

func (t *sqlTxStore) ChainHeight(ctx context.Context) (id.Height, error) {
	return t.store.chainHeight(ctx, t.tx)
}

func (t *sqlTxStore) SetChainHeight(ctx context.Context, height id.Height) error {
	if _, err := t.tx.ExecContext(ctx, t.store.queries["setChainHeight"], int64(height)); err != nil {
		return fmt.Errorf("set chain height %d: %w", height, err)
	}
	return nil
}

func (t *sqlTxStore) InsertIdentity(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	_, err := t.tx.ExecContext(ctx, t.store.queries["insertIdentity"],
		identity.Owner.String(),
		identity.DisplayName,
		identity.Role.String(),
		identity.Commitment.String(),
		string(identity.Status),
		int64(identity.RegisteredAtHeight),
		int64(identity.UpdatedAtHeight),
		nullPrincipal(identity.VerifiedBy),
	)
	if err != nil {
		if t.store.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("insert identity %s: %w", identity.Owner, store.ErrConflict)
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

func (t *sqlTxStore) UpdateIdentity(ctx context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	res, err := t.tx.ExecContext(ctx, t.store.queries["updateIdentity"],
		identity.DisplayName,
		identity.Commitment.String(),
		string(identity.Status),
		int64(identity.UpdatedAtHeight),
		nullPrincipal(identity.VerifiedBy),
		identity.Owner.String(),
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return requireOneRow(res, "update identity", identity.Owner)
}

func (t *sqlTxStore) InsertRole(ctx context.Context, record *models.RoleRecord) error {
	if record == nil {
		return fmt.Errorf("role record is required")
	}
	_, err := t.tx.ExecContext(ctx, t.store.queries["insertRole"],
		record.Principal.String(),
		record.Role.String(),
		string(record.Status),
		record.AssignedBy.String(),
		int64(record.AssignedAtHeight),
		nullPrincipal(record.DecidedBy),
		nullHeight(record.DecidedAtHeight),
	)
	if err != nil {
		if t.store.dialect.IsUniqueViolation(err) {
			return fmt.Errorf("insert role %s: %w", record.Principal, store.ErrConflict)
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

func (t *sqlTxStore) UpdateRole(ctx context.Context, record *models.RoleRecord) error {
	if record == nil {
		return fmt.Errorf("role record is required")
	}
	res, err := t.tx.ExecContext(ctx, t.store.queries["updateRole"],
		string(record.Status),
		nullPrincipal(record.DecidedBy),
		nullHeight(record.DecidedAtHeight),
		record.Principal.String(),
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireOneRow(res, "update role", record.Principal)
}

func (t *sqlTxStore) AppendEvent(ctx context.Context, event *models.Event) (uint64, error) {
	if event == nil {
		return 0, fmt.Errorf("event is required")
	}
	last, err := t.store.lastSeq(ctx, t.tx)
	if err != nil {
		return 0, err
	}
	seq := last + 1
	if event.ID == uuid.Nil {
		event.ID = event.DeriveID(seq)
	}
	_, err = t.tx.ExecContext(ctx, t.store.queries["insertEvent"],
		int64(seq),
		event.ID.String(),
		int64(event.Height),
		string(event.Type),
		event.Principal.String(),
		event.Actor.String(),
		roleText(event.Role),
		string(event.Status),
		string(event.PriorStatus),
		event.DisplayName,
		commitmentText(event.Commitment),
		commitmentText(event.PriorCommitment),
	)
	if err != nil {
		if t.store.dialect.IsUniqueViolation(err) {
			return 0, fmt.Errorf("append event %d: %w", seq, store.ErrConflict)
		}
		return 0, fmt.Errorf("append event: %w", err)
	}
	event.Seq = seq
	return seq, nil
}

func (s *Store) findIdentity(ctx context.Context, q querier, owner id.Principal) (*models.Identity, error) {
	row := q.QueryRowContext(ctx, s.queries["findIdentity"], owner.String())
	ident, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return ident, nil
}

func (s *Store) findRole(ctx context.Context, q querier, principal id.Principal) (*models.RoleRecord, error) {
	row := q.QueryRowContext(ctx, s.queries["findRole"], principal.String())
	record, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find role: %w", err)
	}
	return record, nil
}

func (s *Store) listIdentities(ctx context.Context, q querier) ([]*models.Identity, error) {
	rows, err := q.QueryContext(ctx, s.queries["listIdentities"])
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Identity, 0)
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, ident)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Collations differ between dialects; listings are byte-ordered.
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out, nil
}

func (s *Store) listRoles(ctx context.Context, q querier) ([]*models.RoleRecord, error) {
	rows, err := q.QueryContext(ctx, s.queries["listRoles"])
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()
	out := make([]*models.RoleRecord, 0)
	for rows.Next() {
		record, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out, nil
}

func (s *Store) listEvents(ctx context.Context, q querier, afterSeq uint64, limit int) ([]*models.Event, error) {
	if afterSeq > math.MaxInt64 {
		return []*models.Event{}, nil
	}
	rows, err := q.QueryContext(ctx, s.queries["listEvents"], int64(afterSeq), store.PageLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

func (s *Store) lastSeq(ctx context.Context, q querier) (uint64, error) {
	var last int64
	if err := q.QueryRowContext(ctx, s.queries["lastSeq"]).Scan(&last); err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	return uint64(last), nil
}

func (s *Store) chainHeight(ctx context.Context, q querier) (id.Height, error) {
	var height int64
	if err := q.QueryRowContext(ctx, s.queries["chainHeight"]).Scan(&height); err != nil {
		return 0, fmt.Errorf("chain height: %w", err)
	}
	return id.Height(height), nil
}

func requireOneRow(res sql.Result, op string, p id.Principal) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", op, p, store.ErrNotFound)
	}
	return nil
}

// rebind replaces each "?" with the dialect placeholder.
func rebind(query string, ph migrate.Placeholder) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(ph(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullPrincipal(p *id.Principal) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: p.String(), Valid: true}
}

func nullHeight(h *id.Height) sql.NullInt64 {
	if h == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*h), Valid: true}
}

func roleText(r models.Role) string {
	if r == models.RoleUnknown {
		return ""
	}
	return r.String()
}

func commitmentText(c commitment.Commitment) string {
	if c.IsZero() {
		return ""
	}
	return c.String()
}
