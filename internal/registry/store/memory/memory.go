// Package memory is the in-process registry backend. A single writer lock
// serializes transactions; writes are staged on the transaction and merged
// into the tables only when the callback succeeds.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
)

// Store keeps all three tables in maps guarded by one RWMutex.
type Store struct {
	mu         sync.RWMutex
	identities map[id.Principal]*models.Identity
	roles      map[id.Principal]*models.RoleRecord
	events     []*models.Event
	height     id.Height
}

// New returns an empty store.
func New() *Store {
	return &Store{
		identities: make(map[id.Principal]*models.Identity),
		roles:      make(map[id.Principal]*models.RoleRecord),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) FindIdentity(_ context.Context, owner id.Principal) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findIdentity(owner)
}

func (s *Store) FindRole(_ context.Context, principal id.Principal) (*models.RoleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findRole(principal)
}

func (s *Store) ListIdentities(_ context.Context) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedIdentities(s.identities, nil), nil
}

func (s *Store) ListRoles(_ context.Context) ([]*models.RoleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedRoles(s.roles, nil), nil
}

func (s *Store) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageEvents(s.events, nil, afterSeq, limit), nil
}

func (s *Store) LastSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.events)), nil
}

func (s *Store) ChainHeight(_ context.Context) (id.Height, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height, nil
}

// RunInTx holds the writer lock for the whole callback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		base:       s,
		identities: make(map[id.Principal]*models.Identity),
		roles:      make(map[id.Principal]*models.RoleRecord),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) findIdentity(owner id.Principal) (*models.Identity, error) {
	row, ok := s.identities[owner]
	if !ok {
		return nil, store.ErrNotFound
	}
	return row.Clone(), nil
}

func (s *Store) findRole(principal id.Principal) (*models.RoleRecord, error) {
	row, ok := s.roles[principal]
	if !ok {
		return nil, store.ErrNotFound
	}
	return row.Clone(), nil
}

// memTx stages writes over the base tables. The base lock is held by RunInTx.
type memTx struct {
	base       *Store
	identities map[id.Principal]*models.Identity
	roles      map[id.Principal]*models.RoleRecord
	events     []*models.Event
	height     *id.Height
}

func (t *memTx) FindIdentity(_ context.Context, owner id.Principal) (*models.Identity, error) {
	if row, ok := t.identities[owner]; ok {
		return row.Clone(), nil
	}
	return t.base.findIdentity(owner)
}

func (t *memTx) FindRole(_ context.Context, principal id.Principal) (*models.RoleRecord, error) {
	if row, ok := t.roles[principal]; ok {
		return row.Clone(), nil
	}
	return t.base.findRole(principal)
}

func (t *memTx) ListIdentities(_ context.Context) ([]*models.Identity, error) {
	return sortedIdentities(t.base.identities, t.identities), nil
}

func (t *memTx) ListRoles(_ context.Context) ([]*models.RoleRecord, error) {
	return sortedRoles(t.base.roles, t.roles), nil
}

func (t *memTx) ListEvents(_ context.Context, afterSeq uint64, limit int) ([]*models.Event, error) {
	return pageEvents(t.base.events, t.events, afterSeq, limit), nil
}

func (t *memTx) LastSeq(_ context.Context) (uint64, error) {
	return uint64(len(t.base.events) + len(t.events)), nil
}

func (t *memTx) ChainHeight(_ context.Context) (id.Height, error) {
	if t.height != nil {
		return *t.height, nil
	}
	return t.base.height, nil
}

func (t *memTx) SetChainHeight(_ context.Context, height id.Height) error {
	t.height = &height
	return nil
}

func (t *memTx) InsertIdentity(_ context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	if t.hasIdentity(identity.Owner) {
		return fmt.Errorf("insert identity %s: %w", identity.Owner, store.ErrConflict)
	}
	t.identities[identity.Owner] = identity.Clone()
	return nil
}

func (t *memTx) UpdateIdentity(_ context.Context, identity *models.Identity) error {
	if identity == nil {
		return fmt.Errorf("identity is required")
	}
	if !t.hasIdentity(identity.Owner) {
		return fmt.Errorf("update identity %s: %w", identity.Owner, store.ErrNotFound)
	}
	t.identities[identity.Owner] = identity.Clone()
	return nil
}

func (t *memTx) InsertRole(_ context.Context, record *models.RoleRecord) error {
	if record == nil {
		return fmt.Errorf("role record is required")
	}
	if t.hasRole(record.Principal) {
		return fmt.Errorf("insert role %s: %w", record.Principal, store.ErrConflict)
	}
	t.roles[record.Principal] = record.Clone()
	return nil
}

func (t *memTx) UpdateRole(_ context.Context, record *models.RoleRecord) error {
	if record == nil {
		return fmt.Errorf("role record is required")
	}
	if !t.hasRole(record.Principal) {
		return fmt.Errorf("update role %s: %w", record.Principal, store.ErrNotFound)
	}
	t.roles[record.Principal] = record.Clone()
	return nil
}

func (t *memTx) AppendEvent(_ context.Context, event *models.Event) (uint64, error) {
	if event == nil {
		return 0, fmt.Errorf("event is required")
	}
	seq := uint64(len(t.base.events)+len(t.events)) + 1
	event.Seq = seq
	if event.ID == uuid.Nil {
		event.ID = event.DeriveID(seq)
	}
	t.events = append(t.events, event.Clone())
	return seq, nil
}

func (t *memTx) hasIdentity(owner id.Principal) bool {
	if _, ok := t.identities[owner]; ok {
		return true
	}
	_, ok := t.base.identities[owner]
	return ok
}

func (t *memTx) hasRole(principal id.Principal) bool {
	if _, ok := t.roles[principal]; ok {
		return true
	}
	_, ok := t.base.roles[principal]
	return ok
}

func (t *memTx) commit() {
	for owner, row := range t.identities {
		t.base.identities[owner] = row
	}
	for principal, row := range t.roles {
		t.base.roles[principal] = row
	}
	t.base.events = append(t.base.events, t.events...)
	if t.height != nil {
		t.base.height = *t.height
	}
}

func sortedIdentities(base, overlay map[id.Principal]*models.Identity) []*models.Identity {
	merged := make(map[id.Principal]*models.Identity, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	out := make([]*models.Identity, 0, len(merged))
	for _, row := range merged {
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}

func sortedRoles(base, overlay map[id.Principal]*models.RoleRecord) []*models.RoleRecord {
	merged := make(map[id.Principal]*models.RoleRecord, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	out := make([]*models.RoleRecord, 0, len(merged))
	for _, row := range merged {
		out = append(out, row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Principal < out[j].Principal })
	return out
}

// pageEvents relies on base and staged being dense and ordered by Seq.
func pageEvents(base, staged []*models.Event, afterSeq uint64, limit int) []*models.Event {
	limit = store.PageLimit(limit)
	total := uint64(len(base) + len(staged))
	out := make([]*models.Event, 0)
	if afterSeq >= total {
		return out
	}
	for seq := afterSeq + 1; seq <= total && len(out) < limit; seq++ {
		idx := int(seq - 1)
		if idx < len(base) {
			out = append(out, base[idx].Clone())
		} else {
			out = append(out, staged[idx-len(base)].Clone())
		}
	}
	return out
}
