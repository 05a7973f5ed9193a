// Package storetest holds the behavioural suite every registry backend must
// pass. Backend packages embed Suite and supply a constructor.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/stretchr/testify/suite"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/store"
	id "pedersen-identity/pkg/domain"
)

var (
	Deployer = id.MustPrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	Wallet1  = id.MustPrincipal("ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5")
	Wallet2  = id.MustPrincipal("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG")
)

// Suite exercises a store.Store. NewStore must return an empty store.
type Suite struct {
	suite.Suite
	NewStore func() store.Store
	store    store.Store
}

func (s *Suite) SetupTest() {
	s.store = s.NewStore()
}

func (s *Suite) TearDownTest() {
	if s.store != nil {
		s.Require().NoError(s.store.Close())
	}
}

func testIdentity(owner id.Principal, role models.Role, name string, height id.Height) *models.Identity {
	engine := commitment.New()
	c := engine.Commit(commitment.ValueFromAttribute("display-name", name), commitment.DeriveBlinding(owner, height, name))
	ident, err := models.NewIdentity(owner, role, c, name, height)
	if err != nil {
		panic(err)
	}
	return ident
}

func testRole(principal id.Principal, role models.Role, by id.Principal, height id.Height) *models.RoleRecord {
	return &models.RoleRecord{
		Principal:        principal,
		Role:             role,
		Status:           role.InitialStatus(),
		AssignedBy:       by,
		AssignedAtHeight: height,
	}
}

func (s *Suite) register(ctx context.Context, ident *models.Identity, actor id.Principal) {
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertRole(ctx, testRole(ident.Owner, ident.Role, actor, ident.RegisteredAtHeight)); err != nil {
			return err
		}
		if err := tx.InsertIdentity(ctx, ident); err != nil {
			return err
		}
		_, err := tx.AppendEvent(ctx, models.NewRegisteredEvent(ident, actor))
		return err
	})
	s.Require().NoError(err)
}

func (s *Suite) TestInsertAndFind() {
	ctx := context.Background()
	ident := testIdentity(Wallet1, models.RoleUser, "Test User", 2)
	s.register(ctx, ident, Deployer)

	got, err := s.store.FindIdentity(ctx, Wallet1)
	s.Require().NoError(err)
	s.Equal(ident.Owner, got.Owner)
	s.Equal(ident.Commitment, got.Commitment)
	s.Equal(models.StatusRegistered, got.Status)
	s.Equal(id.Height(2), got.RegisteredAtHeight)
	s.Equal("Test User", got.DisplayName)
	s.Nil(got.VerifiedBy)

	role, err := s.store.FindRole(ctx, Wallet1)
	s.Require().NoError(err)
	s.Equal(models.RoleUser, role.Role)
	s.Equal(Deployer, role.AssignedBy)
	s.Nil(role.DecidedBy)
}

func (s *Suite) TestFindMissing() {
	ctx := context.Background()
	_, err := s.store.FindIdentity(ctx, Wallet2)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.FindRole(ctx, Wallet2)
	s.ErrorIs(err, store.ErrNotFound)
}

func (s *Suite) TestInsertDuplicateConflicts() {
	ctx := context.Background()
	s.register(ctx, testIdentity(Wallet1, models.RoleUser, "Test User", 2), Deployer)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertIdentity(ctx, testIdentity(Wallet1, models.RoleUser, "Other", 3))
	})
	s.ErrorIs(err, store.ErrConflict)

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertRole(ctx, testRole(Wallet1, models.RoleProvider, Deployer, 3))
	})
	s.ErrorIs(err, store.ErrConflict)
}

func (s *Suite) TestUpdateMissing() {
	ctx := context.Background()
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateIdentity(ctx, testIdentity(Wallet2, models.RoleUser, "x", 1))
	})
	s.ErrorIs(err, store.ErrNotFound)

	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateRole(ctx, testRole(Wallet2, models.RoleUser, Deployer, 1))
	})
	s.ErrorIs(err, store.ErrNotFound)
}

// TestRollbackDiscardsAllWrites checks that a failing callback leaves no
// partial row in any table.
func (s *Suite) TestRollbackDiscardsAllWrites() {
	ctx := context.Background()
	boom := errors.New("boom")
	ident := testIdentity(Wallet1, models.RoleUser, "Test User", 2)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		s.Require().NoError(tx.InsertRole(ctx, testRole(Wallet1, models.RoleUser, Deployer, 2)))
		s.Require().NoError(tx.InsertIdentity(ctx, ident))
		_, err := tx.AppendEvent(ctx, models.NewRegisteredEvent(ident, Deployer))
		s.Require().NoError(err)

		seen, err := tx.FindIdentity(ctx, Wallet1)
		s.Require().NoError(err)
		s.Equal(ident.Commitment, seen.Commitment)
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindIdentity(ctx, Wallet1)
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.store.FindRole(ctx, Wallet1)
	s.ErrorIs(err, store.ErrNotFound)
	last, err := s.store.LastSeq(ctx)
	s.Require().NoError(err)
	s.Zero(last)
}

func (s *Suite) TestUpdatePersists() {
	ctx := context.Background()
	ident := testIdentity(Wallet2, models.RoleProvider, "Test Provider", 3)
	s.register(ctx, ident, Deployer)

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		role, err := tx.FindRole(ctx, Wallet2)
		if err != nil {
			return err
		}
		role.ApplyStatus(models.StatusVerified, Deployer, 4)
		if err := tx.UpdateRole(ctx, role); err != nil {
			return err
		}
		row, err := tx.FindIdentity(ctx, Wallet2)
		if err != nil {
			return err
		}
		row.ApplyStatus(models.StatusVerified, Deployer, 4)
		return tx.UpdateIdentity(ctx, row)
	})
	s.Require().NoError(err)

	got, err := s.store.FindIdentity(ctx, Wallet2)
	s.Require().NoError(err)
	s.Equal(models.StatusVerified, got.Status)
	s.Require().NotNil(got.VerifiedBy)
	s.Equal(Deployer, *got.VerifiedBy)
	s.Equal(id.Height(4), got.UpdatedAtHeight)

	role, err := s.store.FindRole(ctx, Wallet2)
	s.Require().NoError(err)
	s.Require().NotNil(role.DecidedAtHeight)
	s.Equal(id.Height(4), *role.DecidedAtHeight)
}

func (s *Suite) TestEventsAreDenseAndOrdered() {
	ctx := context.Background()
	s.register(ctx, testIdentity(Wallet1, models.RoleUser, "Test User", 2), Deployer)
	s.register(ctx, testIdentity(Wallet2, models.RoleProvider, "Test Provider", 3), Deployer)

	events, err := s.store.ListEvents(ctx, 0, 0)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(uint64(1), events[0].Seq)
	s.Equal(models.EventIdentityRegistered, events[0].Type)
	s.Equal(uint64(2), events[1].Seq)
	s.Equal(models.EventProviderRegistered, events[1].Type)
	s.Equal(models.RoleProvider, events[1].Role)
	s.False(events[1].Commitment.IsZero())

	after, err := s.store.ListEvents(ctx, 1, 10)
	s.Require().NoError(err)
	s.Require().Len(after, 1)
	s.Equal(uint64(2), after[0].Seq)

	page, err := s.store.ListEvents(ctx, 0, 1)
	s.Require().NoError(err)
	s.Len(page, 1)

	last, err := s.store.LastSeq(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), last)
}

func (s *Suite) TestListSortedByPrincipal() {
	ctx := context.Background()
	s.register(ctx, testIdentity(Wallet2, models.RoleProvider, "Test Provider", 3), Deployer)
	s.register(ctx, testIdentity(Wallet1, models.RoleUser, "Test User", 2), Deployer)

	idents, err := s.store.ListIdentities(ctx)
	s.Require().NoError(err)
	s.Require().Len(idents, 2)
	s.Equal(Wallet1, idents[0].Owner)

	roles, err := s.store.ListRoles(ctx)
	s.Require().NoError(err)
	s.Require().Len(roles, 2)
	s.Equal(Wallet1, roles[0].Principal)
}

// TestListIgnoresCollation registers contract principals that differ only in
// case; byte order puts uppercase first whatever the database collation says.
func (s *Suite) TestListIgnoresCollation() {
	ctx := context.Background()
	alpha := id.MustPrincipal(Deployer.String() + ".alpha")
	zeta := id.MustPrincipal(Deployer.String() + ".Zeta")
	s.register(ctx, testIdentity(alpha, models.RoleUser, "Alpha", 2), Deployer)
	s.register(ctx, testIdentity(zeta, models.RoleUser, "Zeta", 3), Deployer)

	idents, err := s.store.ListIdentities(ctx)
	s.Require().NoError(err)
	s.Require().Len(idents, 2)
	s.Equal([]id.Principal{zeta, alpha}, []id.Principal{idents[0].Owner, idents[1].Owner})

	roles, err := s.store.ListRoles(ctx)
	s.Require().NoError(err)
	s.Require().Len(roles, 2)
	s.Equal([]id.Principal{zeta, alpha}, []id.Principal{roles[0].Principal, roles[1].Principal})
}

func (s *Suite) TestListEventsPastTheEnd() {
	ctx := context.Background()
	s.register(ctx, testIdentity(Wallet1, models.RoleUser, "Test User", 2), Deployer)

	for _, after := range []uint64{1, 1 << 32, math.MaxUint64} {
		events, err := s.store.ListEvents(ctx, after, 10)
		s.Require().NoError(err)
		s.Empty(events, "after %d", after)
	}
}

func (s *Suite) TestAppendDerivesEventID() {
	ctx := context.Background()
	s.register(ctx, testIdentity(Wallet1, models.RoleUser, "Test User", 2), Deployer)

	events, err := s.store.ListEvents(ctx, 0, 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(events[0].DeriveID(1), events[0].ID)
}

func (s *Suite) TestChainHeightPersists() {
	ctx := context.Background()
	height, err := s.store.ChainHeight(ctx)
	s.Require().NoError(err)
	s.Equal(id.Height(0), height)

	for _, h := range []id.Height{1, 2} {
		s.Require().NoError(s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.SetChainHeight(ctx, h)
		}))
	}
	boom := errors.New("boom")
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SetChainHeight(ctx, 9); err != nil {
			return err
		}
		inTx, err := tx.ChainHeight(ctx)
		s.Require().NoError(err)
		s.Equal(id.Height(9), inTx)
		return boom
	})
	s.Require().ErrorIs(err, boom)

	height, err = s.store.ChainHeight(ctx)
	s.Require().NoError(err)
	s.Equal(id.Height(2), height)
}

// TestConcurrentRegistrationSingleWinner races registrations of one principal;
// exactly one must commit.
func (s *Suite) TestConcurrentRegistrationSingleWinner() {
	ctx := context.Background()
	const goroutines = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ident := testIdentity(Wallet1, models.RoleUser, fmt.Sprintf("User %d", i), 2)
			err := s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
				if err := tx.InsertRole(ctx, testRole(Wallet1, models.RoleUser, Deployer, 2)); err != nil {
					return err
				}
				if err := tx.InsertIdentity(ctx, ident); err != nil {
					return err
				}
				_, err := tx.AppendEvent(ctx, models.NewRegisteredEvent(ident, Deployer))
				return err
			})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	s.Equal(1, success)
	last, err := s.store.LastSeq(ctx)
	s.Require().NoError(err)
	s.Equal(uint64(1), last)
}
