package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"pedersen-identity/internal/commitment"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/roles"
	"pedersen-identity/internal/registry/store"
	"pedersen-identity/internal/registry/store/memory"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

var (
	deployer = id.MustPrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	wallet1  = id.MustPrincipal("ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5")
	wallet2  = id.MustPrincipal("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG")
)

type StoreSuite struct {
	suite.Suite
	backend *memory.Store
	roles   *roles.Registry
	engine  *commitment.Engine
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.backend = memory.New()
	s.roles = roles.New()
	s.engine = commitment.New()
	s.Require().NoError(s.backend.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		_, _, err := s.roles.Seed(ctx, tx, deployer, 0)
		return err
	}))
}

func (s *StoreSuite) commit(owner id.Principal, name string) commitment.Commitment {
	return s.engine.Commit(commitment.ValueFromAttribute("display-name", name), commitment.DeriveBlinding(owner, 1, name))
}

func (s *StoreSuite) register(ids *Store, principal id.Principal, role models.Role, name string, authority id.Principal) (*models.Identity, error) {
	var ident *models.Identity
	err := s.backend.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		ident, err = ids.Register(ctx, tx, principal, s.commit(principal, name), role, name, authority, 1)
		return err
	})
	return ident, err
}

func (s *StoreSuite) rotate(ids *Store, principal id.Principal, c commitment.Commitment, authority id.Principal) (commitment.Commitment, error) {
	var prior commitment.Commitment
	err := s.backend.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		_, prior, err = ids.UpdateCommitment(ctx, tx, principal, c, authority, 5)
		return err
	})
	return prior, err
}

func (s *StoreSuite) TestRegister() {
	ids := New(s.roles)

	s.Run("first registration succeeds", func() {
		ident, err := s.register(ids, wallet1, models.RoleUser, "Test User", deployer)
		s.Require().NoError(err)
		s.Equal(models.StatusRegistered, ident.Status)
		s.Empty(ident.DisplayName, "cleartext is not persisted by default")
	})

	s.Run("duplicate registration", func() {
		_, err := s.register(ids, wallet1, models.RoleUser, "Test User", wallet1)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
	})

	s.Run("rejection leaves no rows", func() {
		_, err := s.register(ids, wallet2, models.RoleProvider, "Test Provider", wallet1)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, found, err := ids.Get(context.Background(), s.backend, wallet2)
		s.Require().NoError(err)
		s.False(found)
		_, found, err = s.roles.GetRole(context.Background(), s.backend, wallet2)
		s.Require().NoError(err)
		s.False(found)
	})
}

func (s *StoreSuite) TestRegister_PersistCleartext() {
	ids := New(s.roles, WithPersistCleartext(true))
	ident, err := s.register(ids, wallet2, models.RoleProvider, "Test Provider", deployer)
	s.Require().NoError(err)
	s.Equal("Test Provider", ident.DisplayName)
	s.Equal(models.StatusPendingVerification, ident.Status)
}

func (s *StoreSuite) TestUpdateCommitment() {
	ids := New(s.roles)
	original, err := s.register(ids, wallet1, models.RoleUser, "Test User", wallet1)
	s.Require().NoError(err)
	next := s.commit(wallet1, "Renamed User")

	s.Run("stranger is unauthorized", func() {
		_, err := s.rotate(ids, wallet1, next, wallet2)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown target", func() {
		_, err := s.rotate(ids, wallet2, next, deployer)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("identical commitment", func() {
		_, err := s.rotate(ids, wallet1, original.Commitment, wallet1)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateIdentity))
	})

	s.Run("owner rotates", func() {
		prior, err := s.rotate(ids, wallet1, next, wallet1)
		s.Require().NoError(err)
		s.Equal(original.Commitment, prior)

		got, found, err := ids.Get(context.Background(), s.backend, wallet1)
		s.Require().NoError(err)
		s.Require().True(found)
		s.Equal(next, got.Commitment)
		s.Equal(id.Height(5), got.UpdatedAtHeight)
		s.Equal(id.Height(1), got.RegisteredAtHeight)
	})

	s.Run("revoked identity", func() {
		err := s.backend.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			if _, _, err := s.roles.SetStatus(ctx, tx, wallet1, models.StatusRevoked, deployer, 6); err != nil {
				return err
			}
			_, err := ids.ApplyStatus(ctx, tx, wallet1, models.StatusRevoked, deployer, 6)
			return err
		})
		s.Require().NoError(err)

		_, err = s.rotate(ids, wallet1, s.commit(wallet1, "Again"), deployer)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *StoreSuite) TestApplyStatus_SkipsRoleWithoutIdentity() {
	ids := New(s.roles)
	err := s.backend.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		ident, err := ids.ApplyStatus(ctx, tx, deployer, models.StatusRevoked, deployer, 1)
		s.Nil(ident)
		return err
	})
	s.NoError(err)
}
