package ledger

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/service"
	"pedersen-identity/internal/registry/store/memory"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
)

var (
	deployer = id.MustPrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	wallet1  = id.MustPrincipal("ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5")
	wallet2  = id.MustPrincipal("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG")
	wallet3  = id.MustPrincipal("ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC")
)

type ChainSuite struct {
	suite.Suite
	ctx   context.Context
	chain *Chain
}

func TestChainSuite(t *testing.T) {
	suite.Run(t, new(ChainSuite))
}

func (s *ChainSuite) SetupTest() {
	s.ctx = context.Background()
	chain, err := New(s.ctx, service.New(memory.New()), deployer)
	s.Require().NoError(err)
	s.chain = chain
}

// mine runs a single call in its own block and returns the receipt.
func (s *ChainSuite) mine(call Call) Receipt {
	block, err := s.chain.MineBlock(s.ctx, []Call{call})
	s.Require().NoError(err)
	s.Require().Len(block.Receipts, 1)
	return block.Receipts[0]
}

func registerIdentity(caller, target id.Principal, name string, role uint64) Call {
	return Call{
		Operation: models.OpRegisterIdentity,
		Caller:    caller,
		Args:      Args{Principal: target.String(), DisplayName: name, RoleCode: role},
	}
}

func registerProvider(caller, target id.Principal, name string) Call {
	return Call{
		Operation: models.OpRegisterProvider,
		Caller:    caller,
		Args:      Args{Principal: target.String(), Name: name},
	}
}

func verify(caller, target id.Principal, decision string) Call {
	return Call{
		Operation: models.OpVerifyIdentity,
		Caller:    caller,
		Args:      Args{Target: target.String(), Decision: decision},
	}
}

func (s *ChainSuite) TestDeployerRegistersUserAndProvider() {
	s.Equal("(ok true)", s.mine(registerIdentity(deployer, wallet1, "Test User", 1)).Result)
	s.Equal("(ok true)", s.mine(registerProvider(deployer, wallet2, "Test Provider")).Result)
}

func (s *ChainSuite) TestDuplicateRegistration() {
	s.Equal("(ok true)", s.mine(registerIdentity(wallet1, wallet1, "Test User", 1)).Result)
	s.Equal("(err ERR_DUPLICATE_IDENTITY)", s.mine(registerIdentity(wallet1, wallet1, "Test User", 1)).Result)
}

func (s *ChainSuite) TestProviderVerification() {
	s.mine(registerProvider(deployer, wallet2, "Test Provider"))

	resp := s.chain.ReadOnly(s.ctx, Call{Operation: models.OpGetProvider, Args: Args{Principal: wallet2.String()}})
	s.Require().True(resp.OK)
	provider, ok := resp.Value.(*models.Provider)
	s.Require().True(ok)
	s.Equal(models.StatusPendingVerification, provider.Status)

	s.Equal("(ok true)", s.mine(verify(deployer, wallet2, "Verified")).Result)
	s.Equal("(err ERR_INVALID_STATE)", s.mine(verify(deployer, wallet2, "Verified")).Result)

	resp = s.chain.ReadOnly(s.ctx, Call{Operation: models.OpGetProvider, Args: Args{Principal: wallet2.String()}})
	provider = resp.Value.(*models.Provider)
	s.True(provider.Verified)
}

func (s *ChainSuite) TestSelfPromotionIsRefused() {
	s.Equal("(ok true)", s.mine(registerIdentity(wallet1, wallet1, "Test User", 1)).Result)
	s.Equal("(err ERR_UNAUTHORIZED)", s.mine(registerProvider(wallet1, wallet1, "Me")).Result)
	s.Equal("(err ERR_UNAUTHORIZED)", s.mine(registerProvider(wallet1, wallet3, "Other")).Result)
}

func (s *ChainSuite) TestUnknownCodes() {
	s.Equal("(err ERR_INVALID_SCALAR)", s.mine(registerIdentity(wallet1, wallet1, "Test User", 7)).Result)
	s.mine(registerProvider(deployer, wallet2, "Test Provider"))
	s.Equal("(err ERR_INVALID_SCALAR)", s.mine(verify(deployer, wallet2, "Probably")).Result)
	s.Equal("(err ERR_UNAUTHORIZED)", s.mine(Call{Operation: "transfer", Caller: wallet1}).Result)
}

func (s *ChainSuite) TestReceiptCodesStayInClosedSet() {
	closed := map[dErrors.Code]struct{}{
		dErrors.CodeDuplicateIdentity: {},
		dErrors.CodeUnauthorized:      {},
		dErrors.CodeInvalidScalar:     {},
		dErrors.CodeInvalidState:      {},
		dErrors.CodeNotFound:          {},
	}
	block, err := s.chain.MineBlock(s.ctx, []Call{
		registerIdentity(wallet1, wallet1, "", 1),
		registerIdentity(wallet1, wallet1, strings.Repeat("a", 65), 1),
		{Operation: models.OpRegisterIdentity, Caller: wallet1, Args: Args{Principal: "not-a-principal", DisplayName: "x", RoleCode: 1}},
		{Operation: models.OpVerifyIdentity, Caller: deployer, Args: Args{Target: "bogus", Decision: "Verified"}},
		{Operation: models.OpUpdateCommitment, Caller: wallet1, Args: Args{Principal: wallet1.String(), Commitment: "zz"}},
		{Operation: models.OpRevokeIdentity, Caller: deployer, Args: Args{Principal: wallet3.String()}},
		registerIdentity(wallet1, wallet1, "Test User", 9),
		registerIdentity(wallet1, wallet1, "Test User", 1),
		registerIdentity(wallet1, wallet1, "Test User", 1),
		registerProvider(wallet1, wallet2, "Test Provider"),
		verify(deployer, wallet1, "Verified"),
		{Operation: "transfer", Caller: wallet1},
	})
	s.Require().NoError(err)
	for i, r := range block.Receipts {
		if r.Response.OK {
			continue
		}
		_, ok := closed[r.Response.Err]
		s.True(ok, "receipt %d (%s) returned %s", i, r.Operation, r.Response.Err)
	}
	for i := 0; i < 4; i++ {
		s.Equal("(err ERR_INVALID_SCALAR)", block.Receipts[i].Result, "receipt %d", i)
	}
}

func (s *ChainSuite) TestReplicasAgreeOnEvents() {
	calls := [][]Call{
		{registerIdentity(wallet1, wallet1, "Test User", 1)},
		{registerProvider(deployer, wallet2, "Test Provider"), verify(deployer, wallet2, "Verified")},
		{verify(wallet2, wallet1, "Verified"), registerIdentity(wallet3, wallet3, "Third", 1)},
	}
	replay := func() []*models.Event {
		svc := service.New(memory.New())
		chain, err := New(s.ctx, svc, deployer)
		s.Require().NoError(err)
		for _, block := range calls {
			_, err := chain.MineBlock(s.ctx, block)
			s.Require().NoError(err)
		}
		events, err := svc.Events(s.ctx, 0, 100)
		s.Require().NoError(err)
		return events
	}

	a, b := replay(), replay()
	s.Require().GreaterOrEqual(len(a), 5)
	s.Equal(a, b)
	for _, evt := range a {
		s.Equal(evt.DeriveID(evt.Seq), evt.ID)
	}
}

func (s *ChainSuite) TestBlockAppliesCallsInOrder() {
	block, err := s.chain.MineBlock(s.ctx, []Call{
		registerProvider(deployer, wallet2, "Test Provider"),
		verify(deployer, wallet2, "Rejected"),
		verify(deployer, wallet2, "Verified"),
		registerIdentity(wallet3, wallet3, "Third", 1),
	})
	s.Require().NoError(err)
	s.Equal(id.Height(1), block.Height)
	s.Require().Len(block.Receipts, 4)
	s.Equal("(ok true)", block.Receipts[0].Result)
	s.Equal([]uint64{2}, block.Receipts[0].EventSeqs)
	s.Equal("(ok true)", block.Receipts[1].Result)
	s.Equal("(err ERR_INVALID_STATE)", block.Receipts[2].Result)
	s.Empty(block.Receipts[2].EventSeqs)
	s.Equal([]uint64{4}, block.Receipts[3].EventSeqs)
}

func (s *ChainSuite) TestHeightsAdvancePerBlock() {
	s.Equal(id.Height(0), s.chain.Height())
	s.mine(registerIdentity(wallet1, wallet1, "Test User", 1))
	s.mine(registerIdentity(wallet3, wallet3, "Third", 1))
	s.Equal(id.Height(2), s.chain.Height())

	resp := s.chain.ReadOnly(s.ctx, Call{Operation: models.OpGetIdentity, Args: Args{Principal: wallet3.String()}})
	ident := resp.Value.(*models.Identity)
	s.Equal(id.Height(2), ident.RegisteredAtHeight)
}

func (s *ChainSuite) TestReadsNeverFail() {
	for _, op := range []models.Operation{models.OpGetIdentity, models.OpGetProvider, models.OpGetRole} {
		for _, p := range []string{wallet1.String(), "garbage"} {
			resp := s.chain.ReadOnly(s.ctx, Call{Operation: op, Args: Args{Principal: p}})
			s.Equal("(ok none)", resp.String(), "%s %s", op, p)
		}
	}
}

func (s *ChainSuite) TestReadOnlyRefusesWrites() {
	resp := s.chain.ReadOnly(s.ctx, registerIdentity(wallet1, wallet1, "Test User", 1))
	s.Equal(dErrors.CodeUnauthorized, resp.Err)
	resp = s.chain.ReadOnly(s.ctx, Call{Operation: models.OpGetIdentity, Args: Args{Principal: wallet1.String()}})
	s.Nil(resp.Value)
}

func (s *ChainSuite) TestOpenCommitment() {
	s.mine(registerIdentity(wallet1, wallet1, "Test User", 1))
	open := func(name string) Response {
		return s.chain.ReadOnly(s.ctx, Call{
			Operation: models.OpOpenCommitment,
			Args:      Args{Principal: wallet1.String(), DisplayName: name},
		})
	}
	s.Equal("(ok true)", open("Test User").String())
	s.Equal("(ok false)", open("Test user").String())
}

func TestNewResumesHeight(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	chain, err := New(ctx, service.New(st), deployer)
	require.NoError(t, err)
	_, err = chain.MineBlock(ctx, []Call{registerIdentity(wallet1, wallet1, "Test User", 1)})
	require.NoError(t, err)
	_, err = chain.MineBlock(ctx, []Call{registerIdentity(wallet3, wallet3, "Third", 1)})
	require.NoError(t, err)

	restarted, err := New(ctx, service.New(st), deployer)
	require.NoError(t, err)
	assert.Equal(t, id.Height(2), restarted.Height())

	last, err := st.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), last, "reseeding must not append another admin event")
}

func TestNewDoesNotReuseFailedBlockHeight(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	chain, err := New(ctx, service.New(st), deployer)
	require.NoError(t, err)
	block, err := chain.MineBlock(ctx, []Call{registerIdentity(wallet1, wallet1, "Test User", 1)})
	require.NoError(t, err)
	require.Equal(t, id.Height(1), block.Height)
	block, err = chain.MineBlock(ctx, []Call{registerProvider(wallet1, wallet1, "Me")})
	require.NoError(t, err)
	require.Equal(t, "(err ERR_UNAUTHORIZED)", block.Receipts[0].Result)

	restarted, err := New(ctx, service.New(st), deployer)
	require.NoError(t, err)
	assert.Equal(t, id.Height(2), restarted.Height())

	block, err = restarted.MineBlock(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, id.Height(3), block.Height)
}

func TestNewRequiresDeployer(t *testing.T) {
	_, err := New(context.Background(), service.New(memory.New()), "")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestResponseString(t *testing.T) {
	tests := []struct {
		name string
		resp Response
		want string
	}{
		{"true", Ok(true), "(ok true)"},
		{"false", Ok(false), "(ok false)"},
		{"none", Ok(nil), "(ok none)"},
		{"error", Err(dErrors.New(dErrors.CodeNotFound, "x")), "(err ERR_NOT_FOUND)"},
		{"already registered reads as duplicate", Err(dErrors.New(dErrors.CodeAlreadyRegistered, "x")), "(err ERR_DUPLICATE_IDENTITY)"},
		{"invalid input reads as invalid scalar", Err(dErrors.New(dErrors.CodeInvalidInput, "x")), "(err ERR_INVALID_SCALAR)"},
		{"some", Ok(map[string]string{"a": "b"}), `(ok (some {"a":"b"}))`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.resp.String())
		})
	}
}
