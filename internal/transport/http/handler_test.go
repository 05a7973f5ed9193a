package httptransport

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	jwttoken "pedersen-identity/internal/jwt_token"
	"pedersen-identity/internal/ledger"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/service"
	"pedersen-identity/internal/registry/store/memory"
	id "pedersen-identity/pkg/domain"
	"pedersen-identity/pkg/testutil"
)

var (
	deployer = testutil.Deployer
	wallet1  = testutil.Wallet1
	wallet2  = testutil.Wallet2
)

type HandlerSuite struct {
	suite.Suite
	tokens  *jwttoken.JWTService
	handler *Handler
	router  http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New())
	chain, err := ledger.New(context.Background(), svc, deployer)
	s.Require().NoError(err)

	s.tokens = jwttoken.NewJWTService("test-signing-key")
	s.handler = New(chain, svc, logger)
	s.router = NewRouter(s.handler, s.tokens, logger, WithoutMetrics())
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if token != "" {
		req = testutil.WithBearer(req, token)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) token(p id.Principal) string {
	tok, err := s.tokens.IssueCallerToken(p, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) mine(caller id.Principal, calls ...CallRequest) ledger.Block {
	rec := s.do(http.MethodPost, "/v1/blocks", s.token(caller), MineBlockRequest{Calls: calls})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return *testutil.UnmarshalResponse[ledger.Block](s.T(), rec)
}

func (s *HandlerSuite) TestMineBlock() {
	block := s.mine(deployer,
		CallRequest{Operation: "register-identity", Args: ledger.Args{Principal: wallet1.String(), DisplayName: "Test User", RoleCode: 1}},
		CallRequest{Operation: "register-provider", Args: ledger.Args{Principal: wallet2.String(), Name: "Test Provider"}},
		CallRequest{Operation: "register-provider", Args: ledger.Args{Principal: wallet2.String(), Name: "Test Provider"}},
	)
	s.Equal(id.Height(1), block.Height)
	s.Require().Len(block.Receipts, 3)
	s.Equal("(ok true)", block.Receipts[0].Result)
	s.Equal("(ok true)", block.Receipts[1].Result)
	s.Equal("(err ERR_DUPLICATE_IDENTITY)", block.Receipts[2].Result)
	s.Equal(deployer.String(), block.Receipts[0].Caller)
}

func (s *HandlerSuite) TestMineBlockRequiresToken() {
	body := MineBlockRequest{Calls: []CallRequest{{Operation: "register-identity"}}}
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/blocks", "", body).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/blocks", "forged", body).Code)
}

func (s *HandlerSuite) TestMineBlockValidatesBody() {
	rec := s.do(http.MethodPost, "/v1/blocks", s.token(wallet1), MineBlockRequest{})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/blocks", s.token(wallet1), map[string]any{"calls": []any{}, "extra": 1})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestLookups() {
	s.mine(wallet1, CallRequest{Operation: "register-identity", Args: ledger.Args{Principal: wallet1.String(), DisplayName: "Test User", RoleCode: 1}})

	rec := s.do(http.MethodGet, "/v1/identities/"+wallet1.String(), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(wallet1, testutil.UnmarshalResponse[models.Identity](s.T(), rec).Owner)

	rec = s.do(http.MethodGet, "/v1/roles/"+deployer.String(), "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/v1/identities/"+wallet2.String(), "", nil)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "ERR_NOT_FOUND")

	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/v1/providers/"+wallet1.String(), "", nil).Code)
	testutil.AssertStatusAndError(s.T(), s.do(http.MethodGet, "/v1/identities/nope", "", nil), http.StatusBadRequest, "ERR_INVALID_SCALAR")
}

func (s *HandlerSuite) TestOpenCommitment() {
	s.mine(wallet1, CallRequest{Operation: "register-identity", Args: ledger.Args{Principal: wallet1.String(), DisplayName: "Test User", RoleCode: 1}})

	rec := s.do(http.MethodPost, "/v1/open", "", OpenCommitmentRequest{Principal: wallet1.String(), DisplayName: "Test User"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(testutil.UnmarshalResponse[OpenCommitmentResponse](s.T(), rec).Opened)

	rec = s.do(http.MethodPost, "/v1/open", "", OpenCommitmentRequest{Principal: wallet2.String(), DisplayName: "x"})
	testutil.AssertStatusAndError(s.T(), rec, http.StatusNotFound, "ERR_NOT_FOUND")
}

func (s *HandlerSuite) TestEventsAndConsistency() {
	s.mine(deployer,
		CallRequest{Operation: "register-provider", Args: ledger.Args{Principal: wallet2.String(), Name: "Test Provider"}},
		CallRequest{Operation: "verify-identity", Args: ledger.Args{Target: wallet2.String(), Decision: "Verified"}},
	)

	rec := s.do(http.MethodGet, "/v1/events?after=1&limit=1", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	page := testutil.UnmarshalResponse[EventsResponse](s.T(), rec)
	s.Require().Len(page.Events, 1)
	s.Equal(models.EventProviderRegistered, page.Events[0].Type)
	s.Equal(uint64(2), page.NextAfter)

	s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/v1/events?after=-1", "", nil).Code)

	rec = s.do(http.MethodGet, "/v1/events?after=4294967296", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	page = testutil.UnmarshalResponse[EventsResponse](s.T(), rec)
	s.Empty(page.Events)
	s.Equal(uint64(4294967296), page.NextAfter)
	testutil.AssertStatusAndError(s.T(), s.do(http.MethodGet, "/v1/events?limit=4294967296", "", nil), http.StatusBadRequest, "ERR_INVALID_INPUT")

	rec = s.do(http.MethodGet, "/v1/consistency", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	cons := testutil.UnmarshalResponse[ConsistencyResponse](s.T(), rec)
	s.True(cons.Consistent)
	s.Equal(uint64(3), cons.LastSeq)
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("ok", testutil.UnmarshalResponse[HealthResponse](s.T(), rec).Status)
}

func (s *HandlerSuite) TestMineBlockWithoutCallerInContext() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/blocks", MineBlockRequest{
		Calls: []CallRequest{{Operation: "register-identity"}},
	})
	rec := testutil.DoRequest(http.HandlerFunc(s.handler.HandleMineBlock), req)
	testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "ERR_UNAUTHORIZED")

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/blocks", MineBlockRequest{
		Calls: []CallRequest{{Operation: "register-identity", Args: ledger.Args{Principal: wallet1.String(), DisplayName: "Test User", RoleCode: 1}}},
	})
	rec = testutil.DoRequest(http.HandlerFunc(s.handler.HandleMineBlock), testutil.WithCaller(req, wallet1))
	s.Equal(http.StatusOK, rec.Code)
}
