package testutil

import (
	"net/http"

	id "pedersen-identity/pkg/domain"
	"pedersen-identity/pkg/requestcontext"
)

// Well-known test principals. Deployer is the principal the ledger seeds as
// the first admin in tests.
var (
	Deployer = id.MustPrincipal("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM")
	Wallet1  = id.MustPrincipal("ST1SJ3DTE5DN7X54YDH5D64R3BCB6A2AG2ZQ8YPD5")
	Wallet2  = id.MustPrincipal("ST2CY5V39NHDPWSXMW9QDT3HC3GD6Q6XX4CFRK9AG")
	Wallet3  = id.MustPrincipal("ST2JHG361ZXG51QTKY2NQCVBPPRRE2KZB1HR05NNC")
	Stranger = id.MustPrincipal("ST2NEB84ASENDXKYGJPQW86YXQCEFEX2ZQPG87ND")
)

// WithCaller adds a caller to the request context, as the caller-token
// middleware would after validating a bearer token.
func WithCaller(req *http.Request, caller id.Principal) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), caller))
}
