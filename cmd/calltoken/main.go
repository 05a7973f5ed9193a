// Command calltoken mints a caller token for POST /v1/blocks. The signing key
// comes from REGISTRY_JWT_SIGNING_KEY, the same variable the server reads.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	jwttoken "pedersen-identity/internal/jwt_token"
	"pedersen-identity/internal/platform/config"
	id "pedersen-identity/pkg/domain"
)

func main() {
	caller := flag.String("caller", "", "principal that signs the calls")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	p, err := id.ParsePrincipal(*caller)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -caller: %v\n", err)
		os.Exit(2)
	}
	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey).IssueCallerToken(p, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(token)
}
