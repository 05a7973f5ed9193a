package domain

import (
	"strings"
	"unicode/utf8"

	dErrors "pedersen-identity/pkg/domain-errors"
)

// MaxPrincipalLength bounds a standard address plus a contract-name suffix.
const MaxPrincipalLength = 128

// Principal is a ledger account identifier, either a standard address
// ("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM") or a contract principal
// ("ST1PQHQKV0RJXZFY1DGX8MNSNYVE3VGZJSRTPGZGM.pedersen-identity").
// It is the unique key of every registry table.
type Principal string

// ParsePrincipal validates raw input at the call boundary.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" || strings.TrimSpace(s) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if len(s) > MaxPrincipalLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal exceeds maximum length")
	}
	if !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal must be valid UTF-8")
	}

	address, contract, hasContract := strings.Cut(s, ".")
	if !isAddress(address) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal address is malformed")
	}
	if hasContract && !isContractName(contract) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "contract name is malformed")
	}
	return Principal(s), nil
}

// MustPrincipal parses s and panics on error. Intended for tests and
// compile-time constants only.
func MustPrincipal(s string) Principal {
	p, err := ParsePrincipal(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Principal) String() string { return string(p) }

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool { return p == "" }

// IsContract reports whether p names a contract rather than a standard account.
func (p Principal) IsContract() bool { return strings.Contains(string(p), ".") }

func isAddress(s string) bool {
	if len(s) < 2 || s[0] != 'S' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func isContractName(s string) bool {
	if s == "" || len(s) > 40 {
		return false
	}
	if !(s[0] >= 'a' && s[0] <= 'z' || s[0] >= 'A' && s[0] <= 'Z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// Height is the ordinal position of a block in the chain. Height 0 is the
// deployment block.
type Height uint64
