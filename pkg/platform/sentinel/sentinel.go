package sentinel

import "errors"

// Sentinel errors for storage facts. Ledger stores return these (optionally
// wrapped) and the registry service translates them into coded domain errors.
//
//   - ErrNotFound: no row for the principal or sequence
//   - ErrConflict: a unique key (principal) is already taken
//   - ErrInvalidState: row exists but cannot take the requested transition
//   - ErrUnavailable: backing database or broker is unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
