// Package requestcontext provides transport-independent accessors for
// call-scoped values.
//
// The ledger host sets the caller principal and block height before it hands a
// call to the registry service; HTTP middleware sets the request ID. Services
// read them without importing the host or net/http.
//
// Usage in services (read values):
//
//	caller := requestcontext.Caller(ctx)
//	height := requestcontext.Height(ctx)
//
// Usage in the host and in tests (inject values):
//
//	ctx = requestcontext.WithCall(ctx, caller, height)
package requestcontext

import (
	"context"
	"time"

	id "pedersen-identity/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	callerKey      struct{}
	heightKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyCaller      = callerKey{}
	ContextKeyHeight      = heightKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Call context (caller principal, block height)
// -----------------------------------------------------------------------------

// Caller retrieves the principal that signed the current call.
// Returns the zero principal if not set.
func Caller(ctx context.Context) id.Principal {
	if p, ok := ctx.Value(ContextKeyCaller).(id.Principal); ok {
		return p
	}
	return ""
}

// WithCaller injects the calling principal into the context.
func WithCaller(ctx context.Context, caller id.Principal) context.Context {
	return context.WithValue(ctx, ContextKeyCaller, caller)
}

// Height retrieves the height of the block the call is applied in.
// Returns 0 (the deployment block) if not set.
func Height(ctx context.Context) id.Height {
	if h, ok := ctx.Value(ContextKeyHeight).(id.Height); ok {
		return h
	}
	return 0
}

// WithHeight injects the block height into the context.
func WithHeight(ctx context.Context, height id.Height) context.Context {
	return context.WithValue(ctx, ContextKeyHeight, height)
}

// WithCall injects both the caller and the block height.
func WithCall(ctx context.Context, caller id.Principal, height id.Height) context.Context {
	return WithHeight(WithCaller(ctx, caller), height)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped wall-clock time from context.
// Falls back to time.Now() if not set. Wall-clock time is only used for
// logs and metrics; registry state is ordered by Height.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
