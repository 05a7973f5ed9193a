// Package httptransport exposes the ledger host over HTTP. Handlers translate
// requests into ledger calls and registry reads without business logic.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pedersen-identity/internal/ledger"
	"pedersen-identity/internal/registry/models"
	"pedersen-identity/internal/registry/service"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
	"pedersen-identity/pkg/platform/httputil"
	"pedersen-identity/pkg/requestcontext"
)

// Chain is the ledger host surface the handlers need.
type Chain interface {
	MineBlock(ctx context.Context, calls []ledger.Call) (*ledger.Block, error)
	Height() id.Height
}

// Registry is the read side of the registry service.
type Registry interface {
	GetIdentity(ctx context.Context, principal string) (*models.Identity, bool, error)
	GetProvider(ctx context.Context, principal string) (*models.Provider, bool, error)
	GetRole(ctx context.Context, principal string) (*models.RoleRecord, bool, error)
	OpenCommitment(ctx context.Context, req service.OpenCommitmentRequest) (bool, error)
	Events(ctx context.Context, afterSeq uint64, limit int) ([]*models.Event, error)
	LastSeq(ctx context.Context) (uint64, error)
	VerifyConsistency(ctx context.Context) error
}

// Handler wires HTTP endpoints to the chain and registry.
type Handler struct {
	chain    Chain
	registry Registry
	logger   *slog.Logger
}

// New constructs a Handler.
func New(chain Chain, registry Registry, logger *slog.Logger) *Handler {
	return &Handler{chain: chain, registry: registry, logger: logger}
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{Status: "ok", Height: uint64(h.chain.Height())})
}

// HandleMineBlock handles POST /v1/blocks. Every call in the block is signed
// by the token's principal. Per-call failures are reported in receipts, not
// as HTTP errors.
func (h *Handler) HandleMineBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	caller := requestcontext.Caller(ctx)
	if caller.IsZero() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[MineBlockRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	calls := make([]ledger.Call, 0, len(req.Calls))
	for _, c := range req.Calls {
		calls = append(calls, ledger.Call{Operation: models.Operation(c.Operation), Caller: caller, Args: c.Args})
	}
	block, err := h.chain.MineBlock(ctx, calls)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to mine block",
			"request_id", requestID,
			"caller", caller,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, block)
}

func (h *Handler) HandleGetIdentity(w http.ResponseWriter, r *http.Request) {
	ident, found, err := h.registry.GetIdentity(r.Context(), chi.URLParam(r, "principal"))
	writeLookup(w, ident, found, err)
}

func (h *Handler) HandleGetProvider(w http.ResponseWriter, r *http.Request) {
	provider, found, err := h.registry.GetProvider(r.Context(), chi.URLParam(r, "principal"))
	writeLookup(w, provider, found, err)
}

func (h *Handler) HandleGetRole(w http.ResponseWriter, r *http.Request) {
	record, found, err := h.registry.GetRole(r.Context(), chi.URLParam(r, "principal"))
	writeLookup(w, record, found, err)
}

// HandleOpenCommitment handles POST /v1/open. The opening travels in the
// body so blindings stay out of access logs.
func (h *Handler) HandleOpenCommitment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[OpenCommitmentRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	opened, err := h.registry.OpenCommitment(ctx, service.OpenCommitmentRequest{
		Principal:   req.Principal,
		DisplayName: req.DisplayName,
		Blinding:    req.Blinding,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OpenCommitmentResponse{Opened: opened})
}

// HandleListEvents handles GET /v1/events?after=&limit=.
func (h *Handler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	after, err := queryUint(r, "after", 64)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	limit, err := queryUint(r, "limit", 32)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	events, err := h.registry.Events(r.Context(), after, int(limit))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := EventsResponse{Events: events, NextAfter: after}
	if len(events) > 0 {
		resp.NextAfter = events[len(events)-1].Seq
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleConsistency handles GET /v1/consistency.
func (h *Handler) HandleConsistency(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.registry.VerifyConsistency(ctx); err != nil {
		h.logger.ErrorContext(ctx, "event log diverges from tables",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	last, err := h.registry.LastSeq(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ConsistencyResponse{Consistent: true, LastSeq: last})
}

func writeLookup[T any](w http.ResponseWriter, v *T, found bool, err error) {
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !found || v == nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: string(dErrors.CodeNotFound)})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, v)
}

// queryUint parses an optional unsigned query parameter that fits in bits.
func queryUint(r *http.Request, key string, bits int) (uint64, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, bits)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInvalidInput, key+" must be a non-negative integer")
	}
	return v, nil
}
