// Package ledger is a minimal in-process host for the registry contract. It
// assigns block heights, stamps each call with its signer and records
// receipts, which is all the registry needs from a deterministic ledger.
package ledger

import (
	"context"
	"log/slog"
	"sync"

	"pedersen-identity/internal/platform/metrics"
	"pedersen-identity/internal/registry/service"
	id "pedersen-identity/pkg/domain"
	dErrors "pedersen-identity/pkg/domain-errors"
	"pedersen-identity/pkg/requestcontext"
)

// Receipt is the per-call result inside a block.
type Receipt struct {
	Operation string   `json:"operation"`
	Caller    string   `json:"caller"`
	Response  Response `json:"response"`
	Result    string   `json:"result"`
	EventSeqs []uint64 `json:"event_seqs,omitempty"`
}

// Block is a mined batch of calls at one height.
type Block struct {
	Height   id.Height `json:"height"`
	Receipts []Receipt `json:"receipts"`
}

// Chain applies calls one at a time against the registry service.
type Chain struct {
	mu       sync.Mutex
	service  *service.Service
	deployer id.Principal
	height   id.Height

	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Chain)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) {
		c.metrics = m
	}
}

// New seeds deployer as admin at height 0 and resumes from the last recorded
// height, so restarting over a durable store continues the chain.
func New(ctx context.Context, svc *service.Service, deployer id.Principal, opts ...Option) (*Chain, error) {
	c := &Chain{service: svc, deployer: deployer}
	for _, opt := range opts {
		opt(c)
	}
	if deployer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "deployer principal is required")
	}
	if err := svc.Seed(requestcontext.WithCall(ctx, deployer, 0), deployer); err != nil {
		return nil, err
	}
	height, err := lastHeight(ctx, svc)
	if err != nil {
		return nil, err
	}
	c.height = height
	return c, nil
}

// lastHeight prefers the recorded height and falls back to the newest event
// for stores written before heights were recorded.
func lastHeight(ctx context.Context, svc *service.Service) (id.Height, error) {
	recorded, err := svc.ChainHeight(ctx)
	if err != nil {
		return 0, err
	}
	last, err := svc.LastSeq(ctx)
	if err != nil || last == 0 {
		return recorded, err
	}
	events, err := svc.Events(ctx, last-1, 1)
	if err != nil {
		return 0, err
	}
	if len(events) > 0 && events[0].Height > recorded {
		return events[0].Height, nil
	}
	return recorded, nil
}

// Height is the height of the last mined block.
func (c *Chain) Height() id.Height {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// Deployer is the principal seeded as the first admin.
func (c *Chain) Deployer() id.Principal { return c.deployer }

// MineBlock applies calls in order at the next height. A failed call does not
// stop the block; its receipt carries the error code and it leaves no state.
func (c *Chain) MineBlock(ctx context.Context, calls []Call) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.height + 1
	if err := c.service.AdvanceHeight(ctx, next); err != nil {
		return nil, err
	}
	c.height = next
	block := &Block{Height: c.height, Receipts: make([]Receipt, 0, len(calls))}
	for _, call := range calls {
		callCtx := requestcontext.WithCall(ctx, call.Caller, c.height)
		resp, seqs := dispatch(callCtx, c.service, call)
		block.Receipts = append(block.Receipts, Receipt{
			Operation: string(call.Operation),
			Caller:    call.Caller.String(),
			Response:  resp,
			Result:    resp.String(),
			EventSeqs: seqs,
		})
	}

	c.metrics.ObserveBlock(uint64(c.height))
	if c.logger != nil {
		c.logger.InfoContext(ctx, "block mined", "height", c.height, "calls", len(calls))
	}
	return block, nil
}

// ReadOnly evaluates a read operation at the current height without mining.
// Mutating operations are refused as unauthorized.
func (c *Chain) ReadOnly(ctx context.Context, call Call) Response {
	if !call.Operation.IsReadOnly() {
		return Response{Err: dErrors.CodeUnauthorized}
	}
	callCtx := requestcontext.WithCall(ctx, call.Caller, c.Height())
	resp, _ := dispatch(callCtx, c.service, call)
	return resp
}
