package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/rpc"
	"go.uber.org/zap"
)

// ChainSource answers scoped reads straight from a node's RPC. It exists so
// the API stays useful when ClickHouse is down or still replaying; queries
// the node cannot answer by key come back degraded rather than failing.
type ChainSource struct {
	client rpc.Client
	logger *zap.Logger
	pool   pond.Pool
}

// NewChainSource builds a chain-backed DataSource with a bounded worker pool
// for per-entity fan-out fetches.
func NewChainSource(client rpc.Client, logger *zap.Logger, workers int) *ChainSource {
	if workers <= 0 {
		workers = 8
	}
	return &ChainSource{
		client: client,
		logger: logger,
		pool:   pond.NewPool(workers),
	}
}

func (c *ChainSource) Name() string { return "chain" }

func (c *ChainSource) Supports(capability Capability) bool {
	switch capability {
	case CapScopedReads, CapStats:
		return true
	default:
		return false
	}
}

// Close releases the worker pool.
func (c *ChainSource) Close() {
	c.pool.StopAndWait()
}

func (c *ChainSource) Agent(ctx context.Context, id string) (Result[*protocol.Agent], error) {
	numeric, err := parseAgentID(id)
	if err != nil {
		return Result[*protocol.Agent]{}, err
	}
	agent, err := c.client.AgentByID(ctx, numeric)
	if err != nil {
		return Result[*protocol.Agent]{}, err
	}
	return ok(agent), nil
}

func (c *ChainSource) Agents(ctx context.Context, _ db.AgentFilter) (Result[[]protocol.Agent], error) {
	return degradeWith[[]protocol.Agent](c.logger, "agent listing requires the indexed store"), nil
}

func (c *ChainSource) Claim(ctx context.Context, id string) (Result[*protocol.Claim], error) {
	claim, err := c.client.ClaimByID(ctx, id)
	if err != nil {
		return Result[*protocol.Claim]{}, err
	}
	return ok(claim), nil
}

// Claims answers only agent-scoped listings: claim ids for the agent come
// from the node, then the claim bodies are hydrated concurrently through the
// worker pool. Any other filter is a global scan the node cannot serve.
func (c *ChainSource) Claims(ctx context.Context, f db.ClaimFilter) (Result[[]protocol.Claim], error) {
	if f.AgentID == "" {
		return degradeWith[[]protocol.Claim](c.logger, "claim filters other than agent_id require the indexed store"), nil
	}

	numeric, err := parseAgentID(f.AgentID)
	if err != nil {
		return Result[[]protocol.Claim]{}, err
	}
	ids, err := c.client.ClaimsByAgent(ctx, numeric)
	if err != nil {
		return Result[[]protocol.Claim]{}, err
	}

	var mu sync.Mutex
	claims := make([]protocol.Claim, 0, len(ids))
	group := c.pool.NewGroupContext(ctx)
	for _, id := range ids {
		id := id
		group.SubmitErr(func() error {
			claim, err := c.client.ClaimByID(ctx, id)
			if err != nil {
				return fmt.Errorf("hydrate claim %s: %w", id, err)
			}
			mu.Lock()
			claims = append(claims, *claim)
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result[[]protocol.Claim]{}, err
	}

	if f.Status != nil {
		filtered := claims[:0]
		for _, claim := range claims {
			if claim.Status == *f.Status {
				filtered = append(filtered, claim)
			}
		}
		claims = filtered
	}
	return ok(claims), nil
}

func (c *ChainSource) VotesByClaim(ctx context.Context, claimID string) (Result[[]protocol.Vote], error) {
	votes, err := c.client.VotesByClaim(ctx, claimID)
	if err != nil {
		return Result[[]protocol.Vote]{}, err
	}
	return ok(votes), nil
}

func (c *ChainSource) VotesByVoter(ctx context.Context, _ string, _, _ int) (Result[[]protocol.Vote], error) {
	return degradeWith[[]protocol.Vote](c.logger, "voter history requires the indexed store"), nil
}

func (c *ChainSource) EvidenceByClaim(ctx context.Context, _ string) (Result[[]protocol.Evidence], error) {
	return degradeWith[[]protocol.Evidence](c.logger, "evidence trails require the indexed store"), nil
}

func (c *ChainSource) Council(ctx context.Context, id string) (Result[*protocol.Council], error) {
	council, err := c.client.CouncilByID(ctx, id)
	if err != nil {
		return Result[*protocol.Council]{}, err
	}
	return ok(council), nil
}

func (c *ChainSource) Councils(ctx context.Context, _ bool, _, _ int) (Result[[]protocol.Council], error) {
	return degradeWith[[]protocol.Council](c.logger, "council listing requires the indexed store"), nil
}

func (c *ChainSource) MembersByCouncil(ctx context.Context, councilID string) (Result[[]protocol.CouncilMember], error) {
	members, err := c.client.MembersByCouncil(ctx, councilID)
	if err != nil {
		return Result[[]protocol.CouncilMember]{}, err
	}
	return ok(members), nil
}

func (c *ChainSource) Stats(ctx context.Context) (Result[protocol.ProtocolStats], error) {
	stats, err := c.client.Stats(ctx)
	if err != nil {
		return Result[protocol.ProtocolStats]{}, err
	}
	return ok(*stats), nil
}

func (c *ChainSource) Healthy(ctx context.Context) error {
	_, err := c.client.Head(ctx)
	return err
}

func degradeWith[T any](logger *zap.Logger, warning string) Result[T] {
	logger.Warn("degraded chain query", zap.String("reason", warning))
	return degraded[T](warning)
}

func parseAgentID(id string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(id), "0x")
	numeric, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid agent id %q: %w", id, err)
	}
	return numeric, nil
}
