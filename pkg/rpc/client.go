package rpc

import (
	"context"
	"net/http"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// Head returns the node's current chain tip.
func (c *HTTPClient) Head(ctx context.Context) (HeadResponse, error) {
	var head HeadResponse
	if err := c.doJSON(ctx, http.MethodPost, headPath, nil, &head); err != nil {
		return HeadResponse{}, err
	}
	return head, nil
}

// EventsByRange returns every protocol event emitted in [from, to], ordered
// by (block, logIndex). The node guarantees the ordering; consumers apply the
// slice as-is.
func (c *HTTPClient) EventsByRange(ctx context.Context, from, to uint64) ([]protocol.Event, error) {
	return ListPaged[protocol.Event](ctx, c, eventsByRangePath, QueryByRangeRequest{FromBlock: from, ToBlock: to})
}

// AgentByID returns the node's current view of a single agent.
func (c *HTTPClient) AgentByID(ctx context.Context, id uint64) (*protocol.Agent, error) {
	var agent protocol.Agent
	if err := c.doJSON(ctx, http.MethodPost, agentPath, QueryByIDRequest{ID: id}, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ClaimByID returns the node's current view of a single claim.
func (c *HTTPClient) ClaimByID(ctx context.Context, id string) (*protocol.Claim, error) {
	var claim protocol.Claim
	if err := c.doJSON(ctx, http.MethodPost, claimPath, QueryByKeyRequest{Key: id}, &claim); err != nil {
		return nil, err
	}
	return &claim, nil
}

// ClaimsByAgent returns the identifiers of every claim filed against an agent.
func (c *HTTPClient) ClaimsByAgent(ctx context.Context, agentID uint64) ([]string, error) {
	return ListPaged[string](ctx, c, claimsByAgentPath, QueryByIDRequest{ID: agentID})
}

// CouncilByID returns a single council.
func (c *HTTPClient) CouncilByID(ctx context.Context, id string) (*protocol.Council, error) {
	var council protocol.Council
	if err := c.doJSON(ctx, http.MethodPost, councilPath, QueryByKeyRequest{Key: id}, &council); err != nil {
		return nil, err
	}
	return &council, nil
}

// MembersByCouncil returns a council's member roster, inactive rows included.
func (c *HTTPClient) MembersByCouncil(ctx context.Context, councilID string) ([]protocol.CouncilMember, error) {
	return ListPaged[protocol.CouncilMember](ctx, c, membersPath, QueryByKeyRequest{Key: councilID})
}

// VotesByClaim returns the live vote rows for a claim, one per voter.
func (c *HTTPClient) VotesByClaim(ctx context.Context, claimID string) ([]protocol.Vote, error) {
	return ListPaged[protocol.Vote](ctx, c, votesByClaimPath, QueryByKeyRequest{Key: claimID})
}

// Stats returns the node's protocol-wide counters.
func (c *HTTPClient) Stats(ctx context.Context) (*protocol.ProtocolStats, error) {
	var stats protocol.ProtocolStats
	if err := c.doJSON(ctx, http.MethodPost, statsPath, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
