package rpc

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// Client captures the node RPC calls the indexer and the query layer depend
// on. Methods return projection types decoded from the node's JSON API.
type Client interface {
	Head(ctx context.Context) (HeadResponse, error)
	EventsByRange(ctx context.Context, from, to uint64) ([]protocol.Event, error)
	AgentByID(ctx context.Context, id uint64) (*protocol.Agent, error)
	ClaimByID(ctx context.Context, id string) (*protocol.Claim, error)
	ClaimsByAgent(ctx context.Context, agentID uint64) ([]string, error)
	CouncilByID(ctx context.Context, id string) (*protocol.Council, error)
	MembersByCouncil(ctx context.Context, councilID string) ([]protocol.CouncilMember, error)
	VotesByClaim(ctx context.Context, claimID string) ([]protocol.Vote, error)
	Stats(ctx context.Context) (*protocol.ProtocolStats, error)
}

// Factory produces RPC clients for a given set of endpoints.
type Factory interface {
	NewClient(endpoints []string) Client
}

type httpFactory struct {
	opts Opts
}

// NewHTTPFactory returns a factory that builds HTTP clients with shared defaults.
func NewHTTPFactory(opts Opts) Factory {
	return &httpFactory{opts: opts}
}

func (f *httpFactory) NewClient(endpoints []string) Client {
	o := f.opts
	o.Endpoints = endpoints
	return NewHTTPWithOpts(o)
}
