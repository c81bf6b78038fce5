package db

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// Reader captures the read surface of the ClickHouse store. The query API and
// the read façade depend on this instead of the concrete Store so tests can
// substitute fakes.
type Reader interface {
	Agent(ctx context.Context, id string) (*protocol.Agent, error)
	Agents(ctx context.Context, f AgentFilter) ([]protocol.Agent, error)
	Claim(ctx context.Context, id string) (*protocol.Claim, error)
	Claims(ctx context.Context, f ClaimFilter) ([]protocol.Claim, error)
	VotesByClaim(ctx context.Context, claimID string) ([]protocol.Vote, error)
	VotesByVoter(ctx context.Context, voter string, limit, offset int) ([]protocol.Vote, error)
	EvidenceByClaim(ctx context.Context, claimID string) ([]protocol.Evidence, error)
	Council(ctx context.Context, id string) (*protocol.Council, error)
	Councils(ctx context.Context, activeOnly bool, limit, offset int) ([]protocol.Council, error)
	MembersByCouncil(ctx context.Context, councilID string) ([]protocol.CouncilMember, error)
	Stats(ctx context.Context) (protocol.ProtocolStats, error)
	Health(ctx context.Context) error
}

var _ Reader = (*Store)(nil)
