package datasource

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// Result wraps a query answer with a degradation marker. A degraded result is
// still a valid HTTP 200: the backend answered with everything it structurally
// could, and Warning explains what was left out. Errors are reserved for
// backends that failed outright.
type Result[T any] struct {
	Data     T      `json:"data"`
	Degraded bool   `json:"degraded,omitempty"`
	Warning  string `json:"warning,omitempty"`
}

func ok[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

func degraded[T any](warning string) Result[T] {
	return Result[T]{Degraded: true, Warning: warning}
}

// Capability names a query family a backend may or may not support.
type Capability string

const (
	CapFilteredClaims Capability = "filtered_claims"
	CapAgentListing   Capability = "agent_listing"
	CapCouncilListing Capability = "council_listing"
	CapVoterHistory   Capability = "voter_history"
	CapScopedReads    Capability = "scoped_reads"
	CapStats          Capability = "stats"
)

// DataSource is the read façade the query API is written against. The store
// backend answers everything; the chain backend answers scoped reads only and
// degrades the rest.
type DataSource interface {
	Name() string
	Supports(c Capability) bool

	Agent(ctx context.Context, id string) (Result[*protocol.Agent], error)
	Agents(ctx context.Context, f db.AgentFilter) (Result[[]protocol.Agent], error)
	Claim(ctx context.Context, id string) (Result[*protocol.Claim], error)
	Claims(ctx context.Context, f db.ClaimFilter) (Result[[]protocol.Claim], error)
	VotesByClaim(ctx context.Context, claimID string) (Result[[]protocol.Vote], error)
	VotesByVoter(ctx context.Context, voter string, limit, offset int) (Result[[]protocol.Vote], error)
	EvidenceByClaim(ctx context.Context, claimID string) (Result[[]protocol.Evidence], error)
	Council(ctx context.Context, id string) (Result[*protocol.Council], error)
	Councils(ctx context.Context, activeOnly bool, limit, offset int) (Result[[]protocol.Council], error)
	MembersByCouncil(ctx context.Context, councilID string) (Result[[]protocol.CouncilMember], error)
	Stats(ctx context.Context) (Result[protocol.ProtocolStats], error)

	Healthy(ctx context.Context) error
}
