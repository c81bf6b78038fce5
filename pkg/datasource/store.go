package datasource

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// StoreSource serves every query family from the ClickHouse read model.
type StoreSource struct {
	reader db.Reader
}

// NewStoreSource wraps a ClickHouse reader as a DataSource.
func NewStoreSource(reader db.Reader) *StoreSource {
	return &StoreSource{reader: reader}
}

func (s *StoreSource) Name() string { return "store" }

func (s *StoreSource) Supports(Capability) bool { return true }

func (s *StoreSource) Agent(ctx context.Context, id string) (Result[*protocol.Agent], error) {
	agent, err := s.reader.Agent(ctx, id)
	if err != nil {
		return Result[*protocol.Agent]{}, err
	}
	return ok(agent), nil
}

func (s *StoreSource) Agents(ctx context.Context, f db.AgentFilter) (Result[[]protocol.Agent], error) {
	agents, err := s.reader.Agents(ctx, f)
	if err != nil {
		return Result[[]protocol.Agent]{}, err
	}
	return ok(agents), nil
}

func (s *StoreSource) Claim(ctx context.Context, id string) (Result[*protocol.Claim], error) {
	claim, err := s.reader.Claim(ctx, id)
	if err != nil {
		return Result[*protocol.Claim]{}, err
	}
	return ok(claim), nil
}

func (s *StoreSource) Claims(ctx context.Context, f db.ClaimFilter) (Result[[]protocol.Claim], error) {
	claims, err := s.reader.Claims(ctx, f)
	if err != nil {
		return Result[[]protocol.Claim]{}, err
	}
	return ok(claims), nil
}

func (s *StoreSource) VotesByClaim(ctx context.Context, claimID string) (Result[[]protocol.Vote], error) {
	votes, err := s.reader.VotesByClaim(ctx, claimID)
	if err != nil {
		return Result[[]protocol.Vote]{}, err
	}
	return ok(votes), nil
}

func (s *StoreSource) VotesByVoter(ctx context.Context, voter string, limit, offset int) (Result[[]protocol.Vote], error) {
	votes, err := s.reader.VotesByVoter(ctx, voter, limit, offset)
	if err != nil {
		return Result[[]protocol.Vote]{}, err
	}
	return ok(votes), nil
}

func (s *StoreSource) EvidenceByClaim(ctx context.Context, claimID string) (Result[[]protocol.Evidence], error) {
	rows, err := s.reader.EvidenceByClaim(ctx, claimID)
	if err != nil {
		return Result[[]protocol.Evidence]{}, err
	}
	return ok(rows), nil
}

func (s *StoreSource) Council(ctx context.Context, id string) (Result[*protocol.Council], error) {
	council, err := s.reader.Council(ctx, id)
	if err != nil {
		return Result[*protocol.Council]{}, err
	}
	return ok(council), nil
}

func (s *StoreSource) Councils(ctx context.Context, activeOnly bool, limit, offset int) (Result[[]protocol.Council], error) {
	councils, err := s.reader.Councils(ctx, activeOnly, limit, offset)
	if err != nil {
		return Result[[]protocol.Council]{}, err
	}
	return ok(councils), nil
}

func (s *StoreSource) MembersByCouncil(ctx context.Context, councilID string) (Result[[]protocol.CouncilMember], error) {
	members, err := s.reader.MembersByCouncil(ctx, councilID)
	if err != nil {
		return Result[[]protocol.CouncilMember]{}, err
	}
	return ok(members), nil
}

func (s *StoreSource) Stats(ctx context.Context) (Result[protocol.ProtocolStats], error) {
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return Result[protocol.ProtocolStats]{}, err
	}
	return ok(stats), nil
}

func (s *StoreSource) Healthy(ctx context.Context) error {
	return s.reader.Health(ctx)
}
