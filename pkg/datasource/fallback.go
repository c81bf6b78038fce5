package datasource

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"go.uber.org/zap"
)

// Fallback serves from the primary backend and retries against the secondary
// when the primary fails outright. A rescued answer is always marked degraded
// so consumers can tell it came from the narrower backend.
type Fallback struct {
	primary   DataSource
	secondary DataSource
	logger    *zap.Logger
}

// NewFallback composes two backends. The secondary may be nil, in which case
// primary errors surface unchanged.
func NewFallback(primary, secondary DataSource, logger *zap.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) Name() string { return f.primary.Name() + "+" + f.secondaryName() }

func (f *Fallback) secondaryName() string {
	if f.secondary == nil {
		return "none"
	}
	return f.secondary.Name()
}

func (f *Fallback) Supports(c Capability) bool {
	return f.primary.Supports(c) || (f.secondary != nil && f.secondary.Supports(c))
}

// rescue runs the primary call and falls back on error.
func rescue[T any](f *Fallback, primary func() (Result[T], error), secondary func() (Result[T], error)) (Result[T], error) {
	res, err := primary()
	if err == nil {
		return res, nil
	}
	if f.secondary == nil {
		return res, err
	}

	f.logger.Warn("primary datasource failed, falling back",
		zap.String("primary", f.primary.Name()),
		zap.String("secondary", f.secondary.Name()),
		zap.Error(err))

	res, ferr := secondary()
	if ferr != nil {
		// Both failed; the primary error is the one worth reporting.
		return Result[T]{}, err
	}
	res.Degraded = true
	if res.Warning == "" {
		res.Warning = "served by fallback backend"
	}
	return res, nil
}

func (f *Fallback) Agent(ctx context.Context, id string) (Result[*protocol.Agent], error) {
	return rescue(f,
		func() (Result[*protocol.Agent], error) { return f.primary.Agent(ctx, id) },
		func() (Result[*protocol.Agent], error) { return f.secondary.Agent(ctx, id) })
}

func (f *Fallback) Agents(ctx context.Context, filter db.AgentFilter) (Result[[]protocol.Agent], error) {
	return rescue(f,
		func() (Result[[]protocol.Agent], error) { return f.primary.Agents(ctx, filter) },
		func() (Result[[]protocol.Agent], error) { return f.secondary.Agents(ctx, filter) })
}

func (f *Fallback) Claim(ctx context.Context, id string) (Result[*protocol.Claim], error) {
	return rescue(f,
		func() (Result[*protocol.Claim], error) { return f.primary.Claim(ctx, id) },
		func() (Result[*protocol.Claim], error) { return f.secondary.Claim(ctx, id) })
}

func (f *Fallback) Claims(ctx context.Context, filter db.ClaimFilter) (Result[[]protocol.Claim], error) {
	return rescue(f,
		func() (Result[[]protocol.Claim], error) { return f.primary.Claims(ctx, filter) },
		func() (Result[[]protocol.Claim], error) { return f.secondary.Claims(ctx, filter) })
}

func (f *Fallback) VotesByClaim(ctx context.Context, claimID string) (Result[[]protocol.Vote], error) {
	return rescue(f,
		func() (Result[[]protocol.Vote], error) { return f.primary.VotesByClaim(ctx, claimID) },
		func() (Result[[]protocol.Vote], error) { return f.secondary.VotesByClaim(ctx, claimID) })
}

func (f *Fallback) VotesByVoter(ctx context.Context, voter string, limit, offset int) (Result[[]protocol.Vote], error) {
	return rescue(f,
		func() (Result[[]protocol.Vote], error) { return f.primary.VotesByVoter(ctx, voter, limit, offset) },
		func() (Result[[]protocol.Vote], error) { return f.secondary.VotesByVoter(ctx, voter, limit, offset) })
}

func (f *Fallback) EvidenceByClaim(ctx context.Context, claimID string) (Result[[]protocol.Evidence], error) {
	return rescue(f,
		func() (Result[[]protocol.Evidence], error) { return f.primary.EvidenceByClaim(ctx, claimID) },
		func() (Result[[]protocol.Evidence], error) { return f.secondary.EvidenceByClaim(ctx, claimID) })
}

func (f *Fallback) Council(ctx context.Context, id string) (Result[*protocol.Council], error) {
	return rescue(f,
		func() (Result[*protocol.Council], error) { return f.primary.Council(ctx, id) },
		func() (Result[*protocol.Council], error) { return f.secondary.Council(ctx, id) })
}

func (f *Fallback) Councils(ctx context.Context, activeOnly bool, limit, offset int) (Result[[]protocol.Council], error) {
	return rescue(f,
		func() (Result[[]protocol.Council], error) { return f.primary.Councils(ctx, activeOnly, limit, offset) },
		func() (Result[[]protocol.Council], error) { return f.secondary.Councils(ctx, activeOnly, limit, offset) })
}

func (f *Fallback) MembersByCouncil(ctx context.Context, councilID string) (Result[[]protocol.CouncilMember], error) {
	return rescue(f,
		func() (Result[[]protocol.CouncilMember], error) { return f.primary.MembersByCouncil(ctx, councilID) },
		func() (Result[[]protocol.CouncilMember], error) { return f.secondary.MembersByCouncil(ctx, councilID) })
}

func (f *Fallback) Stats(ctx context.Context) (Result[protocol.ProtocolStats], error) {
	return rescue(f,
		func() (Result[protocol.ProtocolStats], error) { return f.primary.Stats(ctx) },
		func() (Result[protocol.ProtocolStats], error) { return f.secondary.Stats(ctx) })
}

func (f *Fallback) Healthy(ctx context.Context) error {
	if err := f.primary.Healthy(ctx); err == nil {
		return nil
	} else if f.secondary == nil {
		return err
	}
	return f.secondary.Healthy(ctx)
}

var (
	_ DataSource = (*StoreSource)(nil)
	_ DataSource = (*ChainSource)(nil)
	_ DataSource = (*Fallback)(nil)
)
