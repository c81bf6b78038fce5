package indexer

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"go.uber.org/zap"
)

// reconcile recomputes the protocol totals from the live aggregates and
// compares them to the transactionally maintained stats row. The two must
// always agree; drift means a projection bug and is logged as an error so it
// pages instead of rotting silently.
func (a *App) reconcile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	var computed protocol.ProtocolStats

	a.Memory.RangeAgents(func(ag protocol.Agent) bool {
		computed.TotalAgents++
		computed.TotalCollateral += ag.CollateralBalance
		computed.TotalLockedCollateral += ag.LockedCollateral
		return true
	})
	a.Memory.RangeCouncils(func(c protocol.Council) bool {
		computed.TotalCouncils++
		return true
	})
	a.Memory.RangeMembers(func(m protocol.CouncilMember) bool {
		if m.Active {
			computed.TotalMembers++
		}
		return true
	})
	a.Memory.RangeClaims(func(c protocol.Claim) bool {
		computed.TotalClaims++
		switch c.Status {
		case protocol.StatusFiled, protocol.StatusEvidenceClosed, protocol.StatusVotingClosed:
			computed.PendingClaims++
			computed.TotalDepositsHeld += c.ClaimantDeposit
		case protocol.StatusApproved, protocol.StatusExecuted:
			computed.ApprovedClaims++
		case protocol.StatusRejected:
			computed.RejectedClaims++
		}
		return true
	})

	maintained := a.Memory.Stats()

	drift := map[string][2]uint64{}
	check := func(name string, have, want uint64) {
		if have != want {
			drift[name] = [2]uint64{have, want}
		}
	}
	check("total_agents", maintained.TotalAgents, computed.TotalAgents)
	check("total_councils", maintained.TotalCouncils, computed.TotalCouncils)
	check("total_members", maintained.TotalMembers, computed.TotalMembers)
	check("total_claims", maintained.TotalClaims, computed.TotalClaims)
	check("approved_claims", maintained.ApprovedClaims, computed.ApprovedClaims)
	check("rejected_claims", maintained.RejectedClaims, computed.RejectedClaims)
	check("pending_claims", maintained.PendingClaims, computed.PendingClaims)
	check("total_collateral", maintained.TotalCollateral, computed.TotalCollateral)
	check("total_locked_collateral", maintained.TotalLockedCollateral, computed.TotalLockedCollateral)
	check("total_deposits_held", maintained.TotalDepositsHeld, computed.TotalDepositsHeld)

	if len(drift) > 0 {
		a.Logger.Error("Stats drift detected", zap.Any("drift", drift))
		return
	}
	a.Logger.Info("Stats reconciliation clean",
		zap.Uint64("agents", computed.TotalAgents),
		zap.Uint64("claims", computed.TotalClaims))
}
