package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/utils"
	"go.uber.org/zap"
)

var (
	// ErrOutOfOrder marks an event that regresses the (block, logIndex)
	// cursor. Fatal: applying it would silently corrupt the projection.
	ErrOutOfOrder = errors.New("event out of order")

	// ErrInconsistent marks an event whose payload contradicts projected
	// state (balance underflow, duplicate claim id). Fatal for the same
	// reason: skipping would create undetectable drift from the chain.
	ErrInconsistent = errors.New("event inconsistent with projected state")
)

// Projector folds the ordered event log into the entity store. It is a pure
// function of (current state, event); it holds no state beyond the store and
// the ordering cursor, so a fresh store plus a full replay reproduces the
// exact same aggregates.
//
// The projector trusts the log: lifecycle guards (deadlines, permissions) are
// enforced by the contract before an event is ever emitted, so handlers never
// re-check them here. Guards live in lifecycle.go and gate API affordances.
type Projector struct {
	store  EntityStore
	logger *zap.Logger

	applied  bool
	lastBlk  uint64
	lastIdx  uint32
	applyCnt uint64
}

func NewProjector(store EntityStore, logger *zap.Logger) *Projector {
	return &Projector{store: store, logger: logger.Named("projector")}
}

// Applied returns the number of events folded so far.
func (p *Projector) Applied() uint64 { return p.applyCnt }

// Cursor returns the (block, logIndex) of the last applied event.
func (p *Projector) Cursor() (uint64, uint32) { return p.lastBlk, p.lastIdx }

// Resume seeds the ordering cursor from a checkpoint so the first event
// applied after a restart is still subject to the out-of-order check.
func (p *Projector) Resume(block uint64, logIndex uint32) {
	p.applied = true
	p.lastBlk = block
	p.lastIdx = logIndex
}

// Apply folds one event into the store. Events must arrive in strictly
// increasing (block, logIndex) order; a regression or duplicate returns
// ErrOutOfOrder and the caller must halt ingestion. Unknown event types are
// skipped for forward compatibility.
func (p *Projector) Apply(ev Event) error {
	if p.applied {
		if ev.Block < p.lastBlk || (ev.Block == p.lastBlk && ev.LogIndex <= p.lastIdx) {
			return fmt.Errorf("%w: got (%d,%d) after (%d,%d)",
				ErrOutOfOrder, ev.Block, ev.LogIndex, p.lastBlk, p.lastIdx)
		}
	}

	var err error
	switch payload := ev.Payload.(type) {
	case *ClaimFiledPayload:
		err = p.applyClaimFiled(ev, payload)
	case *EvidenceSubmittedPayload:
		err = p.applyEvidenceSubmitted(ev, payload)
	case *VoteCastPayload:
		err = p.applyVoteCast(ev, payload)
	case *VoteChangedPayload:
		err = p.applyVoteChanged(ev, payload)
	case *ClaimApprovedPayload:
		err = p.applyClaimResolution(ev, ClaimKey(payload.ClaimID), StatusApproved, &payload.ApprovedAmount)
	case *ClaimRejectedPayload:
		err = p.applyClaimResolution(ev, ClaimKey(payload.ClaimID), StatusRejected, nil)
	case *ClaimCancelledPayload:
		err = p.applyClaimCancelled(ev, payload)
	case *ClaimExpiredPayload:
		err = p.applyClaimResolution(ev, ClaimKey(payload.ClaimID), StatusExpired, nil)
	case *ClaimExecutedPayload:
		err = p.applyClaimExecuted(ev, payload)
	case *DepositedPayload:
		err = p.applyDeposited(ev, payload)
	case *WithdrawalInitiatedPayload:
		err = p.applyWithdrawalInitiated(ev, payload)
	case *WithdrawalCancelledPayload:
		err = p.applyWithdrawalCancelled(ev, payload)
	case *WithdrawalExecutedPayload:
		err = p.applyWithdrawalExecuted(ev, payload)
	case *CollateralLockedPayload:
		err = p.applyCollateralLocked(ev, payload)
	case *CollateralUnlockedPayload:
		err = p.applyCollateralUnlocked(ev, payload)
	case *CollateralSlashedPayload:
		err = p.applyCollateralSlashed(ev, payload)
	case *CouncilCreatedPayload:
		err = p.applyCouncilCreated(ev, payload)
	case *CouncilClosedPayload:
		err = p.applyCouncilClosed(ev, payload)
	case *CouncilActivatedPayload:
		err = p.applyCouncilActive(ev, payload.CouncilID, true)
	case *CouncilDeactivatedPayload:
		err = p.applyCouncilActive(ev, payload.CouncilID, false)
	case *MemberAddedPayload:
		err = p.applyMemberAdded(ev, payload)
	case *MemberRemovedPayload:
		err = p.applyMemberRemoved(ev, payload)
	case *TermsRegisteredPayload:
		err = p.applyTermsRegistered(ev, payload)
	case *TermsActivatedPayload:
		err = p.applyTermsActivated(ev, payload)
	case *TermsDeactivatedPayload:
		err = p.applyTermsDeactivated(ev, payload)
	case *ValidationIssuedPayload:
		err = p.applyValidationIssued(ev, payload)
	case *ValidationRevokedPayload:
		err = p.applyValidationRevoked(ev, payload)
	case nil:
		p.logger.Debug("Skipping unhandled event type", zap.String("type", string(ev.Type)))
	default:
		p.logger.Debug("Skipping unhandled event type", zap.String("type", string(ev.Type)))
	}

	if err != nil {
		return fmt.Errorf("apply %s at (%d,%d): %w", ev.Type, ev.Block, ev.LogIndex, err)
	}

	p.applied = true
	p.lastBlk = ev.Block
	p.lastIdx = ev.LogIndex
	p.applyCnt++
	return nil
}

// getOrCreateAgent lazily constructs an agent with zero-valued defaults the
// first time any event references it. The stats counter is bumped exactly
// once, at creation.
func (p *Projector) getOrCreateAgent(id string, ts time.Time) Agent {
	if a, ok := p.store.Agent(id); ok {
		return a
	}
	a := Agent{ID: id, CreatedAt: ts, UpdatedAt: ts}
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalAgents++
		st.UpdatedAt = ts
	})
	return a
}

func (p *Projector) getOrCreateCouncil(id string, ts time.Time) Council {
	if c, ok := p.store.Council(id); ok {
		return c
	}
	c := Council{ID: id, CreatedAt: ts, UpdatedAt: ts}
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalCouncils++
		st.UpdatedAt = ts
	})
	return c
}

func (p *Projector) applyClaimFiled(ev Event, payload *ClaimFiledPayload) error {
	id := ClaimKey(payload.ClaimID)
	if _, exists := p.store.Claim(id); exists {
		return fmt.Errorf("%w: claim %s already filed", ErrInconsistent, id)
	}

	agentID := utils.AgentKey(payload.AgentID)
	agent := p.getOrCreateAgent(agentID, ev.Time)
	councilID := utils.NormalizeHex(payload.CouncilID)
	council := p.getOrCreateCouncil(councilID, ev.Time)

	evidenceDeadline := ev.Time.Add(time.Duration(council.EvidencePeriodSec) * time.Second)
	votingDeadline := evidenceDeadline.Add(time.Duration(council.VotingPeriodSec) * time.Second)

	claim := Claim{
		ID:                 id,
		AgentID:            agentID,
		CouncilID:          councilID,
		Claimant:           utils.NormalizeHex(payload.Claimant),
		ClaimedAmount:      payload.ClaimedAmount,
		ClaimantDeposit:    payload.ClaimantDeposit,
		EvidenceHash:       payload.EvidenceHash,
		EvidenceURI:        payload.EvidenceURI,
		PaymentReceiptHash: payload.PaymentReceiptHash,

		// Point-in-time copy of the terms in force when filed. These never
		// change afterwards, even if the agent rotates its active terms.
		TermsHashAtClaimTime:    agent.TermsHash,
		TermsVersionAtClaimTime: agent.TermsVersion,
		ProviderAtClaimTime:     agent.Owner,

		Status:           StatusFiled,
		FiledAt:          ev.Time,
		EvidenceDeadline: evidenceDeadline,
		VotingDeadline:   votingDeadline,
		UpdatedAt:        ev.Time,
	}

	agent.TotalClaims++
	agent.PendingClaims++
	agent.UpdatedAt = ev.Time
	council.TotalClaims++
	council.UpdatedAt = ev.Time

	p.store.PutClaim(claim)
	p.store.PutAgent(agent)
	p.store.PutCouncil(council)
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalClaims++
		st.PendingClaims++
		st.TotalDepositsHeld += payload.ClaimantDeposit
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyEvidenceSubmitted(ev Event, payload *EvidenceSubmittedPayload) error {
	id := ClaimKey(payload.ClaimID)
	claim, ok := p.store.Claim(id)
	if !ok {
		// Missing parent claim: partial history, not a lazily-creatable
		// entity. No-op by contract.
		p.logger.Debug("Evidence for unknown claim", zap.String("claim", id))
		return nil
	}

	p.store.AppendEvidence(Evidence{
		ClaimID:         id,
		Sequence:        p.store.EvidenceCount(id) + 1,
		Submitter:       utils.NormalizeHex(payload.Submitter),
		CounterEvidence: payload.IsCounterEvidence,
		EvidenceHash:    payload.EvidenceHash,
		EvidenceURI:     payload.EvidenceURI,
		SubmittedAt:     ev.Time,
	})

	claim.UpdatedAt = ev.Time
	p.store.PutClaim(claim)
	return nil
}

func bumpClaimTally(c *Claim, choice VoteChoice, delta int) {
	apply := func(v *uint32) {
		if delta > 0 {
			*v++
		} else if *v > 0 {
			*v--
		}
	}
	switch choice {
	case VoteApprove:
		apply(&c.ApproveVotes)
	case VoteReject:
		apply(&c.RejectVotes)
	case VoteAbstain:
		apply(&c.AbstainVotes)
	}
}

func bumpMemberTally(m *CouncilMember, choice VoteChoice, delta int) {
	apply := func(v *uint64) {
		if delta > 0 {
			*v++
		} else if *v > 0 {
			*v--
		}
	}
	switch choice {
	case VoteApprove:
		apply(&m.ApproveVotes)
	case VoteReject:
		apply(&m.RejectVotes)
	case VoteAbstain:
		apply(&m.AbstainVotes)
	}
}

func (p *Projector) applyVoteCast(ev Event, payload *VoteCastPayload) error {
	id := ClaimKey(payload.ClaimID)
	claim, ok := p.store.Claim(id)
	if !ok {
		p.logger.Debug("Vote for unknown claim", zap.String("claim", id))
		return nil
	}
	voter := utils.NormalizeHex(payload.Voter)
	member, ok := p.store.Member(claim.CouncilID, voter)
	if !ok {
		p.logger.Debug("Vote from unknown council member",
			zap.String("claim", id), zap.String("voter", voter))
		return nil
	}
	if _, exists := p.store.Vote(id, voter); exists {
		return fmt.Errorf("%w: duplicate VoteCast for claim %s voter %s", ErrInconsistent, id, voter)
	}

	// Claim tallies and member tallies move as a unit; both writes land
	// below or neither does.
	bumpClaimTally(&claim, payload.Vote, +1)
	claim.TotalVotes++
	claim.HadVotes = true
	claim.UpdatedAt = ev.Time

	bumpMemberTally(&member, payload.Vote, +1)
	member.TotalClaimsVoted++
	member.UpdatedAt = ev.Time

	p.store.PutVote(Vote{
		ClaimID:        id,
		CouncilID:      claim.CouncilID,
		Voter:          voter,
		Choice:         payload.Vote,
		ApprovedAmount: payload.ApprovedAmount,
		Reasoning:      payload.Reasoning,
		CastAt:         ev.Time,
	})
	p.store.PutClaim(claim)
	p.store.PutMember(member)
	return nil
}

func (p *Projector) applyVoteChanged(ev Event, payload *VoteChangedPayload) error {
	id := ClaimKey(payload.ClaimID)
	voter := utils.NormalizeHex(payload.Voter)

	vote, ok := p.store.Vote(id, voter)
	if !ok {
		p.logger.Debug("Vote change without a prior vote",
			zap.String("claim", id), zap.String("voter", voter))
		return nil
	}
	claim, ok := p.store.Claim(id)
	if !ok {
		p.logger.Debug("Vote change for unknown claim", zap.String("claim", id))
		return nil
	}
	member, ok := p.store.Member(claim.CouncilID, voter)
	if !ok {
		p.logger.Debug("Vote change from unknown council member",
			zap.String("claim", id), zap.String("voter", voter))
		return nil
	}

	// The stored record is the tally source of truth; a mismatching old_vote
	// in the payload indicates upstream weirdness worth flagging.
	if vote.Choice != payload.OldVote {
		p.logger.Warn("VoteChanged old_vote disagrees with stored record",
			zap.String("claim", id), zap.String("voter", voter),
			zap.String("stored", vote.Choice.String()),
			zap.String("payload", payload.OldVote.String()))
	}

	// Atomic swap: decrement the old choice, increment the new one, total
	// unchanged. Never recomputed by replaying every vote in the hot path,
	// but reconcilable by such a replay.
	bumpClaimTally(&claim, vote.Choice, -1)
	bumpClaimTally(&claim, payload.NewVote, +1)
	claim.UpdatedAt = ev.Time

	bumpMemberTally(&member, vote.Choice, -1)
	bumpMemberTally(&member, payload.NewVote, +1)
	member.UpdatedAt = ev.Time

	vote.Choice = payload.NewVote
	vote.ApprovedAmount = payload.NewApprovedAmount
	if payload.Reasoning != "" {
		vote.Reasoning = payload.Reasoning
	}
	vote.LastChangedAt = ev.Time

	p.store.PutVote(vote)
	p.store.PutClaim(claim)
	p.store.PutMember(member)
	return nil
}

// applyClaimResolution handles Approved, Rejected and Expired, which share
// the same counter bookkeeping.
func (p *Projector) applyClaimResolution(ev Event, id string, status ClaimStatus, approvedAmount *uint64) error {
	claim, ok := p.store.Claim(id)
	if !ok {
		p.logger.Debug("Resolution for unknown claim", zap.String("claim", id))
		return nil
	}

	claim.Status = status
	claim.ClosedAt = ev.Time
	claim.UpdatedAt = ev.Time
	if approvedAmount != nil {
		amt := *approvedAmount
		claim.ApprovedAmount = &amt
	}

	agent, haveAgent := p.store.Agent(claim.AgentID)
	if haveAgent {
		if agent.PendingClaims > 0 {
			agent.PendingClaims--
		}
		switch status {
		case StatusApproved:
			agent.ApprovedClaims++
		case StatusRejected:
			agent.RejectedClaims++
		}
		agent.UpdatedAt = ev.Time
	}

	p.store.PutClaim(claim)
	if haveAgent {
		p.store.PutAgent(agent)
	}

	// Settle the win-rate ledger for everyone who took a side.
	for _, vote := range p.store.VotesByClaim(id) {
		if vote.Choice == VoteAbstain {
			continue
		}
		member, okMember := p.store.Member(claim.CouncilID, vote.Voter)
		if !okMember {
			continue
		}
		member.FinalizedVotes++
		if VoteWasCorrect(status, vote.Choice) {
			member.CorrectVotes++
		}
		member.UpdatedAt = ev.Time
		p.store.PutMember(member)
	}

	p.store.MutateStats(func(st *ProtocolStats) {
		if st.PendingClaims > 0 {
			st.PendingClaims--
		}
		switch status {
		case StatusApproved:
			st.ApprovedClaims++
		case StatusRejected:
			st.RejectedClaims++
		}
		if st.TotalDepositsHeld >= claim.ClaimantDeposit {
			st.TotalDepositsHeld -= claim.ClaimantDeposit
		} else {
			st.TotalDepositsHeld = 0
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyClaimCancelled(ev Event, payload *ClaimCancelledPayload) error {
	id := ClaimKey(payload.ClaimID)
	claim, ok := p.store.Claim(id)
	if !ok {
		p.logger.Debug("Cancellation for unknown claim", zap.String("claim", id))
		return nil
	}

	claim.Status = StatusCancelled
	claim.DepositForfeited = payload.DepositForfeited
	claim.ClosedAt = ev.Time
	claim.UpdatedAt = ev.Time

	agent, haveAgent := p.store.Agent(claim.AgentID)
	if haveAgent {
		if agent.PendingClaims > 0 {
			agent.PendingClaims--
		}
		agent.UpdatedAt = ev.Time
	}

	council, haveCouncil := p.store.Council(claim.CouncilID)
	if haveCouncil && payload.DepositForfeited {
		council.TotalForfeitures += claim.ClaimantDeposit
		council.UpdatedAt = ev.Time
	}

	p.store.PutClaim(claim)
	if haveAgent {
		p.store.PutAgent(agent)
	}
	if haveCouncil && payload.DepositForfeited {
		p.store.PutCouncil(council)
	}
	p.store.MutateStats(func(st *ProtocolStats) {
		if st.PendingClaims > 0 {
			st.PendingClaims--
		}
		if st.TotalDepositsHeld >= claim.ClaimantDeposit {
			st.TotalDepositsHeld -= claim.ClaimantDeposit
		} else {
			st.TotalDepositsHeld = 0
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyClaimExecuted(ev Event, payload *ClaimExecutedPayload) error {
	id := ClaimKey(payload.ClaimID)
	claim, ok := p.store.Claim(id)
	if !ok {
		p.logger.Debug("Execution for unknown claim", zap.String("claim", id))
		return nil
	}

	claim.Status = StatusExecuted
	claim.ExecutedAt = ev.Time
	claim.AmountPaid = payload.AmountPaid
	claim.UpdatedAt = ev.Time

	agent, haveAgent := p.store.Agent(claim.AgentID)
	if haveAgent {
		agent.TotalPaidOut += payload.AmountPaid
		agent.UpdatedAt = ev.Time
	}
	council, haveCouncil := p.store.Council(claim.CouncilID)
	if haveCouncil {
		council.TotalCompensation += payload.AmountPaid
		council.UpdatedAt = ev.Time
	}

	p.store.PutClaim(claim)
	if haveAgent {
		p.store.PutAgent(agent)
	}
	if haveCouncil {
		p.store.PutCouncil(council)
	}
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalCompensationPaid += payload.AmountPaid
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyDeposited(ev Event, payload *DepositedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.CollateralBalance += payload.Amount
	agent.RecomputeAvailable()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalCollateral += payload.Amount
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyWithdrawalInitiated(ev Event, payload *WithdrawalInitiatedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.WithdrawalPending = true
	agent.WithdrawalAmount = payload.Amount
	agent.WithdrawalExecutableAt = time.Unix(payload.ExecutableAt, 0).UTC()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyWithdrawalCancelled(ev Event, payload *WithdrawalCancelledPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.WithdrawalPending = false
	agent.WithdrawalAmount = 0
	agent.WithdrawalExecutableAt = time.Time{}
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyWithdrawalExecuted(ev Event, payload *WithdrawalExecutedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	if agent.CollateralBalance < payload.Amount {
		return fmt.Errorf("%w: withdrawal %d exceeds balance %d for agent %s",
			ErrInconsistent, payload.Amount, agent.CollateralBalance, agent.ID)
	}
	agent.CollateralBalance -= payload.Amount
	agent.WithdrawalPending = false
	agent.WithdrawalAmount = 0
	agent.WithdrawalExecutableAt = time.Time{}
	agent.RecomputeAvailable()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	p.store.MutateStats(func(st *ProtocolStats) {
		if st.TotalCollateral >= payload.Amount {
			st.TotalCollateral -= payload.Amount
		} else {
			st.TotalCollateral = 0
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyCollateralLocked(ev Event, payload *CollateralLockedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.LockedCollateral += payload.Amount
	agent.RecomputeAvailable()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)

	if claim, ok := p.store.Claim(ClaimKey(payload.ClaimID)); ok {
		claim.LockedCollateral = payload.Amount
		claim.UpdatedAt = ev.Time
		p.store.PutClaim(claim)
	}

	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalLockedCollateral += payload.Amount
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyCollateralUnlocked(ev Event, payload *CollateralUnlockedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	if agent.LockedCollateral < payload.Amount {
		return fmt.Errorf("%w: unlock %d exceeds locked %d for agent %s",
			ErrInconsistent, payload.Amount, agent.LockedCollateral, agent.ID)
	}
	agent.LockedCollateral -= payload.Amount
	agent.RecomputeAvailable()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	p.store.MutateStats(func(st *ProtocolStats) {
		if st.TotalLockedCollateral >= payload.Amount {
			st.TotalLockedCollateral -= payload.Amount
		} else {
			st.TotalLockedCollateral = 0
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyCollateralSlashed(ev Event, payload *CollateralSlashedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	if agent.LockedCollateral < payload.Amount || agent.CollateralBalance < payload.Amount {
		return fmt.Errorf("%w: slash %d exceeds locked %d or balance %d for agent %s",
			ErrInconsistent, payload.Amount, agent.LockedCollateral, agent.CollateralBalance, agent.ID)
	}
	agent.LockedCollateral -= payload.Amount
	agent.CollateralBalance -= payload.Amount
	agent.RecomputeAvailable()
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalSlashed += payload.Amount
		if st.TotalLockedCollateral >= payload.Amount {
			st.TotalLockedCollateral -= payload.Amount
		} else {
			st.TotalLockedCollateral = 0
		}
		if st.TotalCollateral >= payload.Amount {
			st.TotalCollateral -= payload.Amount
		} else {
			st.TotalCollateral = 0
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyCouncilCreated(ev Event, payload *CouncilCreatedPayload) error {
	// The council may already exist from a lazy creation; merge the
	// configuration in without resetting counters.
	council := p.getOrCreateCouncil(utils.NormalizeHex(payload.CouncilID), ev.Time)
	council.Name = payload.Name
	council.Description = payload.Description
	council.Vertical = payload.Vertical
	council.QuorumPct = payload.QuorumPct
	council.ClaimDepositPct = payload.ClaimDepositPct
	council.EvidencePeriodSec = payload.EvidencePeriodSec
	council.VotingPeriodSec = payload.VotingPeriodSec
	council.Active = true
	council.UpdatedAt = ev.Time
	p.store.PutCouncil(council)
	return nil
}

func (p *Projector) applyCouncilClosed(ev Event, payload *CouncilClosedPayload) error {
	council := p.getOrCreateCouncil(utils.NormalizeHex(payload.CouncilID), ev.Time)
	council.Active = false
	council.Closed = true
	council.ClosedAt = ev.Time
	council.UpdatedAt = ev.Time
	p.store.PutCouncil(council)
	return nil
}

func (p *Projector) applyCouncilActive(ev Event, councilID string, active bool) error {
	council := p.getOrCreateCouncil(utils.NormalizeHex(councilID), ev.Time)
	if council.Closed {
		// Closure is terminal; a late activation event cannot resurrect it.
		p.logger.Debug("Ignoring activation toggle on closed council", zap.String("council", council.ID))
		return nil
	}
	council.Active = active
	council.UpdatedAt = ev.Time
	p.store.PutCouncil(council)
	return nil
}

func (p *Projector) applyMemberAdded(ev Event, payload *MemberAddedPayload) error {
	councilID := utils.NormalizeHex(payload.CouncilID)
	addr := utils.NormalizeHex(payload.Member)
	council := p.getOrCreateCouncil(councilID, ev.Time)

	member, existed := p.store.Member(councilID, addr)
	if existed && member.Active {
		p.logger.Debug("Duplicate member add", zap.String("council", councilID), zap.String("member", addr))
		return nil
	}
	if !existed {
		member = CouncilMember{CouncilID: councilID, Address: addr}
	}
	member.Active = true
	member.JoinedAt = ev.Time
	member.LeftAt = time.Time{}
	member.UpdatedAt = ev.Time

	council.MemberCount++
	council.UpdatedAt = ev.Time

	p.store.PutMember(member)
	p.store.PutCouncil(council)
	p.store.MutateStats(func(st *ProtocolStats) {
		st.TotalMembers++
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyMemberRemoved(ev Event, payload *MemberRemovedPayload) error {
	councilID := utils.NormalizeHex(payload.CouncilID)
	addr := utils.NormalizeHex(payload.Member)

	member, ok := p.store.Member(councilID, addr)
	if !ok || !member.Active {
		p.logger.Debug("Removal of unknown or inactive member",
			zap.String("council", councilID), zap.String("member", addr))
		return nil
	}

	// Marked inactive, never deleted: voting history stays queryable.
	member.Active = false
	member.LeftAt = ev.Time
	member.UpdatedAt = ev.Time

	council := p.getOrCreateCouncil(councilID, ev.Time)
	if council.MemberCount > 0 {
		council.MemberCount--
	}
	council.UpdatedAt = ev.Time

	p.store.PutMember(member)
	p.store.PutCouncil(council)
	p.store.MutateStats(func(st *ProtocolStats) {
		if st.TotalMembers > 0 {
			st.TotalMembers--
		}
		st.UpdatedAt = ev.Time
	})
	return nil
}

func (p *Projector) applyTermsRegistered(ev Event, payload *TermsRegisteredPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.TermsVersion = payload.Version
	agent.TermsHash = payload.ContentHash
	agent.TermsURI = payload.ContentURI
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyTermsActivated(ev Event, payload *TermsActivatedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.TermsVersion = payload.Version
	agent.TermsHash = payload.ContentHash
	agent.TermsURI = payload.ContentURI
	agent.HasActiveTerms = true
	agent.ActiveCouncilID = utils.NormalizeHex(payload.CouncilID)
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyTermsDeactivated(ev Event, payload *TermsDeactivatedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.HasActiveTerms = false
	agent.ActiveCouncilID = ""
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyValidationIssued(ev Event, payload *ValidationIssuedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.Validated = true
	agent.ValidationIssuedAt = ev.Time
	agent.RevocationReason = ""
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}

func (p *Projector) applyValidationRevoked(ev Event, payload *ValidationRevokedPayload) error {
	agent := p.getOrCreateAgent(utils.AgentKey(payload.AgentID), ev.Time)
	agent.Validated = false
	agent.ValidationRevokedAt = ev.Time
	agent.RevocationReason = payload.Reason
	agent.UpdatedAt = ev.Time
	p.store.PutAgent(agent)
	return nil
}
