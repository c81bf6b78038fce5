package protocol

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrGuard is the root of every lifecycle guard violation. Callers map
// anything wrapping it to a user-facing validation error (HTTP 4xx), never a
// server fault. The contract is the final authority; these guards exist so
// the off-chain mirror gates affordances the same way the chain will.
var ErrGuard = errors.New("lifecycle guard violation")

var (
	ErrEvidenceWindowClosed = fmt.Errorf("%w: evidence window closed", ErrGuard)
	ErrVotingWindowClosed   = fmt.Errorf("%w: voting window closed", ErrGuard)
	ErrVotingNotOpen        = fmt.Errorf("%w: voting not open", ErrGuard)
	ErrNotClaimant          = fmt.Errorf("%w: only the claimant may cancel", ErrGuard)
	ErrAlreadyResolved      = fmt.Errorf("%w: claim already resolved", ErrGuard)
	ErrFinalizeTooEarly     = fmt.Errorf("%w: voting deadline not reached", ErrGuard)
)

// EffectiveStatus derives the status a claim would report right now.
// Deadlines are evaluated lazily against stored timestamps; there are no
// background timers advancing claims. A stored resolution always wins.
func EffectiveStatus(c Claim, now time.Time) ClaimStatus {
	if c.Status != StatusFiled && c.Status != StatusEvidenceClosed {
		return c.Status
	}
	if !now.Before(c.VotingDeadline) {
		return StatusVotingClosed
	}
	if !now.Before(c.EvidenceDeadline) {
		return StatusEvidenceClosed
	}
	return c.Status
}

// transitions is the claim state machine. No edge ever moves a claim
// backwards, and terminal states have no outgoing edges.
var transitions = map[ClaimStatus][]ClaimStatus{
	StatusFiled:          {StatusEvidenceClosed, StatusVotingClosed, StatusCancelled, StatusExpired},
	StatusEvidenceClosed: {StatusVotingClosed, StatusCancelled, StatusExpired},
	StatusVotingClosed:   {StatusApproved, StatusRejected, StatusExpired},
	StatusApproved:       {StatusExecuted},
	StatusRejected:       {StatusExecuted},
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to ClaimStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanSubmitEvidence gates evidence submission: only before the evidence
// deadline, and only while the claim is still in its evidence phase.
func CanSubmitEvidence(c Claim, now time.Time) error {
	status := EffectiveStatus(c, now)
	if status != StatusFiled && status != StatusEvidenceClosed {
		return ErrAlreadyResolved
	}
	if !now.Before(c.EvidenceDeadline) {
		return ErrEvidenceWindowClosed
	}
	return nil
}

// CanVote gates casting or changing a vote. Votes open once the evidence
// window has closed and stay open until the voting deadline; a member may
// change their vote any number of times, the last one before the deadline is
// authoritative.
func CanVote(c Claim, now time.Time) error {
	status := EffectiveStatus(c, now)
	switch status {
	case StatusFiled:
		return ErrVotingNotOpen
	case StatusEvidenceClosed:
		if !now.Before(c.VotingDeadline) {
			return ErrVotingWindowClosed
		}
		return nil
	case StatusVotingClosed:
		return ErrVotingWindowClosed
	default:
		return ErrAlreadyResolved
	}
}

// CanCancel gates claimant-initiated cancellation: the original claimant
// only, and only before voting has closed.
func CanCancel(c Claim, caller string, now time.Time) error {
	if caller != c.Claimant {
		return ErrNotClaimant
	}
	switch EffectiveStatus(c, now) {
	case StatusFiled, StatusEvidenceClosed:
		return nil
	case StatusVotingClosed:
		return ErrVotingWindowClosed
	default:
		return ErrAlreadyResolved
	}
}

// CanFinalize gates finalization. Deliberately permissionless: anyone may
// finalize once the voting deadline has passed, which is what allows
// automated finalizer bots.
func CanFinalize(c Claim, now time.Time) error {
	if c.Status.IsResolved() {
		return ErrAlreadyResolved
	}
	if now.Before(c.VotingDeadline) {
		return ErrFinalizeTooEarly
	}
	return nil
}

// MedianApprovedAmount aggregates the proposed amounts on the approve side
// the way the contract does: sort ascending and take the lower-middle
// element. Two proposals of 800 and 900 yield 800. Returns 0 when no approve
// votes carry an amount.
func MedianApprovedAmount(votes []Vote) uint64 {
	amounts := make([]uint64, 0, len(votes))
	for _, v := range votes {
		if v.Choice == VoteApprove {
			amounts = append(amounts, v.ApprovedAmount)
		}
	}
	if len(amounts) == 0 {
		return 0
	}
	sort.Slice(amounts, func(i, j int) bool { return amounts[i] < amounts[j] })
	return amounts[(len(amounts)-1)/2]
}

// ResolveOutcome predicts the resolution the contract will reach when a
// claim is finalized: quorum participation against the council's quorum
// percentage decides between a vote-tally resolution and expiry, and a
// strict approve majority decides approval. The predicted approved amount is
// the approve-side median.
func ResolveOutcome(c Claim, council Council, votes []Vote, now time.Time) (ClaimStatus, uint64, error) {
	if err := CanFinalize(c, now); err != nil {
		return c.Status, 0, err
	}
	if council.MemberCount == 0 {
		return StatusExpired, 0, nil
	}

	participationPct := uint64(c.TotalVotes) * 100 / uint64(council.MemberCount)
	if participationPct < uint64(council.QuorumPct) {
		return StatusExpired, 0, nil
	}
	if c.ApproveVotes > c.RejectVotes {
		return StatusApproved, MedianApprovedAmount(votes), nil
	}
	return StatusRejected, 0, nil
}
