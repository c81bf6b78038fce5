package protocol

import (
	"errors"
	"fmt"
)

// ErrNotResolved is returned when a distribution is requested for a claim
// that has not reached a resolution state yet.
var ErrNotResolved = errors.New("claim not resolved")

// Distribution is the three-way split of a finalized claim's deposit and
// locked collateral. Every field is exact base units; the identity
//
//	DepositPerVoter*DepositVoters + DepositRemainder + DepositToClaimant
//	  == ClaimantDeposit
//
// holds for every outcome, so no wei is lost or created.
type Distribution struct {
	Outcome ClaimStatus `json:"outcome"`

	// Deposit side.
	DepositVoters     uint32 `json:"deposit_voters"` // non-abstaining voters sharing the deposit
	DepositPerVoter   uint64 `json:"deposit_per_voter"`
	DepositRemainder  uint64 `json:"deposit_remainder"` // retained by the protocol treasury
	DepositToClaimant uint64 `json:"deposit_to_claimant"`

	// Collateral side.
	CollateralToClaimant uint64 `json:"collateral_to_claimant"`
	CollateralToAgent    uint64 `json:"collateral_to_agent"`
}

// Calculate reproduces the on-chain distribution matrix for a resolved
// claim. This exists to predict the contract's result exactly, so the
// rounding rule must match bit for bit: the per-voter share is
// floor(deposit / nonAbstainVoters) and the sub-voter remainder is retained
// by the protocol treasury rather than redistributed.
//
//	Approved / Executed  deposit split across non-abstaining voters;
//	                     min(approvedAmount, locked) to claimant, rest
//	                     unlocked to the agent
//	Rejected             deposit split; collateral fully back to the agent
//	Cancelled            deposit split; collateral fully back to the agent
//	Expired, votes cast  deposit split; collateral fully back to the agent
//	Expired, no votes    deposit fully back to the claimant; collateral
//	                     fully back to the agent
func Calculate(c Claim) (Distribution, error) {
	if !c.Status.IsResolved() {
		return Distribution{}, fmt.Errorf("%w: claim %s is %s", ErrNotResolved, c.ID, c.Status)
	}

	d := Distribution{Outcome: c.Status}

	// Deposit side.
	nonAbstain := c.ApproveVotes + c.RejectVotes
	switch {
	case c.Status == StatusExpired && !c.HadVotes:
		// Nobody showed up at all; the claimant gets their deposit back.
		d.DepositToClaimant = c.ClaimantDeposit
	case nonAbstain == 0:
		// Only abstentions: the deposit is unattributable. Explicit branch,
		// never a division by zero; it goes back to the claimant.
		d.DepositToClaimant = c.ClaimantDeposit
	default:
		d.DepositVoters = nonAbstain
		d.DepositPerVoter = c.ClaimantDeposit / uint64(nonAbstain)
		d.DepositRemainder = c.ClaimantDeposit % uint64(nonAbstain)
	}

	// Collateral side.
	switch c.Status {
	case StatusApproved, StatusExecuted:
		var approved uint64
		if c.ApprovedAmount != nil {
			approved = *c.ApprovedAmount
		}
		if approved > c.LockedCollateral {
			approved = c.LockedCollateral
		}
		d.CollateralToClaimant = approved
		d.CollateralToAgent = c.LockedCollateral - approved
	default:
		d.CollateralToAgent = c.LockedCollateral
	}

	return d, nil
}

// VoteWasCorrect reports whether a finalized non-abstaining vote picked the
// winning side: approve on an approved or executed claim, reject on
// anything else. Abstentions are never counted.
func VoteWasCorrect(outcome ClaimStatus, choice VoteChoice) bool {
	switch choice {
	case VoteApprove:
		return outcome == StatusApproved || outcome == StatusExecuted
	case VoteReject:
		return outcome != StatusApproved && outcome != StatusExecuted
	}
	return false
}

// WinRate is the consumer-facing percentage of correct finalized votes,
// rounded to the nearest whole percent with integer math. Zero when no
// finalized votes exist.
func WinRate(correct, finalized uint64) uint32 {
	if finalized == 0 {
		return 0
	}
	return uint32((correct*100 + finalized/2) / finalized)
}
