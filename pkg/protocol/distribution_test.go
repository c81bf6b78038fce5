package protocol_test

import (
	"testing"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint64) *uint64 { return &v }

func TestCalculateRequiresResolvedClaim(t *testing.T) {
	_, err := protocol.Calculate(protocol.Claim{ID: "1", Status: protocol.StatusFiled})
	require.ErrorIs(t, err, protocol.ErrNotResolved)

	_, err = protocol.Calculate(protocol.Claim{ID: "1", Status: protocol.StatusVotingClosed})
	require.ErrorIs(t, err, protocol.ErrNotResolved)
}

func TestCalculateApprovedSplitsDepositAndCapsCollateral(t *testing.T) {
	// The worked example: 1000 USDC claimed, 50 USDC deposit, votes
	// (approve, approve, reject), approve-side median 800 USDC.
	claim := protocol.Claim{
		ID:               "42",
		Status:           protocol.StatusApproved,
		ClaimantDeposit:  50_000000,
		LockedCollateral: 1_000_000000,
		ApprovedAmount:   uintPtr(800_000000),
		ApproveVotes:     2,
		RejectVotes:      1,
		HadVotes:         true,
	}

	d, err := protocol.Calculate(claim)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), d.DepositVoters)
	assert.Equal(t, uint64(16_666666), d.DepositPerVoter)
	assert.Equal(t, uint64(2), d.DepositRemainder)
	assert.Equal(t, uint64(0), d.DepositToClaimant)

	assert.Equal(t, uint64(800_000000), d.CollateralToClaimant)
	assert.Equal(t, uint64(200_000000), d.CollateralToAgent)
}

func TestCalculateApprovedAmountCappedByLocked(t *testing.T) {
	claim := protocol.Claim{
		ID:               "7",
		Status:           protocol.StatusApproved,
		ClaimantDeposit:  10_000000,
		LockedCollateral: 300_000000,
		ApprovedAmount:   uintPtr(500_000000),
		ApproveVotes:     1,
		HadVotes:         true,
	}

	d, err := protocol.Calculate(claim)
	require.NoError(t, err)
	assert.Equal(t, uint64(300_000000), d.CollateralToClaimant)
	assert.Equal(t, uint64(0), d.CollateralToAgent)
}

func TestCalculateDepositSumInvariant(t *testing.T) {
	cases := []struct {
		name    string
		deposit uint64
		approve uint32
		reject  uint32
		abstain uint32
		status  protocol.ClaimStatus
	}{
		{"even split", 90_000000, 2, 1, 0, protocol.StatusRejected},
		{"remainder", 50_000000, 2, 1, 0, protocol.StatusApproved},
		{"one voter", 1, 1, 0, 0, protocol.StatusRejected},
		{"abstain only", 33_000001, 0, 0, 4, protocol.StatusRejected},
		{"cancelled", 7_777777, 3, 3, 1, protocol.StatusCancelled},
		{"expired with votes", 10_000001, 0, 3, 0, protocol.StatusExpired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claim := protocol.Claim{
				ID:              "1",
				Status:          tc.status,
				ClaimantDeposit: tc.deposit,
				ApprovedAmount:  uintPtr(0),
				ApproveVotes:    tc.approve,
				RejectVotes:     tc.reject,
				AbstainVotes:    tc.abstain,
				HadVotes:        tc.approve+tc.reject+tc.abstain > 0,
			}

			d, err := protocol.Calculate(claim)
			require.NoError(t, err)

			total := d.DepositPerVoter*uint64(d.DepositVoters) + d.DepositRemainder + d.DepositToClaimant
			assert.Equal(t, tc.deposit, total, "deposit must be fully accounted for")
		})
	}
}

func TestCalculateExpiredWithZeroVotesReturnsDeposit(t *testing.T) {
	claim := protocol.Claim{
		ID:               "9",
		Status:           protocol.StatusExpired,
		ClaimantDeposit:  25_000000,
		LockedCollateral: 100_000000,
		HadVotes:         false,
	}

	d, err := protocol.Calculate(claim)
	require.NoError(t, err)

	assert.Equal(t, uint64(25_000000), d.DepositToClaimant)
	assert.Equal(t, uint32(0), d.DepositVoters)
	assert.Equal(t, uint64(0), d.DepositPerVoter)
	assert.Equal(t, uint64(100_000000), d.CollateralToAgent)
	assert.Equal(t, uint64(0), d.CollateralToClaimant)
}

func TestCalculateAbstainOnlyAvoidsDivisionByZero(t *testing.T) {
	claim := protocol.Claim{
		ID:              "5",
		Status:          protocol.StatusRejected,
		ClaimantDeposit: 40_000000,
		AbstainVotes:    3,
		HadVotes:        true,
	}

	d, err := protocol.Calculate(claim)
	require.NoError(t, err)
	assert.Equal(t, uint64(40_000000), d.DepositToClaimant)
	assert.Equal(t, uint32(0), d.DepositVoters)
}

func TestCalculateRejectedUnlocksCollateralToAgent(t *testing.T) {
	for _, status := range []protocol.ClaimStatus{
		protocol.StatusRejected, protocol.StatusCancelled, protocol.StatusExpired,
	} {
		t.Run(status.String(), func(t *testing.T) {
			claim := protocol.Claim{
				ID:               "3",
				Status:           status,
				ClaimantDeposit:  12_000000,
				LockedCollateral: 600_000000,
				RejectVotes:      2,
				HadVotes:         true,
			}

			d, err := protocol.Calculate(claim)
			require.NoError(t, err)
			assert.Equal(t, uint64(600_000000), d.CollateralToAgent)
			assert.Equal(t, uint64(0), d.CollateralToClaimant)
		})
	}
}

func TestVoteWasCorrect(t *testing.T) {
	assert.True(t, protocol.VoteWasCorrect(protocol.StatusApproved, protocol.VoteApprove))
	assert.True(t, protocol.VoteWasCorrect(protocol.StatusExecuted, protocol.VoteApprove))
	assert.False(t, protocol.VoteWasCorrect(protocol.StatusRejected, protocol.VoteApprove))
	assert.True(t, protocol.VoteWasCorrect(protocol.StatusRejected, protocol.VoteReject))
	assert.True(t, protocol.VoteWasCorrect(protocol.StatusExpired, protocol.VoteReject))
	assert.False(t, protocol.VoteWasCorrect(protocol.StatusApproved, protocol.VoteReject))
	assert.False(t, protocol.VoteWasCorrect(protocol.StatusApproved, protocol.VoteAbstain))
	assert.False(t, protocol.VoteWasCorrect(protocol.StatusRejected, protocol.VoteAbstain))
}

func TestWinRate(t *testing.T) {
	assert.Equal(t, uint32(0), protocol.WinRate(0, 0))
	assert.Equal(t, uint32(100), protocol.WinRate(5, 5))
	assert.Equal(t, uint32(50), protocol.WinRate(1, 2))
	assert.Equal(t, uint32(67), protocol.WinRate(2, 3)) // 66.67 rounds up
	assert.Equal(t, uint32(33), protocol.WinRate(1, 3)) // 33.33 rounds down
}
