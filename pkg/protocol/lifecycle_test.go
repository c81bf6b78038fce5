package protocol_test

import (
	"testing"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	filedAt          = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	evidenceDeadline = filedAt.Add(48 * time.Hour)
	votingDeadline   = evidenceDeadline.Add(72 * time.Hour)
)

func testClaim(status protocol.ClaimStatus) protocol.Claim {
	return protocol.Claim{
		ID:               "1",
		Claimant:         "0xaaaa",
		Status:           status,
		FiledAt:          filedAt,
		EvidenceDeadline: evidenceDeadline,
		VotingDeadline:   votingDeadline,
	}
}

func TestEffectiveStatusLazyDeadlines(t *testing.T) {
	claim := testClaim(protocol.StatusFiled)

	cases := []struct {
		name string
		now  time.Time
		want protocol.ClaimStatus
	}{
		{"before evidence deadline", filedAt.Add(time.Hour), protocol.StatusFiled},
		{"at evidence deadline", evidenceDeadline, protocol.StatusEvidenceClosed},
		{"during voting window", evidenceDeadline.Add(time.Hour), protocol.StatusEvidenceClosed},
		{"at voting deadline", votingDeadline, protocol.StatusVotingClosed},
		{"long after", votingDeadline.Add(240 * time.Hour), protocol.StatusVotingClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, protocol.EffectiveStatus(claim, tc.now))
		})
	}

	// A stored resolution always wins over deadline math.
	resolved := testClaim(protocol.StatusApproved)
	assert.Equal(t, protocol.StatusApproved, protocol.EffectiveStatus(resolved, filedAt))
}

func TestCanTransitionIsMonotone(t *testing.T) {
	assert.True(t, protocol.CanTransition(protocol.StatusFiled, protocol.StatusEvidenceClosed))
	assert.True(t, protocol.CanTransition(protocol.StatusEvidenceClosed, protocol.StatusCancelled))
	assert.True(t, protocol.CanTransition(protocol.StatusVotingClosed, protocol.StatusApproved))
	assert.True(t, protocol.CanTransition(protocol.StatusApproved, protocol.StatusExecuted))
	assert.True(t, protocol.CanTransition(protocol.StatusRejected, protocol.StatusExecuted))

	// No backwards edges, no exits from terminal states.
	assert.False(t, protocol.CanTransition(protocol.StatusEvidenceClosed, protocol.StatusFiled))
	assert.False(t, protocol.CanTransition(protocol.StatusApproved, protocol.StatusRejected))
	assert.False(t, protocol.CanTransition(protocol.StatusExecuted, protocol.StatusApproved))
	assert.False(t, protocol.CanTransition(protocol.StatusCancelled, protocol.StatusFiled))
	assert.False(t, protocol.CanTransition(protocol.StatusExpired, protocol.StatusVotingClosed))
}

func TestCanSubmitEvidence(t *testing.T) {
	claim := testClaim(protocol.StatusFiled)

	assert.NoError(t, protocol.CanSubmitEvidence(claim, filedAt.Add(time.Hour)))
	assert.ErrorIs(t, protocol.CanSubmitEvidence(claim, evidenceDeadline), protocol.ErrEvidenceWindowClosed)

	cancelled := testClaim(protocol.StatusCancelled)
	assert.ErrorIs(t, protocol.CanSubmitEvidence(cancelled, filedAt.Add(time.Hour)), protocol.ErrAlreadyResolved)
}

func TestCanVote(t *testing.T) {
	claim := testClaim(protocol.StatusFiled)

	// Voting opens only once the evidence window has closed.
	assert.ErrorIs(t, protocol.CanVote(claim, filedAt.Add(time.Hour)), protocol.ErrVotingNotOpen)
	assert.NoError(t, protocol.CanVote(claim, evidenceDeadline.Add(time.Hour)))
	assert.ErrorIs(t, protocol.CanVote(claim, votingDeadline), protocol.ErrVotingWindowClosed)

	executed := testClaim(protocol.StatusExecuted)
	assert.ErrorIs(t, protocol.CanVote(executed, evidenceDeadline.Add(time.Hour)), protocol.ErrAlreadyResolved)
}

func TestCanCancel(t *testing.T) {
	claim := testClaim(protocol.StatusFiled)

	assert.NoError(t, protocol.CanCancel(claim, "0xaaaa", filedAt.Add(time.Hour)))
	assert.NoError(t, protocol.CanCancel(claim, "0xaaaa", evidenceDeadline.Add(time.Hour)))
	assert.ErrorIs(t, protocol.CanCancel(claim, "0xbbbb", filedAt.Add(time.Hour)), protocol.ErrNotClaimant)
	assert.ErrorIs(t, protocol.CanCancel(claim, "0xaaaa", votingDeadline), protocol.ErrVotingWindowClosed)

	approved := testClaim(protocol.StatusApproved)
	assert.ErrorIs(t, protocol.CanCancel(approved, "0xaaaa", filedAt), protocol.ErrAlreadyResolved)
}

func TestCanFinalizeIsPermissionless(t *testing.T) {
	claim := testClaim(protocol.StatusFiled)

	assert.ErrorIs(t, protocol.CanFinalize(claim, votingDeadline.Add(-time.Second)), protocol.ErrFinalizeTooEarly)
	assert.NoError(t, protocol.CanFinalize(claim, votingDeadline))

	resolved := testClaim(protocol.StatusRejected)
	assert.ErrorIs(t, protocol.CanFinalize(resolved, votingDeadline.Add(time.Hour)), protocol.ErrAlreadyResolved)
}

func TestMedianApprovedAmountLowerMiddle(t *testing.T) {
	votes := func(amounts ...uint64) []protocol.Vote {
		out := make([]protocol.Vote, 0, len(amounts))
		for _, a := range amounts {
			out = append(out, protocol.Vote{Choice: protocol.VoteApprove, ApprovedAmount: a})
		}
		return out
	}

	assert.Equal(t, uint64(0), protocol.MedianApprovedAmount(nil))
	assert.Equal(t, uint64(800), protocol.MedianApprovedAmount(votes(900, 800)))
	assert.Equal(t, uint64(800), protocol.MedianApprovedAmount(votes(800, 900)))
	assert.Equal(t, uint64(900), protocol.MedianApprovedAmount(votes(800, 900, 1000)))
	assert.Equal(t, uint64(850), protocol.MedianApprovedAmount(votes(850, 800, 900, 1000)))

	// Reject and abstain proposals never influence the median.
	mixed := append(votes(500), protocol.Vote{Choice: protocol.VoteReject, ApprovedAmount: 9999})
	assert.Equal(t, uint64(500), protocol.MedianApprovedAmount(mixed))
}

func TestResolveOutcome(t *testing.T) {
	council := protocol.Council{ID: "0xc", MemberCount: 5, QuorumPct: 40}
	now := votingDeadline.Add(time.Minute)

	t.Run("too early", func(t *testing.T) {
		claim := testClaim(protocol.StatusFiled)
		_, _, err := protocol.ResolveOutcome(claim, council, nil, filedAt)
		require.ErrorIs(t, err, protocol.ErrFinalizeTooEarly)
	})

	t.Run("below quorum expires", func(t *testing.T) {
		claim := testClaim(protocol.StatusFiled)
		claim.TotalVotes = 1
		claim.ApproveVotes = 1
		status, _, err := protocol.ResolveOutcome(claim, council, nil, now)
		require.NoError(t, err)
		assert.Equal(t, protocol.StatusExpired, status)
	})

	t.Run("approve majority", func(t *testing.T) {
		claim := testClaim(protocol.StatusFiled)
		claim.TotalVotes = 3
		claim.ApproveVotes = 2
		claim.RejectVotes = 1
		votes := []protocol.Vote{
			{Choice: protocol.VoteApprove, ApprovedAmount: 800_000000},
			{Choice: protocol.VoteApprove, ApprovedAmount: 900_000000},
			{Choice: protocol.VoteReject},
		}
		status, amount, err := protocol.ResolveOutcome(claim, council, votes, now)
		require.NoError(t, err)
		assert.Equal(t, protocol.StatusApproved, status)
		assert.Equal(t, uint64(800_000000), amount)
	})

	t.Run("tie rejects", func(t *testing.T) {
		claim := testClaim(protocol.StatusFiled)
		claim.TotalVotes = 2
		claim.ApproveVotes = 1
		claim.RejectVotes = 1
		status, _, err := protocol.ResolveOutcome(claim, council, nil, now)
		require.NoError(t, err)
		assert.Equal(t, protocol.StatusRejected, status)
	})

	t.Run("empty council expires", func(t *testing.T) {
		claim := testClaim(protocol.StatusFiled)
		status, _, err := protocol.ResolveOutcome(claim, protocol.Council{ID: "0xd"}, nil, now)
		require.NoError(t, err)
		assert.Equal(t, protocol.StatusExpired, status)
	})
}
