package protocol_test

import (
	"testing"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	councilID = "0xc0de"
	memberA   = "0xaa01"
	memberB   = "0xaa02"
	memberC   = "0xaa03"
	claimant  = "0xffee"
)

var agentKey = utils.AgentKey(7)

type eventSeq struct {
	block uint64
	idx   uint32
	evs   []protocol.Event
}

func (s *eventSeq) add(t time.Time, typ protocol.EventType, payload any) {
	s.block++
	s.idx = 0
	s.evs = append(s.evs, protocol.Event{
		Block: s.block, LogIndex: s.idx, Time: t, Type: typ, Payload: payload,
	})
}

func baseTime() time.Time {
	return time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
}

// fixture builds an event history with a configured council, three members
// and a funded agent, ready for claims.
func fixture() *eventSeq {
	t0 := baseTime()
	s := &eventSeq{}
	s.add(t0, protocol.EvCouncilCreated, &protocol.CouncilCreatedPayload{
		CouncilID:         councilID,
		Name:              "Conversational Agents",
		Vertical:          "support",
		QuorumPct:         50,
		ClaimDepositPct:   5,
		EvidencePeriodSec: 3600,
		VotingPeriodSec:   7200,
	})
	s.add(t0, protocol.EvMemberAdded, &protocol.MemberAddedPayload{CouncilID: councilID, Member: memberA})
	s.add(t0, protocol.EvMemberAdded, &protocol.MemberAddedPayload{CouncilID: councilID, Member: memberB})
	s.add(t0, protocol.EvMemberAdded, &protocol.MemberAddedPayload{CouncilID: councilID, Member: memberC})
	s.add(t0, protocol.EvDeposited, &protocol.DepositedPayload{AgentID: 7, Amount: 2_000_000000})
	s.add(t0, protocol.EvTermsActivated, &protocol.TermsActivatedPayload{
		AgentID: 7, Version: 3, ContentHash: "0xbeef", ContentURI: "ipfs://terms/3", CouncilID: councilID,
	})
	return s
}

func replay(t *testing.T, evs []protocol.Event) *protocol.MemoryStore {
	t.Helper()
	store := protocol.NewMemoryStore()
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))
	for _, ev := range evs {
		require.NoError(t, proj.Apply(ev))
	}
	return store
}

func TestProjectorLazyAgentCreation(t *testing.T) {
	s := &eventSeq{}
	s.add(baseTime(), protocol.EvDeposited, &protocol.DepositedPayload{AgentID: 7, Amount: 100})
	s.add(baseTime(), protocol.EvDeposited, &protocol.DepositedPayload{AgentID: 7, Amount: 50})
	store := replay(t, s.evs)

	agent, ok := store.Agent(agentKey)
	require.True(t, ok)
	assert.Equal(t, uint64(150), agent.CollateralBalance)

	// Creation counted exactly once, not on subsequent loads.
	assert.Equal(t, uint64(1), store.Stats().TotalAgents)
}

func TestProjectorAvailableCollateralIdentity(t *testing.T) {
	s := &eventSeq{}
	t0 := baseTime()
	s.add(t0, protocol.EvDeposited, &protocol.DepositedPayload{AgentID: 7, Amount: 500_000000})
	s.add(t0, protocol.EvCollateralLocked, &protocol.CollateralLockedPayload{AgentID: 7, ClaimID: 1, Amount: 500_000000})
	store := replay(t, s.evs)

	agent, _ := store.Agent(agentKey)
	assert.Equal(t, uint64(0), agent.AvailableCollateral)

	s2 := &eventSeq{block: s.block}
	s2.add(t0, protocol.EvCollateralUnlocked, &protocol.CollateralUnlockedPayload{AgentID: 7, ClaimID: 1, Amount: 200_000000})
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))
	for _, ev := range s2.evs {
		require.NoError(t, proj.Apply(ev))
	}

	agent, _ = store.Agent(agentKey)
	assert.Equal(t, uint64(300_000000), agent.LockedCollateral)
	assert.Equal(t, uint64(200_000000), agent.AvailableCollateral)
}

func TestProjectorCollateralUnderflowIsFatal(t *testing.T) {
	store := protocol.NewMemoryStore()
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))

	err := proj.Apply(protocol.Event{
		Block: 1, Time: baseTime(), Type: protocol.EvCollateralUnlocked,
		Payload: &protocol.CollateralUnlockedPayload{AgentID: 7, Amount: 10},
	})
	require.ErrorIs(t, err, protocol.ErrInconsistent)
}

func TestProjectorOutOfOrderIsFatal(t *testing.T) {
	store := protocol.NewMemoryStore()
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))

	ev := protocol.Event{Block: 10, LogIndex: 3, Time: baseTime(), Type: protocol.EvDeposited,
		Payload: &protocol.DepositedPayload{AgentID: 7, Amount: 1}}
	require.NoError(t, proj.Apply(ev))

	// Same (block, logIndex) is a duplicate; earlier is a regression.
	require.ErrorIs(t, proj.Apply(ev), protocol.ErrOutOfOrder)

	earlier := ev
	earlier.Block = 9
	require.ErrorIs(t, proj.Apply(earlier), protocol.ErrOutOfOrder)
}

func TestProjectorClaimFiledSnapshotsTerms(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant,
		ClaimedAmount: 1_000_000000, ClaimantDeposit: 50_000000,
	})
	// Terms rotate after filing; the claim's snapshot must not move.
	s.add(t1, protocol.EvTermsActivated, &protocol.TermsActivatedPayload{
		AgentID: 7, Version: 4, ContentHash: "0xdead", ContentURI: "ipfs://terms/4", CouncilID: councilID,
	})
	store := replay(t, s.evs)

	claim, ok := store.Claim("1")
	require.True(t, ok)
	assert.Equal(t, uint64(3), claim.TermsVersionAtClaimTime)
	assert.Equal(t, "0xbeef", claim.TermsHashAtClaimTime)
	assert.Equal(t, protocol.StatusFiled, claim.Status)
	assert.Equal(t, t1.Add(time.Hour), claim.EvidenceDeadline)
	assert.Equal(t, t1.Add(3*time.Hour), claim.VotingDeadline)

	agent, _ := store.Agent(agentKey)
	assert.Equal(t, uint64(4), agent.TermsVersion)
	assert.Equal(t, uint64(1), agent.TotalClaims)
	assert.Equal(t, uint64(1), agent.PendingClaims)
}

func TestProjectorDuplicateClaimFiledIsFatal(t *testing.T) {
	s := fixture()
	filed := &protocol.ClaimFiledPayload{ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant}
	s.add(baseTime(), protocol.EvClaimFiled, filed)

	store := protocol.NewMemoryStore()
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))
	for _, ev := range s.evs {
		require.NoError(t, proj.Apply(ev))
	}

	err := proj.Apply(protocol.Event{
		Block: s.block + 1, Time: baseTime(), Type: protocol.EvClaimFiled, Payload: filed,
	})
	require.ErrorIs(t, err, protocol.ErrInconsistent)
}

func TestProjectorMissingParentNoOps(t *testing.T) {
	s := &eventSeq{}
	t0 := baseTime()
	// None of these have a parent claim/member; all must no-op silently.
	s.add(t0, protocol.EvEvidenceSubmitted, &protocol.EvidenceSubmittedPayload{ClaimID: 99, Submitter: memberA})
	s.add(t0, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 99, Voter: memberA, Vote: protocol.VoteApprove})
	s.add(t0, protocol.EvVoteChanged, &protocol.VoteChangedPayload{ClaimID: 99, Voter: memberA, NewVote: protocol.VoteReject})
	s.add(t0, protocol.EvClaimApproved, &protocol.ClaimApprovedPayload{ClaimID: 99})
	s.add(t0, protocol.EvMemberRemoved, &protocol.MemberRemovedPayload{CouncilID: councilID, Member: memberA})
	store := replay(t, s.evs)

	_, ok := store.Claim("99")
	assert.False(t, ok)
	_, ok = store.Vote("99", memberA)
	assert.False(t, ok)
	assert.Equal(t, uint64(0), store.Stats().TotalClaims)
}

func TestProjectorVoteFromNonMemberNoOps(t *testing.T) {
	s := fixture()
	s.add(baseTime(), protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant, ClaimantDeposit: 10,
	})
	s.add(baseTime(), protocol.EvVoteCast, &protocol.VoteCastPayload{
		ClaimID: 1, Voter: "0xdddd", Vote: protocol.VoteApprove,
	})
	store := replay(t, s.evs)

	claim, _ := store.Claim("1")
	assert.Equal(t, uint32(0), claim.TotalVotes)
	assert.Empty(t, store.VotesByClaim("1"))
}

func TestProjectorVoteChangeSwapsTalliesAtomically(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant, ClaimantDeposit: 50_000000,
	})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{
		ClaimID: 1, Voter: memberA, Vote: protocol.VoteApprove, ApprovedAmount: 800_000000,
	})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{
		ClaimID: 1, Voter: memberB, Vote: protocol.VoteApprove, ApprovedAmount: 900_000000,
	})
	s.add(t1, protocol.EvVoteChanged, &protocol.VoteChangedPayload{
		ClaimID: 1, Voter: memberA, OldVote: protocol.VoteApprove, NewVote: protocol.VoteReject,
	})
	store := replay(t, s.evs)

	claim, _ := store.Claim("1")
	assert.Equal(t, uint32(1), claim.ApproveVotes)
	assert.Equal(t, uint32(1), claim.RejectVotes)
	assert.Equal(t, uint32(0), claim.AbstainVotes)
	assert.Equal(t, uint32(2), claim.TotalVotes)

	// Exactly one live row per voter; the change overwrote in place.
	votes := store.VotesByClaim("1")
	require.Len(t, votes, 2)
	vote, ok := store.Vote("1", memberA)
	require.True(t, ok)
	assert.Equal(t, protocol.VoteReject, vote.Choice)
	assert.False(t, vote.LastChangedAt.IsZero())

	member, _ := store.Member(councilID, memberA)
	assert.Equal(t, uint64(0), member.ApproveVotes)
	assert.Equal(t, uint64(1), member.RejectVotes)
	assert.Equal(t, uint64(1), member.TotalClaimsVoted)
}

func TestProjectorTalliesReconcileWithVoteRows(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant, ClaimantDeposit: 1,
	})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberA, Vote: protocol.VoteApprove})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberB, Vote: protocol.VoteAbstain})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberC, Vote: protocol.VoteReject})
	s.add(t1, protocol.EvVoteChanged, &protocol.VoteChangedPayload{
		ClaimID: 1, Voter: memberB, OldVote: protocol.VoteAbstain, NewVote: protocol.VoteApprove,
	})
	store := replay(t, s.evs)

	claim, _ := store.Claim("1")
	votes := store.VotesByClaim("1")

	byChoice := map[protocol.VoteChoice]uint32{}
	for _, v := range votes {
		byChoice[v.Choice]++
	}
	assert.Equal(t, claim.ApproveVotes, byChoice[protocol.VoteApprove])
	assert.Equal(t, claim.RejectVotes, byChoice[protocol.VoteReject])
	assert.Equal(t, claim.AbstainVotes, byChoice[protocol.VoteAbstain])
	assert.Equal(t, claim.TotalVotes, uint32(len(votes)))
	assert.Equal(t, claim.ApproveVotes+claim.RejectVotes+claim.AbstainVotes, claim.TotalVotes)
}

func TestProjectorClaimResolutionLifecycle(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant,
		ClaimedAmount: 1_000_000000, ClaimantDeposit: 50_000000,
	})
	s.add(t1, protocol.EvCollateralLocked, &protocol.CollateralLockedPayload{AgentID: 7, ClaimID: 1, Amount: 1_000_000000})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberA, Vote: protocol.VoteApprove, ApprovedAmount: 800_000000})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberB, Vote: protocol.VoteApprove, ApprovedAmount: 900_000000})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberC, Vote: protocol.VoteReject})
	s.add(t1.Add(4*time.Hour), protocol.EvClaimApproved, &protocol.ClaimApprovedPayload{ClaimID: 1, ApprovedAmount: 800_000000})
	s.add(t1.Add(4*time.Hour), protocol.EvCollateralUnlocked, &protocol.CollateralUnlockedPayload{AgentID: 7, ClaimID: 1, Amount: 1_000_000000})
	s.add(t1.Add(5*time.Hour), protocol.EvClaimExecuted, &protocol.ClaimExecutedPayload{ClaimID: 1, AmountPaid: 800_000000})
	store := replay(t, s.evs)

	claim, _ := store.Claim("1")
	assert.Equal(t, protocol.StatusExecuted, claim.Status)
	require.NotNil(t, claim.ApprovedAmount)
	assert.Equal(t, uint64(800_000000), *claim.ApprovedAmount)
	assert.Equal(t, uint64(800_000000), claim.AmountPaid)
	assert.True(t, claim.HadVotes)

	agent, _ := store.Agent(agentKey)
	assert.Equal(t, uint64(1), agent.ApprovedClaims)
	assert.Equal(t, uint64(0), agent.PendingClaims)
	assert.Equal(t, uint64(800_000000), agent.TotalPaidOut)

	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.ApprovedClaims)
	assert.Equal(t, uint64(0), stats.PendingClaims)
	assert.Equal(t, uint64(800_000000), stats.TotalCompensationPaid)
	assert.Equal(t, uint64(0), stats.TotalDepositsHeld)

	// Approval settles the win-rate ledger: the two approvers were correct,
	// the rejecter was not, and all three voted on a finalized claim.
	a, _ := store.Member(councilID, memberA)
	b, _ := store.Member(councilID, memberB)
	c, _ := store.Member(councilID, memberC)
	assert.Equal(t, uint64(1), a.FinalizedVotes)
	assert.Equal(t, uint64(1), a.CorrectVotes)
	assert.Equal(t, uint64(1), b.FinalizedVotes)
	assert.Equal(t, uint64(1), b.CorrectVotes)
	assert.Equal(t, uint64(1), c.FinalizedVotes)
	assert.Equal(t, uint64(0), c.CorrectVotes)
}

func TestProjectorMemberRemovalKeepsHistory(t *testing.T) {
	s := fixture()
	s.add(baseTime().Add(time.Hour), protocol.EvMemberRemoved, &protocol.MemberRemovedPayload{
		CouncilID: councilID, Member: memberB,
	})
	store := replay(t, s.evs)

	member, ok := store.Member(councilID, memberB)
	require.True(t, ok, "removed members stay queryable")
	assert.False(t, member.Active)
	assert.False(t, member.LeftAt.IsZero())

	council, _ := store.Council(councilID)
	assert.Equal(t, uint32(2), council.MemberCount)

	// memberCount must equal the count of active member rows.
	active := uint32(0)
	store.RangeMembers(func(m protocol.CouncilMember) bool {
		if m.Active {
			active++
		}
		return true
	})
	assert.Equal(t, council.MemberCount, active)
}

func TestProjectorCouncilClosureIsTerminal(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Hour)
	s.add(t1, protocol.EvCouncilClosed, &protocol.CouncilClosedPayload{CouncilID: councilID})
	s.add(t1, protocol.EvCouncilActivated, &protocol.CouncilActivatedPayload{CouncilID: councilID})
	store := replay(t, s.evs)

	council, _ := store.Council(councilID)
	assert.True(t, council.Closed)
	assert.False(t, council.Active, "closure cannot be undone by a later activation")
}

func TestProjectorEvidenceIsAppendOnly(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant,
	})
	s.add(t1, protocol.EvEvidenceSubmitted, &protocol.EvidenceSubmittedPayload{
		ClaimID: 1, Submitter: claimant, EvidenceHash: "0x01",
	})
	s.add(t1, protocol.EvEvidenceSubmitted, &protocol.EvidenceSubmittedPayload{
		ClaimID: 1, Submitter: agentKey, IsCounterEvidence: true, EvidenceHash: "0x02",
	})
	store := replay(t, s.evs)

	rows := store.Evidence("1")
	require.Len(t, rows, 2)
	assert.Equal(t, uint32(1), rows[0].Sequence)
	assert.Equal(t, uint32(2), rows[1].Sequence)
	assert.True(t, rows[1].CounterEvidence)
}

func TestProjectorUnknownEventTypeIgnored(t *testing.T) {
	store := protocol.NewMemoryStore()
	proj := protocol.NewProjector(store, zaptest.NewLogger(t))

	require.NoError(t, proj.Apply(protocol.Event{
		Block: 1, Time: baseTime(), Type: "SomeFutureEvent", Payload: nil,
	}))
	assert.Equal(t, uint64(1), proj.Applied())
}

// TestProjectorReplayIsIdempotent replays the same history into two fresh
// stores and expects identical end states.
func TestProjectorReplayIsIdempotent(t *testing.T) {
	s := fixture()
	t1 := baseTime().Add(time.Minute)
	s.add(t1, protocol.EvClaimFiled, &protocol.ClaimFiledPayload{
		ClaimID: 1, AgentID: 7, CouncilID: councilID, Claimant: claimant,
		ClaimedAmount: 1_000_000000, ClaimantDeposit: 50_000000,
	})
	s.add(t1, protocol.EvCollateralLocked, &protocol.CollateralLockedPayload{AgentID: 7, ClaimID: 1, Amount: 1_000_000000})
	s.add(t1, protocol.EvVoteCast, &protocol.VoteCastPayload{ClaimID: 1, Voter: memberA, Vote: protocol.VoteApprove, ApprovedAmount: 800_000000})
	s.add(t1, protocol.EvVoteChanged, &protocol.VoteChangedPayload{ClaimID: 1, Voter: memberA, OldVote: protocol.VoteApprove, NewVote: protocol.VoteAbstain})
	s.add(t1.Add(4*time.Hour), protocol.EvClaimExpired, &protocol.ClaimExpiredPayload{ClaimID: 1})

	first := replay(t, s.evs)
	second := replay(t, s.evs)

	assert.Equal(t, first.Stats(), second.Stats())

	firstAgent, _ := first.Agent(agentKey)
	secondAgent, _ := second.Agent(agentKey)
	assert.Equal(t, firstAgent, secondAgent)

	firstClaim, _ := first.Claim("1")
	secondClaim, _ := second.Claim("1")
	assert.Equal(t, firstClaim, secondClaim)

	assert.Equal(t, first.VotesByClaim("1"), second.VotesByClaim("1"))
	assert.Equal(t, first.Evidence("1"), second.Evidence("1"))
}

func TestMemoryStoreDrainTracksChanges(t *testing.T) {
	s := fixture()
	store := replay(t, s.evs)

	changes := store.Drain()
	assert.NotEmpty(t, changes.Agents)
	assert.NotEmpty(t, changes.Councils)
	assert.Len(t, changes.Members, 3)
	require.NotNil(t, changes.Stats)

	// Second drain with no new events is empty.
	assert.True(t, store.Drain().Empty())
}
