package protocol

import "time"

// Aggregates are pure projections of the on-chain event log. Every monetary
// field is an integer amount of USDC base units (6 decimals); division by
// 1e6 happens only at presentation time, never here.

// Agent is the projected state of one on-chain agent identity, keyed by the
// fixed-width hex form of its token id.
type Agent struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`

	CollateralBalance   uint64 `json:"collateral_balance"`
	LockedCollateral    uint64 `json:"locked_collateral"`
	AvailableCollateral uint64 `json:"available_collateral"` // derived, never an input

	WithdrawalPending      bool      `json:"withdrawal_pending"`
	WithdrawalAmount       uint64    `json:"withdrawal_amount"`
	WithdrawalExecutableAt time.Time `json:"withdrawal_executable_at"`

	TermsVersion    uint64 `json:"terms_version"`
	TermsHash       string `json:"terms_hash"`
	TermsURI        string `json:"terms_uri"`
	HasActiveTerms  bool   `json:"has_active_terms"`
	ActiveCouncilID string `json:"active_council_id"`

	Validated           bool      `json:"validated"`
	ValidationIssuedAt  time.Time `json:"validation_issued_at"`
	ValidationRevokedAt time.Time `json:"validation_revoked_at"`
	RevocationReason    string    `json:"revocation_reason"`

	TotalClaims    uint64 `json:"total_claims"`
	ApprovedClaims uint64 `json:"approved_claims"`
	RejectedClaims uint64 `json:"rejected_claims"`
	PendingClaims  uint64 `json:"pending_claims"`
	TotalPaidOut   uint64 `json:"total_paid_out"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeAvailable restores the defining relationship
// available = max(0, balance - locked). Called after every mutation of
// either input so the derived field cannot drift.
func (a *Agent) RecomputeAvailable() {
	if a.CollateralBalance > a.LockedCollateral {
		a.AvailableCollateral = a.CollateralBalance - a.LockedCollateral
	} else {
		a.AvailableCollateral = 0
	}
}

// Council is a domain-scoped adjudication panel, keyed by its 32-byte id.
type Council struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Vertical    string `json:"vertical"`

	MemberCount       uint32 `json:"member_count"`
	QuorumPct         uint32 `json:"quorum_pct"`
	ClaimDepositPct   uint32 `json:"claim_deposit_pct"`
	EvidencePeriodSec uint64 `json:"evidence_period_sec"`
	VotingPeriodSec   uint64 `json:"voting_period_sec"`

	Active   bool      `json:"active"`
	Closed   bool      `json:"closed"`
	ClosedAt time.Time `json:"closed_at"`

	TotalClaims       uint64 `json:"total_claims"`
	TotalCompensation uint64 `json:"total_compensation"`
	TotalForfeitures  uint64 `json:"total_forfeitures"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CouncilMember is keyed by (council id, member address). Removal flips the
// active flag instead of deleting the row so voting history stays queryable.
type CouncilMember struct {
	CouncilID string `json:"council_id"`
	Address   string `json:"address"`

	Active   bool      `json:"active"`
	JoinedAt time.Time `json:"joined_at"`
	LeftAt   time.Time `json:"left_at"`

	ApproveVotes     uint64 `json:"approve_votes"`
	RejectVotes      uint64 `json:"reject_votes"`
	AbstainVotes     uint64 `json:"abstain_votes"`
	TotalClaimsVoted uint64 `json:"total_claims_voted"`

	// Win-rate inputs: non-abstain votes on claims that reached a vote-driven
	// resolution, and how many of those picked the winning side.
	CorrectVotes   uint64 `json:"correct_votes"`
	FinalizedVotes uint64 `json:"finalized_votes"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Claim is one dispute filed against an agent. The terms fields are a
// point-in-time copy taken at filing; they never change even if the agent
// rotates its active terms afterwards.
type Claim struct {
	ID        string `json:"id"`
	AgentID   string `json:"agent_id"`
	CouncilID string `json:"council_id"`
	Claimant  string `json:"claimant"`

	ClaimedAmount    uint64  `json:"claimed_amount"`
	ApprovedAmount   *uint64 `json:"approved_amount,omitempty"` // nil until resolved
	ClaimantDeposit  uint64  `json:"claimant_deposit"`
	LockedCollateral uint64  `json:"locked_collateral"`
	DepositForfeited bool    `json:"deposit_forfeited"`

	EvidenceHash       string `json:"evidence_hash"`
	EvidenceURI        string `json:"evidence_uri"`
	PaymentReceiptHash string `json:"payment_receipt_hash"`

	TermsHashAtClaimTime    string `json:"terms_hash_at_claim_time"`
	TermsVersionAtClaimTime uint64 `json:"terms_version_at_claim_time"`
	ProviderAtClaimTime     string `json:"provider_at_claim_time"`

	Status ClaimStatus `json:"status"`

	FiledAt          time.Time `json:"filed_at"`
	EvidenceDeadline time.Time `json:"evidence_deadline"`
	VotingDeadline   time.Time `json:"voting_deadline"`
	ClosedAt         time.Time `json:"closed_at"`
	ExecutedAt       time.Time `json:"executed_at"`

	ApproveVotes uint32 `json:"approve_votes"`
	RejectVotes  uint32 `json:"reject_votes"`
	AbstainVotes uint32 `json:"abstain_votes"`
	TotalVotes   uint32 `json:"total_votes"`
	HadVotes     bool   `json:"had_votes"`

	AmountPaid uint64 `json:"amount_paid"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Vote is the live record for one (claim, voter) pair. A vote change
// overwrites the choice in place; there is never more than one row per pair.
type Vote struct {
	ClaimID   string `json:"claim_id"`
	CouncilID string `json:"council_id"`
	Voter     string `json:"voter"`

	Choice         VoteChoice `json:"choice"`
	ApprovedAmount uint64     `json:"approved_amount"` // meaningful only for approve
	Reasoning      string     `json:"reasoning"`

	CastAt        time.Time `json:"cast_at"`
	LastChangedAt time.Time `json:"last_changed_at"` // zero if never changed
}

// Evidence rows are append-only, keyed by (claim id, sequence).
type Evidence struct {
	ClaimID         string    `json:"claim_id"`
	Sequence        uint32    `json:"sequence"`
	Submitter       string    `json:"submitter"`
	CounterEvidence bool      `json:"counter_evidence"`
	EvidenceHash    string    `json:"evidence_hash"`
	EvidenceURI     string    `json:"evidence_uri"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// ProtocolStats is the singleton totals aggregate. It is maintained
// transactionally alongside every counted mutation and must always equal the
// sum over live aggregates; the reconciliation sweep verifies that.
type ProtocolStats struct {
	TotalAgents   uint64 `json:"total_agents"`
	TotalCouncils uint64 `json:"total_councils"`
	TotalMembers  uint64 `json:"total_members"`
	TotalClaims   uint64 `json:"total_claims"`

	ApprovedClaims uint64 `json:"approved_claims"`
	RejectedClaims uint64 `json:"rejected_claims"`
	PendingClaims  uint64 `json:"pending_claims"`

	TotalCollateral       uint64 `json:"total_collateral"`
	TotalLockedCollateral uint64 `json:"total_locked_collateral"`
	TotalCompensationPaid uint64 `json:"total_compensation_paid"`
	TotalSlashed          uint64 `json:"total_slashed"`
	TotalDepositsHeld     uint64 `json:"total_deposits_held"`

	UpdatedAt time.Time `json:"updated_at"`
}
