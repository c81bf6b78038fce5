package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EventType identifies a domain event emitted by the dispute contracts.
type EventType string

const (
	EvClaimFiled          EventType = "ClaimFiled"
	EvEvidenceSubmitted   EventType = "EvidenceSubmitted"
	EvVoteCast            EventType = "VoteCast"
	EvVoteChanged         EventType = "VoteChanged"
	EvClaimApproved       EventType = "ClaimApproved"
	EvClaimRejected       EventType = "ClaimRejected"
	EvClaimCancelled      EventType = "ClaimCancelled"
	EvClaimExpired        EventType = "ClaimExpired"
	EvClaimExecuted       EventType = "ClaimExecuted"
	EvDeposited           EventType = "Deposited"
	EvWithdrawalInitiated EventType = "WithdrawalInitiated"
	EvWithdrawalCancelled EventType = "WithdrawalCancelled"
	EvWithdrawalExecuted  EventType = "WithdrawalExecuted"
	EvCollateralLocked    EventType = "CollateralLocked"
	EvCollateralUnlocked  EventType = "CollateralUnlocked"
	EvCollateralSlashed   EventType = "CollateralSlashed"
	EvCouncilCreated      EventType = "CouncilCreated"
	EvCouncilClosed       EventType = "CouncilClosed"
	EvCouncilActivated    EventType = "CouncilActivated"
	EvCouncilDeactivated  EventType = "CouncilDeactivated"
	EvMemberAdded         EventType = "MemberAdded"
	EvMemberRemoved       EventType = "MemberRemoved"
	EvTermsRegistered     EventType = "TermsRegistered"
	EvTermsActivated      EventType = "TermsActivated"
	EvTermsDeactivated    EventType = "TermsDeactivated"
	EvValidationIssued    EventType = "ValidationIssued"
	EvValidationRevoked   EventType = "ValidationRevoked"
)

// Event is one immutable entry of the on-chain log, ordered by
// (Block, LogIndex). Payload holds the decoded per-type struct; unknown event
// types decode with a nil payload and are ignored by the projector.
type Event struct {
	Block    uint64    `json:"block"`
	LogIndex uint32    `json:"log_index"`
	Time     time.Time `json:"time"`
	Type     EventType `json:"type"`
	Payload  any       `json:"data"`
}

// ClaimKey renders an integer claim id as the string key used across the
// read model.
func ClaimKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

type ClaimFiledPayload struct {
	ClaimID            uint64 `json:"claim_id"`
	AgentID            uint64 `json:"agent_id"`
	CouncilID          string `json:"council_id"`
	Claimant           string `json:"claimant"`
	ClaimedAmount      uint64 `json:"claimed_amount"`
	ClaimantDeposit    uint64 `json:"claimant_deposit"`
	EvidenceHash       string `json:"evidence_hash"`
	EvidenceURI        string `json:"evidence_uri"`
	PaymentReceiptHash string `json:"payment_receipt_hash"`
}

type EvidenceSubmittedPayload struct {
	ClaimID           uint64 `json:"claim_id"`
	Submitter         string `json:"submitter"`
	IsCounterEvidence bool   `json:"is_counter_evidence"`
	EvidenceHash      string `json:"evidence_hash"`
	EvidenceURI       string `json:"evidence_uri"`
}

type VoteCastPayload struct {
	ClaimID        uint64     `json:"claim_id"`
	Voter          string     `json:"voter"`
	Vote           VoteChoice `json:"vote"`
	ApprovedAmount uint64     `json:"approved_amount"`
	Reasoning      string     `json:"reasoning"`
}

type VoteChangedPayload struct {
	ClaimID           uint64     `json:"claim_id"`
	Voter             string     `json:"voter"`
	OldVote           VoteChoice `json:"old_vote"`
	NewVote           VoteChoice `json:"new_vote"`
	NewApprovedAmount uint64     `json:"new_approved_amount"`
	Reasoning         string     `json:"reasoning"`
}

type ClaimApprovedPayload struct {
	ClaimID        uint64 `json:"claim_id"`
	ApprovedAmount uint64 `json:"approved_amount"`
}

type ClaimRejectedPayload struct {
	ClaimID uint64 `json:"claim_id"`
}

type ClaimCancelledPayload struct {
	ClaimID          uint64 `json:"claim_id"`
	DepositForfeited bool   `json:"deposit_forfeited"`
}

type ClaimExpiredPayload struct {
	ClaimID uint64 `json:"claim_id"`
}

type ClaimExecutedPayload struct {
	ClaimID    uint64 `json:"claim_id"`
	AmountPaid uint64 `json:"amount_paid"`
}

type DepositedPayload struct {
	AgentID uint64 `json:"agent_id"`
	Amount  uint64 `json:"amount"`
}

type WithdrawalInitiatedPayload struct {
	AgentID      uint64 `json:"agent_id"`
	Amount       uint64 `json:"amount"`
	ExecutableAt int64  `json:"executable_at"` // unix seconds
}

type WithdrawalCancelledPayload struct {
	AgentID uint64 `json:"agent_id"`
}

type WithdrawalExecutedPayload struct {
	AgentID uint64 `json:"agent_id"`
	Amount  uint64 `json:"amount"`
}

type CollateralLockedPayload struct {
	AgentID uint64 `json:"agent_id"`
	ClaimID uint64 `json:"claim_id"`
	Amount  uint64 `json:"amount"`
}

type CollateralUnlockedPayload struct {
	AgentID uint64 `json:"agent_id"`
	ClaimID uint64 `json:"claim_id"`
	Amount  uint64 `json:"amount"`
}

type CollateralSlashedPayload struct {
	AgentID   uint64 `json:"agent_id"`
	ClaimID   uint64 `json:"claim_id"`
	Amount    uint64 `json:"amount"`
	Recipient string `json:"recipient"`
}

type CouncilCreatedPayload struct {
	CouncilID         string `json:"council_id"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Vertical          string `json:"vertical"`
	QuorumPct         uint32 `json:"quorum_pct"`
	ClaimDepositPct   uint32 `json:"claim_deposit_pct"`
	EvidencePeriodSec uint64 `json:"evidence_period_sec"`
	VotingPeriodSec   uint64 `json:"voting_period_sec"`
}

type CouncilClosedPayload struct {
	CouncilID string `json:"council_id"`
}

type CouncilActivatedPayload struct {
	CouncilID string `json:"council_id"`
}

type CouncilDeactivatedPayload struct {
	CouncilID string `json:"council_id"`
}

type MemberAddedPayload struct {
	CouncilID string `json:"council_id"`
	Member    string `json:"member"`
}

type MemberRemovedPayload struct {
	CouncilID string `json:"council_id"`
	Member    string `json:"member"`
}

type TermsRegisteredPayload struct {
	AgentID     uint64 `json:"agent_id"`
	Version     uint64 `json:"version"`
	ContentHash string `json:"content_hash"`
	ContentURI  string `json:"content_uri"`
}

type TermsActivatedPayload struct {
	AgentID     uint64 `json:"agent_id"`
	Version     uint64 `json:"version"`
	ContentHash string `json:"content_hash"`
	ContentURI  string `json:"content_uri"`
	CouncilID   string `json:"council_id"`
}

type TermsDeactivatedPayload struct {
	AgentID uint64 `json:"agent_id"`
	Version uint64 `json:"version"`
}

type ValidationIssuedPayload struct {
	AgentID     uint64 `json:"agent_id"`
	RequestHash string `json:"request_hash"`
}

type ValidationRevokedPayload struct {
	AgentID     uint64 `json:"agent_id"`
	RequestHash string `json:"request_hash"`
	Reason      string `json:"reason"`
}

// payloadFor returns a fresh payload struct for the given event type, or nil
// for types this indexer does not handle (forward compatibility).
func payloadFor(t EventType) any {
	switch t {
	case EvClaimFiled:
		return &ClaimFiledPayload{}
	case EvEvidenceSubmitted:
		return &EvidenceSubmittedPayload{}
	case EvVoteCast:
		return &VoteCastPayload{}
	case EvVoteChanged:
		return &VoteChangedPayload{}
	case EvClaimApproved:
		return &ClaimApprovedPayload{}
	case EvClaimRejected:
		return &ClaimRejectedPayload{}
	case EvClaimCancelled:
		return &ClaimCancelledPayload{}
	case EvClaimExpired:
		return &ClaimExpiredPayload{}
	case EvClaimExecuted:
		return &ClaimExecutedPayload{}
	case EvDeposited:
		return &DepositedPayload{}
	case EvWithdrawalInitiated:
		return &WithdrawalInitiatedPayload{}
	case EvWithdrawalCancelled:
		return &WithdrawalCancelledPayload{}
	case EvWithdrawalExecuted:
		return &WithdrawalExecutedPayload{}
	case EvCollateralLocked:
		return &CollateralLockedPayload{}
	case EvCollateralUnlocked:
		return &CollateralUnlockedPayload{}
	case EvCollateralSlashed:
		return &CollateralSlashedPayload{}
	case EvCouncilCreated:
		return &CouncilCreatedPayload{}
	case EvCouncilClosed:
		return &CouncilClosedPayload{}
	case EvCouncilActivated:
		return &CouncilActivatedPayload{}
	case EvCouncilDeactivated:
		return &CouncilDeactivatedPayload{}
	case EvMemberAdded:
		return &MemberAddedPayload{}
	case EvMemberRemoved:
		return &MemberRemovedPayload{}
	case EvTermsRegistered:
		return &TermsRegisteredPayload{}
	case EvTermsActivated:
		return &TermsActivatedPayload{}
	case EvTermsDeactivated:
		return &TermsDeactivatedPayload{}
	case EvValidationIssued:
		return &ValidationIssuedPayload{}
	case EvValidationRevoked:
		return &ValidationRevokedPayload{}
	}
	return nil
}

// UnmarshalJSON decodes the envelope and then the type-specific payload.
// Unknown event types keep a nil payload so the projector can skip them.
func (e *Event) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Block    uint64          `json:"block"`
		LogIndex uint32          `json:"log_index"`
		Time     time.Time       `json:"time"`
		Type     EventType       `json:"type"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode event envelope: %w", err)
	}

	e.Block = envelope.Block
	e.LogIndex = envelope.LogIndex
	e.Time = envelope.Time
	e.Type = envelope.Type
	e.Payload = nil

	payload := payloadFor(envelope.Type)
	if payload == nil {
		return nil
	}
	if len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, payload); err != nil {
			return fmt.Errorf("decode %s payload: %w", envelope.Type, err)
		}
	}
	e.Payload = payload
	return nil
}
