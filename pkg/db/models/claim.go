package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// Claim is a versioned snapshot of one claim aggregate. approved_amount is
// Nullable so "never resolved" and "approved for zero" stay distinguishable.
type Claim struct {
	ID        string `ch:"id"`
	AgentID   string `ch:"agent_id"`
	CouncilID string `ch:"council_id"`
	Claimant  string `ch:"claimant"`

	ClaimedAmount    uint64  `ch:"claimed_amount"`
	ApprovedAmount   *uint64 `ch:"approved_amount"`
	ClaimantDeposit  uint64  `ch:"claimant_deposit"`
	LockedCollateral uint64  `ch:"locked_collateral"`
	DepositForfeited uint8   `ch:"deposit_forfeited"`

	EvidenceHash       string `ch:"evidence_hash"`
	EvidenceURI        string `ch:"evidence_uri"`
	PaymentReceiptHash string `ch:"payment_receipt_hash"`

	TermsHashAtClaimTime    string `ch:"terms_hash_at_claim_time"`
	TermsVersionAtClaimTime uint64 `ch:"terms_version_at_claim_time"`
	ProviderAtClaimTime     string `ch:"provider_at_claim_time"`

	Status uint8 `ch:"status"`

	FiledAt          time.Time `ch:"filed_at"`
	EvidenceDeadline time.Time `ch:"evidence_deadline"`
	VotingDeadline   time.Time `ch:"voting_deadline"`
	ClosedAt         time.Time `ch:"closed_at"`
	ExecutedAt       time.Time `ch:"executed_at"`

	ApproveVotes uint32 `ch:"approve_votes"`
	RejectVotes  uint32 `ch:"reject_votes"`
	AbstainVotes uint32 `ch:"abstain_votes"`
	TotalVotes   uint32 `ch:"total_votes"`
	HadVotes     uint8  `ch:"had_votes"`

	AmountPaid uint64 `ch:"amount_paid"`

	UpdatedAt time.Time `ch:"updated_at"`

	Block uint64 `ch:"block"`
}

func (c *Claim) ToProtocol() protocol.Claim {
	return protocol.Claim{
		ID:                      c.ID,
		AgentID:                 c.AgentID,
		CouncilID:               c.CouncilID,
		Claimant:                c.Claimant,
		ClaimedAmount:           c.ClaimedAmount,
		ApprovedAmount:          c.ApprovedAmount,
		ClaimantDeposit:         c.ClaimantDeposit,
		LockedCollateral:        c.LockedCollateral,
		DepositForfeited:        c.DepositForfeited == 1,
		EvidenceHash:            c.EvidenceHash,
		EvidenceURI:             c.EvidenceURI,
		PaymentReceiptHash:      c.PaymentReceiptHash,
		TermsHashAtClaimTime:    c.TermsHashAtClaimTime,
		TermsVersionAtClaimTime: c.TermsVersionAtClaimTime,
		ProviderAtClaimTime:     c.ProviderAtClaimTime,
		Status:                  protocol.ClaimStatus(c.Status),
		FiledAt:                 c.FiledAt,
		EvidenceDeadline:        c.EvidenceDeadline,
		VotingDeadline:          c.VotingDeadline,
		ClosedAt:                c.ClosedAt,
		ExecutedAt:              c.ExecutedAt,
		ApproveVotes:            c.ApproveVotes,
		RejectVotes:             c.RejectVotes,
		AbstainVotes:            c.AbstainVotes,
		TotalVotes:              c.TotalVotes,
		HadVotes:                c.HadVotes == 1,
		AmountPaid:              c.AmountPaid,
		UpdatedAt:               c.UpdatedAt,
	}
}

func FromClaim(c protocol.Claim, block uint64) *Claim {
	return &Claim{
		ID:                      c.ID,
		AgentID:                 c.AgentID,
		CouncilID:               c.CouncilID,
		Claimant:                c.Claimant,
		ClaimedAmount:           c.ClaimedAmount,
		ApprovedAmount:          c.ApprovedAmount,
		ClaimantDeposit:         c.ClaimantDeposit,
		LockedCollateral:        c.LockedCollateral,
		DepositForfeited:        utils.BoolToUInt8(c.DepositForfeited),
		EvidenceHash:            c.EvidenceHash,
		EvidenceURI:             c.EvidenceURI,
		PaymentReceiptHash:      c.PaymentReceiptHash,
		TermsHashAtClaimTime:    c.TermsHashAtClaimTime,
		TermsVersionAtClaimTime: c.TermsVersionAtClaimTime,
		ProviderAtClaimTime:     c.ProviderAtClaimTime,
		Status:                  uint8(c.Status),
		FiledAt:                 c.FiledAt,
		EvidenceDeadline:        c.EvidenceDeadline,
		VotingDeadline:          c.VotingDeadline,
		ClosedAt:                c.ClosedAt,
		ExecutedAt:              c.ExecutedAt,
		ApproveVotes:            c.ApproveVotes,
		RejectVotes:             c.RejectVotes,
		AbstainVotes:            c.AbstainVotes,
		TotalVotes:              c.TotalVotes,
		HadVotes:                utils.BoolToUInt8(c.HadVotes),
		AmountPaid:              c.AmountPaid,
		UpdatedAt:               c.UpdatedAt,
		Block:                   block,
	}
}

// InitClaims initializes the claims table.
func InitClaims(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS claims (
			id String CODEC(ZSTD(1)),
			agent_id String CODEC(ZSTD(1)),
			council_id String CODEC(ZSTD(1)),
			claimant String CODEC(ZSTD(1)),
			claimed_amount UInt64 CODEC(Delta, ZSTD(3)),
			approved_amount Nullable(UInt64) CODEC(ZSTD(3)),
			claimant_deposit UInt64 CODEC(Delta, ZSTD(3)),
			locked_collateral UInt64 CODEC(Delta, ZSTD(3)),
			deposit_forfeited UInt8,
			evidence_hash String CODEC(ZSTD(1)),
			evidence_uri String CODEC(ZSTD(1)),
			payment_receipt_hash String CODEC(ZSTD(1)),
			terms_hash_at_claim_time String CODEC(ZSTD(1)),
			terms_version_at_claim_time UInt64,
			provider_at_claim_time String CODEC(ZSTD(1)),
			status UInt8,
			filed_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			evidence_deadline DateTime64(6) CODEC(DoubleDelta, LZ4),
			voting_deadline DateTime64(6) CODEC(DoubleDelta, LZ4),
			closed_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			executed_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			approve_votes UInt32,
			reject_votes UInt32,
			abstain_votes UInt32,
			total_votes UInt32,
			had_votes UInt8,
			amount_paid UInt64 CODEC(Delta, ZSTD(3)),
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (id)
	`
	return db.Exec(ctx, query)
}

// InsertClaims batch-inserts claim snapshots.
func InsertClaims(ctx context.Context, db driver.Conn, claims []*Claim) error {
	if len(claims) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO claims`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, c := range claims {
		if err = batch.AppendStruct(c); err != nil {
			return err
		}
	}

	return batch.Send()
}
