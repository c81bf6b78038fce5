package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// Agent is a versioned snapshot of one agent aggregate. A snapshot is written
// only when an event touched the agent, and ReplacingMergeTree(block) keeps
// the highest block per id, so a replay that rewrites the same blocks
// converges to identical rows instead of duplicating them.
type Agent struct {
	ID    string `ch:"id"`
	Owner string `ch:"owner"`

	CollateralBalance   uint64 `ch:"collateral_balance"`
	LockedCollateral    uint64 `ch:"locked_collateral"`
	AvailableCollateral uint64 `ch:"available_collateral"`

	WithdrawalPending      uint8     `ch:"withdrawal_pending"`
	WithdrawalAmount       uint64    `ch:"withdrawal_amount"`
	WithdrawalExecutableAt time.Time `ch:"withdrawal_executable_at"`

	TermsVersion    uint64 `ch:"terms_version"`
	TermsHash       string `ch:"terms_hash"`
	TermsURI        string `ch:"terms_uri"`
	HasActiveTerms  uint8  `ch:"has_active_terms"`
	ActiveCouncilID string `ch:"active_council_id"`

	Validated           uint8     `ch:"validated"`
	ValidationIssuedAt  time.Time `ch:"validation_issued_at"`
	ValidationRevokedAt time.Time `ch:"validation_revoked_at"`
	RevocationReason    string    `ch:"revocation_reason"`

	TotalClaims    uint64 `ch:"total_claims"`
	ApprovedClaims uint64 `ch:"approved_claims"`
	RejectedClaims uint64 `ch:"rejected_claims"`
	PendingClaims  uint64 `ch:"pending_claims"`
	TotalPaidOut   uint64 `ch:"total_paid_out"`

	CreatedAt time.Time `ch:"created_at"`
	UpdatedAt time.Time `ch:"updated_at"`

	Block uint64 `ch:"block"`
}

// ToProtocol converts the row back into the projection type.
func (a *Agent) ToProtocol() protocol.Agent {
	return protocol.Agent{
		ID:                     a.ID,
		Owner:                  a.Owner,
		CollateralBalance:      a.CollateralBalance,
		LockedCollateral:       a.LockedCollateral,
		AvailableCollateral:    a.AvailableCollateral,
		WithdrawalPending:      a.WithdrawalPending == 1,
		WithdrawalAmount:       a.WithdrawalAmount,
		WithdrawalExecutableAt: a.WithdrawalExecutableAt,
		TermsVersion:           a.TermsVersion,
		TermsHash:              a.TermsHash,
		TermsURI:               a.TermsURI,
		HasActiveTerms:         a.HasActiveTerms == 1,
		ActiveCouncilID:        a.ActiveCouncilID,
		Validated:              a.Validated == 1,
		ValidationIssuedAt:     a.ValidationIssuedAt,
		ValidationRevokedAt:    a.ValidationRevokedAt,
		RevocationReason:       a.RevocationReason,
		TotalClaims:            a.TotalClaims,
		ApprovedClaims:         a.ApprovedClaims,
		RejectedClaims:         a.RejectedClaims,
		PendingClaims:          a.PendingClaims,
		TotalPaidOut:           a.TotalPaidOut,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}

// FromAgent builds a snapshot row at the given block.
func FromAgent(a protocol.Agent, block uint64) *Agent {
	return &Agent{
		ID:                     a.ID,
		Owner:                  a.Owner,
		CollateralBalance:      a.CollateralBalance,
		LockedCollateral:       a.LockedCollateral,
		AvailableCollateral:    a.AvailableCollateral,
		WithdrawalPending:      utils.BoolToUInt8(a.WithdrawalPending),
		WithdrawalAmount:       a.WithdrawalAmount,
		WithdrawalExecutableAt: a.WithdrawalExecutableAt,
		TermsVersion:           a.TermsVersion,
		TermsHash:              a.TermsHash,
		TermsURI:               a.TermsURI,
		HasActiveTerms:         utils.BoolToUInt8(a.HasActiveTerms),
		ActiveCouncilID:        a.ActiveCouncilID,
		Validated:              utils.BoolToUInt8(a.Validated),
		ValidationIssuedAt:     a.ValidationIssuedAt,
		ValidationRevokedAt:    a.ValidationRevokedAt,
		RevocationReason:       a.RevocationReason,
		TotalClaims:            a.TotalClaims,
		ApprovedClaims:         a.ApprovedClaims,
		RejectedClaims:         a.RejectedClaims,
		PendingClaims:          a.PendingClaims,
		TotalPaidOut:           a.TotalPaidOut,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
		Block:                  block,
	}
}

// InitAgents initializes the agents table.
func InitAgents(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS agents (
			id String CODEC(ZSTD(1)),
			owner String CODEC(ZSTD(1)),
			collateral_balance UInt64 CODEC(Delta, ZSTD(3)),
			locked_collateral UInt64 CODEC(Delta, ZSTD(3)),
			available_collateral UInt64 CODEC(Delta, ZSTD(3)),
			withdrawal_pending UInt8,
			withdrawal_amount UInt64 CODEC(Delta, ZSTD(3)),
			withdrawal_executable_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			terms_version UInt64 CODEC(DoubleDelta, LZ4),
			terms_hash String CODEC(ZSTD(1)),
			terms_uri String CODEC(ZSTD(1)),
			has_active_terms UInt8,
			active_council_id String CODEC(ZSTD(1)),
			validated UInt8,
			validation_issued_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			validation_revoked_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			revocation_reason String CODEC(ZSTD(1)),
			total_claims UInt64 CODEC(DoubleDelta, LZ4),
			approved_claims UInt64 CODEC(DoubleDelta, LZ4),
			rejected_claims UInt64 CODEC(DoubleDelta, LZ4),
			pending_claims UInt64 CODEC(DoubleDelta, LZ4),
			total_paid_out UInt64 CODEC(Delta, ZSTD(3)),
			created_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (id)
	`
	return db.Exec(ctx, query)
}

// InsertAgents batch-inserts agent snapshots.
func InsertAgents(ctx context.Context, db driver.Conn, agents []*Agent) error {
	if len(agents) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO agents`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, a := range agents {
		if err = batch.AppendStruct(a); err != nil {
			return err
		}
	}

	return batch.Send()
}
