package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// ProtocolStats is the singleton totals row, versioned by block like every
// other snapshot table. The fixed id keeps it a one-row table after merges.
type ProtocolStats struct {
	ID uint8 `ch:"id"`

	TotalAgents   uint64 `ch:"total_agents"`
	TotalCouncils uint64 `ch:"total_councils"`
	TotalMembers  uint64 `ch:"total_members"`
	TotalClaims   uint64 `ch:"total_claims"`

	ApprovedClaims uint64 `ch:"approved_claims"`
	RejectedClaims uint64 `ch:"rejected_claims"`
	PendingClaims  uint64 `ch:"pending_claims"`

	TotalCollateral       uint64 `ch:"total_collateral"`
	TotalLockedCollateral uint64 `ch:"total_locked_collateral"`
	TotalCompensationPaid uint64 `ch:"total_compensation_paid"`
	TotalSlashed          uint64 `ch:"total_slashed"`
	TotalDepositsHeld     uint64 `ch:"total_deposits_held"`

	UpdatedAt time.Time `ch:"updated_at"`

	Block uint64 `ch:"block"`
}

func (s *ProtocolStats) ToProtocol() protocol.ProtocolStats {
	return protocol.ProtocolStats{
		TotalAgents:           s.TotalAgents,
		TotalCouncils:         s.TotalCouncils,
		TotalMembers:          s.TotalMembers,
		TotalClaims:           s.TotalClaims,
		ApprovedClaims:        s.ApprovedClaims,
		RejectedClaims:        s.RejectedClaims,
		PendingClaims:         s.PendingClaims,
		TotalCollateral:       s.TotalCollateral,
		TotalLockedCollateral: s.TotalLockedCollateral,
		TotalCompensationPaid: s.TotalCompensationPaid,
		TotalSlashed:          s.TotalSlashed,
		TotalDepositsHeld:     s.TotalDepositsHeld,
		UpdatedAt:             s.UpdatedAt,
	}
}

func FromProtocolStats(s protocol.ProtocolStats, block uint64) *ProtocolStats {
	return &ProtocolStats{
		ID:                    1,
		TotalAgents:           s.TotalAgents,
		TotalCouncils:         s.TotalCouncils,
		TotalMembers:          s.TotalMembers,
		TotalClaims:           s.TotalClaims,
		ApprovedClaims:        s.ApprovedClaims,
		RejectedClaims:        s.RejectedClaims,
		PendingClaims:         s.PendingClaims,
		TotalCollateral:       s.TotalCollateral,
		TotalLockedCollateral: s.TotalLockedCollateral,
		TotalCompensationPaid: s.TotalCompensationPaid,
		TotalSlashed:          s.TotalSlashed,
		TotalDepositsHeld:     s.TotalDepositsHeld,
		UpdatedAt:             s.UpdatedAt,
		Block:                 block,
	}
}

// InitProtocolStats initializes the protocol_stats table.
func InitProtocolStats(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS protocol_stats (
			id UInt8,
			total_agents UInt64,
			total_councils UInt64,
			total_members UInt64,
			total_claims UInt64,
			approved_claims UInt64,
			rejected_claims UInt64,
			pending_claims UInt64,
			total_collateral UInt64,
			total_locked_collateral UInt64,
			total_compensation_paid UInt64,
			total_slashed UInt64,
			total_deposits_held UInt64,
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (id)
	`
	return db.Exec(ctx, query)
}

// InsertProtocolStats inserts a stats snapshot.
func InsertProtocolStats(ctx context.Context, db driver.Conn, stats *ProtocolStats) error {
	if stats == nil {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO protocol_stats`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err = batch.AppendStruct(stats); err != nil {
		return err
	}

	return batch.Send()
}
