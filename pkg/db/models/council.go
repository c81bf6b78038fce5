package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// Council is a versioned snapshot of one council aggregate.
type Council struct {
	ID          string `ch:"id"`
	Name        string `ch:"name"`
	Description string `ch:"description"`
	Vertical    string `ch:"vertical"`

	MemberCount       uint32 `ch:"member_count"`
	QuorumPct         uint32 `ch:"quorum_pct"`
	ClaimDepositPct   uint32 `ch:"claim_deposit_pct"`
	EvidencePeriodSec uint64 `ch:"evidence_period_sec"`
	VotingPeriodSec   uint64 `ch:"voting_period_sec"`

	Active   uint8     `ch:"active"`
	Closed   uint8     `ch:"closed"`
	ClosedAt time.Time `ch:"closed_at"`

	TotalClaims       uint64 `ch:"total_claims"`
	TotalCompensation uint64 `ch:"total_compensation"`
	TotalForfeitures  uint64 `ch:"total_forfeitures"`

	CreatedAt time.Time `ch:"created_at"`
	UpdatedAt time.Time `ch:"updated_at"`

	Block uint64 `ch:"block"`
}

func (c *Council) ToProtocol() protocol.Council {
	return protocol.Council{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		Vertical:          c.Vertical,
		MemberCount:       c.MemberCount,
		QuorumPct:         c.QuorumPct,
		ClaimDepositPct:   c.ClaimDepositPct,
		EvidencePeriodSec: c.EvidencePeriodSec,
		VotingPeriodSec:   c.VotingPeriodSec,
		Active:            c.Active == 1,
		Closed:            c.Closed == 1,
		ClosedAt:          c.ClosedAt,
		TotalClaims:       c.TotalClaims,
		TotalCompensation: c.TotalCompensation,
		TotalForfeitures:  c.TotalForfeitures,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
	}
}

func FromCouncil(c protocol.Council, block uint64) *Council {
	return &Council{
		ID:                c.ID,
		Name:              c.Name,
		Description:       c.Description,
		Vertical:          c.Vertical,
		MemberCount:       c.MemberCount,
		QuorumPct:         c.QuorumPct,
		ClaimDepositPct:   c.ClaimDepositPct,
		EvidencePeriodSec: c.EvidencePeriodSec,
		VotingPeriodSec:   c.VotingPeriodSec,
		Active:            utils.BoolToUInt8(c.Active),
		Closed:            utils.BoolToUInt8(c.Closed),
		ClosedAt:          c.ClosedAt,
		TotalClaims:       c.TotalClaims,
		TotalCompensation: c.TotalCompensation,
		TotalForfeitures:  c.TotalForfeitures,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		Block:             block,
	}
}

// InitCouncils initializes the councils table.
func InitCouncils(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS councils (
			id String CODEC(ZSTD(1)),
			name String CODEC(ZSTD(1)),
			description String CODEC(ZSTD(1)),
			vertical String CODEC(ZSTD(1)),
			member_count UInt32,
			quorum_pct UInt32,
			claim_deposit_pct UInt32,
			evidence_period_sec UInt64,
			voting_period_sec UInt64,
			active UInt8,
			closed UInt8,
			closed_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			total_claims UInt64 CODEC(DoubleDelta, LZ4),
			total_compensation UInt64 CODEC(Delta, ZSTD(3)),
			total_forfeitures UInt64 CODEC(Delta, ZSTD(3)),
			created_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (id)
	`
	return db.Exec(ctx, query)
}

// InsertCouncils batch-inserts council snapshots.
func InsertCouncils(ctx context.Context, db driver.Conn, councils []*Council) error {
	if len(councils) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO councils`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, c := range councils {
		if err = batch.AppendStruct(c); err != nil {
			return err
		}
	}

	return batch.Send()
}
