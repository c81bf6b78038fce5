package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
)

// Vote is the live row for one (claim, voter) pair. A vote change rewrites
// the row at a later block; ReplacingMergeTree(block) collapses it back to
// one row per pair.
type Vote struct {
	ClaimID   string `ch:"claim_id"`
	CouncilID string `ch:"council_id"`
	Voter     string `ch:"voter"`

	Choice         uint8  `ch:"choice"`
	ApprovedAmount uint64 `ch:"approved_amount"`
	Reasoning      string `ch:"reasoning"`

	CastAt        time.Time `ch:"cast_at"`
	LastChangedAt time.Time `ch:"last_changed_at"`

	Block uint64 `ch:"block"`
}

func (v *Vote) ToProtocol() protocol.Vote {
	return protocol.Vote{
		ClaimID:        v.ClaimID,
		CouncilID:      v.CouncilID,
		Voter:          v.Voter,
		Choice:         protocol.VoteChoice(v.Choice),
		ApprovedAmount: v.ApprovedAmount,
		Reasoning:      v.Reasoning,
		CastAt:         v.CastAt,
		LastChangedAt:  v.LastChangedAt,
	}
}

func FromVote(v protocol.Vote, block uint64) *Vote {
	return &Vote{
		ClaimID:        v.ClaimID,
		CouncilID:      v.CouncilID,
		Voter:          v.Voter,
		Choice:         uint8(v.Choice),
		ApprovedAmount: v.ApprovedAmount,
		Reasoning:      v.Reasoning,
		CastAt:         v.CastAt,
		LastChangedAt:  v.LastChangedAt,
		Block:          block,
	}
}

// InitVotes initializes the votes table.
func InitVotes(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS votes (
			claim_id String CODEC(ZSTD(1)),
			council_id String CODEC(ZSTD(1)),
			voter String CODEC(ZSTD(1)),
			choice UInt8,
			approved_amount UInt64 CODEC(Delta, ZSTD(3)),
			reasoning String CODEC(ZSTD(1)),
			cast_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			last_changed_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (claim_id, voter)
	`
	return db.Exec(ctx, query)
}

// InsertVotes batch-inserts vote rows.
func InsertVotes(ctx context.Context, db driver.Conn, votes []*Vote) error {
	if len(votes) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO votes`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, v := range votes {
		if err = batch.AppendStruct(v); err != nil {
			return err
		}
	}

	return batch.Send()
}
