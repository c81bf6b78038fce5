package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// CouncilMember is a versioned snapshot of one (council, member) row.
// Removed members keep their row with active = 0 so voting history survives.
type CouncilMember struct {
	CouncilID string `ch:"council_id"`
	Address   string `ch:"address"`

	Active   uint8     `ch:"active"`
	JoinedAt time.Time `ch:"joined_at"`
	LeftAt   time.Time `ch:"left_at"`

	ApproveVotes     uint64 `ch:"approve_votes"`
	RejectVotes      uint64 `ch:"reject_votes"`
	AbstainVotes     uint64 `ch:"abstain_votes"`
	TotalClaimsVoted uint64 `ch:"total_claims_voted"`

	CorrectVotes   uint64 `ch:"correct_votes"`
	FinalizedVotes uint64 `ch:"finalized_votes"`

	UpdatedAt time.Time `ch:"updated_at"`

	Block uint64 `ch:"block"`
}

func (m *CouncilMember) ToProtocol() protocol.CouncilMember {
	return protocol.CouncilMember{
		CouncilID:        m.CouncilID,
		Address:          m.Address,
		Active:           m.Active == 1,
		JoinedAt:         m.JoinedAt,
		LeftAt:           m.LeftAt,
		ApproveVotes:     m.ApproveVotes,
		RejectVotes:      m.RejectVotes,
		AbstainVotes:     m.AbstainVotes,
		TotalClaimsVoted: m.TotalClaimsVoted,
		CorrectVotes:     m.CorrectVotes,
		FinalizedVotes:   m.FinalizedVotes,
		UpdatedAt:        m.UpdatedAt,
	}
}

func FromCouncilMember(m protocol.CouncilMember, block uint64) *CouncilMember {
	return &CouncilMember{
		CouncilID:        m.CouncilID,
		Address:          m.Address,
		Active:           utils.BoolToUInt8(m.Active),
		JoinedAt:         m.JoinedAt,
		LeftAt:           m.LeftAt,
		ApproveVotes:     m.ApproveVotes,
		RejectVotes:      m.RejectVotes,
		AbstainVotes:     m.AbstainVotes,
		TotalClaimsVoted: m.TotalClaimsVoted,
		CorrectVotes:     m.CorrectVotes,
		FinalizedVotes:   m.FinalizedVotes,
		UpdatedAt:        m.UpdatedAt,
		Block:            block,
	}
}

// InitCouncilMembers initializes the council_members table.
func InitCouncilMembers(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS council_members (
			council_id String CODEC(ZSTD(1)),
			address String CODEC(ZSTD(1)),
			active UInt8,
			joined_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			left_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			approve_votes UInt64 CODEC(DoubleDelta, LZ4),
			reject_votes UInt64 CODEC(DoubleDelta, LZ4),
			abstain_votes UInt64 CODEC(DoubleDelta, LZ4),
			total_claims_voted UInt64 CODEC(DoubleDelta, LZ4),
			correct_votes UInt64 CODEC(DoubleDelta, LZ4),
			finalized_votes UInt64 CODEC(DoubleDelta, LZ4),
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (council_id, address)
	`
	return db.Exec(ctx, query)
}

// InsertCouncilMembers batch-inserts member snapshots.
func InsertCouncilMembers(ctx context.Context, db driver.Conn, members []*CouncilMember) error {
	if len(members) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO council_members`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, m := range members {
		if err = batch.AppendStruct(m); err != nil {
			return err
		}
	}

	return batch.Send()
}
