package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
)

// Evidence rows are append-only; the (claim_id, sequence) key never repeats,
// and the ReplacingMergeTree engine deduplicates a replayed block cleanly.
type Evidence struct {
	ClaimID         string    `ch:"claim_id"`
	Sequence        uint32    `ch:"sequence"`
	Submitter       string    `ch:"submitter"`
	CounterEvidence uint8     `ch:"counter_evidence"`
	EvidenceHash    string    `ch:"evidence_hash"`
	EvidenceURI     string    `ch:"evidence_uri"`
	SubmittedAt     time.Time `ch:"submitted_at"`

	Block uint64 `ch:"block"`
}

func (e *Evidence) ToProtocol() protocol.Evidence {
	return protocol.Evidence{
		ClaimID:         e.ClaimID,
		Sequence:        e.Sequence,
		Submitter:       e.Submitter,
		CounterEvidence: e.CounterEvidence == 1,
		EvidenceHash:    e.EvidenceHash,
		EvidenceURI:     e.EvidenceURI,
		SubmittedAt:     e.SubmittedAt,
	}
}

func FromEvidence(e protocol.Evidence, block uint64) *Evidence {
	return &Evidence{
		ClaimID:         e.ClaimID,
		Sequence:        e.Sequence,
		Submitter:       e.Submitter,
		CounterEvidence: utils.BoolToUInt8(e.CounterEvidence),
		EvidenceHash:    e.EvidenceHash,
		EvidenceURI:     e.EvidenceURI,
		SubmittedAt:     e.SubmittedAt,
		Block:           block,
	}
}

// InitEvidence initializes the evidence table.
func InitEvidence(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS evidence (
			claim_id String CODEC(ZSTD(1)),
			sequence UInt32,
			submitter String CODEC(ZSTD(1)),
			counter_evidence UInt8,
			evidence_hash String CODEC(ZSTD(1)),
			evidence_uri String CODEC(ZSTD(1)),
			submitted_at DateTime64(6) CODEC(DoubleDelta, LZ4),
			block UInt64 CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (claim_id, sequence)
	`
	return db.Exec(ctx, query)
}

// InsertEvidence batch-inserts evidence rows.
func InsertEvidence(ctx context.Context, db driver.Conn, rows []*Evidence) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := db.PrepareBatch(ctx, `INSERT INTO evidence`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	for _, e := range rows {
		if err = batch.AppendStruct(e); err != nil {
			return err
		}
	}

	return batch.Send()
}
