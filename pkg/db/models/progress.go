package models

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Progress is the indexer checkpoint: the last (block, log index) applied to
// the projection. A restart resumes from here instead of replaying genesis.
type Progress struct {
	ID        uint8     `ch:"id"`
	Block     uint64    `ch:"block"`
	LogIndex  uint32    `ch:"log_index"`
	UpdatedAt time.Time `ch:"updated_at"`
}

// InitProgress initializes the progress checkpoint table.
func InitProgress(ctx context.Context, db driver.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS progress (
			id UInt8,
			block UInt64,
			log_index UInt32,
			updated_at DateTime64(6) CODEC(DoubleDelta, LZ4)
		) ENGINE = ReplacingMergeTree(block)
		ORDER BY (id)
	`
	return db.Exec(ctx, query)
}

// InsertProgress records the checkpoint after a flushed batch.
func InsertProgress(ctx context.Context, db driver.Conn, block uint64, logIndex uint32) error {
	batch, err := db.PrepareBatch(ctx, `INSERT INTO progress`)
	if err != nil {
		return err
	}
	defer func(batch driver.Batch) {
		_ = batch.Abort()
	}(batch)

	if err = batch.AppendStruct(&Progress{
		ID:        1,
		Block:     block,
		LogIndex:  logIndex,
		UpdatedAt: time.Now().UTC(),
	}); err != nil {
		return err
	}

	return batch.Send()
}
