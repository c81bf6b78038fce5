package indexer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/redis"
	"go.uber.org/zap"
)

// runIngest polls the node for new events and folds them into the projection.
// A fatal projection error (out-of-order or inconsistent event) stops the loop
// entirely: continuing would persist corrupted aggregates.
func (a *App) runIngest(ctx context.Context) {
	ticker := time.NewTicker(a.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.ingestOnce(ctx); err != nil {
				a.Logger.Error("Ingestion halted", zap.Error(err))
				return
			}
		}
	}
}

// ingestOnce catches up at most BatchBlocks toward the chain head. Transient
// RPC failures are logged and retried on the next tick; only projection
// errors are returned.
func (a *App) ingestOnce(ctx context.Context) error {
	head, err := a.RPC.Head(ctx)
	if err != nil {
		a.Logger.Warn("Failed to fetch chain head", zap.Error(err))
		return nil
	}
	if head.Block < a.nextBlock {
		return nil
	}

	from := a.nextBlock
	to := head.Block
	if limit := from + a.BatchBlocks - 1; to > limit {
		to = limit
	}

	events, err := a.RPC.EventsByRange(ctx, from, to)
	if err != nil {
		a.Logger.Warn("Failed to fetch events",
			zap.Uint64("from", from), zap.Uint64("to", to), zap.Error(err))
		return nil
	}

	// Apply in order, committing a snapshot at every block boundary so a crash
	// never loses more than one block of work.
	var (
		current uint64
		lastIdx uint32
	)
	for _, ev := range events {
		if current != 0 && ev.Block != current {
			if err := a.commitBlock(ctx, current, lastIdx); err != nil {
				return err
			}
			lastIdx = 0
		}
		current = ev.Block

		if err := a.Projector.Apply(ev); err != nil {
			return err
		}
		lastIdx = ev.LogIndex
	}
	if current != 0 {
		if err := a.commitBlock(ctx, current, lastIdx); err != nil {
			return err
		}
	}

	// Advance the checkpoint across the trailing empty blocks too, so restart
	// never refetches ranges known to be empty.
	if current != to {
		if err := a.Store.RecordIndexed(ctx, to, 0); err != nil {
			a.Logger.Warn("Failed to record checkpoint", zap.Uint64("block", to), zap.Error(err))
			return nil
		}
	}
	a.nextBlock = to + 1

	a.Logger.Debug("Ingested block range",
		zap.Uint64("from", from), zap.Uint64("to", to), zap.Int("events", len(events)))
	return nil
}

// commitBlock flushes one block's dirty aggregates, checkpoints, and fans out
// notifications. Flush failures are fatal for the loop: the in-memory state
// has already advanced past what ClickHouse holds.
func (a *App) commitBlock(ctx context.Context, block uint64, lastIdx uint32) error {
	changes := a.Memory.Drain()
	if err := a.Store.FlushChanges(ctx, changes, block); err != nil {
		return err
	}
	if err := a.Store.RecordIndexed(ctx, block, lastIdx); err != nil {
		return err
	}
	a.notify(ctx, block, changes)
	return nil
}

// notify publishes best-effort change notifications. Losing one is harmless,
// clients refetch on reconnect.
func (a *App) notify(ctx context.Context, block uint64, changes protocol.Changes) {
	if a.RedisClient == nil {
		return
	}

	a.publishJSON(ctx, redis.ChannelBlockIndexed, map[string]any{"block": block})
	for _, claim := range changes.Claims {
		a.publishJSON(ctx, redis.ChannelClaimUpdated, map[string]any{
			"id":     claim.ID,
			"status": claim.Status.String(),
			"block":  block,
		})
	}
	for _, agent := range changes.Agents {
		a.publishJSON(ctx, redis.ChannelAgentUpdated, map[string]any{
			"id":    agent.ID,
			"block": block,
		})
	}
	if changes.Stats != nil {
		a.publishJSON(ctx, redis.ChannelStatsUpdated, map[string]any{"block": block})
	}
}

func (a *App) publishJSON(ctx context.Context, channel string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		a.Logger.Warn("Failed to marshal notification", zap.String("channel", channel), zap.Error(err))
		return
	}
	a.RedisClient.Publish(ctx, channel, body)
}
