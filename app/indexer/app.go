package indexer

import (
	"context"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/logging"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/redis"
	"github.com/arbiter-protocol/arbiterx/pkg/rpc"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	Store     *db.Store
	Memory    *protocol.MemoryStore
	Projector *protocol.Projector
	RPC       rpc.Client

	RedisClient *redis.Client
	Cron        *cron.Cron
	Logger      *zap.Logger

	PollInterval time.Duration
	BatchBlocks  uint64

	// nextBlock is the first block the ingest loop has not applied yet.
	nextBlock uint64
}

// Start runs the ingest loop until the context is canceled.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	a.runIngest(ctx)
	a.Stop()
}

// Stop stops the cron scheduler and closes connections.
func (a *App) Stop() {
	cronCtx := a.Cron.Stop()
	<-cronCtx.Done()

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// Initialize initializes the application.
func Initialize(ctx context.Context) *App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	dbName := utils.Env("CLICKHOUSE_DB", "arbiterx")
	store, storeErr := db.NewStore(ctx, logger, dbName, "indexer")
	if storeErr != nil {
		logger.Fatal("Unable to connect to ClickHouse", zap.Error(storeErr))
	}
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal("Unable to initialize database tables", zap.Error(err))
	}

	endpoints := utils.EnvList("RPC_ENDPOINTS", "")
	if len(endpoints) == 0 {
		logger.Fatal("RPC_ENDPOINTS environment variable is required")
	}
	rpcOpts := rpc.Opts{RPS: 100, Burst: 200, BreakerFailures: 10, BreakerCooldown: 30 * time.Second}
	client := rpc.NewHTTPFactory(rpcOpts).NewClient(endpoints)

	memory := protocol.NewMemoryStore()
	projector := protocol.NewProjector(memory, logger)

	// Resume from the checkpoint: hydrate projected state from ClickHouse and
	// seed the ordering cursor so ingestion picks up at the next block.
	var nextBlock uint64
	block, logIndex, ok, lastErr := store.LastIndexed(ctx)
	if lastErr != nil {
		logger.Fatal("Unable to read checkpoint", zap.Error(lastErr))
	}
	if ok {
		if err := store.Hydrate(ctx, memory); err != nil {
			logger.Fatal("Unable to hydrate projection state", zap.Error(err))
		}
		memory.Drain() // hydration marks everything dirty; nothing to flush
		projector.Resume(block, logIndex)
		nextBlock = block + 1
		logger.Info("Resuming from checkpoint",
			zap.Uint64("block", block), zap.Uint32("log_index", logIndex))
	} else {
		logger.Info("No checkpoint found, indexing from genesis")
	}

	// Redis notifications are optional; without them the websocket surface of
	// the query API just reports unavailable.
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - notifications disabled", zap.Error(err))
			redisClient = nil
		}
	}

	app := &App{
		Store:        store,
		Memory:       memory,
		Projector:    projector,
		RPC:          client,
		RedisClient:  redisClient,
		Cron:         cron.New(),
		Logger:       logger,
		PollInterval: time.Duration(utils.EnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		BatchBlocks:  utils.EnvUint64("BATCH_BLOCKS", 1000),
		nextBlock:    nextBlock,
	}

	spec := utils.Env("RECONCILE_CRON", "@every 10m")
	if _, cronErr := app.Cron.AddFunc(spec, func() { app.reconcile(ctx) }); cronErr != nil {
		logger.Fatal("Invalid reconcile cron spec", zap.String("spec", spec), zap.Error(cronErr))
	}

	return app
}
