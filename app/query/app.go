package query

import (
	"context"

	"github.com/arbiter-protocol/arbiterx/app/query/types"
	"github.com/arbiter-protocol/arbiterx/pkg/datasource"
	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/logging"
	"github.com/arbiter-protocol/arbiterx/pkg/redis"
	"github.com/arbiter-protocol/arbiterx/pkg/rpc"
	"github.com/arbiter-protocol/arbiterx/pkg/utils"
	"go.uber.org/zap"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	dbName := utils.Env("CLICKHOUSE_DB", "arbiterx")
	store, storeErr := db.NewStore(ctx, logger, dbName, "query")
	if storeErr != nil {
		logger.Fatal("Unable to connect to ClickHouse", zap.Error(storeErr))
	}

	// Schema creation is idempotent; running it here lets the query side boot
	// before the indexer has ever flushed.
	if err := store.Initialize(ctx); err != nil {
		logger.Fatal("Unable to initialize database tables", zap.Error(err))
	}

	source := datasource.DataSource(datasource.NewStoreSource(store))

	// Chain fallback is optional: without RPC endpoints the store answers alone.
	var chain *datasource.ChainSource
	if endpoints := utils.EnvList("RPC_ENDPOINTS", ""); len(endpoints) > 0 {
		client := rpc.NewHTTPFactory(rpc.Opts{}).NewClient(endpoints)
		chain = datasource.NewChainSource(client, logger, utils.EnvInt("CHAIN_FANOUT_WORKERS", 8))
		source = datasource.NewFallback(source, chain, logger)
		logger.Info("Chain read fallback enabled", zap.Strings("endpoints", endpoints))
	}

	// Initialize Redis client for real-time WebSocket events (optional)
	var redisClient *redis.Client
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Warn("Failed to initialize Redis client - WebSocket real-time events will be disabled",
				zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Redis client initialized for WebSocket real-time events")
		}
	} else {
		logger.Info("Redis disabled - WebSocket real-time events will not be available")
	}

	passHash, hashErr := utils.HashOrRead(utils.Env("ADMIN_PASSWORD", "admin"))
	if hashErr != nil {
		logger.Fatal("Unable to prepare admin credentials", zap.Error(hashErr))
	}

	app := &types.App{
		Store:         store,
		Source:        source,
		Chain:         chain,
		RedisClient:   redisClient,
		AdminUser:     utils.Env("ADMIN_USER", "admin"),
		AdminPassHash: passHash,
		JWTSecret:     []byte(utils.Env("JWT_SECRET", "arbiterx-dev-secret")),
		Logger:        logger,
	}

	return app
}
