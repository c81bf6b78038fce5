package types

import (
	"context"
	"net/http"
	"time"

	"github.com/arbiter-protocol/arbiterx/pkg/datasource"
	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/redis"
	"go.uber.org/zap"
)

type App struct {
	// Store is the ClickHouse read model; Source is the read façade the
	// controllers query (store primary, chain fallback).
	Store  *db.Store
	Source datasource.DataSource
	Chain  *datasource.ChainSource

	RedisClient *redis.Client

	// Admin surface credentials.
	AdminUser     string
	AdminPassHash []byte
	JWTSecret     []byte

	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.Chain != nil {
		a.Chain.Close()
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
