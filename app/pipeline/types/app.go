package types

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/warehouse"
	"github.com/vyaparbazaar/featurex/pkg/pipeline"
	"github.com/vyaparbazaar/featurex/pkg/redis"
)

type App struct {
	Cfg    *config.Config
	DB     *warehouse.DB
	Engine *pipeline.Engine
	// RedisClient is nil when Redis is disabled; locking then falls back to
	// the in-process locker and run events are not published.
	RedisClient *redis.Client
	Cron        *cron.Cron
	// Zap Logger
	Logger *zap.Logger
	// Server represents the HTTP server instance used to handle incoming client requests and manage HTTP routes.
	Server *http.Server
}

// Start starts the application.
func (a *App) Start(ctx context.Context) {
	a.Cron.Start()
	go func() { _ = a.Server.ListenAndServe() }()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cronCtx := a.Cron.Stop()
	<-cronCtx.Done()

	if err := a.DB.Close(); err != nil {
		a.Logger.Error("Failed to close database connection", zap.Error(err))
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	_ = a.Server.Shutdown(shutdownCtx)
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}
