package pipeline

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vyaparbazaar/featurex/app/pipeline/types"
	"github.com/vyaparbazaar/featurex/pkg/config"
	"github.com/vyaparbazaar/featurex/pkg/db/models"
	"github.com/vyaparbazaar/featurex/pkg/db/warehouse"
	"github.com/vyaparbazaar/featurex/pkg/logging"
	"github.com/vyaparbazaar/featurex/pkg/pipeline"
	"github.com/vyaparbazaar/featurex/pkg/redis"
	"github.com/vyaparbazaar/featurex/pkg/utils"
)

// Initialize initializes the application.
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New("pipeline")
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Unable to load configuration", zap.Error(err))
	}

	wdb, err := warehouse.New(ctx, logger, cfg.DatabaseName)
	if err != nil {
		logger.Fatal("Unable to connect to warehouse", zap.Error(err))
	}
	if err := wdb.InitializeDB(ctx); err != nil {
		logger.Fatal("Unable to initialize warehouse tables", zap.Error(err))
	}

	// Redis is optional. Without it there is no cross-process run lock and no
	// run event stream, which is fine for a single pipeline instance.
	var redisClient *redis.Client
	var locker pipeline.Locker
	if utils.Env("REDIS_ENABLED", "false") == "true" {
		redisClient, err = redis.NewClient(ctx, logger)
		if err != nil {
			logger.Fatal("Unable to connect to redis", zap.Error(err))
		}
		locker = redisClient
	} else {
		logger.Info("Redis disabled, using in-process stage locks")
		locker = pipeline.NewMemoryLocker()
	}

	engine := pipeline.New(cfg, logger, wdb, wdb, wdb, wdb, wdb, locker)
	if redisClient != nil {
		engine.Events = redisClient
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.CronSpec, func() {
		runCtx := context.Background()
		if _, err := engine.RunAll(runCtx, models.ModeIncremental); err != nil {
			logger.Error("Scheduled incremental run finished with errors", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Invalid cron spec", zap.String("spec", cfg.CronSpec), zap.Error(err))
	}

	return &types.App{
		Cfg:         cfg,
		DB:          wdb,
		Engine:      engine,
		RedisClient: redisClient,
		Cron:        c,
		Logger:      logger,
	}
}
