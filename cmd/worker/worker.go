package main

import (
	"context"

	"github.com/septivank/rental-meter-worker/internal/anomaly"
	"github.com/septivank/rental-meter-worker/internal/clock"
	"github.com/septivank/rental-meter-worker/internal/config"
	"github.com/septivank/rental-meter-worker/internal/db"
	"github.com/septivank/rental-meter-worker/internal/mq"
	"github.com/septivank/rental-meter-worker/internal/rentalapi"
	"github.com/septivank/rental-meter-worker/internal/repository"
	"github.com/septivank/rental-meter-worker/internal/rows"
	"github.com/septivank/rental-meter-worker/internal/service"
	"github.com/septivank/rental-meter-worker/internal/settlement"
	"github.com/septivank/rental-meter-worker/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	handler *service.CommandHandler,
	publisher *mq.Publisher,
) (*mq.Consumer, error) {
	// Create context for consumer that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:    conn,
		Queue:         cfg.RabbitMQ.CommandQueue,
		DLQQueue:      cfg.RabbitMQ.DLQQueue,
		Exchange:      cfg.RabbitMQ.CommandExchange,
		RoutingKey:    cfg.RabbitMQ.CommandRoutingKey,
		PrefetchCount: cfg.RabbitMQ.PrefetchCount,
		Logger:        logger,
		Handler:       handler.HandleMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			// A failed initial load is not fatal; a reload command retries it.
			if err := handler.Reload(startCtx); err != nil {
				logger.Error("initial row load failed", zap.Error(err))
			}

			logger.Info("starting worker consumer",
				zap.String("queue", cfg.RabbitMQ.CommandQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			if err := publisher.Close(); err != nil {
				logger.Warn("failed to close publisher", zap.Error(err))
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideRentalAPI creates the rental API client
func ProvideRentalAPI(cfg *config.Config, logger *zap.Logger) *rentalapi.Client {
	return rentalapi.NewClient(rentalapi.Config{
		BaseURL:    cfg.RentalAPI.URL,
		Token:      cfg.RentalAPI.Token,
		Timeout:    cfg.RentalAPI.Timeout,
		RetryCount: cfg.RentalAPI.RetryCount,
	}, logger)
}

// ProvideRowStore creates the empty row store filled by the first reload
func ProvideRowStore() *rows.Store {
	return rows.NewStore(nil)
}

// ProvideLoader creates a new row loader instance
func ProvideLoader(api *rentalapi.Client, cfg *config.Config, logger *zap.Logger) *service.Loader {
	names := service.ServiceNames{
		Electricity: cfg.Meter.ElectricityServices,
		Water:       cfg.Meter.WaterServices,
	}
	return service.NewLoader(api, names, cfg.Meter.FetchConcurrency, logger)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideValidator creates a new validator instance
func ProvideValidator() *validator.Validator {
	return validator.NewValidator()
}

// ProvideJournal connects the sync journal, or returns a no-op journal when
// no database is configured.
func ProvideJournal(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (service.Journal, error) {
	if !cfg.Database.Enabled() {
		logger.Info("DATABASE_URL not set, sync journal disabled")
		return repository.NopJournal{}, nil
	}
	pool, err := db.NewPool(lc, logger, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	return repository.NewRepository(pool), nil
}

// ProvideSynchronizer creates a new synchronizer instance
func ProvideSynchronizer(
	store *rows.Store,
	api *rentalapi.Client,
	validator *validator.Validator,
	detector *anomaly.Detector,
	journal service.Journal,
	logger *zap.Logger,
) *service.Synchronizer {
	return service.NewSynchronizer(store, api, validator, detector, journal, clock.System(), logger)
}

// ProvideSettlementService creates a new settlement service instance
func ProvideSettlementService(api *rentalapi.Client, logger *zap.Logger) *settlement.Service {
	return settlement.NewService(api, logger)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.EventExchange, logger)
}

// ProvideCommandHandler creates a new command handler instance
func ProvideCommandHandler(
	store *rows.Store,
	loader *service.Loader,
	sync *service.Synchronizer,
	settlementSvc *settlement.Service,
	publisher *mq.Publisher,
	logger *zap.Logger,
) *service.CommandHandler {
	return service.NewCommandHandler(store, loader, sync, settlementSvc, publisher, logger)
}
