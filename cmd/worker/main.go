package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/septivank/rental-meter-worker/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lifecycleTimeout = 30 * time.Second

func main() {
	if path, ok := loadEnvFile(); ok {
		fmt.Printf("Loaded environment from: %s\n", path)
	} else {
		fmt.Println("No .env file found, using process environment")
	}

	app := fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			ProvideRentalAPI,
			ProvideRowStore,
			ProvideLoader,
			ProvideValidator,
			ProvideAnomalyDetector,
			ProvideJournal,
			ProvideSynchronizer,
			ProvideSettlementService,
			ProvideMQConnection,
			ProvidePublisher,
			ProvideCommandHandler,
		),
		fx.Invoke(startWorker),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// config may not load, so startup failures get their own logger
	bootLogger, _ := newLogger(&config.Config{ServiceName: "rental-meter-worker"})
	bootLogger.Info("starting rental meter worker", zap.Duration("timeout", lifecycleTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			bootLogger.Error("worker did not start in time; check that the rental API, RabbitMQ and the journal database are reachable")
		}
		panic(err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		bootLogger.Error("error stopping worker", zap.Error(err))
	}
}
