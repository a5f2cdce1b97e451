// Package server boots the process: it opens every connection named in the
// configuration, builds the kernel and runs the HTTP, gRPC and scheduler
// loops until the context ends.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/campusbite/canteen/app/services"
	"github.com/campusbite/canteen/config"
	"github.com/campusbite/canteen/internal/kernel"
	"github.com/campusbite/canteen/pkg/cache"
	"github.com/campusbite/canteen/pkg/database"
	"github.com/campusbite/canteen/pkg/event"
	"github.com/campusbite/canteen/pkg/grpc"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/mq"
	"github.com/campusbite/canteen/pkg/schedule"
	"github.com/campusbite/canteen/pkg/storage"
	"github.com/campusbite/canteen/pkg/telemetry"
)

const shutdownTimeout = 15 * time.Second

// App is a booted process.
type App struct {
	DB     *gorm.DB
	Cache  *cache.Store
	Bus    *event.Bus
	Kernel *kernel.Kernel

	mq *mq.Publisher
}

// Boot opens the database and the optional services around it. Redis,
// storage and RabbitMQ failures are logged and the feature is disabled; only
// the database is mandatory.
func Boot(ctx context.Context) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.Connect(); err != nil {
		return nil, err
	}

	a := &App{DB: database.DB, Bus: event.NewBus()}

	c, err := cache.Connect(ctx)
	if err != nil {
		logger.Warn("server: redis unavailable, cache and relay disabled", "error", err)
	}
	a.Cache = c

	disk, err := storage.Open(storage.FromConfig())
	if err != nil {
		logger.Warn("server: storage unavailable, uploads fall back to data URLs", "error", err)
		disk = nil
	}

	deps := kernel.Deps{
		DB:         a.DB,
		Bus:        a.Bus,
		Cache:      a.Cache,
		Disk:       disk,
		Gateways:   services.GatewayConfigFromEnv(),
		WebhookURL: config.NotifyWebhookURL(),
		RateLimit:  rateLimit(),
	}
	if url := config.AMQPURL(); url != "" {
		pub, err := mq.Dial(url, config.AMQPExchange())
		if err != nil {
			logger.Warn("server: rabbitmq unavailable, broker fan-out disabled", "error", err)
		} else {
			a.mq = pub
			deps.MQ = pub
		}
	}

	k, err := kernel.New(deps)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Kernel = k
	return a, nil
}

// Close waits for pending listeners and releases every connection.
func (a *App) Close() {
	a.Bus.Wait()
	if a.mq != nil {
		if err := a.mq.Close(); err != nil {
			logger.Warn("server: close rabbitmq", "error", err)
		}
	}
	if err := a.Cache.Close(); err != nil {
		logger.Warn("server: close redis", "error", err)
	}
	if err := database.Close(a.DB); err != nil {
		logger.Warn("server: close database", "error", err)
	}
}

// Schedule registers the recurring jobs on s.
func (a *App) Schedule(s *schedule.Scheduler) error {
	if err := s.Daily().At(config.TokenResetAt()).Name("tokens:reset").WithoutOverlapping().
		Run(a.Kernel.Services.Tokens.Job); err != nil {
		return err
	}
	return s.Cron(config.NotificationPruneCron()).Name("notifications:prune").WithoutOverlapping().
		Run(a.Kernel.Services.Notifications.PruneJob)
}

func rateLimit() int {
	n, err := strconv.Atoi(config.Get("RATE_LIMIT", "200"))
	if err != nil || n < 0 {
		return 200
	}
	return n
}

// Serve runs until ctx is cancelled, then drains HTTP and gRPC.
func Serve(ctx context.Context) error {
	shutdownTracing := telemetry.Setup(ctx)

	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.Kernel.Run(runCtx)

	sched := schedule.New()
	if err := a.Schedule(sched); err != nil {
		return err
	}
	sched.Start(runCtx)

	var rpc *grpc.Server
	if port := config.GRPCPort(); port != "" {
		if rpc, err = grpc.Start(port, database.Ping); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           a.Kernel.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server: listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: http: %w", err)
		}
	}

	logger.Info("server: shutting down")
	stopCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rpc.Stop()
	}()
	if err := srv.Shutdown(stopCtx); err != nil {
		logger.Warn("server: http shutdown", "error", err)
	}
	cancel()
	sched.Wait()
	wg.Wait()

	if err := shutdownTracing(stopCtx); err != nil {
		logger.Warn("server: flush traces", "error", err)
	}
	return nil
}
