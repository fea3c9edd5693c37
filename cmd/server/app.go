package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"otp_expense_tracker/internal/config"
	"otp_expense_tracker/internal/events"
	"otp_expense_tracker/internal/logging"
	"otp_expense_tracker/internal/ratelimit"
	"otp_expense_tracker/internal/repository"
	"otp_expense_tracker/internal/router"
	"otp_expense_tracker/internal/service"
	"otp_expense_tracker/internal/sms"
	"otp_expense_tracker/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// stores bundles the repositories of the configured backend.
type stores struct {
	users    repository.UserRepository
	expenses repository.ExpenseRepository
	ping     func(ctx context.Context) error
	close    func()
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := config.ConnectDB(ctx, cfg.DB, logger)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := config.AutoMigrate(ctx, pool, logger); err != nil {
				pool.Close()
				return nil, err
			}
		}
		return &stores{
			users:    repository.NewUserRepository(pool),
			expenses: repository.NewExpenseRepository(pool),
			ping:     pool.Ping,
			close:    pool.Close,
		}, nil

	case config.StoreMongo:
		client, db, err := config.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := errors.Join(repository.EnsureUserIndexes(ctx, db), repository.EnsureExpenseIndexes(ctx, db)); err != nil {
				_ = client.Disconnect(context.Background())
				return nil, fmt.Errorf("failed to create mongo indexes: %w", err)
			}
			logger.Info("mongo indexes ensured", "database", cfg.Mongo.Database)
		}
		return &stores{
			users:    repository.NewMongoUserRepository(db),
			expenses: repository.NewMongoExpenseRepository(db),
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    func() { _ = client.Disconnect(context.Background()) },
		}, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users:    repository.NewMemoryUserRepository(),
			expenses: repository.NewMemoryExpenseRepository(),
			close:    func() {},
		}, nil
	}
}

func newSender(cfg *config.Config, logger *slog.Logger) sms.Sender {
	if cfg.SMS.Provider == config.SMSAuthKey {
		return sms.NewAuthKeySender(sms.AuthKeyConfig{
			BaseURL:     cfg.SMS.BaseURL,
			APIKey:      cfg.SMS.APIKey,
			Sender:      cfg.SMS.Sender,
			CountryCode: cfg.SMS.CountryCode,
		})
	}
	return sms.NewLogSender(logger)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.OTP.TestMode {
		logger.Warn("OTP_TEST_MODE is on, issued codes are returned in API responses")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer st.close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		if redisClient, err = config.ConnectRedis(ctx, cfg.RedisURL); err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(cfg.OTP.RatePerMinute)
	if redisClient != nil {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.OTP.RatePerMinute)
	}
	if cfg.OTP.RatePerMinute == 0 {
		limiter = nil
	}

	var bus *events.PubSub
	if cfg.EventsDriver == config.EventsRedis {
		if bus, err = events.NewRedisStream(redisClient, logger); err != nil {
			return err
		}
	} else {
		bus = events.NewGoChannel(logger)
	}
	defer bus.Close()

	jwtUtil, err := utils.NewJWTUtil(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Algorithm)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(st.users, jwtUtil, events.NewOTPPublisher(bus.Publisher), limiter, logger)
	expenseService := service.NewExpenseService(st.expenses)

	engine := router.New(router.Deps{
		Auth:                 authService,
		Expenses:             expenseService,
		Logger:               logger,
		APIPrefix:            cfg.APIPrefix,
		OTPInResponse:        cfg.OTP.TestMode,
		LegacyPublicExpenses: cfg.LegacyPublicExpenses,
		Ping:                 st.ping,
	})

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker := events.NewDeliveryWorker(bus.Subscriber, newSender(cfg, logger), logger)
		if err := worker.Run(workerCtx); err != nil {
			logger.Error("otp delivery worker stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "store", cfg.StoreDriver, "events", cfg.EventsDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serveErr:
		if err != nil {
			cancelWorker()
			return fmt.Errorf("listen: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	cancelWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("otp delivery worker did not stop in time")
	}

	logger.Info("server exiting")
	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.LogLevel)

	if cfg.StoreDriver == config.StoreMemory {
		logger.Info("memory store has no schema, nothing to migrate")
		return nil
	}

	st, err := openStores(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	st.close()
	logger.Info("migration complete", "store", cfg.StoreDriver)
	return nil
}
