package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sparkchat/backend/internal/api/handler"
	"sparkchat/backend/internal/auth"
	"sparkchat/backend/internal/chathub"
	"sparkchat/backend/internal/config"
	"sparkchat/backend/internal/gateway"
	"sparkchat/backend/internal/logging"
	"sparkchat/backend/internal/messaging"
	"sparkchat/backend/internal/metrics"
	"sparkchat/backend/internal/storage"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDatabase(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// setupFanout returns the bus and presence counter for the configured mode,
// plus a func closing the Redis clients they use.
func setupFanout(ctx context.Context, cfg *config.Config, log *zap.Logger) (chathub.Bus, chathub.Presence, func() error, error) {
	if cfg.FanoutMode == config.FanoutLocal {
		log.Warn("fan-out is local: sockets on other instances will not see emissions")
		return chathub.NewLocalBus(), chathub.NewLocalPresence(), func() error { return nil }, nil
	}

	newClient := func() *redis.Client {
		return redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	pub, sub, counters := newClient(), newClient(), newClient()
	closeAll := func() error {
		return multierr.Combine(pub.Close(), sub.Close(), counters.Close())
	}
	if err := pub.Ping(ctx).Err(); err != nil {
		return nil, nil, nil, multierr.Append(fmt.Errorf("connect redis: %w", err), closeAll())
	}

	bus := chathub.NewRedisBus(pub, sub, cfg.Redis.Prefix, log)
	presence := chathub.NewRedisPresence(counters, cfg.Redis.Prefix, config.PresenceKeyTTL)
	return bus, presence, counters.Close, nil
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := setupDatabase(cfg)
	if err != nil {
		return err
	}
	store := storage.NewStorageService(db)
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	bus, presence, closeRedis, err := setupFanout(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, bus.Close(), closeRedis()) }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	resolver := auth.NewJWTResolver(cfg.JWTSecret)
	svc := messaging.NewService(store, logger)
	hub := chathub.NewManagerService(chathub.NewRegistry(), bus, logger, m)
	gw, err := gateway.New(hub, presence, svc, store, resolver, logger, m, gateway.Options{
		EventsPerSecond: cfg.EventsPerSecond,
		EventsBurst:     cfg.EventsBurst,
	})
	if err != nil {
		return err
	}
	hubDone, err := gw.Start()
	if err != nil {
		return fmt.Errorf("subscribe fan-out: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = cfg.Origin != "*"
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	handler.NewHandler(gw, svc, resolver, cfg.Origin, logger).SetupRoutes(router, reg)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", server.Addr), zap.String("fanout", cfg.FanoutMode))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-hubDone:
		logger.Error("fan-out subscription ended")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return multierr.Combine(
		server.Shutdown(shutdownCtx),
		gw.Shutdown(shutdownCtx),
	)
}
