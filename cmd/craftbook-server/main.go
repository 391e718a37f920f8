package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"craftbook/backend/internal/config"
	"craftbook/backend/internal/service/scheduling"
	"craftbook/backend/internal/store"
	"craftbook/backend/internal/store/memory"
	"craftbook/backend/internal/store/postgres"
	"craftbook/backend/internal/store/redisstore"
	"craftbook/backend/internal/transport/admin"
	grpcTransport "craftbook/backend/internal/transport/grpc"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "craftbook-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "craftbook-server"),
	)
	slog.SetDefault(log)

	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("admin_addr", cfg.AdminAddr),
		slog.String("store", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	repo, closeStore, err := openStore(log, cfg)
	if err != nil {
		os.Exit(1)
	}
	defer closeStore()

	svc := scheduling.NewService(repo)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	grpcServer, healthServer := grpcTransport.NewServer(
		grpcTransport.NewSchedulingServer(svc, log),
		grpcTransport.ServerOptions{
			RequestTimeout: cfg.GRPCRequestTimeout,
			RateLimiter:    grpcTransport.NewPeerRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log),
			Metrics:        grpcTransport.NewMetrics(reg),
		},
	)

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		os.Exit(1)
	}

	adminServer := admin.NewServer(cfg.AdminAddr, admin.NewRouter(repo, cfg.StoreDriver, reg, log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
	log.Info("admin server started", slog.String("admin_addr", cfg.AdminAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, healthServer, adminServer, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, healthServer, adminServer, cfg.ShutdownTimeout)
			os.Exit(1)
		}
	}
}

// openStore connects the configured appointment store. Errors are logged
// here so main only has to exit.
func openStore(log *slog.Logger, cfg config.Config) (store.AppointmentRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		return memory.NewAppointmentRepo(), func() {}, nil

	case config.StoreDriverRedis:
		log.Info("connecting to redis", slog.String("redis_addr", cfg.RedisAddr), slog.Int("redis_db", cfg.RedisDB))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
			_ = client.Close()
			return nil, nil, err
		}
		repo := redisstore.NewAppointmentRepo(client, redisstore.Options{
			LockTTL:   cfg.RedisLockTTL,
			LockRetry: cfg.RedisLockRetry,
		})
		return repo, func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", slog.Any("err", err))
			}
		}, nil

	default:
		log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
		db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
			log.Error("database connection failed", args...)
			return nil, nil, err
		}
		closeDB := func() {
			if err := db.Close(); err != nil {
				log.Warn("database close failed", slog.Any("err", err))
			}
		}

		if cfg.DatabaseMigrate {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := postgres.Migrate(ctx, db); err != nil {
				log.Error("database migration failed", slog.Any("err", err))
				closeDB()
				return nil, nil, err
			}
			version, err := postgres.MigrationVersion(ctx, db)
			if err != nil {
				log.Warn("migration version lookup failed", slog.Any("err", err))
			} else {
				log.Info("database migrated", slog.Int64("version", version))
			}
		}

		return postgres.NewAppointmentRepo(db), closeDB, nil
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, hs *health.Server, adminServer *http.Server, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))
	hs.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := adminServer.Shutdown(ctx); err != nil {
		log.Warn("admin server shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
