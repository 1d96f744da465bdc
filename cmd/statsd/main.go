// Package main - точка входа сервиса статистики (statsd).
//
// Сервис принимает инкременты счётчиков из игрового цикла, копит их в
// аккумуляторе, периодически сбрасывает в журнал и консолидирует журнал
// в корзины, рекорды и сезонные рейтинги. Наружу отдаёт REST API:
// рейтинги, сезоны, статистику игроков и комнат, overlay карты мира.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NhanHo/screepsmod-stats/config"
	"github.com/NhanHo/screepsmod-stats/internal/application/command"
	"github.com/NhanHo/screepsmod-stats/internal/application/query"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/collector"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/persistence/postgres"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/persistence/redis"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/scheduler"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/NhanHo/screepsmod-stats/internal/interface/http"
	"github.com/NhanHo/screepsmod-stats/pkg/circuitbreaker"
	"github.com/NhanHo/screepsmod-stats/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	appLog := logger.Default().WithLevel(logger.ParseLevel(cfg.Observability.LogLevel))
	log.Info("starting stats engine",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. POSTGRES: СОЕДИНЕНИЕ И МИГРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if err := dbConn.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS
	// ─────────────────────────────────────────────────────────────────────────
	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()
	log.Info("redis connection established")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. РЕПОЗИТОРИИ И ДОМЕННЫЕ СЕРВИСЫ
	// ─────────────────────────────────────────────────────────────────────────
	registry := stats.DefaultRegistry()

	rawEventRepo := postgres.NewRawEventRepository(dbConn)
	bucketRepo := postgres.NewBucketRepository(dbConn, registry)
	recordRepo := postgres.NewMaxRecordRepository(dbConn)
	seasonRepo := postgres.NewSeasonRepository(dbConn)
	entryRepo := postgres.NewEntryRepository(dbConn)
	worldRepo := postgres.NewWorldRepository(dbConn)

	leaderboardCache := redis.NewLeaderboardCache(redisCache)
	seasonState := redis.NewSeasonState(redisCache)
	consolidationLock := redis.NewConsolidationLock(redisCache)

	accumulator := collector.New(rawEventRepo, appLog)

	cacheBreaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state change",
			"breaker", name, "from", from.String(), "to", to.String())
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ФОНОВЫЕ ДЖОБЫ И ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	flushJob := jobs.NewFlushStatsJob(accumulator, log)
	consolidateJob := jobs.NewConsolidateStatsJob(
		rawEventRepo, bucketRepo, recordRepo,
		entryRepo, seasonState, leaderboardCache,
		registry, consolidationLock, log,
		jobs.ConsolidateStatsConfig{Timeout: cfg.Stats.ConsolidationTimeout},
	)
	rotateJob := jobs.NewRotateSeasonJob(seasonRepo, seasonState, log)

	// Джобы регистрируются всегда: ручной запуск через RunNow должен
	// работать и при выключенном расписании.
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
	sched.OnJobError(func(job string, err error) {
		appLog.Error("background job failed",
			logger.String("job", job),
			logger.Err(err),
		)
	})
	if err := sched.Register(flushJob, scheduler.NewIntervalSchedule(cfg.Stats.FlushInterval)); err != nil {
		return fmt.Errorf("failed to register flush job: %w", err)
	}
	if err := sched.Register(consolidateJob, scheduler.NewIntervalSchedule(cfg.Stats.ConsolidationInterval)); err != nil {
		return fmt.Errorf("failed to register consolidation job: %w", err)
	}
	if err := sched.Register(rotateJob, scheduler.NewIntervalSchedule(cfg.Stats.SeasonCheckInterval)); err != nil {
		return fmt.Errorf("failed to register rotation job: %w", err)
	}
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
		log.Info("scheduler started",
			"flush_interval", cfg.Stats.FlushInterval.String(),
			"consolidation_interval", cfg.Stats.ConsolidationInterval.String(),
		)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. CQRS ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpapi.Dependencies{
		GetLeaderboard:       query.NewGetLeaderboardHandler(entryRepo, seasonState, leaderboardCache, worldRepo, cacheBreaker),
		FindLeaderboardEntry: query.NewFindLeaderboardEntryHandler(entryRepo),
		ListSeasons:          query.NewListSeasonsHandler(seasonRepo),
		GetUserStats:         query.NewGetUserStatsHandler(bucketRepo, registry),
		GetRoomOverview:      query.NewGetRoomOverviewHandler(worldRepo, bucketRepo, recordRepo, registry),
		GetMapStats:          query.NewGetMapStatsHandler(worldRepo, bucketRepo, registry),

		RecordMetrics:  command.NewRecordMetricHandler(accumulator),
		RotateSeason:   command.NewRotateSeasonHandler(seasonRepo, seasonState),
		ResetSeason:    command.NewResetSeasonHandler(entryRepo, seasonRepo, leaderboardCache),
		RecomputeStats: command.NewRecomputeStatsHandler(&consolidationTrigger{sched: sched, jobName: consolidateJob.Name()}),
		FlushStats:     command.NewFlushStatsHandler(accumulator),
		ClearStats:     command.NewClearStatsHandler(rawEventRepo, bucketRepo, recordRepo, registry),

		Logger:        appLog,
		HealthChecker: &backendHealth{db: dbConn, cache: redisCache},
		Jobs:          sched,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableMetrics = cfg.Observability.MetricsEnabled
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	httpCfg.APIKeys = cfg.HTTP.APIKeys

	server := httpapi.NewServer(httpCfg, deps)
	serverErr := server.StartAsync()
	log.Info("stats engine is running", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}

	// Последний сброс аккумулятора: накопленные счётчики не должны
	// пропасть при рестарте.
	if err := accumulator.Drain(shutdownCtx); err != nil {
		log.Warn("failed to drain accumulator", "error", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// consolidationTrigger запускает внеочередной проход консолидации через
// планировщик, чтобы ручной запуск попадал в учёт и историю джоб.
type consolidationTrigger struct {
	sched   *scheduler.Scheduler
	jobName string
}

func (t *consolidationTrigger) RunConsolidation(ctx context.Context) error {
	_, err := t.sched.RunNow(ctx, t.jobName)
	return err
}

// backendHealth проверяет доступность хранилищ для health endpoint'а.
type backendHealth struct {
	db    *postgres.Connection
	cache *redis.Cache
}

func (h *backendHealth) Check(ctx context.Context) httpapi.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	status := httpapi.HealthStatus{
		Healthy:    true,
		Components: map[string]string{"postgres": "ok", "redis": "ok"},
	}
	if err := h.db.Ping(ctx); err != nil {
		status.Healthy = false
		status.Components["postgres"] = err.Error()
	}
	if err := h.cache.Ping(ctx); err != nil {
		status.Healthy = false
		status.Components["redis"] = err.Error()
	}
	return status
}

// setupLogger настраивает структурированное логирование.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)

	return log
}
