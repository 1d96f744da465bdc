// Package main - операторская консоль сервиса статистики (statsctl).
//
// Подключается к тем же хранилищам, что и сервис, и выполняет
// административные операции: ротацию и сброс сезонов, очистку
// статистики и внеочередную консолидацию.
//
// Использование:
//
//	statsctl rotate-season   создать сезон текущего месяца и активировать
//	statsctl reset-season    удалить строки рейтингов всех сезонов
//	statsctl clear-stats     очистить журнал, корзины и рекорды
//	statsctl recompute       запустить проход консолидации сейчас
//	statsctl migrate         применить миграции схемы
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/NhanHo/screepsmod-stats/config"
	"github.com/NhanHo/screepsmod-stats/internal/application/command"
	"github.com/NhanHo/screepsmod-stats/internal/domain/stats"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/persistence/postgres"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/persistence/redis"
	"github.com/NhanHo/screepsmod-stats/internal/infrastructure/scheduler/jobs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: statsctl <rotate-season|reset-season|clear-stats|recompute|migrate>")
}

func run(ctx context.Context, cmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbConn.Close()

	if cmd == "migrate" {
		if err := postgres.NewMigrator(dbConn).Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Println("schema is up to date")
		return nil
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB

	redisCache, err := redis.NewCache(redisCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisCache.Close()

	registry := stats.DefaultRegistry()
	rawEventRepo := postgres.NewRawEventRepository(dbConn)
	bucketRepo := postgres.NewBucketRepository(dbConn, registry)
	recordRepo := postgres.NewMaxRecordRepository(dbConn)
	seasonRepo := postgres.NewSeasonRepository(dbConn)
	entryRepo := postgres.NewEntryRepository(dbConn)

	leaderboardCache := redis.NewLeaderboardCache(redisCache)
	seasonState := redis.NewSeasonState(redisCache)

	switch cmd {
	case "rotate-season":
		result, err := command.NewRotateSeasonHandler(seasonRepo, seasonState).
			Handle(ctx, command.RotateSeasonCommand{})
		if err != nil {
			return err
		}
		fmt.Printf("season %s (%s): created=%v activated=%v\n",
			result.Season.ID, result.Season.Name, result.Created, result.Activated)

	case "reset-season":
		if err := command.NewResetSeasonHandler(entryRepo, seasonRepo, leaderboardCache).Handle(ctx); err != nil {
			return err
		}
		fmt.Println("leaderboard entries wiped")

	case "clear-stats":
		result, err := command.NewClearStatsHandler(rawEventRepo, bucketRepo, recordRepo, registry).Handle(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("stats cleared: %d granularities reset\n", result.GranularitiesCleared)

	case "recompute":
		job := jobs.NewConsolidateStatsJob(
			rawEventRepo, bucketRepo, recordRepo,
			entryRepo, seasonState, leaderboardCache,
			registry, redis.NewConsolidationLock(redisCache), log,
			jobs.DefaultConsolidateStatsConfig(),
		)
		if err := job.Run(ctx); err != nil {
			return err
		}
		if s := job.LastStats(); s != nil {
			fmt.Printf("consolidated %d events in %s (pruned=%v)\n",
				s.EventsLoaded, s.Duration.Round(time.Millisecond), s.Pruned)
		}

	default:
		usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}
