package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tg-notify-bot/internal/adapters/cache"
	"tg-notify-bot/internal/adapters/snapshot"
	"tg-notify-bot/internal/infra/config"
	"tg-notify-bot/internal/infra/log"
	"tg-notify-bot/internal/infra/metrics"
	"tg-notify-bot/internal/infra/mlservice"
	"tg-notify-bot/internal/usecase/archive"
	"tg-notify-bot/internal/usecase/digest"
	"tg-notify-bot/internal/usecase/retention"
)

// Расписания повторяют исходные DAG'и: архивация каждые 6 часов,
// очистка раз в неделю, дайджест ежедневно в 09:00 UTC.
const (
	archiveSchedule   = "0 */6 * * *"
	retentionSchedule = "0 3 * * 0"
	digestSchedule    = "0 9 * * *"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	history := cache.NewHistory(rdb, cfg.History.Limit, cfg.History.TTL, logger)
	digestCache := cache.NewDigestResults(rdb, cfg.CacheTTL.Digest)
	snapshots := snapshot.NewStore(cfg.Snapshots.Dir)
	ml := mlservice.NewClient(cfg.MLService.URL, cfg.MLService.Timeout)

	archiveJob := archive.NewService(history, snapshots, cfg.History.Limit, logger)
	retentionJob := retention.NewService(snapshots, time.Duration(cfg.Snapshots.RetentionDays)*24*time.Hour, logger)
	digestJob := digest.NewService(history, snapshots, ml, digestCache, cfg.MLService.MaxTokens, cfg.CacheTTL.Digest, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	c := cron.New()
	mustSchedule(logger, c, archiveSchedule, func() {
		report, err := archiveJob.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: архивация не удалась")
			return
		}
		logger.Info().Int("rows", report.Rows).Str("path", report.Path).Msg("scheduler: архивация выполнена")
	})
	mustSchedule(logger, c, retentionSchedule, func() {
		report, err := retentionJob.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: очистка не удалась")
			return
		}
		logger.Info().Int("removed", report.Removed).Int("examined", report.Examined).Msg("scheduler: очистка выполнена")
	})
	mustSchedule(logger, c, digestSchedule, func() {
		report, err := digestJob.BatchDigest(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("scheduler: пакетный дайджест не удался")
			return
		}
		logger.Info().Int("ok", report.Succeeded()).Int("failed", report.Failed()).Msg("scheduler: пакетный дайджест выполнен")
	})

	c.Start()
	logger.Info().Msg("планировщик запущен")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка планировщика")
	cancel()
	<-c.Stop().Done()
}

func mustSchedule(logger zerolog.Logger, c *cron.Cron, spec string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		logger.Fatal().Err(err).Str("spec", spec).Msg("некорректное расписание")
	}
}
