package processor

import (
	"context"

	"recipebox/pkg/logger"
	"recipebox/pkg/metrics"
	"recipebox/popularity-worker/internal/app/popularity/service"

	"github.com/robfig/cron/v3"
)

// Schedules - расписания задач в формате cron с секундами
type Schedules struct {
	FlushPopularity string
	AuditRatings    string
}

type CronScheduler struct {
	cron          *cron.Cron
	popularitySvc service.PopularityServiceInterface
	auditSvc      service.RatingAuditServiceInterface
}

func NewCronScheduler(popularitySvc service.PopularityServiceInterface, auditSvc service.RatingAuditServiceInterface) *CronScheduler {
	// SkipIfStillRunning: долгий аудит не запускается второй раз поверх первого
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &CronScheduler{
		cron:          c,
		popularitySvc: popularitySvc,
		auditSvc:      auditSvc,
	}
}

func (s *CronScheduler) Start(ctx context.Context, schedules Schedules) error {
	if _, err := s.cron.AddFunc(schedules.FlushPopularity, func() { s.flushPopularity(ctx) }); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(schedules.AuditRatings, func() { s.auditRatings(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info().
		Str("flush_schedule", schedules.FlushPopularity).
		Str("audit_schedule", schedules.AuditRatings).
		Msg("Cron scheduler started")

	// при старте сверяем рейтинги сразу, не дожидаясь первого срабатывания
	s.auditRatings(ctx)

	return nil
}

// Stop дожидается текущих задач и сбрасывает накопленные счетчики
func (s *CronScheduler) Stop(ctx context.Context) {
	logger.Info().Msg("Stopping cron scheduler...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.flushPopularity(ctx)
	logger.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) flushPopularity(ctx context.Context) {
	flushed, err := s.popularitySvc.Flush(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to flush ingredient popularity")
		return
	}

	metrics.PopularityFlushedIngredients.Add(float64(flushed))
	if flushed > 0 {
		logger.Info().Int("ingredients", flushed).Msg("Ingredient popularity flushed")
	}
}

func (s *CronScheduler) auditRatings(ctx context.Context) {
	repaired, err := s.auditSvc.Audit(ctx)
	if err != nil {
		logger.Error().Err(err).Int("repaired", repaired).Msg("Rating audit finished with errors")
		return
	}

	logger.Info().Int("repaired", repaired).Msg("Rating audit completed")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
