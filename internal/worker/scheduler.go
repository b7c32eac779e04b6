package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/queue"
	"github.com/streampainel/campaign-backend/internal/repository"
	"github.com/streampainel/campaign-backend/internal/service"
)

// Scheduler periodically starts scheduled campaigns whose time has passed.
// At boot it also requeues campaigns stuck in sending, so a worker crash
// mid-campaign resumes from the surviving send records.
type Scheduler struct {
	campaignRepo repository.CampaignRepository
	campaignSvc  service.CampaignService
	queueClient  queue.Client
	interval     time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewScheduler creates a scheduler
func NewScheduler(
	campaignRepo repository.CampaignRepository,
	campaignSvc service.CampaignService,
	queueClient queue.Client,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		campaignRepo: campaignRepo,
		campaignSvc:  campaignSvc,
		queueClient:  queueClient,
		interval:     interval,
		logger:       logger,
		now:          time.Now,
	}
}

// Run ticks until the context is cancelled
func (s *Scheduler) Run(ctx context.Context) {
	s.requeueInFlight(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts every scheduled campaign whose schedule time has passed.
// Failures (instance offline, queue down) leave the campaign scheduled and
// are retried on the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	due, err := s.campaignRepo.ListDueScheduled(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to list due campaigns", slog.String("error", err.Error()))
		return
	}

	for _, campaign := range due {
		result, err := s.campaignSvc.Start(ctx, campaign.ID)
		if err != nil {
			level := slog.LevelError
			if errors.Is(err, models.ErrInstanceDisconnected) {
				level = slog.LevelWarn
			}
			s.logger.Log(ctx, level, "failed to start scheduled campaign",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if result.Changed {
			s.logger.Info("scheduled campaign started",
				slog.Int64("campaign_id", campaign.ID),
			)
		}
	}
}

// requeueInFlight republishes campaigns left in sending by a previous worker
// run. The runner's in-process dedupe keeps this harmless when the loop is
// in fact still alive.
func (s *Scheduler) requeueInFlight(ctx context.Context) {
	inFlight, err := s.campaignRepo.ListByStatus(ctx, models.CampaignStatusSending)
	if err != nil {
		s.logger.Error("failed to list in-flight campaigns", slog.String("error", err.Error()))
		return
	}

	for _, campaign := range inFlight {
		job := &models.CampaignJob{
			JobID:      uuid.NewString(),
			CampaignID: campaign.ID,
		}
		if err := s.queueClient.Publish(ctx, job); err != nil {
			s.logger.Error("failed to requeue in-flight campaign",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		s.logger.Info("requeued in-flight campaign",
			slog.Int64("campaign_id", campaign.ID),
			slog.String("job_id", job.JobID),
		)
	}
}
