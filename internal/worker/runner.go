package worker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/streampainel/campaign-backend/internal/models"
)

// Runner dispatches campaign start jobs to the processor. The queue consumer
// bounds how many campaigns run in parallel; the runner's job is to make
// sure a redelivered start job for a campaign already looping in this
// process is dropped instead of spawning a second loop.
type Runner struct {
	processor *Processor
	logger    *slog.Logger

	mu      sync.Mutex
	running map[int64]struct{}
}

// NewRunner creates a runner around a processor
func NewRunner(processor *Processor, logger *slog.Logger) *Runner {
	return &Runner{
		processor: processor,
		logger:    logger,
		running:   make(map[int64]struct{}),
	}
}

// Handle is the queue job handler. It returns when the campaign loop ends.
func (r *Runner) Handle(ctx context.Context, job *models.CampaignJob) error {
	if !r.acquire(job.CampaignID) {
		r.logger.Info("campaign already running in this worker, dropping job",
			slog.String("job_id", job.JobID),
			slog.Int64("campaign_id", job.CampaignID),
		)
		return nil
	}
	defer r.release(job.CampaignID)

	return r.processor.Run(ctx, job.CampaignID)
}

func (r *Runner) acquire(campaignID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[campaignID]; ok {
		return false
	}
	r.running[campaignID] = struct{}{}
	return true
}

func (r *Runner) release(campaignID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, campaignID)
}
