package queue

import (
	"context"

	"github.com/streampainel/campaign-backend/internal/models"
)

// Client defines the interface for the campaign start queue
type Client interface {
	// Publish enqueues a start job for a campaign
	Publish(ctx context.Context, job *models.CampaignJob) error

	// Consume receives start jobs and hands them to the handler.
	// concurrency bounds how many campaigns are driven simultaneously.
	Consume(ctx context.Context, handler JobHandler, concurrency int) error

	// Close closes the queue connection
	Close() error

	// Health checks if the queue is healthy
	Health(ctx context.Context) error
}

// JobHandler processes one campaign start job. It returns once the campaign
// loop ends (completed, paused, cancelled, or the job was a duplicate).
type JobHandler func(ctx context.Context, job *models.CampaignJob) error
