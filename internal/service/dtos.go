package service

import (
	"time"

	"github.com/streampainel/campaign-backend/internal/models"
)

// CreateCampaignRequest represents a request to create a campaign
type CreateCampaignRequest struct {
	Name            string                 `json:"name"`
	Description     string                 `json:"description"`
	TemplateID      int64                  `json:"template_id"`
	InstanceName    string                 `json:"instance_name"`
	RecipientFilter models.RecipientFilter `json:"recipient_filter"`
	IntervalSeconds int                    `json:"interval_seconds"`
	ScheduledAt     *time.Time             `json:"scheduled_at,omitempty"`
}

// Validate performs validation on the create campaign request
func (r *CreateCampaignRequest) Validate() error {
	if r.Name == "" {
		return models.ErrInvalidInput("name is required")
	}
	if r.TemplateID <= 0 {
		return models.ErrInvalidInput("template_id is required")
	}
	if r.InstanceName == "" {
		return models.ErrInvalidInput("instance_name is required")
	}
	if r.IntervalSeconds < 0 {
		return models.ErrInvalidInput("interval_seconds cannot be negative")
	}
	if r.RecipientFilter.ExpiringWithinDays < 0 {
		return models.ErrInvalidInput("expiring_within_days cannot be negative")
	}
	if r.RecipientFilter.ClientStatus != "" && !models.IsValidClientStatus(r.RecipientFilter.ClientStatus) {
		return models.ErrInvalidInput("invalid client_status in recipient_filter")
	}
	return nil
}

// LifecycleResult reports the outcome of a start/pause/resume/cancel action.
// Changed is false when the request was a no-op (pausing an already paused
// campaign, starting one already sending).
type LifecycleResult struct {
	CampaignID int64  `json:"campaign_id"`
	Status     string `json:"status"`
	Changed    bool   `json:"changed"`
}

// CampaignListResult represents paginated campaign list results
type CampaignListResult struct {
	Data       []*models.Campaign      `json:"data"`
	Pagination models.PaginationResult `json:"pagination"`
}
