package models

import (
	"fmt"
	"time"
)

// Campaign status constants
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSending   = "sending"
	CampaignStatusPaused    = "paused"
	CampaignStatusCompleted = "completed"
	CampaignStatusCancelled = "cancelled"
	CampaignStatusError     = "error"
)

// Campaign represents a bulk WhatsApp messaging job: one template, one
// instance, a filtered set of clients, dispatched one recipient at a time
// with a configured delay between sends.
type Campaign struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	TemplateID      int64           `json:"template_id"`
	InstanceName    string          `json:"instance_name"`
	RecipientFilter RecipientFilter `json:"recipient_filter"`
	IntervalSeconds int             `json:"interval_seconds"`
	ScheduledAt     *time.Time      `json:"scheduled_at,omitempty"`
	Status          string          `json:"status"`

	// Aggregate counters. SentCount == SuccessCount + FailureCount and
	// SentCount <= TotalRecipients after every dispatch outcome.
	TotalRecipients int64 `json:"total_recipients"`
	SentCount       int64 `json:"sent_count"`
	SuccessCount    int64 `json:"success_count"`
	FailureCount    int64 `json:"failure_count"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// RecipientFilter selects which clients a campaign targets. Zero values mean
// "no constraint" for that dimension.
type RecipientFilter struct {
	ClientStatus       string `json:"client_status,omitempty"`
	PlanName           string `json:"plan_name,omitempty"`
	ExpiringWithinDays int    `json:"expiring_within_days,omitempty"`
}

// CampaignFilter holds filtering options for listing campaigns
type CampaignFilter struct {
	Status       string
	InstanceName string
	Page         int
	PageSize     int
}

// CampaignStats holds the per-record breakdown for a campaign
type CampaignStats struct {
	Total   int64 `json:"total"`
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Error   int64 `json:"error"`
}

// CampaignWithStats combines campaign details with record statistics
type CampaignWithStats struct {
	Campaign
	Stats CampaignStats `json:"stats"`
}

// Validate performs validation on campaign data
func (c *Campaign) Validate() error {
	if c.Name == "" {
		return ErrInvalidInput("name is required")
	}
	if c.TemplateID <= 0 {
		return ErrInvalidInput("template_id is required")
	}
	if c.InstanceName == "" {
		return ErrInvalidInput("instance_name is required")
	}
	if c.IntervalSeconds < 0 {
		return ErrInvalidInput("interval_seconds cannot be negative")
	}
	if c.Status != "" && !IsValidCampaignStatus(c.Status) {
		return ErrInvalidInput(fmt.Sprintf("invalid status: %s", c.Status))
	}
	return nil
}

// IsValidCampaignStatus checks if the campaign status is valid
func IsValidCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusPaused, CampaignStatusCompleted, CampaignStatusCancelled,
		CampaignStatusError:
		return true
	default:
		return false
	}
}

// IsTerminalCampaignStatus reports whether a campaign in this status can
// never transition again.
func IsTerminalCampaignStatus(status string) bool {
	switch status {
	case CampaignStatusCompleted, CampaignStatusCancelled, CampaignStatusError:
		return true
	default:
		return false
	}
}

// StartableStatuses are the statuses a campaign may be started from.
// paused is not here: resuming is a separate, explicit action.
func StartableStatuses() []string {
	return []string{CampaignStatusDraft, CampaignStatusScheduled}
}

// CancellableStatuses are the statuses a campaign may be cancelled from.
// A sending campaign must be paused first.
func CancellableStatuses() []string {
	return []string{CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusPaused}
}

// Interval returns the inter-message pacing delay as a duration.
func (c *Campaign) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}
