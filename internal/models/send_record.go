package models

import "time"

// Send record status constants
const (
	SendRecordStatusPending = "pending"
	SendRecordStatusSent    = "sent"
	SendRecordStatusError   = "error"
)

// SendRecord is the per-recipient unit of work within a campaign. Created in
// bulk when the campaign is resolved, mutated only by the drip processor.
type SendRecord struct {
	ID                int64      `json:"id"`
	CampaignID        int64      `json:"campaign_id"`
	ClientID          int64      `json:"client_id"`
	Status            string     `json:"status"`
	AttemptCount      int        `json:"attempt_count"`
	LastError         *string    `json:"last_error,omitempty"`
	MessageText       string     `json:"message_text"`
	ProviderMessageID *string    `json:"provider_message_id,omitempty"`
	DispatchedAt      *time.Time `json:"dispatched_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// SendRecordFilter holds filtering options for listing send records
type SendRecordFilter struct {
	CampaignID int64
	ClientID   int64
	Status     string
	Page       int
	PageSize   int
}

// IsValidSendRecordStatus checks if the record status is valid
func IsValidSendRecordStatus(status string) bool {
	switch status {
	case SendRecordStatusPending, SendRecordStatusSent, SendRecordStatusError:
		return true
	default:
		return false
	}
}

// Eligible reports whether the record can still be dispatched: pending and
// under the attempt ceiling. Terminal records are never re-selected.
func (r *SendRecord) Eligible(maxAttempts int) bool {
	return r.Status == SendRecordStatusPending && r.AttemptCount < maxAttempts
}

// CampaignJob is the queue payload that tells a worker to drive a campaign.
// JobID exists for log correlation only.
type CampaignJob struct {
	JobID      string `json:"job_id"`
	CampaignID int64  `json:"campaign_id"`
}
