package models

import "time"

// Client account status constants
const (
	ClientStatusActive    = "active"
	ClientStatusExpired   = "expired"
	ClientStatusSuspended = "suspended"
)

// Client represents an IPTV subscriber that campaigns message over WhatsApp.
type Client struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	PlanName  string    `json:"plan_name"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientFilter holds filtering options for listing clients
type ClientFilter struct {
	Phone    string
	PlanName string
	Status   string
	Page     int
	PageSize int
}

// FullName returns the client's display name.
func (c *Client) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Validate performs basic validation on client data
func (c *Client) Validate() error {
	if c.Phone == "" {
		return ErrInvalidInput("phone is required")
	}
	if c.FirstName == "" {
		return ErrInvalidInput("first_name is required")
	}
	if c.Status != "" && !IsValidClientStatus(c.Status) {
		return ErrInvalidInput("invalid status: " + c.Status)
	}
	return nil
}

// IsValidClientStatus checks if the client status is valid
func IsValidClientStatus(status string) bool {
	switch status {
	case ClientStatusActive, ClientStatusExpired, ClientStatusSuspended:
		return true
	default:
		return false
	}
}
