package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/streampainel/campaign-backend/internal/models"
)

// CampaignRepository defines the interface for campaign data access
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.Campaign) error
	GetByID(ctx context.Context, id int64) (*models.Campaign, error)
	GetWithStats(ctx context.Context, id int64) (*models.CampaignWithStats, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error)
	// TransitionStatus atomically moves the campaign to the target status,
	// but only if its current status is one of from. Returns false when the
	// guard did not match; the caller decides whether that is a conflict or
	// a benign race.
	TransitionStatus(ctx context.Context, id int64, to string, from ...string) (bool, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Campaign, error)
	Delete(ctx context.Context, id int64) error
}

// campaignRepository implements CampaignRepository using PostgreSQL
type campaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *sql.DB) CampaignRepository {
	return &campaignRepository{db: db}
}

const campaignColumns = `id, name, description, template_id, instance_name, recipient_filter,
	interval_seconds, scheduled_at, status, total_recipients, sent_count, success_count,
	failure_count, created_at, started_at, completed_at`

// Create inserts a new campaign
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign) error {
	filterJSON, err := json.Marshal(campaign.RecipientFilter)
	if err != nil {
		return fmt.Errorf("failed to marshal recipient filter: %w", err)
	}

	query := `
		INSERT INTO campaigns (name, description, template_id, instance_name, recipient_filter,
			interval_seconds, scheduled_at, status, total_recipients)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err = r.db.QueryRowContext(
		ctx,
		query,
		campaign.Name,
		campaign.Description,
		campaign.TemplateID,
		campaign.InstanceName,
		filterJSON,
		campaign.IntervalSeconds,
		campaign.ScheduledAt,
		campaign.Status,
		campaign.TotalRecipients,
	).Scan(&campaign.ID, &campaign.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	return nil
}

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*models.Campaign, error) {
	campaign := &models.Campaign{}
	var filterJSON []byte

	err := row.Scan(
		&campaign.ID,
		&campaign.Name,
		&campaign.Description,
		&campaign.TemplateID,
		&campaign.InstanceName,
		&filterJSON,
		&campaign.IntervalSeconds,
		&campaign.ScheduledAt,
		&campaign.Status,
		&campaign.TotalRecipients,
		&campaign.SentCount,
		&campaign.SuccessCount,
		&campaign.FailureCount,
		&campaign.CreatedAt,
		&campaign.StartedAt,
		&campaign.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(filterJSON) > 0 {
		if err := json.Unmarshal(filterJSON, &campaign.RecipientFilter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipient filter: %w", err)
		}
	}

	return campaign, nil
}

// GetByID retrieves a campaign by ID
func (r *campaignRepository) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE id = $1`, campaignColumns)

	campaign, err := scanCampaign(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return campaign, nil
}

// GetWithStats retrieves a campaign with its send record breakdown
func (r *campaignRepository) GetWithStats(ctx context.Context, id int64) (*models.CampaignWithStats, error) {
	campaign, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	statsQuery := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'sent') as sent,
			COUNT(*) FILTER (WHERE status = 'error') as error
		FROM send_records
		WHERE campaign_id = $1`

	var stats models.CampaignStats
	err = r.db.QueryRowContext(ctx, statsQuery, id).Scan(
		&stats.Total,
		&stats.Pending,
		&stats.Sent,
		&stats.Error,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign stats: %w", err)
	}

	return &models.CampaignWithStats{
		Campaign: *campaign,
		Stats:    stats,
	}, nil
}

// List retrieves campaigns with pagination and filtering
func (r *campaignRepository) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE 1=1`, campaignColumns)
	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	if filter.InstanceName != "" {
		query += fmt.Sprintf(" AND instance_name = $%d", argPos)
		countQuery += fmt.Sprintf(" AND instance_name = $%d", argPos)
		args = append(args, filter.InstanceName)
		argPos++
	}

	var totalCount int64
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, totalCount, nil
}

// TransitionStatus performs a guarded status update in a single statement.
// started_at is stamped on the first move into sending, completed_at on the
// move into a terminal status. The WHERE guard makes concurrent start/resume
// attempts race safely: exactly one caller observes true.
func (r *campaignRepository) TransitionStatus(ctx context.Context, id int64, to string, from ...string) (bool, error) {
	if !models.IsValidCampaignStatus(to) {
		return false, models.ErrInvalidInput(fmt.Sprintf("invalid status: %s", to))
	}
	if len(from) == 0 {
		return false, models.ErrInvalidInput("at least one source status is required")
	}

	query := `
		UPDATE campaigns
		SET status = $1,
			started_at = CASE
				WHEN $1 = 'sending' AND started_at IS NULL THEN now()
				ELSE started_at
			END,
			completed_at = CASE
				WHEN $1 IN ('completed', 'cancelled', 'error') AND completed_at IS NULL THEN now()
				ELSE completed_at
			END
		WHERE id = $2 AND status = ANY($3)`

	result, err := r.db.ExecContext(ctx, query, to, id, pq.Array(from))
	if err != nil {
		return false, fmt.Errorf("failed to transition campaign status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// ListDueScheduled retrieves scheduled campaigns whose start time has passed
func (r *campaignRepository) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at IS NOT NULL AND scheduled_at <= $1
		ORDER BY scheduled_at ASC`, campaignColumns)

	return r.queryCampaigns(ctx, query, now)
}

// ListByStatus retrieves all campaigns in the given status
func (r *campaignRepository) ListByStatus(ctx context.Context, status string) ([]*models.Campaign, error) {
	query := fmt.Sprintf(`SELECT %s FROM campaigns WHERE status = $1 ORDER BY id ASC`, campaignColumns)
	return r.queryCampaigns(ctx, query, status)
}

func (r *campaignRepository) queryCampaigns(ctx context.Context, query string, args ...interface{}) ([]*models.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := []*models.Campaign{}
	for rows.Next() {
		campaign, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan campaign: %w", err)
		}
		campaigns = append(campaigns, campaign)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating campaigns: %w", err)
	}

	return campaigns, nil
}

// Delete removes a campaign and, via FK cascade, its send records
func (r *campaignRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM campaigns WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("campaign with ID %d not found", id))
	}

	return nil
}
