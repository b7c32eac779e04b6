package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/streampainel/campaign-backend/internal/models"
)

// SendRecordRepository defines the interface for send record data access.
// FinalizeSuccess and FinalizeFailure update the record and the campaign's
// aggregate counters in one transaction, so the counters invariant holds at
// every observation point between iterations.
type SendRecordRepository interface {
	CreateBatch(ctx context.Context, records []*models.SendRecord) error
	GetByID(ctx context.Context, id int64) (*models.SendRecord, error)
	List(ctx context.Context, filter models.SendRecordFilter) ([]*models.SendRecord, int64, error)
	// NextPending selects the single next dispatchable record: lowest attempt
	// count first, then lowest id. Fresh recipients drain before any retry,
	// so one failing number cannot starve the rest.
	NextPending(ctx context.Context, campaignID int64, maxAttempts int) (*models.SendRecord, error)
	CountPending(ctx context.Context, campaignID int64, maxAttempts int) (int64, error)
	FinalizeSuccess(ctx context.Context, recordID, campaignID int64, providerMessageID, messageText string) error
	FinalizeFailure(ctx context.Context, recordID, campaignID int64, errMsg string, final bool) error
}

// sendRecordRepository implements SendRecordRepository using PostgreSQL
type sendRecordRepository struct {
	db *sql.DB
}

// NewSendRecordRepository creates a new send record repository
func NewSendRecordRepository(db *sql.DB) SendRecordRepository {
	return &sendRecordRepository{db: db}
}

const sendRecordColumns = `id, campaign_id, client_id, status, attempt_count, last_error,
	message_text, provider_message_id, dispatched_at, created_at`

// CreateBatch inserts the campaign's send records in a single transaction
func (r *sendRecordRepository) CreateBatch(ctx context.Context, records []*models.SendRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO send_records (campaign_id, client_id, status, attempt_count)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, record := range records {
		err := stmt.QueryRowContext(
			ctx,
			record.CampaignID,
			record.ClientID,
			record.Status,
			record.AttemptCount,
		).Scan(&record.ID, &record.CreatedAt)

		if err != nil {
			return fmt.Errorf("failed to insert send record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func scanSendRecord(row interface {
	Scan(dest ...interface{}) error
}) (*models.SendRecord, error) {
	record := &models.SendRecord{}
	err := row.Scan(
		&record.ID,
		&record.CampaignID,
		&record.ClientID,
		&record.Status,
		&record.AttemptCount,
		&record.LastError,
		&record.MessageText,
		&record.ProviderMessageID,
		&record.DispatchedAt,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByID retrieves a send record by ID
func (r *sendRecordRepository) GetByID(ctx context.Context, id int64) (*models.SendRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM send_records WHERE id = $1`, sendRecordColumns)

	record, err := scanSendRecord(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("send record with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get send record: %w", err)
	}

	return record, nil
}

// List retrieves send records with pagination and filtering
func (r *sendRecordRepository) List(ctx context.Context, filter models.SendRecordFilter) ([]*models.SendRecord, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM send_records WHERE 1=1`, sendRecordColumns)
	countQuery := `SELECT COUNT(*) FROM send_records WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.CampaignID > 0 {
		query += fmt.Sprintf(" AND campaign_id = $%d", argPos)
		countQuery += fmt.Sprintf(" AND campaign_id = $%d", argPos)
		args = append(args, filter.CampaignID)
		argPos++
	}

	if filter.ClientID > 0 {
		query += fmt.Sprintf(" AND client_id = $%d", argPos)
		countQuery += fmt.Sprintf(" AND client_id = $%d", argPos)
		args = append(args, filter.ClientID)
		argPos++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		countQuery += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	var totalCount int64
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count send records: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list send records: %w", err)
	}
	defer rows.Close()

	records := []*models.SendRecord{}
	for rows.Next() {
		record, err := scanSendRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan send record: %w", err)
		}
		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating send records: %w", err)
	}

	return records, totalCount, nil
}

// NextPending retrieves the next dispatchable record for a campaign
func (r *sendRecordRepository) NextPending(ctx context.Context, campaignID int64, maxAttempts int) (*models.SendRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM send_records
		WHERE campaign_id = $1 AND status = 'pending' AND attempt_count < $2
		ORDER BY attempt_count ASC, id ASC
		LIMIT 1`, sendRecordColumns)

	record, err := scanSendRecord(r.db.QueryRowContext(ctx, query, campaignID, maxAttempts))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("no pending send records for campaign %d", campaignID))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next pending record: %w", err)
	}

	return record, nil
}

// CountPending counts records still eligible for dispatch
func (r *sendRecordRepository) CountPending(ctx context.Context, campaignID int64, maxAttempts int) (int64, error) {
	query := `
		SELECT COUNT(*) FROM send_records
		WHERE campaign_id = $1 AND status = 'pending' AND attempt_count < $2`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, campaignID, maxAttempts).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending records: %w", err)
	}

	return count, nil
}

// FinalizeSuccess marks the record sent and bumps the campaign's sent and
// success counters in the same transaction.
func (r *sendRecordRepository) FinalizeSuccess(ctx context.Context, recordID, campaignID int64, providerMessageID, messageText string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE send_records
		SET status = 'sent', attempt_count = attempt_count + 1, last_error = NULL,
			provider_message_id = $1, message_text = $2, dispatched_at = now()
		WHERE id = $3 AND status = 'pending'`,
		providerMessageID, messageText, recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark record sent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("pending send record with ID %d not found", recordID))
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE campaigns
		SET sent_count = sent_count + 1, success_count = success_count + 1
		WHERE id = $1`,
		campaignID,
	)
	if err != nil {
		return fmt.Errorf("failed to update campaign counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FinalizeFailure records a failed attempt. When final is true the record is
// closed with status error and the campaign's sent and failure counters move;
// otherwise the record stays pending for a later pass.
func (r *sendRecordRepository) FinalizeFailure(ctx context.Context, recordID, campaignID int64, errMsg string, final bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	status := models.SendRecordStatusPending
	if final {
		status = models.SendRecordStatusError
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE send_records
		SET status = $1, attempt_count = attempt_count + 1, last_error = $2
		WHERE id = $3 AND status = 'pending'`,
		status, errMsg, recordID,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt failure: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("pending send record with ID %d not found", recordID))
	}

	if final {
		_, err = tx.ExecContext(ctx, `
			UPDATE campaigns
			SET sent_count = sent_count + 1, failure_count = failure_count + 1
			WHERE id = $1`,
			campaignID,
		)
		if err != nil {
			return fmt.Errorf("failed to update campaign counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
