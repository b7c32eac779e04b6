package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/streampainel/campaign-backend/internal/models"
)

// ClientRepository defines the interface for client data access
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id int64) (*models.Client, error)
	GetByPhone(ctx context.Context, phone string) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter) ([]*models.Client, int64, error)
	// ListByRecipientFilter resolves a campaign's target set at creation
	// time. Insertion order (id ASC) is preserved so send records inherit it.
	ListByRecipientFilter(ctx context.Context, filter models.RecipientFilter, now time.Time) ([]*models.Client, error)
	Update(ctx context.Context, client *models.Client) error
	Delete(ctx context.Context, id int64) error
}

// clientRepository implements ClientRepository using PostgreSQL
type clientRepository struct {
	db *sql.DB
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *sql.DB) ClientRepository {
	return &clientRepository{db: db}
}

const clientColumns = `id, phone, first_name, last_name, plan_name, status, expires_at, created_at`

// Create inserts a new client
func (r *clientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (phone, first_name, last_name, plan_name, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		client.Phone,
		client.FirstName,
		client.LastName,
		client.PlanName,
		client.Status,
		client.ExpiresAt,
	).Scan(&client.ID, &client.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	return nil
}

func scanClient(row interface {
	Scan(dest ...interface{}) error
}) (*models.Client, error) {
	client := &models.Client{}
	err := row.Scan(
		&client.ID,
		&client.Phone,
		&client.FirstName,
		&client.LastName,
		&client.PlanName,
		&client.Status,
		&client.ExpiresAt,
		&client.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// GetByID retrieves a client by ID
func (r *clientRepository) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE id = $1`, clientColumns)

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("client with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// GetByPhone retrieves a client by phone number
func (r *clientRepository) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE phone = $1`, clientColumns)

	client, err := scanClient(r.db.QueryRowContext(ctx, query, phone))
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("client with phone %s not found", phone))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client by phone: %w", err)
	}

	return client, nil
}

// List retrieves clients with pagination and filtering
func (r *clientRepository) List(ctx context.Context, filter models.ClientFilter) ([]*models.Client, int64, error) {
	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)

	query := fmt.Sprintf(`SELECT %s FROM clients WHERE 1=1`, clientColumns)
	countQuery := `SELECT COUNT(*) FROM clients WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if filter.Phone != "" {
		query += fmt.Sprintf(" AND phone LIKE $%d", argPos)
		countQuery += fmt.Sprintf(" AND phone LIKE $%d", argPos)
		args = append(args, "%"+filter.Phone+"%")
		argPos++
	}

	if filter.PlanName != "" {
		query += fmt.Sprintf(" AND plan_name = $%d", argPos)
		countQuery += fmt.Sprintf(" AND plan_name = $%d", argPos)
		args = append(args, filter.PlanName)
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
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	offset := models.CalculateOffset(filter.Page, filter.PageSize)
	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, totalCount, nil
}

// ListByRecipientFilter resolves the clients a campaign targets
func (r *clientRepository) ListByRecipientFilter(ctx context.Context, filter models.RecipientFilter, now time.Time) ([]*models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM clients WHERE 1=1`, clientColumns)
	args := []interface{}{}
	argPos := 1

	if filter.ClientStatus != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.ClientStatus)
		argPos++
	}

	if filter.PlanName != "" {
		query += fmt.Sprintf(" AND plan_name = $%d", argPos)
		args = append(args, filter.PlanName)
		argPos++
	}

	if filter.ExpiringWithinDays > 0 {
		cutoff := now.AddDate(0, 0, filter.ExpiringWithinDays)
		query += fmt.Sprintf(" AND expires_at > $%d AND expires_at <= $%d", argPos, argPos+1)
		args = append(args, now, cutoff)
		argPos += 2
	}

	query += " ORDER BY id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	defer rows.Close()

	clients := []*models.Client{}
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Update updates an existing client
func (r *clientRepository) Update(ctx context.Context, client *models.Client) error {
	query := `
		UPDATE clients
		SET phone = $1, first_name = $2, last_name = $3, plan_name = $4, status = $5, expires_at = $6
		WHERE id = $7`

	result, err := r.db.ExecContext(
		ctx,
		query,
		client.Phone,
		client.FirstName,
		client.LastName,
		client.PlanName,
		client.Status,
		client.ExpiresAt,
		client.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("client with ID %d not found", client.ID))
	}

	return nil
}

// Delete removes a client
func (r *clientRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM clients WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("client with ID %d not found", id))
	}

	return nil
}
