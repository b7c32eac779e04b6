package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/streampainel/campaign-backend/internal/models"
)

// TemplateRepository defines the interface for message template data access
type TemplateRepository interface {
	Create(ctx context.Context, template *models.MessageTemplate) error
	GetByID(ctx context.Context, id int64) (*models.MessageTemplate, error)
	List(ctx context.Context) ([]*models.MessageTemplate, error)
	Delete(ctx context.Context, id int64) error
}

// templateRepository implements TemplateRepository using PostgreSQL
type templateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sql.DB) TemplateRepository {
	return &templateRepository{db: db}
}

// Create inserts a new template
func (r *templateRepository) Create(ctx context.Context, template *models.MessageTemplate) error {
	query := `
		INSERT INTO templates (name, type, body, image_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx,
		query,
		template.Name,
		template.Type,
		template.Body,
		template.ImageURL,
	).Scan(&template.ID, &template.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by ID
func (r *templateRepository) GetByID(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	query := `
		SELECT id, name, type, body, image_url, created_at
		FROM templates
		WHERE id = $1`

	template := &models.MessageTemplate{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&template.ID,
		&template.Name,
		&template.Type,
		&template.Body,
		&template.ImageURL,
		&template.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, models.ErrNotFoundWithMsg(fmt.Sprintf("template with ID %d not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	return template, nil
}

// List retrieves all templates
func (r *templateRepository) List(ctx context.Context) ([]*models.MessageTemplate, error) {
	query := `
		SELECT id, name, type, body, image_url, created_at
		FROM templates
		ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	templates := []*models.MessageTemplate{}
	for rows.Next() {
		template := &models.MessageTemplate{}
		err := rows.Scan(
			&template.ID,
			&template.Name,
			&template.Type,
			&template.Body,
			&template.ImageURL,
			&template.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, template)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// Delete removes a template
func (r *templateRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM templates WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return models.ErrNotFoundWithMsg(fmt.Sprintf("template with ID %d not found", id))
	}

	return nil
}
