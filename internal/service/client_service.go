package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/repository"
)

// ClientService handles client business logic
type ClientService interface {
	Create(ctx context.Context, client *models.Client) (*models.Client, error)
	GetByID(ctx context.Context, id int64) (*models.Client, error)
	List(ctx context.Context, filter models.ClientFilter) ([]*models.Client, models.PaginationResult, error)
	Update(ctx context.Context, client *models.Client) (*models.Client, error)
	Delete(ctx context.Context, id int64) error
}

type clientService struct {
	clientRepo repository.ClientRepository
	logger     *slog.Logger
}

// NewClientService creates a new client service
func NewClientService(clientRepo repository.ClientRepository, logger *slog.Logger) ClientService {
	return &clientService{
		clientRepo: clientRepo,
		logger:     logger,
	}
}

// Create creates a new client
func (s *clientService) Create(ctx context.Context, client *models.Client) (*models.Client, error) {
	if err := client.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.clientRepo.GetByPhone(ctx, client.Phone); err == nil && existing != nil {
		return nil, models.ErrStateConflictWithMsg(
			fmt.Sprintf("client with phone %s already exists", client.Phone),
		)
	}

	if client.Status == "" {
		client.Status = models.ClientStatusActive
	}

	if err := s.clientRepo.Create(ctx, client); err != nil {
		s.logger.Error("failed to create client",
			slog.String("phone", client.Phone),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("client created",
		slog.Int64("client_id", client.ID),
		slog.String("phone", client.Phone),
	)

	return client, nil
}

// GetByID retrieves a client by ID
func (s *clientService) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	return s.clientRepo.GetByID(ctx, id)
}

// List retrieves clients with pagination
func (s *clientService) List(ctx context.Context, filter models.ClientFilter) ([]*models.Client, models.PaginationResult, error) {
	clients, totalCount, err := s.clientRepo.List(ctx, filter)
	if err != nil {
		return nil, models.PaginationResult{}, fmt.Errorf("failed to list clients: %w", err)
	}

	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)
	pagination := models.NewPaginationResult(filter.Page, filter.PageSize, totalCount)

	return clients, pagination, nil
}

// Update updates an existing client
func (s *clientService) Update(ctx context.Context, client *models.Client) (*models.Client, error) {
	if err := client.Validate(); err != nil {
		return nil, err
	}

	if err := s.clientRepo.Update(ctx, client); err != nil {
		s.logger.Error("failed to update client",
			slog.Int64("client_id", client.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	s.logger.Info("client updated", slog.Int64("client_id", client.ID))
	return client, nil
}

// Delete removes a client
func (s *clientService) Delete(ctx context.Context, id int64) error {
	if err := s.clientRepo.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete client",
			slog.Int64("client_id", id),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete client: %w", err)
	}

	s.logger.Info("client deleted", slog.Int64("client_id", id))
	return nil
}
