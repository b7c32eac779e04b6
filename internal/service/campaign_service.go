package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/streampainel/campaign-backend/internal/gateway"
	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/queue"
	"github.com/streampainel/campaign-backend/internal/repository"
)

// CampaignService owns the campaign lifecycle. Every transition is validated
// against the persisted status with a guarded update, so concurrent triggers
// race safely and an invalid transition is a rejected no-op.
type CampaignService interface {
	Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error)
	GetByID(ctx context.Context, id int64) (*models.CampaignWithStats, error)
	List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error)
	Start(ctx context.Context, id int64) (*LifecycleResult, error)
	Pause(ctx context.Context, id int64) (*LifecycleResult, error)
	Resume(ctx context.Context, id int64) (*LifecycleResult, error)
	Cancel(ctx context.Context, id int64) (*LifecycleResult, error)
	Delete(ctx context.Context, id int64) error
}

type campaignService struct {
	campaignRepo repository.CampaignRepository
	clientRepo   repository.ClientRepository
	recordRepo   repository.SendRecordRepository
	templateRepo repository.TemplateRepository
	templateSvc  TemplateService
	queueClient  queue.Client
	gateway      gateway.Client
	logger       *slog.Logger
	now          func() time.Time
}

// NewCampaignService creates a new campaign service
func NewCampaignService(
	campaignRepo repository.CampaignRepository,
	clientRepo repository.ClientRepository,
	recordRepo repository.SendRecordRepository,
	templateRepo repository.TemplateRepository,
	templateSvc TemplateService,
	queueClient queue.Client,
	gw gateway.Client,
	logger *slog.Logger,
) CampaignService {
	return &campaignService{
		campaignRepo: campaignRepo,
		clientRepo:   clientRepo,
		recordRepo:   recordRepo,
		templateRepo: templateRepo,
		templateSvc:  templateSvc,
		queueClient:  queueClient,
		gateway:      gw,
		logger:       logger,
		now:          time.Now,
	}
}

// Create resolves the recipient set and materializes one pending send record
// per client. Message text is not rendered here: the processor renders from
// fresh client data at dispatch time.
func (s *campaignService) Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	template, err := s.templateRepo.GetByID(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}
	if err := s.templateSvc.ValidateTemplate(template); err != nil {
		return nil, err
	}

	clients, err := s.clientRepo.ListByRecipientFilter(ctx, req.RecipientFilter, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(clients) == 0 {
		return nil, models.ErrInvalidInput("recipient filter matched no clients")
	}

	status := models.CampaignStatusDraft
	if req.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	}

	campaign := &models.Campaign{
		Name:            req.Name,
		Description:     req.Description,
		TemplateID:      req.TemplateID,
		InstanceName:    req.InstanceName,
		RecipientFilter: req.RecipientFilter,
		IntervalSeconds: req.IntervalSeconds,
		ScheduledAt:     req.ScheduledAt,
		Status:          status,
		TotalRecipients: int64(len(clients)),
	}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		s.logger.Error("failed to create campaign",
			slog.String("name", req.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	records := make([]*models.SendRecord, 0, len(clients))
	for _, client := range clients {
		records = append(records, &models.SendRecord{
			CampaignID: campaign.ID,
			ClientID:   client.ID,
			Status:     models.SendRecordStatusPending,
		})
	}

	if err := s.recordRepo.CreateBatch(ctx, records); err != nil {
		s.logger.Error("failed to create send records, rolling back campaign",
			slog.Int64("campaign_id", campaign.ID),
			slog.String("error", err.Error()),
		)
		if delErr := s.campaignRepo.Delete(ctx, campaign.ID); delErr != nil {
			s.logger.Error("failed to roll back campaign",
				slog.Int64("campaign_id", campaign.ID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("failed to create send records: %w", err)
	}

	s.logger.Info("campaign created",
		slog.Int64("campaign_id", campaign.ID),
		slog.String("name", campaign.Name),
		slog.String("status", campaign.Status),
		slog.Int("recipients", len(clients)),
	)

	return campaign, nil
}

// GetByID retrieves a campaign with counters and record statistics
func (s *campaignService) GetByID(ctx context.Context, id int64) (*models.CampaignWithStats, error) {
	return s.campaignRepo.GetWithStats(ctx, id)
}

// List retrieves campaigns with pagination
func (s *campaignService) List(ctx context.Context, filter models.CampaignFilter) (*CampaignListResult, error) {
	campaigns, totalCount, err := s.campaignRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	models.ValidateAndSetDefaults(&filter.Page, &filter.PageSize)
	pagination := models.NewPaginationResult(filter.Page, filter.PageSize, totalCount)

	return &CampaignListResult{
		Data:       campaigns,
		Pagination: pagination,
	}, nil
}

// Start moves a draft or scheduled campaign into sending and enqueues it for
// the worker. Starting a campaign that is already sending is reported as a
// no-op, not an error: the loop is running.
func (s *campaignService) Start(ctx context.Context, id int64) (*LifecycleResult, error) {
	return s.begin(ctx, id, models.StartableStatuses())
}

// Resume moves a paused campaign back into sending
func (s *campaignService) Resume(ctx context.Context, id int64) (*LifecycleResult, error) {
	return s.begin(ctx, id, []string{models.CampaignStatusPaused})
}

func (s *campaignService) begin(ctx context.Context, id int64, from []string) (*LifecycleResult, error) {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if campaign.Status == models.CampaignStatusSending {
		return &LifecycleResult{CampaignID: id, Status: campaign.Status, Changed: false}, nil
	}

	if campaign.TotalRecipients == 0 {
		return nil, models.ErrInvalidInput("campaign has no recipients")
	}

	if status := s.gateway.InstanceStatus(ctx, campaign.InstanceName); status != models.InstanceConnected {
		return nil, models.ErrInstanceDisconnectedWithMsg(
			fmt.Sprintf("instance %s is %s", campaign.InstanceName, status),
		)
	}

	ok, err := s.campaignRepo.TransitionStatus(ctx, id, models.CampaignStatusSending, from...)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Guard did not match: someone else transitioned first. Re-read and
		// decide whether that was a concurrent start or a real conflict.
		current, err := s.campaignRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if current.Status == models.CampaignStatusSending {
			return &LifecycleResult{CampaignID: id, Status: current.Status, Changed: false}, nil
		}
		return nil, models.ErrStateConflictWithMsg(
			fmt.Sprintf("campaign with status '%s' cannot be started", current.Status),
		)
	}

	job := &models.CampaignJob{
		JobID:      uuid.NewString(),
		CampaignID: id,
	}
	if err := s.queueClient.Publish(ctx, job); err != nil {
		// The campaign is marked sending but no worker will pick it up until
		// the scheduler requeues in-flight campaigns. Surface the error.
		s.logger.Error("failed to enqueue campaign start",
			slog.Int64("campaign_id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to enqueue campaign start: %w", err)
	}

	s.logger.Info("campaign started",
		slog.Int64("campaign_id", id),
		slog.String("job_id", job.JobID),
	)

	return &LifecycleResult{CampaignID: id, Status: models.CampaignStatusSending, Changed: true}, nil
}

// Pause halts a sending campaign. The processor observes the persisted
// status within one iteration and stops. Pausing an already paused campaign
// is a no-op success.
func (s *campaignService) Pause(ctx context.Context, id int64) (*LifecycleResult, error) {
	ok, err := s.campaignRepo.TransitionStatus(ctx, id, models.CampaignStatusPaused, models.CampaignStatusSending)
	if err != nil {
		return nil, err
	}
	if ok {
		s.logger.Info("campaign paused", slog.Int64("campaign_id", id))
		return &LifecycleResult{CampaignID: id, Status: models.CampaignStatusPaused, Changed: true}, nil
	}

	current, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.CampaignStatusPaused {
		return &LifecycleResult{CampaignID: id, Status: current.Status, Changed: false}, nil
	}
	return nil, models.ErrStateConflictWithMsg(
		fmt.Sprintf("campaign with status '%s' cannot be paused", current.Status),
	)
}

// Cancel moves a non-terminal, non-sending campaign to cancelled. A sending
// campaign must be paused first.
func (s *campaignService) Cancel(ctx context.Context, id int64) (*LifecycleResult, error) {
	ok, err := s.campaignRepo.TransitionStatus(ctx, id, models.CampaignStatusCancelled, models.CancellableStatuses()...)
	if err != nil {
		return nil, err
	}
	if ok {
		s.logger.Info("campaign cancelled", slog.Int64("campaign_id", id))
		return &LifecycleResult{CampaignID: id, Status: models.CampaignStatusCancelled, Changed: true}, nil
	}

	current, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == models.CampaignStatusCancelled {
		return &LifecycleResult{CampaignID: id, Status: current.Status, Changed: false}, nil
	}
	if current.Status == models.CampaignStatusSending {
		return nil, models.ErrStateConflictWithMsg("campaign is sending, pause it before cancelling")
	}
	return nil, models.ErrStateConflictWithMsg(
		fmt.Sprintf("campaign with status '%s' cannot be cancelled", current.Status),
	)
}

// Delete removes a campaign and its send records. Forbidden while sending.
func (s *campaignService) Delete(ctx context.Context, id int64) error {
	campaign, err := s.campaignRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if campaign.Status == models.CampaignStatusSending {
		return models.ErrStateConflictWithMsg("campaign is sending, pause it before deleting")
	}

	if err := s.campaignRepo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("campaign deleted", slog.Int64("campaign_id", id))
	return nil
}
