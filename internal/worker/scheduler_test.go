package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/queue"
	"github.com/streampainel/campaign-backend/internal/service"
)

type mockCampaignService struct {
	started  []int64
	startErr map[int64]error
}

func (m *mockCampaignService) Start(ctx context.Context, id int64) (*service.LifecycleResult, error) {
	if err, ok := m.startErr[id]; ok {
		return nil, err
	}
	m.started = append(m.started, id)
	return &service.LifecycleResult{CampaignID: id, Status: models.CampaignStatusSending, Changed: true}, nil
}

// Unused methods for interface compliance
func (m *mockCampaignService) Create(ctx context.Context, req *service.CreateCampaignRequest) (*models.Campaign, error) {
	return nil, nil
}
func (m *mockCampaignService) GetByID(ctx context.Context, id int64) (*models.CampaignWithStats, error) {
	return nil, nil
}
func (m *mockCampaignService) List(ctx context.Context, filter models.CampaignFilter) (*service.CampaignListResult, error) {
	return nil, nil
}
func (m *mockCampaignService) Pause(ctx context.Context, id int64) (*service.LifecycleResult, error) {
	return nil, nil
}
func (m *mockCampaignService) Resume(ctx context.Context, id int64) (*service.LifecycleResult, error) {
	return nil, nil
}
func (m *mockCampaignService) Cancel(ctx context.Context, id int64) (*service.LifecycleResult, error) {
	return nil, nil
}
func (m *mockCampaignService) Delete(ctx context.Context, id int64) error { return nil }

type mockQueueClient struct {
	published []*models.CampaignJob
}

func (m *mockQueueClient) Publish(ctx context.Context, job *models.CampaignJob) error {
	m.published = append(m.published, job)
	return nil
}

func (m *mockQueueClient) Consume(ctx context.Context, handler queue.JobHandler, concurrency int) error {
	return nil
}
func (m *mockQueueClient) Close() error                     { return nil }
func (m *mockQueueClient) Health(ctx context.Context) error { return nil }

func newTestScheduler() (*Scheduler, *mockCampaignRepo, *mockCampaignService, *mockQueueClient) {
	campaignRepo := &mockCampaignRepo{campaigns: make(map[int64]*models.Campaign)}
	campaignSvc := &mockCampaignService{startErr: make(map[int64]error)}
	queueClient := &mockQueueClient{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := NewScheduler(campaignRepo, campaignSvc, queueClient, time.Minute, logger)
	return s, campaignRepo, campaignSvc, queueClient
}

func TestTickStartsDueCampaigns(t *testing.T) {
	s, campaignRepo, campaignSvc, _ := newTestScheduler()
	campaignRepo.due = []*models.Campaign{
		{ID: 1, Status: models.CampaignStatusScheduled},
		{ID: 2, Status: models.CampaignStatusScheduled},
	}

	s.tick(context.Background())

	if len(campaignSvc.started) != 2 {
		t.Fatalf("started %v, want campaigns 1 and 2", campaignSvc.started)
	}
	if campaignSvc.started[0] != 1 || campaignSvc.started[1] != 2 {
		t.Errorf("started %v, want [1 2]", campaignSvc.started)
	}
}

func TestTickContinuesPastFailures(t *testing.T) {
	s, campaignRepo, campaignSvc, _ := newTestScheduler()
	campaignRepo.due = []*models.Campaign{
		{ID: 1, Status: models.CampaignStatusScheduled},
		{ID: 2, Status: models.CampaignStatusScheduled},
	}
	campaignSvc.startErr[1] = models.ErrInstanceDisconnectedWithMsg("instance main is disconnected")

	s.tick(context.Background())

	// Campaign 1 stays scheduled for the next tick; campaign 2 still starts.
	if len(campaignSvc.started) != 1 || campaignSvc.started[0] != 2 {
		t.Errorf("started %v, want [2]", campaignSvc.started)
	}
}

func TestTickNothingDue(t *testing.T) {
	s, _, campaignSvc, _ := newTestScheduler()

	s.tick(context.Background())

	if len(campaignSvc.started) != 0 {
		t.Errorf("started %v, want none", campaignSvc.started)
	}
}

func TestRequeueInFlight(t *testing.T) {
	s, campaignRepo, _, queueClient := newTestScheduler()
	campaignRepo.inFlight = []*models.Campaign{
		{ID: 7, Status: models.CampaignStatusSending},
		{ID: 9, Status: models.CampaignStatusSending},
	}

	s.requeueInFlight(context.Background())

	if len(queueClient.published) != 2 {
		t.Fatalf("published %d jobs, want 2", len(queueClient.published))
	}
	if queueClient.published[0].CampaignID != 7 || queueClient.published[1].CampaignID != 9 {
		t.Errorf("requeued campaigns %d and %d, want 7 and 9",
			queueClient.published[0].CampaignID, queueClient.published[1].CampaignID)
	}
	for _, job := range queueClient.published {
		if job.JobID == "" {
			t.Error("requeued job has empty job_id")
		}
	}
}
