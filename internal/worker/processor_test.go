package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/service"
)

// Mock repositories for testing

type mockCampaignRepo struct {
	campaigns   map[int64]*models.Campaign
	transitions []string
	getErr      error

	due      []*models.Campaign
	inFlight []*models.Campaign
}

func (m *mockCampaignRepo) GetByID(ctx context.Context, id int64) (*models.Campaign, error) {
	if m.getErr != nil {
		err := m.getErr
		m.getErr = nil
		return nil, err
	}
	campaign, ok := m.campaigns[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("campaign not found")
	}
	copied := *campaign
	return &copied, nil
}

func (m *mockCampaignRepo) TransitionStatus(ctx context.Context, id int64, to string, from ...string) (bool, error) {
	campaign, ok := m.campaigns[id]
	if !ok {
		return false, models.ErrNotFoundWithMsg("campaign not found")
	}
	matched := false
	for _, s := range from {
		if campaign.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	campaign.Status = to
	now := time.Now()
	if to == models.CampaignStatusSending && campaign.StartedAt == nil {
		campaign.StartedAt = &now
	}
	if models.IsTerminalCampaignStatus(to) && campaign.CompletedAt == nil {
		campaign.CompletedAt = &now
	}
	m.transitions = append(m.transitions, to)
	return true, nil
}

// Unused methods for interface compliance
func (m *mockCampaignRepo) Create(ctx context.Context, campaign *models.Campaign) error { return nil }
func (m *mockCampaignRepo) GetWithStats(ctx context.Context, id int64) (*models.CampaignWithStats, error) {
	return nil, nil
}
func (m *mockCampaignRepo) List(ctx context.Context, filter models.CampaignFilter) ([]*models.Campaign, int64, error) {
	return nil, 0, nil
}
func (m *mockCampaignRepo) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Campaign, error) {
	return m.due, nil
}
func (m *mockCampaignRepo) ListByStatus(ctx context.Context, status string) ([]*models.Campaign, error) {
	return m.inFlight, nil
}
func (m *mockCampaignRepo) Delete(ctx context.Context, id int64) error { return nil }

type mockRecordRepo struct {
	records      map[int64]*models.SendRecord
	campaignRepo *mockCampaignRepo

	// countErr is returned (and cleared) on the next CountPending call.
	countErr error
}

func (m *mockRecordRepo) CountPending(ctx context.Context, campaignID int64, maxAttempts int) (int64, error) {
	if m.countErr != nil {
		err := m.countErr
		m.countErr = nil
		return 0, err
	}
	var count int64
	for _, record := range m.records {
		if record.CampaignID == campaignID && record.Eligible(maxAttempts) {
			count++
		}
	}
	return count, nil
}

func (m *mockRecordRepo) NextPending(ctx context.Context, campaignID int64, maxAttempts int) (*models.SendRecord, error) {
	var best *models.SendRecord
	for _, record := range m.records {
		if record.CampaignID != campaignID || !record.Eligible(maxAttempts) {
			continue
		}
		if best == nil ||
			record.AttemptCount < best.AttemptCount ||
			(record.AttemptCount == best.AttemptCount && record.ID < best.ID) {
			best = record
		}
	}
	if best == nil {
		return nil, models.ErrNotFoundWithMsg("no pending records")
	}
	copied := *best
	return &copied, nil
}

func (m *mockRecordRepo) FinalizeSuccess(ctx context.Context, recordID, campaignID int64, providerMessageID, messageText string) error {
	record, ok := m.records[recordID]
	if !ok {
		return models.ErrNotFoundWithMsg("record not found")
	}
	now := time.Now()
	record.Status = models.SendRecordStatusSent
	record.AttemptCount++
	record.ProviderMessageID = &providerMessageID
	record.MessageText = messageText
	record.DispatchedAt = &now

	campaign := m.campaignRepo.campaigns[campaignID]
	campaign.SentCount++
	campaign.SuccessCount++
	return nil
}

func (m *mockRecordRepo) FinalizeFailure(ctx context.Context, recordID, campaignID int64, errMsg string, final bool) error {
	record, ok := m.records[recordID]
	if !ok {
		return models.ErrNotFoundWithMsg("record not found")
	}
	record.AttemptCount++
	record.LastError = &errMsg
	if final {
		record.Status = models.SendRecordStatusError
		campaign := m.campaignRepo.campaigns[campaignID]
		campaign.SentCount++
		campaign.FailureCount++
	}
	return nil
}

// Unused methods for interface compliance
func (m *mockRecordRepo) CreateBatch(ctx context.Context, records []*models.SendRecord) error {
	return nil
}
func (m *mockRecordRepo) GetByID(ctx context.Context, id int64) (*models.SendRecord, error) {
	return nil, nil
}
func (m *mockRecordRepo) List(ctx context.Context, filter models.SendRecordFilter) ([]*models.SendRecord, int64, error) {
	return nil, 0, nil
}

type mockClientRepo struct {
	clients map[int64]*models.Client
}

func (m *mockClientRepo) GetByID(ctx context.Context, id int64) (*models.Client, error) {
	client, ok := m.clients[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("client not found")
	}
	copied := *client
	return &copied, nil
}

// Unused methods for interface compliance
func (m *mockClientRepo) Create(ctx context.Context, client *models.Client) error { return nil }
func (m *mockClientRepo) GetByPhone(ctx context.Context, phone string) (*models.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) List(ctx context.Context, filter models.ClientFilter) ([]*models.Client, int64, error) {
	return nil, 0, nil
}
func (m *mockClientRepo) ListByRecipientFilter(ctx context.Context, filter models.RecipientFilter, now time.Time) ([]*models.Client, error) {
	return nil, nil
}
func (m *mockClientRepo) Update(ctx context.Context, client *models.Client) error { return nil }
func (m *mockClientRepo) Delete(ctx context.Context, id int64) error              { return nil }

type mockTemplateRepo struct {
	templates map[int64]*models.MessageTemplate
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id int64) (*models.MessageTemplate, error) {
	template, ok := m.templates[id]
	if !ok {
		return nil, models.ErrNotFoundWithMsg("template not found")
	}
	return template, nil
}

// Unused methods for interface compliance
func (m *mockTemplateRepo) Create(ctx context.Context, template *models.MessageTemplate) error {
	return nil
}
func (m *mockTemplateRepo) List(ctx context.Context) ([]*models.MessageTemplate, error) {
	return nil, nil
}
func (m *mockTemplateRepo) Delete(ctx context.Context, id int64) error { return nil }

type sentMessage struct {
	number string
	text   string
	image  bool
}

type mockGateway struct {
	// statuses is consumed one per InstanceStatus call; once drained, status
	// is returned for every remaining call.
	status   string
	statuses []string

	// failNumbers makes SendText/SendImage fail for specific numbers.
	failNumbers map[string]error

	sent     []sentMessage
	attempts []string
}

func (m *mockGateway) InstanceStatus(ctx context.Context, instance string) string {
	if len(m.statuses) > 0 {
		next := m.statuses[0]
		m.statuses = m.statuses[1:]
		return next
	}
	if m.status == "" {
		return models.InstanceConnected
	}
	return m.status
}

func (m *mockGateway) send(number, text string, image bool) (string, error) {
	m.attempts = append(m.attempts, number)
	if err, ok := m.failNumbers[number]; ok {
		return "", err
	}
	m.sent = append(m.sent, sentMessage{number: number, text: text, image: image})
	return fmt.Sprintf("MSG-%d", len(m.sent)), nil
}

func (m *mockGateway) SendText(ctx context.Context, instance, number, text string) (string, error) {
	return m.send(number, text, false)
}

func (m *mockGateway) SendImage(ctx context.Context, instance, number, imageURL, caption string) (string, error) {
	return m.send(number, caption, true)
}

func (m *mockGateway) ConnectInstance(ctx context.Context, instance string) error    { return nil }
func (m *mockGateway) DisconnectInstance(ctx context.Context, instance string) error { return nil }
func (m *mockGateway) RestartInstance(ctx context.Context, instance string) error    { return nil }

// Test fixture

type processorFixture struct {
	processor    *Processor
	campaignRepo *mockCampaignRepo
	recordRepo   *mockRecordRepo
	clientRepo   *mockClientRepo
	templateRepo *mockTemplateRepo
	gateway      *mockGateway
	sleeps       []time.Duration
}

func newProcessorFixture(t *testing.T, maxAttempts int) *processorFixture {
	t.Helper()

	campaignRepo := &mockCampaignRepo{campaigns: make(map[int64]*models.Campaign)}
	recordRepo := &mockRecordRepo{
		records:      make(map[int64]*models.SendRecord),
		campaignRepo: campaignRepo,
	}
	clientRepo := &mockClientRepo{clients: make(map[int64]*models.Client)}
	templateRepo := &mockTemplateRepo{templates: make(map[int64]*models.MessageTemplate)}
	gw := &mockGateway{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	f := &processorFixture{
		campaignRepo: campaignRepo,
		recordRepo:   recordRepo,
		clientRepo:   clientRepo,
		templateRepo: templateRepo,
		gateway:      gw,
	}

	f.processor = NewProcessor(
		campaignRepo,
		recordRepo,
		clientRepo,
		templateRepo,
		service.NewTemplateService(),
		gw,
		maxAttempts,
		time.Second,
		"55",
		logger,
	)
	f.processor.sleep = func(ctx context.Context, d time.Duration) bool {
		f.sleeps = append(f.sleeps, d)
		return true
	}
	return f
}

func (f *processorFixture) seedCampaign(id int64, status string, intervalSeconds int) *models.Campaign {
	campaign := &models.Campaign{
		ID:              id,
		Name:            "renewal reminder",
		TemplateID:      1,
		InstanceName:    "main",
		IntervalSeconds: intervalSeconds,
		Status:          status,
	}
	f.campaignRepo.campaigns[id] = campaign
	return campaign
}

func (f *processorFixture) seedTemplate() {
	f.templateRepo.templates[1] = &models.MessageTemplate{
		ID:   1,
		Name: "renewal",
		Type: models.TemplateTypeText,
		Body: "Hi {first_name}, your plan expires soon",
	}
}

func (f *processorFixture) seedRecipient(clientID, recordID, campaignID int64, p string) {
	f.clientRepo.clients[clientID] = &models.Client{
		ID:        clientID,
		Phone:     p,
		FirstName: fmt.Sprintf("Client%d", clientID),
		Status:    models.ClientStatusActive,
	}
	f.recordRepo.records[recordID] = &models.SendRecord{
		ID:         recordID,
		CampaignID: campaignID,
		ClientID:   clientID,
		Status:     models.SendRecordStatusPending,
	}
}

func assertCounters(t *testing.T, campaign *models.Campaign, sent, success, failure int64) {
	t.Helper()
	if campaign.SentCount != sent || campaign.SuccessCount != success || campaign.FailureCount != failure {
		t.Errorf("counters = (%d, %d, %d), want (%d, %d, %d)",
			campaign.SentCount, campaign.SuccessCount, campaign.FailureCount,
			sent, success, failure)
	}
	if campaign.SentCount != campaign.SuccessCount+campaign.FailureCount {
		t.Errorf("sent_count %d != success_count %d + failure_count %d",
			campaign.SentCount, campaign.SuccessCount, campaign.FailureCount)
	}
}

func TestRunCompletesCampaign(t *testing.T) {
	f := newProcessorFixture(t, 3)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 30)
	f.seedTemplate()
	f.seedRecipient(10, 1, 1, "11999990001")
	f.seedRecipient(11, 2, 1, "11999990002")
	f.seedRecipient(12, 3, 1, "11999990003")

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %q, want %q", campaign.Status, models.CampaignStatusCompleted)
	}
	if campaign.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	assertCounters(t, campaign, 3, 3, 0)

	if len(f.gateway.sent) != 3 {
		t.Fatalf("sent %d messages, want 3", len(f.gateway.sent))
	}
	// Records drain in id order and every number gets the country code.
	wantNumbers := []string{"5511999990001", "5511999990002", "5511999990003"}
	for i, msg := range f.gateway.sent {
		if msg.number != wantNumbers[i] {
			t.Errorf("send %d went to %q, want %q", i, msg.number, wantNumbers[i])
		}
	}
	if got := f.gateway.sent[0].text; got != "Hi Client10, your plan expires soon" {
		t.Errorf("rendered text = %q", got)
	}

	// One pacing sleep per dispatched record.
	if len(f.sleeps) != 3 {
		t.Fatalf("slept %d times, want 3", len(f.sleeps))
	}
	for _, d := range f.sleeps {
		if d != 30*time.Second {
			t.Errorf("pacing sleep = %v, want 30s", d)
		}
	}
}

func TestRunRetriesAfterFresherRecords(t *testing.T) {
	f := newProcessorFixture(t, 3)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.seedTemplate()
	f.seedRecipient(10, 1, 1, "11999990001")
	f.seedRecipient(11, 2, 1, "11999990002")
	f.seedRecipient(12, 3, 1, "11999990003")
	f.gateway.failNumbers = map[string]error{
		"5511999990002": errors.New("gateway timeout"),
	}

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// The failing record is retried only after the fresh ones drain:
	// 1, 2(fail), 3, 2(fail), 2(fail, final).
	wantAttempts := []string{
		"5511999990001",
		"5511999990002",
		"5511999990003",
		"5511999990002",
		"5511999990002",
	}
	if len(f.gateway.attempts) != len(wantAttempts) {
		t.Fatalf("attempts = %v, want %v", f.gateway.attempts, wantAttempts)
	}
	for i, number := range f.gateway.attempts {
		if number != wantAttempts[i] {
			t.Fatalf("attempts = %v, want %v", f.gateway.attempts, wantAttempts)
		}
	}

	failed := f.recordRepo.records[2]
	if failed.Status != models.SendRecordStatusError {
		t.Errorf("record status = %q, want error", failed.Status)
	}
	if failed.AttemptCount != 3 {
		t.Errorf("attempt_count = %d, want 3", failed.AttemptCount)
	}
	if failed.LastError == nil || *failed.LastError != "gateway timeout" {
		t.Errorf("last_error = %v, want gateway timeout", failed.LastError)
	}

	if campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %q, want completed", campaign.Status)
	}
	assertCounters(t, campaign, 3, 2, 1)
}

func TestRunPausesWhenInstanceDisconnects(t *testing.T) {
	f := newProcessorFixture(t, 3)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.seedTemplate()
	f.seedRecipient(10, 1, 1, "11999990001")
	f.seedRecipient(11, 2, 1, "11999990002")
	f.gateway.statuses = []string{models.InstanceConnected, models.InstanceDisconnected}

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if campaign.Status != models.CampaignStatusPaused {
		t.Errorf("status = %q, want paused", campaign.Status)
	}
	if len(f.gateway.sent) != 1 {
		t.Errorf("sent %d messages before pausing, want 1", len(f.gateway.sent))
	}
	// The second record stays pending for the resume.
	if got := f.recordRepo.records[2].Status; got != models.SendRecordStatusPending {
		t.Errorf("remaining record status = %q, want pending", got)
	}
	assertCounters(t, campaign, 1, 1, 0)
}

func TestRunHaltsWhenNotSending(t *testing.T) {
	for _, status := range []string{
		models.CampaignStatusPaused,
		models.CampaignStatusCancelled,
		models.CampaignStatusCompleted,
	} {
		t.Run(status, func(t *testing.T) {
			f := newProcessorFixture(t, 3)
			campaign := f.seedCampaign(1, status, 10)
			f.seedTemplate()
			f.seedRecipient(10, 1, 1, "11999990001")

			if err := f.processor.Run(context.Background(), 1); err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if campaign.Status != status {
				t.Errorf("status = %q, want untouched %q", campaign.Status, status)
			}
			if len(f.gateway.attempts) != 0 {
				t.Errorf("dispatched %d messages, want 0", len(f.gateway.attempts))
			}
		})
	}
}

func TestRunMissingCampaign(t *testing.T) {
	f := newProcessorFixture(t, 3)

	err := f.processor.Run(context.Background(), 42)
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("Run() error = %v, want ErrNotFound", err)
	}
}

func TestRunErrorsWhenTemplateDeleted(t *testing.T) {
	f := newProcessorFixture(t, 3)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	// No template seeded: deleted between creation and dispatch.
	f.seedRecipient(10, 1, 1, "11999990001")

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if campaign.Status != models.CampaignStatusError {
		t.Errorf("status = %q, want error", campaign.Status)
	}
	if len(f.gateway.attempts) != 0 {
		t.Errorf("dispatched %d messages, want 0", len(f.gateway.attempts))
	}
}

func TestRunRecordsInvalidPhoneWithoutDispatch(t *testing.T) {
	f := newProcessorFixture(t, 1)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.seedTemplate()
	f.seedRecipient(10, 1, 1, "123")
	f.seedRecipient(11, 2, 1, "11999990002")

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	failed := f.recordRepo.records[1]
	if failed.Status != models.SendRecordStatusError {
		t.Errorf("record status = %q, want error", failed.Status)
	}
	if failed.LastError == nil {
		t.Fatal("last_error not set")
	}

	// The bad number never reached the gateway; the good one did.
	if len(f.gateway.attempts) != 1 {
		t.Fatalf("gateway attempts = %v, want one", f.gateway.attempts)
	}
	if campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %q, want completed", campaign.Status)
	}
	assertCounters(t, campaign, 2, 1, 1)
}

func TestRunRecordsDeletedRecipient(t *testing.T) {
	f := newProcessorFixture(t, 1)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.seedTemplate()
	f.recordRepo.records[1] = &models.SendRecord{
		ID:         1,
		CampaignID: 1,
		ClientID:   99, // no such client
		Status:     models.SendRecordStatusPending,
	}

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	failed := f.recordRepo.records[1]
	if failed.Status != models.SendRecordStatusError {
		t.Errorf("record status = %q, want error", failed.Status)
	}
	if campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %q, want completed", campaign.Status)
	}
	assertCounters(t, campaign, 1, 0, 1)
}

func TestRunBacksOffOnTransientError(t *testing.T) {
	f := newProcessorFixture(t, 3)
	campaign := f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.seedTemplate()
	f.seedRecipient(10, 1, 1, "11999990001")
	f.recordRepo.countErr = errors.New("connection reset")

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if campaign.Status != models.CampaignStatusCompleted {
		t.Errorf("status = %q, want completed", campaign.Status)
	}
	// First sleep is the transient backoff, then the pacing sleep.
	if len(f.sleeps) != 2 {
		t.Fatalf("slept %d times, want 2", len(f.sleeps))
	}
	if f.sleeps[0] != time.Second {
		t.Errorf("backoff sleep = %v, want 1s", f.sleeps[0])
	}
	assertCounters(t, campaign, 1, 1, 0)
}

func TestRunSendsImageTemplates(t *testing.T) {
	f := newProcessorFixture(t, 3)
	f.seedCampaign(1, models.CampaignStatusSending, 10)
	f.templateRepo.templates[1] = &models.MessageTemplate{
		ID:       1,
		Name:     "promo",
		Type:     models.TemplateTypeImage,
		Body:     "New plans for you, {first_name}",
		ImageURL: "https://cdn.example.com/promo.png",
	}
	f.seedRecipient(10, 1, 1, "11999990001")

	if err := f.processor.Run(context.Background(), 1); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.gateway.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.gateway.sent))
	}
	msg := f.gateway.sent[0]
	if !msg.image {
		t.Error("message sent as text, want image")
	}
	if msg.text != "New plans for you, Client10" {
		t.Errorf("caption = %q", msg.text)
	}
	record := f.recordRepo.records[1]
	if record.MessageText != "New plans for you, Client10" {
		t.Errorf("message_text = %q", record.MessageText)
	}
}
