package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streampainel/campaign-backend/internal/gateway"
	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/phone"
	"github.com/streampainel/campaign-backend/internal/repository"
	"github.com/streampainel/campaign-backend/internal/service"
)

// stepOutcome tells the loop what a single iteration decided.
type stepOutcome int

const (
	// outcomeDispatched: one record was finalized (sent or failed); pace
	// before the next iteration.
	outcomeDispatched stepOutcome = iota
	// outcomeHalted: campaign is no longer sending (paused/cancelled
	// externally); stop without touching it.
	outcomeHalted
	// outcomePaused: instance went offline, campaign was auto-paused.
	outcomePaused
	// outcomeCompleted: no eligible records remain, campaign completed.
	outcomeCompleted
	// outcomeErrored: unrecoverable campaign-level condition.
	outcomeErrored
	// outcomeRetry: nothing was dispatched, re-enter immediately.
	outcomeRetry
)

// Processor drives one campaign at a time from sending to completion, one
// recipient per iteration, re-reading persisted state every step. Persisted
// status is the cancellation mechanism: pause and cancel take effect within
// one iteration without any signalling channel.
type Processor struct {
	campaignRepo repository.CampaignRepository
	recordRepo   repository.SendRecordRepository
	clientRepo   repository.ClientRepository
	templateRepo repository.TemplateRepository
	renderer     service.TemplateService
	gateway      gateway.Client

	maxAttempts      int
	transientBackoff time.Duration
	defaultCountry   string
	logger           *slog.Logger

	// sleep returns false when the context was cancelled during the wait.
	// Replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewProcessor creates a campaign processor
func NewProcessor(
	campaignRepo repository.CampaignRepository,
	recordRepo repository.SendRecordRepository,
	clientRepo repository.ClientRepository,
	templateRepo repository.TemplateRepository,
	renderer service.TemplateService,
	gw gateway.Client,
	maxAttempts int,
	transientBackoff time.Duration,
	defaultCountry string,
	logger *slog.Logger,
) *Processor {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Processor{
		campaignRepo:     campaignRepo,
		recordRepo:       recordRepo,
		clientRepo:       clientRepo,
		templateRepo:     templateRepo,
		renderer:         renderer,
		gateway:          gw,
		maxAttempts:      maxAttempts,
		transientBackoff: transientBackoff,
		defaultCountry:   defaultCountry,
		logger:           logger,
		sleep:            sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run executes the drip loop for one campaign until it reaches a resting
// state. A missing campaign is the only error returned; everything else is
// absorbed: per-recipient failures are recorded on their send records, and
// unexpected iteration errors back off briefly and re-enter the loop.
func (p *Processor) Run(ctx context.Context, campaignID int64) error {
	log := p.logger.With(slog.Int64("campaign_id", campaignID))
	log.Info("campaign loop starting")

	for {
		outcome, interval, err := p.step(ctx, campaignID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return err
			}
			if ctx.Err() != nil {
				log.Info("campaign loop stopped by shutdown")
				return nil
			}
			log.Error("iteration failed, backing off",
				slog.String("error", err.Error()),
			)
			if !p.sleep(ctx, p.transientBackoff) {
				return nil
			}
			continue
		}

		switch outcome {
		case outcomeDispatched:
			if !p.sleep(ctx, interval) {
				log.Info("campaign loop stopped by shutdown")
				return nil
			}
		case outcomeRetry:
			// go straight back to the status re-read
		case outcomeHalted:
			log.Info("campaign no longer sending, loop stopped")
			return nil
		case outcomePaused:
			log.Warn("instance disconnected, campaign paused")
			return nil
		case outcomeCompleted:
			log.Info("campaign completed")
			return nil
		case outcomeErrored:
			log.Error("campaign failed on unrecoverable condition")
			return nil
		}
	}
}

// step performs one iteration of the drip loop: re-read status, check the
// instance, pick one record, render, dispatch, persist the outcome.
func (p *Processor) step(ctx context.Context, campaignID int64) (stepOutcome, time.Duration, error) {
	campaign, err := p.campaignRepo.GetByID(ctx, campaignID)
	if err != nil {
		return outcomeHalted, 0, err
	}

	if campaign.Status != models.CampaignStatusSending {
		return outcomeHalted, 0, nil
	}

	if status := p.gateway.InstanceStatus(ctx, campaign.InstanceName); status != models.InstanceConnected {
		if _, err := p.campaignRepo.TransitionStatus(ctx, campaignID,
			models.CampaignStatusPaused, models.CampaignStatusSending); err != nil {
			return outcomeHalted, 0, err
		}
		return outcomePaused, 0, nil
	}

	pending, err := p.recordRepo.CountPending(ctx, campaignID, p.maxAttempts)
	if err != nil {
		return outcomeHalted, 0, err
	}
	if pending == 0 {
		if _, err := p.campaignRepo.TransitionStatus(ctx, campaignID,
			models.CampaignStatusCompleted, models.CampaignStatusSending); err != nil {
			return outcomeHalted, 0, err
		}
		return outcomeCompleted, 0, nil
	}

	record, err := p.recordRepo.NextPending(ctx, campaignID, p.maxAttempts)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Raced with the count; the next pass will complete the campaign.
			return outcomeRetry, 0, nil
		}
		return outcomeHalted, 0, err
	}

	template, err := p.templateRepo.GetByID(ctx, campaign.TemplateID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Template deleted mid-run: no record can ever render again.
			if _, terr := p.campaignRepo.TransitionStatus(ctx, campaignID,
				models.CampaignStatusError, models.CampaignStatusSending); terr != nil {
				return outcomeHalted, 0, terr
			}
			return outcomeErrored, 0, nil
		}
		return outcomeHalted, 0, err
	}

	if err := p.dispatch(ctx, campaign, template, record); err != nil {
		return outcomeHalted, 0, err
	}

	return outcomeDispatched, campaign.Interval(), nil
}

// dispatch renders and sends one record, persisting the outcome. Returned
// errors are persistence failures only; render, normalization and gateway
// failures are recorded on the send record.
func (p *Processor) dispatch(ctx context.Context, campaign *models.Campaign, template *models.MessageTemplate, record *models.SendRecord) error {
	// Fetched fresh each attempt so client edits made mid-campaign apply.
	client, err := p.clientRepo.GetByID(ctx, record.ClientID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return p.recordFailure(ctx, campaign, record, "recipient no longer exists")
		}
		return err
	}

	rendered, err := p.renderer.Render(template, client)
	if err != nil {
		return p.recordFailure(ctx, campaign, record, err.Error())
	}

	number, err := phone.Normalize(client.Phone, p.defaultCountry)
	if err != nil {
		return p.recordFailure(ctx, campaign, record, fmt.Sprintf("invalid phone number: %v", err))
	}

	var providerID, messageText string
	if template.Type == models.TemplateTypeImage {
		messageText = rendered.Caption
		providerID, err = p.gateway.SendImage(ctx, campaign.InstanceName, number, template.ImageURL, rendered.Caption)
	} else {
		messageText = rendered.Text
		providerID, err = p.gateway.SendText(ctx, campaign.InstanceName, number, rendered.Text)
	}
	if err != nil {
		return p.recordFailure(ctx, campaign, record, err.Error())
	}

	if err := p.recordRepo.FinalizeSuccess(ctx, record.ID, campaign.ID, providerID, messageText); err != nil {
		return err
	}

	p.logger.Info("message sent",
		slog.Int64("campaign_id", campaign.ID),
		slog.Int64("record_id", record.ID),
		slog.String("provider_message_id", providerID),
	)

	return nil
}

// recordFailure books one failed attempt. At the attempt ceiling the record
// closes permanently and counts against the campaign; below it, the record
// stays pending and will be retried after all fresher records have drained.
func (p *Processor) recordFailure(ctx context.Context, campaign *models.Campaign, record *models.SendRecord, reason string) error {
	final := record.AttemptCount+1 >= p.maxAttempts

	if err := p.recordRepo.FinalizeFailure(ctx, record.ID, campaign.ID, reason, final); err != nil {
		return err
	}

	if final {
		p.logger.Error("record permanently failed",
			slog.Int64("campaign_id", campaign.ID),
			slog.Int64("record_id", record.ID),
			slog.Int("attempts", record.AttemptCount+1),
			slog.String("error", reason),
		)
	} else {
		p.logger.Warn("dispatch failed, will retry",
			slog.Int64("campaign_id", campaign.ID),
			slog.Int64("record_id", record.ID),
			slog.Int("attempts", record.AttemptCount+1),
			slog.Int("max_attempts", p.maxAttempts),
			slog.String("error", reason),
		)
	}

	return nil
}
