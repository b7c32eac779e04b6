package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/service"
)

// CampaignHandler handles campaign HTTP requests
type CampaignHandler struct {
	campaignService service.CampaignService
	logger          *slog.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignService service.CampaignService, logger *slog.Logger) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		logger:          logger,
	}
}

// Routes mounts the campaign routes
func (h *CampaignHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateCampaign)
	r.Get("/", h.ListCampaigns)
	r.Get("/{id}", h.GetCampaign)
	r.Delete("/{id}", h.DeleteCampaign)
	r.Post("/{id}/start", h.StartCampaign)
	r.Post("/{id}/pause", h.PauseCampaign)
	r.Post("/{id}/resume", h.ResumeCampaign)
	r.Post("/{id}/cancel", h.CancelCampaign)
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCampaignRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	campaign, err := h.campaignService.Create(r.Context(), &req)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, campaign)
}

// ListCampaigns handles GET /campaigns
func (h *CampaignHandler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.CampaignFilter{
		Status:       query.Get("status"),
		InstanceName: query.Get("instance"),
		Page:         page,
		PageSize:     pageSize,
	}

	result, err := h.campaignService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

// GetCampaign handles GET /campaigns/{id}
func (h *CampaignHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	campaign, err := h.campaignService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, campaign)
}

// DeleteCampaign handles DELETE /campaigns/{id}
func (h *CampaignHandler) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	if err := h.campaignService.Delete(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// StartCampaign handles POST /campaigns/{id}/start
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.campaignService.Start)
}

// PauseCampaign handles POST /campaigns/{id}/pause
func (h *CampaignHandler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.campaignService.Pause)
}

// ResumeCampaign handles POST /campaigns/{id}/resume
func (h *CampaignHandler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.campaignService.Resume)
}

// CancelCampaign handles POST /campaigns/{id}/cancel
func (h *CampaignHandler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.campaignService.Cancel)
}

func (h *CampaignHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id int64) (*service.LifecycleResult, error),
) {
	id, err := campaignID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid campaign ID")
		return
	}

	result, err := action(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, result)
}

func campaignID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
