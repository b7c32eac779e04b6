package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/repository"
	"github.com/streampainel/campaign-backend/internal/service"
)

// TemplateHandler handles message template HTTP requests
type TemplateHandler struct {
	templateRepo    repository.TemplateRepository
	templateService service.TemplateService
	logger          *slog.Logger
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(
	templateRepo repository.TemplateRepository,
	templateService service.TemplateService,
	logger *slog.Logger,
) *TemplateHandler {
	return &TemplateHandler{
		templateRepo:    templateRepo,
		templateService: templateService,
		logger:          logger,
	}
}

// Routes mounts the template routes
func (h *TemplateHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateTemplate)
	r.Get("/", h.ListTemplates)
	r.Get("/{id}", h.GetTemplate)
	r.Delete("/{id}", h.DeleteTemplate)
	r.Post("/{id}/preview", h.PreviewTemplate)
}

// CreateTemplate handles POST /templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var template models.MessageTemplate
	if err := json.NewDecoder(r.Body).Decode(&template); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	if err := h.templateService.ValidateTemplate(&template); err != nil {
		handleError(w, err, h.logger)
		return
	}

	if err := h.templateRepo.Create(r.Context(), &template); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, template)
}

// ListTemplates handles GET /templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templateRepo.List(r.Context())
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, map[string]interface{}{"data": templates})
}

// GetTemplate handles GET /templates/{id}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid template ID")
		return
	}

	template, err := h.templateRepo.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, template)
}

// DeleteTemplate handles DELETE /templates/{id}
func (h *TemplateHandler) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid template ID")
		return
	}

	if err := h.templateRepo.Delete(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// PreviewTemplate handles POST /templates/{id}/preview. It renders the
// template against sample client data so operators can check placeholder
// output before wiring the template into a campaign.
func (h *TemplateHandler) PreviewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := templateID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid template ID")
		return
	}

	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	template, err := h.templateRepo.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	rendered, err := h.templateService.Render(template, &client)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, rendered)
}

func templateID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
