package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/streampainel/campaign-backend/internal/models"
	"github.com/streampainel/campaign-backend/internal/service"
)

// ClientHandler handles client HTTP requests
type ClientHandler struct {
	clientService service.ClientService
	logger        *slog.Logger
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService service.ClientService, logger *slog.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logger:        logger,
	}
}

// Routes mounts the client routes
func (h *ClientHandler) Routes(r chi.Router) {
	r.Post("/", h.CreateClient)
	r.Get("/", h.ListClients)
	r.Get("/{id}", h.GetClient)
	r.Put("/{id}", h.UpdateClient)
	r.Delete("/{id}", h.DeleteClient)
}

// CreateClient handles POST /clients
func (h *ClientHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}

	created, err := h.clientService.Create(r.Context(), &client)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondCreated(w, created)
}

// ListClients handles GET /clients
func (h *ClientHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	pageSize, _ := strconv.Atoi(query.Get("page_size"))

	filter := models.ClientFilter{
		Phone:    query.Get("phone"),
		PlanName: query.Get("plan"),
		Status:   query.Get("status"),
		Page:     page,
		PageSize: pageSize,
	}

	clients, pagination, err := h.clientService.List(r.Context(), filter)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, map[string]interface{}{
		"data":       clients,
		"pagination": pagination,
	})
}

// GetClient handles GET /clients/{id}
func (h *ClientHandler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	client, err := h.clientService.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, client)
}

// UpdateClient handles PUT /clients/{id}
func (h *ClientHandler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON format")
		return
	}
	client.ID = id

	updated, err := h.clientService.Update(r.Context(), &client)
	if err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondSuccess(w, updated)
}

// DeleteClient handles DELETE /clients/{id}
func (h *ClientHandler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_ID", "Invalid client ID")
		return
	}

	if err := h.clientService.Delete(r.Context(), id); err != nil {
		handleError(w, err, h.logger)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}
