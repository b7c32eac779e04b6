package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/streampainel/campaign-backend/internal/gateway"
)

// InstanceHandler proxies WhatsApp instance operations to the gateway
type InstanceHandler struct {
	gateway gateway.Client
	logger  *slog.Logger
}

// NewInstanceHandler creates a new instance handler
func NewInstanceHandler(gw gateway.Client, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{
		gateway: gw,
		logger:  logger,
	}
}

// Routes mounts the instance routes
func (h *InstanceHandler) Routes(r chi.Router) {
	r.Get("/{name}/status", h.InstanceStatus)
	r.Post("/{name}/connect", h.ConnectInstance)
	r.Post("/{name}/disconnect", h.DisconnectInstance)
	r.Post("/{name}/restart", h.RestartInstance)
}

// InstanceStatus handles GET /instances/{name}/status
func (h *InstanceHandler) InstanceStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Instance name is required")
		return
	}

	status := h.gateway.InstanceStatus(r.Context(), name)

	respondSuccess(w, map[string]string{
		"instance": name,
		"status":   status,
	})
}

// ConnectInstance handles POST /instances/{name}/connect
func (h *InstanceHandler) ConnectInstance(w http.ResponseWriter, r *http.Request) {
	h.instanceAction(w, r, "connect", h.gateway.ConnectInstance)
}

// DisconnectInstance handles POST /instances/{name}/disconnect
func (h *InstanceHandler) DisconnectInstance(w http.ResponseWriter, r *http.Request) {
	h.instanceAction(w, r, "disconnect", h.gateway.DisconnectInstance)
}

// RestartInstance handles POST /instances/{name}/restart
func (h *InstanceHandler) RestartInstance(w http.ResponseWriter, r *http.Request) {
	h.instanceAction(w, r, "restart", h.gateway.RestartInstance)
}

func (h *InstanceHandler) instanceAction(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	fn func(ctx context.Context, instance string) error,
) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Instance name is required")
		return
	}

	if err := fn(r.Context(), name); err != nil {
		h.logger.Error("instance action failed",
			slog.String("instance", name),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		respondError(w, http.StatusBadGateway, "GATEWAY_ERROR", "Gateway request failed")
		return
	}

	respondSuccess(w, map[string]string{
		"instance": name,
		"action":   action,
	})
}
