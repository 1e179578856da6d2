package handlers

import (
	"context"
	"net/http"

	"github.com/noesis-ai/noesis/internal/api"
	"github.com/noesis-ai/noesis/internal/api/middleware"
	"github.com/noesis-ai/noesis/internal/service"
)

type HealthService interface {
	Report(ctx context.Context, orgID string) (*service.HealthReport, error)
}

type HealthHandler struct {
	svc HealthService
}

func NewHealthHandler(svc HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Report(r.Context(), middleware.GetOrgID(r.Context()))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report)
}
