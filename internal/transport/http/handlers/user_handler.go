package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vedran77/lounge/internal/service"
	"github.com/vedran77/lounge/internal/transport/http/middleware"
	"github.com/vedran77/lounge/pkg/validator"
)

type UserHandler struct {
	presenceService *service.PresenceService
	log             *slog.Logger
}

func NewUserHandler(presenceService *service.PresenceService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		presenceService: presenceService,
		log:             logger,
	}
}

type updateStatusRequest struct {
	IsOnline *bool   `json:"is_online" validate:"required"`
	Status   *string `json:"status" validate:"omitempty,max=140"`
}

// UpdateStatus sets the caller's presence the same way the socket's
// update-status event does, broadcast included.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.Struct(req); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	user, err := h.presenceService.SetStatus(r.Context(), userID, *req.IsOnline, req.Status)
	if err != nil {
		writeServiceError(w, h.log, "update status", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
