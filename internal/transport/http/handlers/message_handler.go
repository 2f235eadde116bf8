package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/service"
	"github.com/vedran77/lounge/internal/transport/http/middleware"
)

type MessageHandler struct {
	messageService *service.MessageService
	log            *slog.Logger
}

func NewMessageHandler(messageService *service.MessageService, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{messageService: messageService, log: logger}
}

func (h *MessageHandler) SendRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	msg, err := h.messageService.SendRoom(r.Context(), userID, roomID, input)
	if err != nil {
		writeServiceError(w, h.log, "send room message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) ListRoom(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	before, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	page, err := h.messageService.RoomHistory(r.Context(), userID, roomID, before, limit)
	if err != nil {
		writeServiceError(w, h.log, "list room messages", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) SendDirect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, ok := pathID(w, r, "userID", "user")
	if !ok {
		return
	}

	var input service.SendMessageInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	msg, err := h.messageService.SendDirect(r.Context(), userID, peerID, input)
	if err != nil {
		writeServiceError(w, h.log, "send direct message", err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) ListDirect(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID, ok := pathID(w, r, "userID", "user")
	if !ok {
		return
	}

	before, limit, ok := pageParams(w, r)
	if !ok {
		return
	}

	page, err := h.messageService.DirectHistory(r.Context(), userID, peerID, before, limit)
	if err != nil {
		writeServiceError(w, h.log, "list direct messages", err)
		return
	}

	writeJSON(w, http.StatusOK, page)
}

// pageParams reads ?before= and ?limit=. A missing or malformed limit is
// left for the service to default; the service also caps large ones.
func pageParams(w http.ResponseWriter, r *http.Request) (*uuid.UUID, int, bool) {
	var before *uuid.UUID
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		id, err := uuid.Parse(beforeStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid before cursor")
			return nil, 0, false
		}
		before = &id
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	return before, limit, true
}
