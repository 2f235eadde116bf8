package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/vedran77/lounge/internal/service"
	"github.com/vedran77/lounge/internal/transport/http/middleware"
	"github.com/vedran77/lounge/pkg/validator"
)

type RoomHandler struct {
	roomService       *service.RoomService
	membershipService *service.MembershipService
	log               *slog.Logger
}

func NewRoomHandler(roomService *service.RoomService, membershipService *service.MembershipService, logger *slog.Logger) *RoomHandler {
	return &RoomHandler{
		roomService:       roomService,
		membershipService: membershipService,
		log:               logger,
	}
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var input service.CreateRoomInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	if errs := validator.Struct(input); errs.HasErrors() {
		writeValidationErrors(w, errs)
		return
	}

	room, err := h.roomService.Create(r.Context(), userID, input)
	if err != nil {
		writeServiceError(w, h.log, "create room", err)
		return
	}

	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) ListPublic(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.membershipService.ListPublicRooms(r.Context())
	if err != nil {
		writeServiceError(w, h.log, "list public rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	rooms, err := h.membershipService.ListRoomsForUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, h.log, "list my rooms", err)
		return
	}
	writeJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	room, err := h.roomService.Get(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, h.log, "get room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	members, err := h.membershipService.ListMembers(r.Context(), roomID)
	if err != nil {
		writeServiceError(w, h.log, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// Join goes through the same membership path as the socket, so live
// connections are subscribed and the room is told.
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	membership, err := h.membershipService.Join(r.Context(), userID, roomID)
	if err != nil {
		writeServiceError(w, h.log, "join room", err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	roomID, ok := pathID(w, r, "id", "room")
	if !ok {
		return
	}

	if err := h.membershipService.Leave(r.Context(), userID, roomID); err != nil {
		writeServiceError(w, h.log, "leave room", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}
