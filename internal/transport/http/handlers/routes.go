package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vedran77/lounge/internal/transport/http/middleware"
)

type Routes struct {
	Auth      *AuthHandler
	Rooms     *RoomHandler
	Messages  *MessageHandler
	Users     *UserHandler
	Tokens    middleware.TokenParser
	WebSocket http.Handler
	Logger    *slog.Logger
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(rt.Logger))
	r.Use(chimw.Recoverer)

	// Public
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/v1/auth/register", rt.Auth.Register)
	r.Post("/api/v1/auth/login", rt.Auth.Login)

	// WebSocket authenticates with ?token= itself
	if rt.WebSocket != nil {
		r.Get("/ws", rt.WebSocket.ServeHTTP)
	}

	// Protected
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(rt.Tokens))

		r.Get("/api/v1/rooms", rt.Rooms.ListPublic)
		r.Post("/api/v1/rooms", rt.Rooms.Create)
		r.Get("/api/v1/rooms/mine", rt.Rooms.ListMine)
		r.Get("/api/v1/rooms/{id}", rt.Rooms.Get)
		r.Get("/api/v1/rooms/{id}/members", rt.Rooms.ListMembers)
		r.Post("/api/v1/rooms/{id}/join", rt.Rooms.Join)
		r.Post("/api/v1/rooms/{id}/leave", rt.Rooms.Leave)
		r.Get("/api/v1/rooms/{id}/messages", rt.Messages.ListRoom)
		r.Post("/api/v1/rooms/{id}/messages", rt.Messages.SendRoom)

		r.Put("/api/v1/users/me/status", rt.Users.UpdateStatus)

		r.Get("/api/v1/dm/{userID}/messages", rt.Messages.ListDirect)
		r.Post("/api/v1/dm/{userID}/messages", rt.Messages.SendDirect)
	})

	return r
}
