package api

import (
	"net/http"

	"docgpt-backend/internal/auth"
	"docgpt-backend/internal/chat"

	"github.com/go-chi/chi/v5"
)

type Service struct {
	auth          *auth.Service
	manager       *chat.Manager
	secureCookies bool
}

func NewService(authService *auth.Service, manager *chat.Manager, secureCookies bool) *Service {
	return &Service{auth: authService, manager: manager, secureCookies: secureCookies}
}

func (s *Service) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))

	r.Group(func(r chi.Router) {
		r.Use(s.loadSession)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", RestHandler(s.Register))
			r.Post("/login", s.Login)
			r.Post("/logout", s.Logout)
			r.With(requireSession).Get("/session", RestHandler(s.GetSession))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSession)

			r.Route("/chats", func(r chi.Router) {
				r.Get("/", RestHandler(s.ListChats))
				r.Post("/", RestHandler(s.SubmitDocument))
				r.Post("/new", RestHandler(s.NewChat))
				r.Post("/{chat_id}/open", RestHandler(s.OpenChat))
				r.Patch("/{chat_id}", RestHandler(s.RenameChat))
				r.Delete("/{chat_id}", RestHandler(s.DeleteChat))
			})

			r.Route("/chat", func(r chi.Router) {
				r.Get("/", RestHandler(s.GetActiveChat))
				r.Post("/messages", RestStreamHandler(s.SendMessage))
				r.Delete("/messages", RestHandler(s.ClearHistory))
			})
		})
	})
}
