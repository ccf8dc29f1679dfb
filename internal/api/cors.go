package api

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS allows the given origins. Credentials, and so the session cookie, are
// only allowed for an explicit origin list since browsers refuse them for a
// wildcard origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           300,
	})
}
