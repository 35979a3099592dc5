package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORSHandler returns a CORS handler scoped to the configured frontend
// origins. The API has no PUT/PATCH surface, so those methods are not allowed.
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Total-Count"},
		AllowCredentials: true,
		MaxAge:           600, // 10 minutes
	})
}
