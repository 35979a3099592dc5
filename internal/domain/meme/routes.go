package meme

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the memes router, all endpoints require auth
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/generate", h.Generate)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)

	return r
}
