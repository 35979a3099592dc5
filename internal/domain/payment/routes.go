package payment

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the payments router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/packs", h.ListPacks)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/checkout", h.Checkout)
		r.Get("/orders", h.ListOrders)
		r.Get("/orders/{orderNo}", h.GetOrder)
	})

	return r
}
