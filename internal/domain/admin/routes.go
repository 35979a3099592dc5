package admin

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the admin router. Both middlewares are required: auth
// first, then the admin role check.
func (h *CreditHandler) Routes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/users/{id}/credits/grant", h.GrantCredits)
	r.Get("/users/{id}/credits", h.GetUserBalance)
	r.Get("/credits/transactions", h.SearchTransactions)
	r.Post("/credits/sweep", h.SweepExpired)

	return r
}
