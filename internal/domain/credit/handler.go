package credit

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/memegrid/memegrid-api/internal/middleware"
	"github.com/memegrid/memegrid-api/internal/pkg/response"
)

// Handler for the credits API
type Handler struct {
	service *Service
}

// NewHandler creates a credits handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetBalance handles GET /credits/balance
// @Summary Get current credit balance
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401,500 {object} response.Response
// @Router /credits/balance [get]
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, balance)
}

// ListTransactions handles GET /credits/transactions
// @Summary List credit transaction history
// @Tags Credits
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response
// @Failure 401,500 {object} response.Response
// @Router /credits/transactions [get]
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	txs, total, err := h.service.ListTransactions(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	response.WithMeta(w, txs, response.Meta{
		Total:   int(total),
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}
