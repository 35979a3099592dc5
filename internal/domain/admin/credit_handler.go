package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/domain/user"
	"github.com/memegrid/memegrid-api/internal/middleware"
	"github.com/memegrid/memegrid-api/internal/pkg/response"
	"github.com/memegrid/memegrid-api/internal/pkg/validator"
)

// GrantCreditsRequest represents the request to grant credits.
// Omitted valid_days means the grant never expires.
type GrantCreditsRequest struct {
	Credits     int64  `json:"credits" validate:"required,min=1,max=1000000"`
	ValidDays   int    `json:"valid_days" validate:"omitempty,min=0,max=3650"`
	Description string `json:"description" validate:"required,min=3,max=500"`
}

// CreditHandler handles admin credit operations
type CreditHandler struct {
	credits *credit.Service
	users   user.Repository
}

// NewCreditHandler creates an admin credit handler
func NewCreditHandler(credits *credit.Service, users user.Repository) *CreditHandler {
	return &CreditHandler{credits: credits, users: users}
}

// GrantCredits handles POST /admin/users/{id}/credits/grant
func (h *CreditHandler) GrantCredits(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req GrantCreditsRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	if _, err := h.users.GetByID(r.Context(), userID); err != nil {
		if errors.Is(err, user.ErrUserNotFound) {
			response.NotFound(w, "User not found")
			return
		}
		response.InternalError(w)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	meta, _ := json.Marshal(map[string]string{"granted_by": adminID.String()})

	opts := credit.GrantOptions{
		Scene:       credit.SceneAdminGrant,
		Description: req.Description,
		Metadata:    meta,
	}
	if req.ValidDays > 0 {
		opts.ExpiresInDays = credit.Days(req.ValidDays)
	}

	tx, err := h.credits.Grant(r.Context(), userID, req.Credits, opts)
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrInvalidAmount):
			response.BadRequest(w, "Credits must be positive")
		default:
			log.Error().Err(err).
				Str("admin_id", adminID.String()).
				Str("user_id", userID.String()).
				Msg("admin grant failed")
			response.InternalError(w)
		}
		return
	}

	log.Info().
		Str("admin_id", adminID.String()).
		Str("user_id", userID.String()).
		Int64("credits", req.Credits).
		Msg("admin granted credits")

	response.Created(w, tx)
}

// GetUserBalance handles GET /admin/users/{id}/credits
func (h *CreditHandler) GetUserBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	balance, err := h.credits.GetBalance(r.Context(), userID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, balance)
}

// SearchTransactions handles GET /admin/credits/transactions
func (h *CreditHandler) SearchTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := credit.SearchFilter{
		Type:   q.Get("type"),
		Scene:  q.Get("scene"),
		Status: q.Get("status"),
	}
	if err := validator.ValidateVar(filter.Scene, "scene"); err != nil {
		response.BadRequest(w, "Invalid scene filter")
		return
	}

	if raw := q.Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "Invalid user_id filter")
			return
		}
		filter.UserID = id
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid from timestamp, want RFC3339")
			return
		}
		filter.CreatedAfter = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, "Invalid to timestamp, want RFC3339")
			return
		}
		filter.CreatedBefore = &ts
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter.Limit = limit
	filter.Offset = (page - 1) * limit

	txs, total, err := h.credits.SearchTransactions(r.Context(), filter)
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

// SweepExpired handles POST /admin/credits/sweep
func (h *CreditHandler) SweepExpired(w http.ResponseWriter, r *http.Request) {
	swept, err := h.credits.SweepExpired(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("manual sweep failed")
		response.InternalError(w)
		return
	}

	adminID := middleware.GetUserID(r.Context())
	log.Info().Str("admin_id", adminID.String()).Int64("swept", swept).Msg("manual credit sweep")

	response.OK(w, map[string]interface{}{
		"swept":   swept,
		"message": fmt.Sprintf("%d grants expired", swept),
	})
}
