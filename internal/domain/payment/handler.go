package payment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/middleware"
	"github.com/memegrid/memegrid-api/internal/pkg/creem"
	"github.com/memegrid/memegrid-api/internal/pkg/response"
	"github.com/memegrid/memegrid-api/internal/pkg/validator"
)

// Handler for the payments API
type Handler struct {
	service       *Service
	webhookSecret string
}

// NewHandler creates a payments handler
func NewHandler(service *Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

// CheckoutRequest starts a credit pack purchase
type CheckoutRequest struct {
	Pack  string `json:"pack" validate:"required,credit_pack"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CheckoutResponse carries the hosted checkout URL
type CheckoutResponse struct {
	Order       *Order `json:"order"`
	CheckoutURL string `json:"checkout_url"`
}

// Checkout handles POST /payments/checkout
// @Summary Start a credit pack purchase
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckoutRequest true "Pack selection"
// @Success 201 {object} response.Response{data=CheckoutResponse}
// @Failure 400,401,422,502 {object} response.Response
// @Router /payments/checkout [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req CheckoutRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	order, url, err := h.service.Checkout(r.Context(), userID, req.Email, req.Pack)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPack):
			response.BadRequest(w, "Unknown credit pack")
		case errors.Is(err, ErrCheckoutFailed):
			log.Error().Err(err).Str("user_id", userID.String()).Msg("checkout creation failed")
			response.Error(w, http.StatusBadGateway, "CHECKOUT_FAILED", "Payment provider unavailable")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("checkout error")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, CheckoutResponse{Order: order, CheckoutURL: url})
}

// ListPacks handles GET /payments/packs
// @Summary List purchasable credit packs
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Response
// @Router /payments/packs [get]
func (h *Handler) ListPacks(w http.ResponseWriter, r *http.Request) {
	response.OK(w, h.service.Packs())
}

// GetOrder handles GET /payments/orders/{orderNo}
// @Summary Get one order
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param orderNo path string true "Order number"
// @Success 200 {object} response.Response{data=Order}
// @Failure 401,404,500 {object} response.Response
// @Router /payments/orders/{orderNo} [get]
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	order, err := h.service.GetOrder(r.Context(), userID, chi.URLParam(r, "orderNo"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.NotFound(w, "Order not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, order)
}

// ListOrders handles GET /payments/orders
// @Summary List the user's orders
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=[]Order}
// @Failure 401,500 {object} response.Response
// @Router /payments/orders [get]
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
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

	orders, total, err := h.service.ListOrders(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	response.WithMeta(w, orders, response.Meta{
		Total:   int(total),
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

// Webhook handles POST /webhooks/creem. Unsigned or badly signed requests
// are rejected before any parsing.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "cannot read body")
		return
	}

	event, err := creem.ParseEvent(payload, r.Header.Get(creem.SignatureHeader), h.webhookSecret)
	if err != nil {
		if errors.Is(err, creem.ErrInvalidSignature) {
			log.Warn().Str("ip", r.RemoteAddr).Msg("webhook with invalid signature")
			response.Unauthorized(w, "invalid signature")
			return
		}
		response.BadRequest(w, "malformed payload")
		return
	}

	switch event.EventType {
	case creem.EventCheckoutCompleted:
		checkout, err := event.Checkout()
		if err != nil {
			response.BadRequest(w, "malformed checkout object")
			return
		}
		if err := h.service.HandleCheckoutCompleted(r.Context(), checkout); err != nil {
			// Non-2xx makes the provider retry later
			log.Error().Err(err).Str("checkout_id", checkout.ID).Msg("failed to process checkout webhook")
			response.InternalError(w)
			return
		}
	default:
		log.Debug().Str("event_type", event.EventType).Msg("ignoring webhook event")
	}

	response.OK(w, map[string]string{"received": event.ID})
}
