package meme

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/middleware"
	"github.com/memegrid/memegrid-api/internal/pkg/response"
)

// Handler for the memes API
type Handler struct {
	service       *Service
	maxUploadSize int64
}

// NewHandler creates a memes handler
func NewHandler(service *Service, maxUploadSize int64) *Handler {
	return &Handler{service: service, maxUploadSize: maxUploadSize}
}

// Generate handles POST /memes/generate
// @Summary Generate a sticker grid from an uploaded photo
// @Tags Memes
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param photo formData file true "Source photo"
// @Success 201 {object} response.Response{data=MemeResponse}
// @Failure 400,401,402,500,503 {object} response.Response
// @Router /memes/generate [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		response.BadRequest(w, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		response.BadRequest(w, "photo file is required")
		return
	}
	defer file.Close()

	m, err := h.service.Generate(r.Context(), userID, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidUpload):
			response.BadRequest(w, "unsupported or oversized photo")
		case errors.Is(err, ErrInsufficientCredits):
			response.PaymentRequired(w, "Not enough credits")
		case errors.Is(err, ErrGenerationFailed):
			log.Error().Err(err).Str("user_id", userID.String()).Msg("meme generation failed")
			response.ServiceUnavailable(w, "Generation is temporarily unavailable")
		default:
			log.Error().Err(err).Str("user_id", userID.String()).Msg("meme generation error")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, NewMemeResponse(m, h.service.SheetURL(m), h.service.TileURLs(m)))
}

// Get handles GET /memes/{id}
// @Summary Get one meme with its tile URLs
// @Tags Memes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Meme ID"
// @Success 200 {object} response.Response{data=MemeResponse}
// @Failure 400,401,404,500 {object} response.Response
// @Router /memes/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid meme id")
		return
	}

	m, err := h.service.Get(r.Context(), id, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Meme not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, NewMemeResponse(m, h.service.SheetURL(m), h.service.TileURLs(m)))
}

// List handles GET /memes
// @Summary List the user's memes
// @Tags Memes
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Response{data=[]MemeResponse}
// @Failure 401,500 {object} response.Response
// @Router /memes [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
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

	memes, total, err := h.service.List(r.Context(), userID, limit, (page-1)*limit)
	if err != nil {
		response.InternalError(w)
		return
	}

	items := make([]MemeResponse, 0, len(memes))
	for i := range memes {
		m := &memes[i]
		items = append(items, NewMemeResponse(m, h.service.SheetURL(m), h.service.TileURLs(m)))
	}

	pages := int((total + int64(limit) - 1) / int64(limit))
	response.WithMeta(w, items, response.Meta{
		Total:   int(total),
		Page:    page,
		Limit:   limit,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	})
}

// Delete handles DELETE /memes/{id}
// @Summary Delete a meme and its assets
// @Tags Memes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Meme ID"
// @Success 204 {string} string "No Content"
// @Failure 400,401,404,500 {object} response.Response
// @Router /memes/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid meme id")
		return
	}

	if err := h.service.Delete(r.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Meme not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.NoContent(w)
}
