package meme

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/memegrid/memegrid-api/internal/domain/credit"
	"github.com/memegrid/memegrid-api/internal/pkg/ai"
	"github.com/memegrid/memegrid-api/internal/pkg/imaging"
	"github.com/memegrid/memegrid-api/internal/pkg/storage"
)

// Store is the persistence surface the service needs
type Store interface {
	Create(ctx context.Context, m *Meme) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status, failReason string) error
	GetByID(ctx context.Context, id, userID uuid.UUID) (*Meme, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Meme, int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
}

// CreditLedger is the credit surface the service needs
type CreditLedger interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*credit.Balance, error)
	Consume(ctx context.Context, userID uuid.UUID, amount int64, opts credit.ConsumeOptions) (*credit.ConsumeResult, error)
}

// Config for the meme service
type Config struct {
	Cost          int64  // credits charged per generation
	Prompt        string // generation prompt sent to the model
	MaxUploadSize int64
}

// Service orchestrates photo upload, generation, splitting and billing
type Service struct {
	store    Store
	credits  CreditLedger
	provider ai.Provider
	splitter *imaging.Splitter
	files    storage.Storage
	config   Config
}

// NewService creates a meme service
func NewService(store Store, credits CreditLedger, provider ai.Provider, splitter *imaging.Splitter, files storage.Storage, config Config) *Service {
	return &Service{
		store:    store,
		credits:  credits,
		provider: provider,
		splitter: splitter,
		files:    files,
		config:   config,
	}
}

// Generate runs the full pipeline for one uploaded photo: balance check,
// model call, sheet split, asset upload, then the credit consume. Credits are
// only spent after the assets exist; a losing race on the final consume marks
// the meme failed and nothing is charged.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, photo io.Reader) (*Meme, error) {
	photoData, photoMime, err := storage.ValidateUpload(photo, s.config.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidUpload, err)
	}

	balance, err := s.credits.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.Credits < s.config.Cost {
		return nil, ErrInsufficientCredits
	}

	m := &Meme{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    StatusProcessing,
		Prompt:    s.config.Prompt,
		Model:     s.provider.Name(),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	m.SheetKey = storage.MemeSheetKey(userID.String(), m.ID.String())

	if err := s.store.Create(ctx, m); err != nil {
		return nil, err
	}

	result, err := s.provider.Generate(ctx, ai.GenerateRequest{
		Prompt:        s.config.Prompt,
		ImageData:     photoData,
		ImageMimeType: photoMime,
	})
	if err != nil {
		s.fail(ctx, m.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	m.Model = result.Model

	split, err := s.splitter.Split(result.ImageData)
	if err != nil {
		s.fail(ctx, m.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if err := s.files.Put(ctx, m.SheetKey, bytes.NewReader(result.ImageData), result.MimeType); err != nil {
		s.fail(ctx, m.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	for _, tile := range split.Tiles {
		key := storage.MemeTileKey(userID.String(), m.ID.String(), tile.Index)
		if err := s.files.Put(ctx, key, bytes.NewReader(tile.Data), split.ContentType); err != nil {
			s.fail(ctx, m.ID, err)
			return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
		}
	}

	meta, _ := json.Marshal(map[string]string{"meme_id": m.ID.String()})
	_, err = s.credits.Consume(ctx, userID, s.config.Cost, credit.ConsumeOptions{
		Scene:       credit.SceneMemeGeneration,
		Description: "Meme generation",
		Metadata:    meta,
	})
	if err != nil {
		s.fail(ctx, m.ID, err)
		if errors.Is(err, credit.ErrInsufficientCredits) {
			return nil, ErrInsufficientCredits
		}
		return nil, err
	}

	m.Status = StatusCompleted
	m.TileCount = len(split.Tiles)
	m.CreditsSpent = s.config.Cost
	if _, err := s.complete(ctx, m); err != nil {
		// Credits are already spent; surface the meme anyway
		log.Error().Err(err).Str("meme_id", m.ID.String()).Msg("failed to finalize meme")
	}

	return m, nil
}

func (s *Service) complete(ctx context.Context, m *Meme) (*Meme, error) {
	err := s.store.UpdateStatus(ctx, m.ID, StatusCompleted, "")
	return m, err
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, cause error) {
	reason := cause.Error()
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if err := s.store.UpdateStatus(ctx, id, StatusFailed, reason); err != nil {
		log.Error().Err(err).Str("meme_id", id.String()).Msg("failed to mark meme failed")
	}
}

// Get returns a meme owned by the user
func (s *Service) Get(ctx context.Context, id, userID uuid.UUID) (*Meme, error) {
	return s.store.GetByID(ctx, id, userID)
}

// List returns the user's memes, newest first
func (s *Service) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Meme, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// Delete removes a meme and its stored assets
func (s *Service) Delete(ctx context.Context, id, userID uuid.UUID) error {
	m, err := s.store.GetByID(ctx, id, userID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, id, userID); err != nil {
		return err
	}

	// Asset cleanup is best effort; orphans are harmless
	if err := s.files.Delete(ctx, m.SheetKey); err != nil {
		log.Warn().Err(err).Str("key", m.SheetKey).Msg("failed to delete sheet")
	}
	for i := 0; i < m.TileCount; i++ {
		key := storage.MemeTileKey(userID.String(), id.String(), i)
		if err := s.files.Delete(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("failed to delete tile")
		}
	}
	return nil
}

// SheetURL returns the public URL of the meme's sheet
func (s *Service) SheetURL(m *Meme) string {
	return s.files.GetURL(m.SheetKey)
}

// TileURLs returns the public URLs of the meme's tiles in grid order
func (s *Service) TileURLs(m *Meme) []string {
	urls := make([]string, 0, m.TileCount)
	for i := 0; i < m.TileCount; i++ {
		key := storage.MemeTileKey(m.UserID.String(), m.ID.String(), i)
		urls = append(urls, s.files.GetURL(key))
	}
	return urls
}
