package ai

import (
	"context"
	"errors"
)

var (
	ErrGenerationFailed = errors.New("image generation failed")
	ErrNoImageReturned  = errors.New("model returned no image")
	ErrContentBlocked   = errors.New("generation blocked by safety filters")
)

// GenerateRequest describes one sticker sheet generation
type GenerateRequest struct {
	Prompt        string
	ImageData     []byte // source photo
	ImageMimeType string
}

// GenerateResult is the generated sheet
type GenerateResult struct {
	ImageData []byte
	MimeType  string
	Model     string
}

// Provider generates a sticker sheet image from a source photo
type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	Name() string
}
