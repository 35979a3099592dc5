package meme

import "errors"

var (
	ErrNotFound            = errors.New("meme not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrInvalidUpload       = errors.New("invalid upload")
)
