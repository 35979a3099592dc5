package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage defines the minimal interface for media storage backends.
// Intentionally simple: put bytes, delete them, resolve a URL. Reads go
// through the CDN (R2) or the /media file server (local), never the API.
type Storage interface {
	// Put stores an object at the given key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error

	// Delete removes an object by key. Returns nil if the object doesn't exist.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for an object given its key.
	GetURL(key string) string
}

// MemeSheetKey returns the storage key for a generated sticker sheet
func MemeSheetKey(userID, memeID string) string {
	return fmt.Sprintf("memes/%s/%s/sheet.png", userID, memeID)
}

// MemeTileKey returns the storage key for a single grid tile
func MemeTileKey(userID, memeID string, index int) string {
	return fmt.Sprintf("memes/%s/%s/tiles/%02d.png", userID, memeID, index)
}
