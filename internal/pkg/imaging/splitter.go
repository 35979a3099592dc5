package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
)

// Tile is one cell cut out of a generated sticker sheet
type Tile struct {
	Index int
	Row   int
	Col   int
	Data  []byte
}

// SplitResult contains all tiles cut from a sheet, in row-major order
type SplitResult struct {
	Tiles       []Tile
	TileWidth   int
	TileHeight  int
	ContentType string
}

// Config for sheet splitting
type Config struct {
	Rows    int // grid rows (default 4)
	Cols    int // grid columns (default 4)
	Quality int // JPEG quality 1-100 (default 85), PNG ignores it
}

// DefaultConfig returns the default 4x4 split config
func DefaultConfig() Config {
	return Config{
		Rows:    4,
		Cols:    4,
		Quality: 85,
	}
}

// Splitter cuts generated sticker sheets into individual tiles
type Splitter struct {
	config Config
}

// NewSplitter creates a sheet splitter
func NewSplitter(config Config) *Splitter {
	if config.Rows <= 0 {
		config.Rows = 4
	}
	if config.Cols <= 0 {
		config.Cols = 4
	}
	if config.Quality <= 0 {
		config.Quality = 85
	}
	return &Splitter{config: config}
}

// Split decodes a sheet and cuts it into Rows x Cols tiles.
// Tile size is floor(width/cols) x floor(height/rows); a remainder strip on
// the right/bottom edge is discarded, matching the per-cell crop.
func (s *Splitter) Split(data []byte) (*SplitResult, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode sheet: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	tileWidth := width / s.config.Cols
	tileHeight := height / s.config.Rows
	if tileWidth == 0 || tileHeight == 0 {
		return nil, fmt.Errorf("sheet too small for %dx%d grid: %dx%d", s.config.Rows, s.config.Cols, width, height)
	}

	result := &SplitResult{
		Tiles:       make([]Tile, 0, s.config.Rows*s.config.Cols),
		TileWidth:   tileWidth,
		TileHeight:  tileHeight,
		ContentType: mimeFromFormat(format),
	}

	index := 0
	for row := 0; row < s.config.Rows; row++ {
		for col := 0; col < s.config.Cols; col++ {
			rect := image.Rect(
				bounds.Min.X+col*tileWidth,
				bounds.Min.Y+row*tileHeight,
				bounds.Min.X+(col+1)*tileWidth,
				bounds.Min.Y+(row+1)*tileHeight,
			)

			tile := imaging.Crop(img, rect)

			encoded, err := s.encode(tile, format)
			if err != nil {
				return nil, fmt.Errorf("failed to encode tile %d: %w", index, err)
			}

			result.Tiles = append(result.Tiles, Tile{
				Index: index,
				Row:   row,
				Col:   col,
				Data:  encoded,
			})
			index++
		}
	}

	return result, nil
}

// encode encodes an image to bytes in the sheet's original format
func (s *Splitter) encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.config.Quality}); err != nil {
			return nil, err
		}
	default:
		// Default to PNG to preserve sticker transparency
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

func mimeFromFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return "image/png"
	}
}
