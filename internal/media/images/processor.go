package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"

	"golang.org/x/image/draw"
)

// coverMaxWidth is the widest a stored cover gets. Source art from EPUB
// archives can be print resolution; anything wider is scaled down.
const coverMaxWidth = 600

// thumbnailWidth is the width of the grid thumbnail variant.
const thumbnailWidth = 240

// jpegQuality for encoded covers and thumbnails.
const jpegQuality = 85

// Processor normalizes cover artwork: it decodes whatever image the
// archive carried and produces JPEG covers and thumbnails at bounded
// sizes.
type Processor struct {
	storage *Storage
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, logger *slog.Logger) *Processor {
	return &Processor{
		storage: storage,
		logger:  logger,
	}
}

// Process decodes raw cover data, stores a size-bounded JPEG cover under
// the book id and a thumbnail under "<id>_thumb", and returns the cover's
// hash for cache validation.
func (p *Processor) Process(bookID string, data []byte) (string, error) {
	img, srcFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode cover: %w", err)
	}

	cover, err := encodeScaled(img, coverMaxWidth)
	if err != nil {
		return "", fmt.Errorf("encode cover: %w", err)
	}
	if err := p.storage.Save(bookID, cover); err != nil {
		return "", fmt.Errorf("save cover: %w", err)
	}

	thumb, err := encodeScaled(img, thumbnailWidth)
	if err != nil {
		return "", fmt.Errorf("encode thumbnail: %w", err)
	}
	if err := p.storage.Save(bookID+"_thumb", thumb); err != nil {
		return "", fmt.Errorf("save thumbnail: %w", err)
	}

	hash, err := p.storage.Hash(bookID)
	if err != nil {
		return "", fmt.Errorf("hash cover: %w", err)
	}

	p.logger.Debug("processed cover",
		"book_id", bookID,
		"source_format", srcFormat,
		"cover_bytes", len(cover),
		"thumb_bytes", len(thumb),
	)

	return hash, nil
}

// Remove deletes the cover and thumbnail for a book.
func (p *Processor) Remove(bookID string) {
	if err := p.storage.Delete(bookID); err != nil {
		p.logger.Warn("failed to delete cover", "book_id", bookID, "error", err)
	}
	if err := p.storage.Delete(bookID + "_thumb"); err != nil {
		p.logger.Warn("failed to delete thumbnail", "book_id", bookID, "error", err)
	}
}

// encodeScaled scales img down to at most maxWidth wide, preserving the
// aspect ratio, and encodes it as JPEG. Images already narrow enough are
// encoded as-is.
func encodeScaled(img image.Image, maxWidth int) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() > maxWidth {
		width := maxWidth
		height := (bounds.Dy() * maxWidth) / bounds.Dx()
		if height < 1 {
			height = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
