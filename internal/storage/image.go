package storage

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// MaxImageSide is the longest edge kept for photographed receipts
const MaxImageSide = 2000

// shrinkImage downsizes JPEG/PNG receipts whose longest edge exceeds MaxImageSide.
// EXIF orientation is applied so phone photos are stored upright. Other content is
// returned unchanged.
func shrinkImage(data []byte, contentType string) ([]byte, error) {
	var format imaging.Format
	switch contentType {
	case "image/jpeg":
		format = imaging.JPEG
	case "image/png":
		format = imaging.PNG
	default:
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContentType, err)
	}

	b := img.Bounds()
	if b.Dx() <= MaxImageSide && b.Dy() <= MaxImageSide {
		return data, nil
	}

	resized := imaging.Fit(img, MaxImageSide, MaxImageSide, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
