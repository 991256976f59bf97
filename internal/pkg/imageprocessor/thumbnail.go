package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ThumbnailWidth is the width of listing card thumbnails.
const ThumbnailWidth = 480

const thumbnailQuality = 80

// ErrNotDecodable is returned for formats that are stored as-is (WebP, AVIF).
var ErrNotDecodable = errors.New("image format cannot be decoded for thumbnails")

// Result is a generated JPEG thumbnail.
type Result struct {
	Data   []byte
	Width  int
	Height int
}

// Thumbnail decodes src, applies EXIF orientation and scales it down to
// maxWidth (never up), encoding the result as JPEG.
func Thumbnail(src []byte, maxWidth int) (*Result, error) {
	if maxWidth <= 0 {
		maxWidth = ThumbnailWidth
	}

	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrNotDecodable
		}
		return nil, fmt.Errorf("error opening original image: %w", err)
	}

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailQuality)); err != nil {
		return nil, fmt.Errorf("error encoding thumbnail: %w", err)
	}

	return &Result{
		Data:   buf.Bytes(),
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}
