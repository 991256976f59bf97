package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// MaxImageBytes is the largest accepted listing image.
const MaxImageBytes = 10 * 1024 * 1024

// MaxImagesPerListing caps the number of images on one listing.
const MaxImagesPerListing = 20

// SniffLen is how many leading bytes ValidateImageBySniff looks at.
const SniffLen = 512

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".avif": true,
	".bmp":  true,
	// SVG is excluded: scriptable without sanitization
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/avif": true,
	"image/bmp":  true,
}

var (
	ErrUnsupportedExt  = errors.New("only JPG, JPEG, PNG, GIF, WEBP, AVIF and BMP images are supported")
	ErrHTMLContent     = errors.New("invalid file type: HTML content is not allowed")
	ErrXMLContent      = errors.New("SVG/XML files are not supported")
	ErrUnsupportedType = errors.New("file type is not supported")
	ErrTooLarge        = errors.New("image exceeds the 10 MB limit")
	ErrEmpty           = errors.New("image is empty")
)

// ValidateImageBySniff checks the provided filename (extension) and the first bytes (head)
// against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedExt
	}
	if len(head) == 0 {
		return "", ErrEmpty
	}

	detected := http.DetectContentType(head)

	// Block obvious scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrHTMLContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrXMLContent
	}

	// AVIF is reported as octet-stream by the sniffer; trust the extension
	if detected == "application/octet-stream" && ext == ".avif" {
		return "image/avif", nil
	}

	if allowedMime[detected] {
		return detected, nil
	}
	return "", ErrUnsupportedType
}

// ValidateSize rejects empty and oversized images.
func ValidateSize(size int64) error {
	if size <= 0 {
		return ErrEmpty
	}
	if size > MaxImageBytes {
		return ErrTooLarge
	}
	return nil
}

// ExtensionFor returns the canonical file extension of a sniffed image type.
func ExtensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/avif":
		return ".avif"
	case "image/bmp":
		return ".bmp"
	default:
		return ""
	}
}
