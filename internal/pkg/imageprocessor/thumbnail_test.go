package imageprocessor

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestThumbnailScalesDown(t *testing.T) {
	res, err := Thumbnail(encodePNG(t, 960, 640), 480)
	require.NoError(t, err)

	assert.Equal(t, 480, res.Width)
	assert.Equal(t, 320, res.Height)

	decoded, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, 480, decoded.Bounds().Dx())
}

func TestThumbnailNeverUpscales(t *testing.T) {
	res, err := Thumbnail(encodePNG(t, 100, 50), 480)
	require.NoError(t, err)
	assert.Equal(t, 100, res.Width)
	assert.Equal(t, 50, res.Height)
}

func TestThumbnailUnknownFormat(t *testing.T) {
	_, err := Thumbnail([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "), 480)
	assert.ErrorIs(t, err, ErrNotDecodable)
}
