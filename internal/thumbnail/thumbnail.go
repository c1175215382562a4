// Package thumbnail generates JPEG thumbnails for uploaded images.
package thumbnail

import (
	"bytes"
	"image"
	"image/jpeg"
	"io"
	"strings"

	"github.com/disintegration/imaging"

	// Register decoders for the upload allow-list formats that the
	// standard image package does not enable by default.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/png"
)

const (
	MaxSize = 400
	Quality = 80
)

// Key returns the thumbnail storage key for an original object key.
func Key(originalKey string) string {
	return "_thumbs/" + strings.TrimPrefix(originalKey, "/") + ".jpg"
}

// Generate reads an image and returns JPEG bytes for a thumbnail that fits
// within MaxSize x MaxSize, preserving aspect ratio. Formats the decoder
// cannot handle (e.g. SVG) return the decode error; callers treat thumbnails
// as best effort.
func Generate(r io.Reader) ([]byte, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, MaxSize, MaxSize, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
