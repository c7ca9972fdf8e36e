package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/disintegration/imaging"
)

// SnapshotMaxSide is the longest side a stored snapshot keeps. Larger
// images are scaled down to fit before encoding.
const SnapshotMaxSide = 640

// ErrNotDataURL is returned for strings that are not base64 data URLs.
var ErrNotDataURL = errors.New("not a base64 data URL")

// Snapshot is a JPEG data URL of img scaled to fit SnapshotMaxSide.
func Snapshot(img image.Image) (string, error) {
	return EncodeDataURL(img, "image/jpeg", SnapshotMaxSide)
}

// EncodeDataURL encodes img as a data URL of the given MIME type
// ("image/png" or "image/jpeg"). When maxSide is positive the image is
// first fitted inside a maxSide square, keeping its aspect ratio.
func EncodeDataURL(img image.Image, mime string, maxSide int) (string, error) {
	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	switch mime {
	case "image/png":
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("failed to encode png: %w", err)
		}
	case "image/jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
			return "", fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return "", fmt.Errorf("unsupported snapshot type %q", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, ErrNotDataURL
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL: %w", err)
	}
	return mime, data, nil
}

// DecodeDataURL decodes the image held in a data URL.
func DecodeDataURL(s string) (image.Image, error) {
	_, data, err := ParseDataURL(s)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}

// Extension returns the file extension, with dot, for an image MIME type.
func Extension(mime string) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/bmp":
		return ".bmp"
	}
	return ".bin"
}
