package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Crop cuts r out of img, optionally scaling the result. The returned
// image has its origin at (0,0).
func Crop(img image.Image, r image.Rectangle, scale float64) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if r.Empty() {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}
	if !r.In(bounds) {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	cropped := imaging.Crop(img, r)
	if scale != 1.0 && scale > 0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}
	return cropped, nil
}

// Expand grows r by pad pixels on every side and clips it to bounds.
func Expand(r image.Rectangle, pad int, bounds image.Rectangle) image.Rectangle {
	return r.Inset(-pad).Intersect(bounds)
}

// Mirror flips img horizontally, the way a front camera preview is shown.
func Mirror(img image.Image) *image.NRGBA {
	return imaging.FlipH(img)
}
