package ocr

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/transform"
	"github.com/disintegration/imaging"
)

// minOCRWidth is the width below which frames are upscaled before
// recognition. Tesseract does poorly on glyphs under ~20px tall.
const minOCRWidth = 800

func upscaleFactor(b image.Rectangle) int {
	if b.Dx() <= 0 || b.Dx() >= minOCRWidth {
		return 1
	}
	f := (minOCRWidth + b.Dx() - 1) / b.Dx()
	if f > 4 {
		f = 4
	}
	return f
}

// Preprocess returns a grayscale, contrast-stretched copy of img, upscaled
// by an integer factor when img is narrow. The result has its origin at
// (0,0).
func Preprocess(img image.Image) image.Image {
	gray := effect.Grayscale(imaging.Clone(img))
	out := adjust.Contrast(gray, 0.3)
	if f := upscaleFactor(img.Bounds()); f > 1 {
		b := out.Bounds()
		out = transform.Resize(out, b.Dx()*f, b.Dy()*f, transform.Linear)
	}
	return out
}
