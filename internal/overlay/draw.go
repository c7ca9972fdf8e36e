package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

// ParseHex parses "#RRGGBB" or "#RGB" into an opaque colour.
func ParseHex(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, err
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

func mustHex(hex string) color.RGBA {
	c, err := ParseHex(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// withAlpha returns c premultiplied to the given opacity.
func withAlpha(c color.RGBA, a float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(255 * a),
	}
}

// Palette returns n evenly spaced, equally bright colours.
func Palette(n int) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		c := colorful.Hcl(float64(i)*360/float64(n), 0.6, 0.65).Clamped()
		r, g, b := c.RGB255()
		out[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return out
}

// fillRect blends c over r.
func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	op := draw.Over
	if c.A == 255 {
		op = draw.Src
	}
	draw.Draw(dst, r, &image.Uniform{c}, image.Point{}, op)
}

// strokeRect outlines r with lines width pixels thick, drawn inside r.
func strokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

// strokeCorners draws bracket corners whose arms are 10% of the box width.
func strokeCorners(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	arm := r.Dx() / 10
	if arm < width*2 {
		arm = width * 2
	}
	for _, seg := range []image.Rectangle{
		// top-left
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+arm, r.Min.Y+width),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Min.Y+arm),
		// top-right
		image.Rect(r.Max.X-arm, r.Min.Y, r.Max.X, r.Min.Y+width),
		image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Min.Y+arm),
		// bottom-right
		image.Rect(r.Max.X-arm, r.Max.Y-width, r.Max.X, r.Max.Y),
		image.Rect(r.Max.X-width, r.Max.Y-arm, r.Max.X, r.Max.Y),
		// bottom-left
		image.Rect(r.Min.X, r.Max.Y-width, r.Min.X+arm, r.Max.Y),
		image.Rect(r.Min.X, r.Max.Y-arm, r.Min.X+width, r.Max.Y),
	} {
		fillRect(dst, seg, c)
	}
}

// dot fills a square of side 2*radius+1 centred on p.
func dot(dst *image.RGBA, p image.Point, radius int, c color.RGBA) {
	fillRect(dst, image.Rect(p.X-radius, p.Y-radius, p.X+radius+1, p.Y+radius+1), c)
}

// line draws a Bresenham line from a to b using square pens of the given
// width.
func line(dst *image.RGBA, a, b image.Point, width int, c color.RGBA) {
	dx, dy := abs(b.X-a.X), -abs(b.Y-a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	radius := width / 2
	err := dx + dy
	x, y := a.X, a.Y
	for {
		dot(dst, image.Pt(x, y), radius, c)
		if x == b.X && y == b.Y {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// captionHeight is the height of a caption tab.
const captionHeight = 18

// caption draws text on a filled tab whose top-left corner is at (x, y),
// clipped to the image. It returns the tab rectangle.
func caption(dst *image.RGBA, x, y int, text string, fg, bg color.RGBA) image.Rectangle {
	w := font.MeasureString(face, text).Ceil() + 12
	tab := image.Rect(x, y, x+w, y+captionHeight)

	// keep the tab on screen when the box touches the top or right edge
	b := dst.Bounds()
	if tab.Max.X > b.Max.X {
		tab = tab.Sub(image.Pt(tab.Max.X-b.Max.X, 0))
	}
	if tab.Min.Y < b.Min.Y {
		tab = tab.Add(image.Pt(0, b.Min.Y-tab.Min.Y))
	}
	if tab.Min.X < b.Min.X {
		tab = tab.Add(image.Pt(b.Min.X-tab.Min.X, 0))
	}

	fillRect(dst, tab, bg)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: face,
		Dot:  fixed.P(tab.Min.X+6, tab.Min.Y+13),
	}
	d.DrawString(text)
	return tab
}
