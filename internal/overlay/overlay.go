// Package overlay draws detection boxes and status text onto camera frames.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/mattmezza/alertai/internal/detector"
)

const (
	lineWidth    = 2
	labelPadding = 3
	bannerText   = "AlertAI - Press 'q' to exit"
)

var (
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black = color.RGBA{A: 255}
)

// Palette maps a category to its box color.
type Palette map[string]color.RGBA

// DefaultPalette colors the standard categories; anything else is drawn white.
func DefaultPalette() Palette {
	return Palette{
		"drowsy":     {R: 255, A: 255},
		"head drop":  {R: 255, G: 165, A: 255},
		"yawn":       {R: 255, G: 255, A: 255},
		"distracted": {B: 255, A: 255},
	}
}

// Color returns the color of label.
func (p Palette) Color(label string) color.RGBA {
	if c, ok := p[label]; ok {
		return c
	}
	return White
}

var face font.Face = basicfont.Face7x13

// Label formats the caption of a detection, e.g. "drowsy 0.87".
func Label(d detector.Detection) string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// Draw outlines every detection and writes its caption on a filled background
// just above the box, or inside it when the box touches the top of the frame.
func Draw(dst draw.Image, detections []detector.Detection, palette Palette) {
	for _, d := range detections {
		c := palette.Color(d.Label)
		box := d.Box.Intersect(dst.Bounds())
		if box.Empty() {
			continue
		}
		strokeRect(dst, box, c)

		text := Label(d)
		tw := font.MeasureString(face, text).Ceil()
		th := face.Metrics().Height.Ceil()

		bg := image.Rect(box.Min.X, box.Min.Y-th-2*labelPadding, box.Min.X+tw+2*labelPadding, box.Min.Y)
		if bg.Min.Y < dst.Bounds().Min.Y {
			bg = bg.Add(image.Pt(0, bg.Dy()))
		}
		draw.Draw(dst, bg, image.NewUniform(c), image.Point{}, draw.Src)
		drawText(dst, text, image.Pt(bg.Min.X+labelPadding, bg.Max.Y-labelPadding-face.Metrics().Descent.Ceil()), White)
	}
}

// Banner writes text in the top left corner of the frame. An empty text writes
// the default quit hint.
func Banner(dst draw.Image, text string) {
	if text == "" {
		text = bannerText
	}
	b := dst.Bounds()
	drawText(dst, text, image.Pt(b.Min.X+10, b.Min.Y+30), White)
}

// strokeRect draws the outline of r, lineWidth pixels thick, inside r.
func strokeRect(dst draw.Image, r image.Rectangle, c color.Color) {
	src := image.NewUniform(c)
	w := min(lineWidth, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w),
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y),
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

// drawText draws text with its baseline starting at dot.
func drawText(dst draw.Image, text string, dot image.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)
}
