package detector

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// padGray is the letterbox fill used by YOLO preprocessing.
var padGray = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// letterboxInfo maps coordinates of the square model input back to the source image.
type letterboxInfo struct {
	scale  float64
	padX   int
	padY   int
	bounds image.Rectangle // Source image bounds
}

// toSource converts a point in model input space to source image coordinates,
// clamped to the source bounds.
func (l letterboxInfo) toSource(x, y float64) image.Point {
	sx := int((x-float64(l.padX))/l.scale + 0.5)
	sy := int((y-float64(l.padY))/l.scale + 0.5)
	return image.Pt(
		clamp(sx+l.bounds.Min.X, l.bounds.Min.X, l.bounds.Max.X),
		clamp(sy+l.bounds.Min.Y, l.bounds.Min.Y, l.bounds.Max.Y),
	)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// letterbox scales src to fit a size x size square keeping its aspect ratio and
// centres it on a gray background.
func letterbox(src image.Image, size int) (*image.RGBA, letterboxInfo) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	info := letterboxInfo{bounds: b, scale: 1}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: padGray}, image.Point{}, draw.Src)
	if w == 0 || h == 0 {
		return dst, info
	}

	info.scale = min(float64(size)/float64(w), float64(size)/float64(h))
	nw := max(1, int(float64(w)*info.scale+0.5))
	nh := max(1, int(float64(h)*info.scale+0.5))
	info.padX = (size - nw) / 2
	info.padY = (size - nh) / 2

	target := image.Rect(info.padX, info.padY, info.padX+nw, info.padY+nh)
	draw.BiLinear.Scale(dst, target, src, b, draw.Src, nil)
	return dst, info
}

// toTensor lays out img as planar RGB float32 values in [0,1], the [1,3,H,W]
// layout the model expects.
func toTensor(img *image.RGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	out := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			p := row[x*4:]
			i := y*w + x
			out[i] = float32(p[0]) / 255
			out[plane+i] = float32(p[1]) / 255
			out[2*plane+i] = float32(p[2]) / 255
		}
	}
	return out
}
