package compose

import (
	"image"

	"github.com/disintegration/imaging"
)

// Preview shrinks a rendered buffer so that its longer side is at most
// maxSide, for on-screen display. The returned Viewport is the preview size
// and can be passed to SetViewport so pointer events on the preview map back
// to buffer pixels. Buffers that already fit are returned unchanged.
//
// Resampling weights colour by alpha, so transparent edges do not darken.
func Preview(img *image.NRGBA, maxSide int) (*image.NRGBA, Viewport) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if maxSide <= 0 || (w <= maxSide && h <= maxSide) {
		return img, Viewport{Width: w, Height: h}
	}

	vp := Viewport{Width: maxSide, Height: maxSide}
	if w >= h {
		vp.Height = max(1, round(float64(h)*float64(maxSide)/float64(w)))
	} else {
		vp.Width = max(1, round(float64(w)*float64(maxSide)/float64(h)))
	}
	return imaging.Resize(img, vp.Width, vp.Height, imaging.CatmullRom), vp
}
