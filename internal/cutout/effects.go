package cutout

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

const (
	outlineBlurSigma = 1.0
	shadowBlurSigma  = 4.0
	// shadowPad is the extra margin kept around the sticker so the blurred
	// shadow is not cut off.
	shadowPad = 12
)

// AddOutlineAndShadow draws a white sticker-style outline of strokePx around
// the opaque area and, when shadow is set, a soft black shadow beneath it.
// The canvas grows to fit the effects and the original is centred on it.
// With no stroke and no shadow a copy of img is returned.
func AddOutlineAndShadow(img *image.NRGBA, strokePx int, shadow bool) *image.NRGBA {
	if strokePx < 0 {
		strokePx = 0
	}
	if strokePx > MaxStrokePx {
		strokePx = MaxStrokePx
	}
	if strokePx == 0 && !shadow {
		return imaging.Clone(img)
	}

	pad := strokePx
	if shadow {
		pad += shadowPad
	}

	b := img.Bounds()
	w, h := b.Dx()+2*pad, b.Dy()+2*pad
	canvas := image.NewNRGBA(image.Rect(0, 0, w, h))

	// Alpha of the sticker placed at its final offset, grown by the stroke.
	mask := alphaMask(img, w, h, pad)
	grown := dilate(mask, w, h, strokePx)

	if shadow {
		sh := imaging.Blur(maskImage(grown, w, h, 0), shadowBlurSigma)
		draw.Draw(canvas, canvas.Bounds(), sh, image.Point{}, draw.Over)
	}
	if strokePx > 0 {
		stroke := imaging.Blur(maskImage(grown, w, h, 255), outlineBlurSigma)
		draw.Draw(canvas, canvas.Bounds(), stroke, image.Point{}, draw.Over)
	}

	draw.Draw(canvas, image.Rect(pad, pad, pad+b.Dx(), pad+b.Dy()), img, b.Min, draw.Over)
	return canvas
}

// alphaMask copies img's alpha channel into a w×h mask at offset (pad, pad).
func alphaMask(img *image.NRGBA, w, h, pad int) []uint8 {
	b := img.Bounds()
	mask := make([]uint8, w*h)
	for y := 0; y < b.Dy(); y++ {
		si := img.PixOffset(b.Min.X, b.Min.Y+y)
		di := (y+pad)*w + pad
		for x := 0; x < b.Dx(); x++ {
			mask[di+x] = img.Pix[si+x*4+3]
		}
	}
	return mask
}

// dilate grows the mask by r pixels with a separable max filter.
func dilate(mask []uint8, w, h, r int) []uint8 {
	if r <= 0 {
		return mask
	}
	tmp := make([]uint8, len(mask))
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var m uint8
			for k := max(0, x-r); k <= min(w-1, x+r); k++ {
				if v := mask[row+k]; v > m {
					m = v
				}
			}
			tmp[row+x] = m
		}
	}
	out := make([]uint8, len(mask))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var m uint8
			for k := max(0, y-r); k <= min(h-1, y+r); k++ {
				if v := tmp[k*w+x]; v > m {
					m = v
				}
			}
			out[y*w+x] = m
		}
	}
	return out
}

// maskImage builds a grey-level image of the given value using mask as alpha.
func maskImage(mask []uint8, w, h int, value uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, a := range mask {
		j := i * 4
		img.Pix[j] = value
		img.Pix[j+1] = value
		img.Pix[j+2] = value
		img.Pix[j+3] = a
	}
	return img
}
