package compose

import (
	"image"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Render draws base at full resolution and the sticker, if any, scaled into
// its target box at p. With flip set the sticker is mirrored inside the same
// box. dst is reused when it already matches the base size, otherwise a new
// buffer is allocated; the buffer in use is returned.
func Render(dst *image.NRGBA, base, sticker *Bitmap, p Placement, scale float64, flip bool) *image.NRGBA {
	var layer *image.NRGBA
	if base != nil && sticker != nil {
		tw, th := TargetSize(base.NaturalWidth(), sticker.NaturalWidth(), sticker.NaturalHeight(), scale)
		layer = scaleSticker(sticker, tw, th, flip)
	}
	return renderLayer(dst, base, layer, p)
}

// scaleSticker resizes the sticker with Lanczos filtering and mirrors it
// horizontally when flip is set. Returns nil for an empty box.
func scaleSticker(sticker *Bitmap, w, h int, flip bool) *image.NRGBA {
	if w <= 0 || h <= 0 {
		return nil
	}
	out := imaging.Resize(sticker.img, w, h, imaging.Lanczos)
	if flip {
		out = imaging.FlipH(out)
	}
	return out
}

func renderLayer(dst *image.NRGBA, base *Bitmap, layer *image.NRGBA, p Placement) *image.NRGBA {
	var size image.Rectangle
	if base != nil {
		size = image.Rect(0, 0, base.NaturalWidth(), base.NaturalHeight())
	}

	if dst == nil || dst.Rect != size {
		dst = image.NewNRGBA(size)
	} else {
		clear(dst.Pix)
	}
	if base == nil {
		return dst
	}

	// Base pixels are copied row by row and stay bit-exact.
	rowBytes := size.Dx() * 4
	for y := 0; y < size.Dy(); y++ {
		si := base.img.PixOffset(base.img.Rect.Min.X, base.img.Rect.Min.Y+y)
		di := y * dst.Stride
		copy(dst.Pix[di:di+rowBytes], base.img.Pix[si:si+rowBytes])
	}

	if layer != nil {
		// Boxes hanging off the canvas are clipped by draw, never clamped.
		r := image.Rect(p.X, p.Y, p.X+layer.Rect.Dx(), p.Y+layer.Rect.Dy())
		draw.Draw(dst, r, layer, image.Point{}, draw.Over)
	}
	return dst
}
