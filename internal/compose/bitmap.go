// Package compose places a cutout sticker on a base image and renders the
// composite at the base image's natural resolution.
//
// A CompositionState owns the mutable placement, scale, flip and anchor of one
// editing session, turns pointer events into drags, and renders into a
// buffer that always matches the base image's size. It is not safe for
// concurrent use; see package session for a locked wrapper.
package compose

import (
	"image"
	"math"

	"pfp-sticker/internal/imageio"
)

// Bitmap is a read-only pixel source with known natural dimensions.
type Bitmap struct {
	img *image.NRGBA
}

// NewBitmap wraps img. The image must not be modified afterwards.
func NewBitmap(img image.Image) *Bitmap {
	return &Bitmap{img: imageio.ToNRGBA(img)}
}

// DecodeBitmap decodes raw image bytes into a Bitmap.
func DecodeBitmap(data []byte) (*Bitmap, error) {
	img, _, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}
	return &Bitmap{img: img}, nil
}

// NaturalWidth returns the intrinsic pixel width.
func (b *Bitmap) NaturalWidth() int { return b.img.Rect.Dx() }

// NaturalHeight returns the intrinsic pixel height.
func (b *Bitmap) NaturalHeight() int { return b.img.Rect.Dy() }

// Image returns the underlying pixels. Callers must treat them as read-only.
func (b *Bitmap) Image() *image.NRGBA { return b.img }

// Placement is the sticker's unflipped top-left corner in base-image pixels.
type Placement struct {
	X, Y int
}

// round rounds half up, matching the browser's Math.round.
func round(v float64) int {
	return int(math.Floor(v + 0.5))
}
