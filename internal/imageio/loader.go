// Package imageio decodes uploaded images into NRGBA bitmaps.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// ErrDecode is wrapped by every decode failure.
var ErrDecode = errors.New("imageio: cannot decode image")

// ErrEmpty is returned for zero-length input.
var ErrEmpty = errors.New("imageio: empty input")

type decoder struct {
	name  string
	match func([]byte) bool
	dec   func(io.Reader) (image.Image, error)
}

// Decoders are tried in order. TGA carries no magic number, so it is the
// fallback for anything the others do not recognise.
var decoders = []decoder{
	{"png", prefix("\x89PNG\r\n\x1a\n"), png.Decode},
	{"jpeg", prefix("\xff\xd8"), jpeg.Decode},
	{"gif", func(b []byte) bool { return bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")) }, gif.Decode},
	{"bmp", prefix("BM"), bmp.Decode},
	{"tiff", func(b []byte) bool { return bytes.HasPrefix(b, []byte("II*\x00")) || bytes.HasPrefix(b, []byte("MM\x00*")) }, tiff.Decode},
	{"webp", func(b []byte) bool { return len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP" }, webp.Decode},
	{"tga", func([]byte) bool { return true }, tga.Decode},
}

func prefix(p string) func([]byte) bool {
	return func(b []byte) bool { return bytes.HasPrefix(b, []byte(p)) }
}

// Decode sniffs the format of data and returns the image as NRGBA with its
// origin at (0,0), plus the detected format name.
func Decode(data []byte) (*image.NRGBA, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}

	for _, d := range decoders {
		if !d.match(data) {
			continue
		}
		img, err := d.dec(bytes.NewReader(data))
		if err != nil {
			return nil, d.name, fmt.Errorf("%w: %s: %v", ErrDecode, d.name, err)
		}
		b := img.Bounds()
		if b.Dx() <= 0 || b.Dy() <= 0 {
			return nil, d.name, fmt.Errorf("%w: %s: zero-sized image", ErrDecode, d.name)
		}
		return ToNRGBA(img), d.name, nil
	}

	return nil, "", ErrDecode
}

// Load reads and decodes an image file.
func Load(path string) (*image.NRGBA, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imageio: read %s: %w", path, err)
	}
	img, _, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("imageio: decode %s: %w", path, err)
	}
	return img, nil
}

// ToNRGBA converts any image to NRGBA with its origin moved to (0,0).
// An NRGBA input that already starts at the origin is returned as is.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// HasTransparency reports whether any pixel is not fully opaque.
func HasTransparency(img *image.NRGBA) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			if img.Pix[off+x*4+3] < 255 {
				return true
			}
		}
	}
	return false
}
