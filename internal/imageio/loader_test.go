package imageio

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodePNG(t *testing.T) {
	src := solid(7, 5, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
	img, format, err := Decode(encodePNG(t, src))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != "png" {
		t.Errorf("format = %q, want png", format)
	}
	if !bytes.Equal(img.Pix, src.Pix) {
		t.Error("decoded pixels differ from source")
	}
}

func TestDecodeJPEGIsOpaque(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(16, 8, color.NRGBA{R: 200, A: 255}), nil); err != nil {
		t.Fatal(err)
	}
	img, format, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if format != "jpeg" {
		t.Errorf("format = %q, want jpeg", format)
	}
	if got := img.Bounds().Size(); got != image.Pt(16, 8) {
		t.Errorf("size = %v, want 16x8", got)
	}
	if HasTransparency(img) {
		t.Error("JPEG decoded with transparency")
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, _, err := Decode(nil); !errors.Is(err, ErrEmpty) {
		t.Errorf("Decode(nil) error = %v, want ErrEmpty", err)
	}
	if _, _, err := Decode([]byte("\x89PNG\r\n\x1a\ngarbage")); !errors.Is(err, ErrDecode) {
		t.Errorf("Decode(corrupt png) error = %v, want ErrDecode", err)
	}
	if _, _, err := Decode([]byte("not an image")); !errors.Is(err, ErrDecode) {
		t.Errorf("Decode(text) error = %v, want ErrDecode", err)
	}
}

func TestToNRGBAMovesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(3, 4, 6, 6))
	src.Set(3, 4, color.RGBA{R: 255, A: 255})
	got := ToNRGBA(src)
	if got.Bounds().Min != (image.Point{}) {
		t.Fatalf("origin = %v, want (0,0)", got.Bounds().Min)
	}
	if c := got.NRGBAAt(0, 0); c != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel (0,0) = %v, want opaque red", c)
	}
}

func TestHasTransparency(t *testing.T) {
	if HasTransparency(solid(4, 4, color.NRGBA{A: 255})) {
		t.Error("opaque image reported transparent")
	}
	img := solid(4, 4, color.NRGBA{A: 255})
	img.SetNRGBA(2, 3, color.NRGBA{A: 254})
	if !HasTransparency(img) {
		t.Error("image with one translucent pixel reported opaque")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pfp.png")
	if err := os.WriteFile(path, encodePNG(t, solid(3, 3, color.NRGBA{G: 255, A: 255})), 0644); err != nil {
		t.Fatal(err)
	}
	img, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if img.Bounds().Dx() != 3 {
		t.Errorf("width = %d, want 3", img.Bounds().Dx())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}
