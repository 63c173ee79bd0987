package compose

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
)

// DefaultFilename is the download name for exported composites.
const DefaultFilename = "pfp-with-sticker.png"

// ErrNotRendered is returned when exporting before the first render.
var ErrNotRendered = errors.New("compose: nothing rendered yet")

// EncodePNG writes img as PNG at its own resolution.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("compose: encode png: %w", err)
	}
	return nil
}

// ExportPNG encodes the buffer exactly as last rendered. It never renders on
// its own; callers re-render after changes.
func (s *CompositionState) ExportPNG() ([]byte, error) {
	if !s.rendered || s.buf == nil {
		return nil, ErrNotRendered
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, s.buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
