// Package cutout produces background-removed RGBA stickers, either by calling
// a remote cutout service or in-process.
package cutout

import (
	"context"
	"image"
)

// Options are the effect settings sent with every cutout request.
type Options struct {
	StrokePx int  // white outline width; 0 disables it
	Shadow   bool // soft drop shadow under the sticker
}

// MaxStrokePx bounds the outline width accepted from callers.
const MaxStrokePx = 64

// Provider turns raw sticker image bytes into an RGBA cutout.
type Provider interface {
	Cutout(ctx context.Context, sticker []byte, opts Options) (*image.NRGBA, error)
}

// ProviderError is a failure reported by the cutout service. Its message is
// meant to be shown to the user verbatim.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string { return e.Message }
