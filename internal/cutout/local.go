package cutout

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"pfp-sticker/internal/imageio"
	"pfp-sticker/internal/logging"
)

// Local produces cutouts in-process: decode, remove the background, then add
// the outline and shadow effects. Results are cached by input and options.
type Local struct {
	remover Remover
	cache   *Cache
	log     *slog.Logger
}

// NewLocal returns an in-process provider. A nil remover uses
// DefaultRemover; a nil cache disables caching.
func NewLocal(remover Remover, cache *Cache, logger *slog.Logger) *Local {
	if remover == nil {
		remover = DefaultRemover()
	}
	return &Local{remover: remover, cache: cache, log: logging.OrNop(logger)}
}

// Cutout implements Provider. Decode and removal failures are reported as
// *ProviderError so they read the same as a remote service's.
func (l *Local) Cutout(ctx context.Context, sticker []byte, opts Options) (*image.NRGBA, error) {
	if len(sticker) == 0 {
		return nil, &ProviderError{Status: http.StatusBadRequest, Message: "Empty upload"}
	}
	load := func() (*image.NRGBA, error) { return l.build(ctx, sticker, opts) }
	if l.cache == nil {
		return load()
	}
	return l.cache.Resolve(Key(sticker, opts), load)
}

func (l *Local) build(ctx context.Context, sticker []byte, opts Options) (*image.NRGBA, error) {
	start := time.Now()

	src, format, err := imageio.Decode(sticker)
	if err != nil {
		return nil, &ProviderError{Status: http.StatusBadRequest, Message: err.Error()}
	}

	cut, err := l.remover.Remove(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &ProviderError{Status: http.StatusBadRequest, Message: fmt.Sprintf("background removal: %v", err)}
	}

	out := AddOutlineAndShadow(cut, opts.StrokePx, opts.Shadow)
	l.log.Debug("cutout built",
		"format", format,
		"width", out.Rect.Dx(),
		"height", out.Rect.Dy(),
		"elapsed", time.Since(start))
	return out, nil
}

// Warm runs the remover once on a small transparent image so the first real
// request does not pay any start-up cost. Failures are logged, not returned.
func (l *Local) Warm(ctx context.Context) {
	tiny := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	if _, err := l.remover.Remove(ctx, tiny); err != nil {
		l.log.Warn("cutout warm-up failed", "error", err)
		return
	}
	l.log.Debug("cutout warm-up done")
}
