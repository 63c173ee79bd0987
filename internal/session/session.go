// Package session wraps a composition state with the cutout request that
// feeds it. Every mutation re-renders before the lock is released, so an
// export never observes a half-drawn buffer.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/logging"
)

var (
	ErrMissingBase     = errors.New("session: profile picture is missing")
	ErrMissingSticker  = errors.New("session: sticker image is missing")
	ErrComposeInFlight = errors.New("session: a cutout request is already in progress")
)

// Options configure a new session.
type Options struct {
	Scale  float64
	Anchor compose.Anchor
	Cutout cutout.Options
}

// Snapshot is a copy of the editable state.
type Snapshot struct {
	Placement  compose.Placement
	Scale      float64
	Flip       bool
	Anchor     compose.Anchor
	Dragging   bool
	HasBase    bool
	HasSticker bool
	Box        image.Rectangle
}

// Session owns one composition and its pending cutout request.
type Session struct {
	mu         sync.Mutex
	state      *compose.CompositionState
	stickerSrc []byte

	provider cutout.Provider
	opts     cutout.Options
	inflight atomic.Bool
	log      *slog.Logger
}

// New returns an empty session that fetches cutouts from provider.
func New(provider cutout.Provider, opts Options, logger *slog.Logger) *Session {
	scale := opts.Scale
	if scale == 0 {
		scale = compose.DefaultScale
	}
	return &Session{
		state:    compose.NewCompositionState(scale, opts.Anchor),
		provider: provider,
		opts:     opts.Cutout,
		log:      logging.OrNop(logger),
	}
}

// LoadBase decodes and installs the profile picture. A decode failure leaves
// the session unchanged.
func (s *Session) LoadBase(data []byte) error {
	b, err := compose.DecodeBitmap(data)
	if err != nil {
		return fmt.Errorf("session: load profile picture: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetBase(b)
	s.state.Render()
	s.log.Debug("base loaded", "width", b.NaturalWidth(), "height", b.NaturalHeight())
	return nil
}

// SetStickerSource stores the raw sticker image sent on the next Compose.
func (s *Session) SetStickerSource(data []byte) {
	s.mu.Lock()
	s.stickerSrc = data
	s.mu.Unlock()
}

// Compose requests a cutout of the sticker source and installs it, placing
// it at the current anchor. Missing inputs are reported before any request.
// While one request is pending further calls fail with ErrComposeInFlight.
// On failure the previous sticker and placement are kept.
func (s *Session) Compose(ctx context.Context) error {
	s.mu.Lock()
	hasBase := s.state.Base() != nil
	src := s.stickerSrc
	s.mu.Unlock()

	if !hasBase {
		return ErrMissingBase
	}
	if len(src) == 0 {
		return ErrMissingSticker
	}
	if !s.inflight.CompareAndSwap(false, true) {
		return ErrComposeInFlight
	}
	defer s.inflight.Store(false)

	img, err := s.provider.Cutout(ctx, src, s.opts)
	if err != nil {
		s.log.Warn("cutout failed", "error", err)
		return err
	}

	sticker := compose.NewBitmap(img)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SetSticker(sticker)
	s.state.Render()
	s.log.Info("sticker installed",
		"width", sticker.NaturalWidth(),
		"height", sticker.NaturalHeight(),
		"anchor", s.state.Anchor(),
		"placement", s.state.Placement())
	return nil
}

// ComposeAsync runs Compose in a goroutine. The channel receives its result
// and is then closed.
func (s *Session) ComposeAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- s.Compose(ctx)
	}()
	return done
}

// Pending reports whether a cutout request is in flight.
func (s *Session) Pending() bool { return s.inflight.Load() }

// update applies fn under the lock and re-renders when fn reports a change.
func (s *Session) update(fn func(st *compose.CompositionState) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := fn(s.state)
	if changed && s.state.Base() != nil {
		s.state.Render()
	}
	return changed
}

// PointerDown starts a drag if the pointer hits the sticker.
func (s *Session) PointerDown(x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.PointerDown(x, y)
}

// PointerMove drags the sticker and reports whether it moved.
func (s *Session) PointerMove(x, y float64) bool {
	return s.update(func(st *compose.CompositionState) bool {
		return st.PointerMove(x, y)
	})
}

// PointerUp ends a drag.
func (s *Session) PointerUp() {
	s.mu.Lock()
	s.state.PointerUp()
	s.mu.Unlock()
}

// PointerLeave ends a drag.
func (s *Session) PointerLeave() {
	s.mu.Lock()
	s.state.PointerLeave()
	s.mu.Unlock()
}

// ChangeScale rescales the sticker around its centre.
func (s *Session) ChangeScale(scale float64) compose.Placement {
	var p compose.Placement
	s.update(func(st *compose.CompositionState) bool {
		p = st.ChangeScale(scale)
		return true
	})
	return p
}

// ToggleFlip mirrors the sticker, swapping shoulder anchors.
func (s *Session) ToggleFlip() {
	s.update(func(st *compose.CompositionState) bool {
		st.ToggleFlip()
		return true
	})
}

// SetAnchor moves the sticker to a preset.
func (s *Session) SetAnchor(a compose.Anchor) {
	s.update(func(st *compose.CompositionState) bool {
		st.SetAnchor(a)
		return true
	})
}

// PlaceAt centres the sticker on a fractional point of the base.
func (s *Session) PlaceAt(fx, fy float64) {
	s.update(func(st *compose.CompositionState) bool {
		st.PlaceAt(fx, fy)
		return true
	})
}

// SetViewport records the on-screen display size used for pointer mapping.
func (s *Session) SetViewport(v compose.Viewport) {
	s.mu.Lock()
	s.state.SetViewport(v)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Placement:  s.state.Placement(),
		Scale:      s.state.Scale(),
		Flip:       s.state.Flip(),
		Anchor:     s.state.Anchor(),
		Dragging:   s.state.Dragging(),
		HasBase:    s.state.Base() != nil,
		HasSticker: s.state.HasSticker(),
		Box:        s.state.StickerBox(),
	}
}

// Export encodes the last rendered composite as PNG.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Base() == nil {
		return nil, ErrMissingBase
	}
	return s.state.ExportPNG()
}

// Preview returns a display-sized copy of the composite and its size.
func (s *Session) Preview(maxSide int) (*image.NRGBA, compose.Viewport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := s.state.Buffer()
	if s.state.Base() == nil || buf == nil {
		return nil, compose.Viewport{}, ErrMissingBase
	}
	img, vp := compose.Preview(buf, maxSide)
	if img == buf {
		img = &image.NRGBA{Pix: append([]uint8(nil), buf.Pix...), Stride: buf.Stride, Rect: buf.Rect}
	}
	return img, vp, nil
}
