package compose

import (
	"image"
)

// CompositionState is the explicit editing context: the two bitmaps, the
// sticker's placement, scale, flip and anchor, the pointer state machine and
// the render buffer.
type CompositionState struct {
	base    *Bitmap
	sticker *Bitmap

	placement Placement
	placed    bool
	scale     float64
	flip      bool
	anchor    Anchor

	viewport Viewport
	drag     drag

	buf      *image.NRGBA
	rendered bool
	layer    layerCache
}

// layerCache keeps the last scaled sticker so drags do not resample.
type layerCache struct {
	src  *Bitmap
	w, h int
	flip bool
	img  *image.NRGBA
}

// NewCompositionState returns an empty state with the given initial scale and
// anchor. The scale is clamped to [MinScale, MaxScale].
func NewCompositionState(scale float64, anchor Anchor) *CompositionState {
	if _, ok := anchorPoints[anchor]; !ok {
		anchor = LeftShoulder
	}
	return &CompositionState{
		scale:  ClampScale(scale),
		anchor: anchor,
	}
}

// SetBase installs the base image. An existing sticker is re-placed at the
// current anchor, since anchor positions depend on the canvas size.
func (s *CompositionState) SetBase(b *Bitmap) {
	s.base = b
	s.placeAtAnchor()
}

// SetSticker installs a new sticker, ends any drag and resets the placement
// from the current anchor.
func (s *CompositionState) SetSticker(b *Bitmap) {
	s.sticker = b
	s.drag = drag{}
	s.placed = false
	s.placeAtAnchor()
}

// SetAnchor selects a preset and re-places the sticker on it.
// Unknown anchors fall back to LeftShoulder.
func (s *CompositionState) SetAnchor(a Anchor) {
	if _, ok := anchorPoints[a]; !ok {
		a = LeftShoulder
	}
	s.anchor = a
	s.placeAtAnchor()
}

// PlaceAt centres the sticker on the fractional point (fx, fy) of the base.
// It is a no-op until both images are loaded.
func (s *CompositionState) PlaceAt(fx, fy float64) {
	if !s.ready() {
		return
	}
	s.placement = ResolvePoint(fx, fy, s.base.NaturalWidth(), s.base.NaturalHeight(),
		s.sticker.NaturalWidth(), s.sticker.NaturalHeight(), s.scale)
	s.placed = true
}

// SetPlacement moves the sticker's top-left corner. No bounds are applied.
func (s *CompositionState) SetPlacement(p Placement) {
	s.placement = p
	s.placed = s.ready()
}

// ChangeScale sets a new scale and moves the placement so that the sticker's
// centre stays where it was. Without both images only the scale is stored.
func (s *CompositionState) ChangeScale(newScale float64) Placement {
	newScale = ClampScale(newScale)
	if !s.ready() || !s.placed {
		s.scale = newScale
		return s.placement
	}

	ow, oh := s.targetSize(s.scale)
	cx := float64(s.placement.X) + float64(ow)/2
	cy := float64(s.placement.Y) + float64(oh)/2

	nw, nh := s.targetSize(newScale)
	s.scale = newScale
	s.placement = Placement{
		X: round(cx - float64(nw)/2),
		Y: round(cy - float64(nh)/2),
	}
	return s.placement
}

// ToggleFlip mirrors the sticker. A shoulder anchor moves to the opposite
// shoulder and the sticker is re-placed there; other anchors keep the
// current placement.
func (s *CompositionState) ToggleFlip() {
	s.flip = !s.flip
	if next, ok := s.anchor.Mirror(); ok {
		s.anchor = next
		s.placeAtAnchor()
	}
}

func (s *CompositionState) Base() *Bitmap          { return s.base }
func (s *CompositionState) Sticker() *Bitmap       { return s.sticker }
func (s *CompositionState) Placement() Placement   { return s.placement }
func (s *CompositionState) Scale() float64         { return s.scale }
func (s *CompositionState) Flip() bool             { return s.flip }
func (s *CompositionState) Anchor() Anchor         { return s.anchor }
func (s *CompositionState) Buffer() *image.NRGBA   { return s.buf }
func (s *CompositionState) HasSticker() bool       { return s.sticker != nil }
func (s *CompositionState) Dragging() bool         { return s.drag.state == Dragging }
func (s *CompositionState) DragState() DragState   { return s.drag.state }
func (s *CompositionState) Viewport() Viewport     { return s.viewport }
func (s *CompositionState) SetViewport(v Viewport) { s.viewport = v }

// StickerBox returns the sticker's unflipped bounding box in buffer pixels,
// or an empty rectangle when nothing is placed.
func (s *CompositionState) StickerBox() image.Rectangle {
	if !s.ready() || !s.placed {
		return image.Rectangle{}
	}
	w, h := s.targetSize(s.scale)
	return image.Rect(s.placement.X, s.placement.Y, s.placement.X+w, s.placement.Y+h)
}

// Render redraws the whole composite into the state's buffer and returns it.
// The buffer always has the base image's natural size.
func (s *CompositionState) Render() *image.NRGBA {
	var layer *image.NRGBA
	if s.ready() {
		w, h := s.targetSize(s.scale)
		layer = s.scaledLayer(w, h)
	}
	s.buf = renderLayer(s.buf, s.base, layer, s.placement)
	s.rendered = true
	return s.buf
}

func (s *CompositionState) scaledLayer(w, h int) *image.NRGBA {
	c := &s.layer
	if c.src == s.sticker && c.w == w && c.h == h && c.flip == s.flip && c.img != nil {
		return c.img
	}
	*c = layerCache{src: s.sticker, w: w, h: h, flip: s.flip, img: scaleSticker(s.sticker, w, h, s.flip)}
	return c.img
}

func (s *CompositionState) ready() bool {
	return s.base != nil && s.sticker != nil
}

func (s *CompositionState) targetSize(scale float64) (int, int) {
	return TargetSize(s.base.NaturalWidth(), s.sticker.NaturalWidth(), s.sticker.NaturalHeight(), scale)
}

func (s *CompositionState) placeAtAnchor() {
	if !s.ready() {
		return
	}
	s.placement = Resolve(s.anchor, s.base.NaturalWidth(), s.base.NaturalHeight(),
		s.sticker.NaturalWidth(), s.sticker.NaturalHeight(), s.scale)
	s.placed = true
}
