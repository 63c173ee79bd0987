package compose

// DragState is the pointer state machine's state.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (d DragState) String() string {
	if d == Dragging {
		return "dragging"
	}
	return "idle"
}

// Viewport is the on-screen size the buffer is displayed at. The zero value
// means the buffer is shown at its natural size.
type Viewport struct {
	Width, Height int
}

type drag struct {
	state  DragState
	dx, dy float64 // pointer offset from the sticker's top-left
}

// toBuffer converts device coordinates to buffer pixels using the
// displayed-to-natural ratio.
func (s *CompositionState) toBuffer(px, py float64) (float64, float64) {
	if s.base == nil || s.viewport.Width <= 0 || s.viewport.Height <= 0 {
		return px, py
	}
	sx := float64(s.base.NaturalWidth()) / float64(s.viewport.Width)
	sy := float64(s.base.NaturalHeight()) / float64(s.viewport.Height)
	return px * sx, py * sy
}

// hit reports whether the buffer point lies inside the sticker box, edges
// included. Flip does not change the box.
func (s *CompositionState) hit(x, y float64) bool {
	if !s.ready() || !s.placed {
		return false
	}
	w, h := s.targetSize(s.scale)
	left, top := float64(s.placement.X), float64(s.placement.Y)
	return x >= left && x <= left+float64(w) &&
		y >= top && y <= top+float64(h)
}

// PointerDown starts a drag when the pointer hits the sticker and reports
// whether it did. Misses and a missing sticker are silent no-ops.
func (s *CompositionState) PointerDown(px, py float64) bool {
	x, y := s.toBuffer(px, py)
	if !s.hit(x, y) {
		return false
	}
	s.drag = drag{
		state: Dragging,
		dx:    x - float64(s.placement.X),
		dy:    y - float64(s.placement.Y),
	}
	return true
}

// PointerMove follows the pointer while dragging and reports whether the
// placement changed. The sticker may leave the canvas entirely.
func (s *CompositionState) PointerMove(px, py float64) bool {
	if s.drag.state != Dragging {
		return false
	}
	x, y := s.toBuffer(px, py)
	next := Placement{X: round(x - s.drag.dx), Y: round(y - s.drag.dy)}
	if next == s.placement {
		return false
	}
	s.placement = next
	return true
}

// PointerUp ends any drag. The last placement is kept.
func (s *CompositionState) PointerUp() { s.drag = drag{} }

// PointerLeave behaves like PointerUp.
func (s *CompositionState) PointerLeave() { s.drag = drag{} }
