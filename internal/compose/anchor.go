package compose

// Anchor names a preset placement point on the base image.
type Anchor string

const (
	LeftShoulder  Anchor = "left_shoulder"
	RightShoulder Anchor = "right_shoulder"
	Chest         Anchor = "chest"
	LowerLeft     Anchor = "lower_left"
	LowerRight    Anchor = "lower_right"
)

// Scale bounds for the sticker width as a fraction of the base width.
const (
	MinScale     = 0.20
	MaxScale     = 0.50
	DefaultScale = 0.30
)

// anchorPoints holds each anchor's centre as fractions of the base size.
var anchorPoints = map[Anchor][2]float64{
	LeftShoulder:  {0.33, 0.62},
	RightShoulder: {0.67, 0.62},
	Chest:         {0.50, 0.70},
	LowerLeft:     {0.25, 0.78},
	LowerRight:    {0.75, 0.78},
}

// Anchors lists the presets in display order.
func Anchors() []Anchor {
	return []Anchor{LeftShoulder, RightShoulder, Chest, LowerLeft, LowerRight}
}

// ParseAnchor reports whether s names a known anchor.
func ParseAnchor(s string) (Anchor, bool) {
	a := Anchor(s)
	_, ok := anchorPoints[a]
	return a, ok
}

// Point returns the anchor's fractional centre. Unknown anchors resolve to
// the left shoulder.
func (a Anchor) Point() (fx, fy float64) {
	p, ok := anchorPoints[a]
	if !ok {
		p = anchorPoints[LeftShoulder]
	}
	return p[0], p[1]
}

// Mirror returns the opposite shoulder for shoulder anchors and false for
// every other anchor.
func (a Anchor) Mirror() (Anchor, bool) {
	switch a {
	case LeftShoulder:
		return RightShoulder, true
	case RightShoulder:
		return LeftShoulder, true
	}
	return a, false
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	if s < MinScale {
		return MinScale
	}
	if s > MaxScale {
		return MaxScale
	}
	return s
}

// TargetSize returns the rendered sticker box: width round(canvasW*scale),
// height following the sticker's aspect ratio.
func TargetSize(canvasW, stickerW, stickerH int, scale float64) (w, h int) {
	if stickerW <= 0 || stickerH <= 0 {
		return 0, 0
	}
	w = round(float64(canvasW) * scale)
	h = round(float64(w) * float64(stickerH) / float64(stickerW))
	return w, h
}

// Resolve places the sticker so that its box is centred on the anchor point.
func Resolve(anchor Anchor, canvasW, canvasH, stickerW, stickerH int, scale float64) Placement {
	fx, fy := anchor.Point()
	return ResolvePoint(fx, fy, canvasW, canvasH, stickerW, stickerH, scale)
}

// ResolvePoint centres the sticker box on (fx*canvasW, fy*canvasH).
func ResolvePoint(fx, fy float64, canvasW, canvasH, stickerW, stickerH int, scale float64) Placement {
	tw, th := TargetSize(canvasW, stickerW, stickerH, scale)
	cx := fx * float64(canvasW)
	cy := fy * float64(canvasH)
	return Placement{
		X: round(cx - float64(tw)/2),
		Y: round(cy - float64(th)/2),
	}
}
