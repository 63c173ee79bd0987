package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/session"
)

func TestParseMoves(t *testing.T) {
	script := `# drag the sticker down and right
viewport 500 500
down 100 320
move 110 330
up

scale 0.4
FLIP
anchor chest
place 0.5 0.5
leave
`
	got, err := parseMoves(strings.NewReader(script))
	if err != nil {
		t.Fatalf("parseMoves() error = %v", err)
	}
	want := []move{
		{line: 2, op: "viewport", args: []float64{500, 500}},
		{line: 3, op: "down", args: []float64{100, 320}},
		{line: 4, op: "move", args: []float64{110, 330}},
		{line: 5, op: "up"},
		{line: 7, op: "scale", args: []float64{0.4}},
		{line: 8, op: "flip"},
		{line: 9, op: "anchor", name: "chest"},
		{line: 10, op: "place", args: []float64{0.5, 0.5}},
		{line: 11, op: "leave"},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(move{})); diff != "" {
		t.Errorf("parseMoves() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMovesErrors(t *testing.T) {
	tests := []struct {
		script string
		want   string
	}{
		{"jump 1 2", `line 1: unknown command "jump"`},
		{"down 1", "line 1: down takes 2 arguments, got 1"},
		{"\nscale big", `line 2: invalid number "big"`},
		{"anchor head", `line 1: unknown anchor "head"`},
		{"anchor", "line 1: anchor takes a name"},
	}
	for _, tt := range tests {
		_, err := parseMoves(strings.NewReader(tt.script))
		if err == nil || err.Error() != tt.want {
			t.Errorf("parseMoves(%q) error = %v, want %q", tt.script, err, tt.want)
		}
	}
}

type fixedProvider struct{ img *image.NRGBA }

func (p fixedProvider) Cutout(context.Context, []byte, cutout.Options) (*image.NRGBA, error) {
	return p.img, nil
}

func TestApplyMoves(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 1000, 1000))); err != nil {
		t.Fatal(err)
	}
	sticker := image.NewNRGBA(image.Rect(0, 0, 200, 100))
	for i := range sticker.Pix {
		sticker.Pix[i] = 255
	}

	s := session.New(fixedProvider{sticker}, session.Options{Scale: 0.30, Anchor: compose.Chest}, nil)
	if err := s.LoadBase(buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	s.SetStickerSource([]byte("sticker"))
	if err := s.Compose(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Chest placement is (350,625); the viewport halves the display size.
	moves, err := parseMoves(strings.NewReader("viewport 500 500\ndown 200 350\nmove 210 345\nleave\n"))
	if err != nil {
		t.Fatal(err)
	}
	applyMoves(s, moves)

	snap := s.Snapshot()
	if want := (compose.Placement{X: 370, Y: 615}); snap.Placement != want {
		t.Errorf("placement = %v, want %v", snap.Placement, want)
	}
	if snap.Dragging {
		t.Error("drag still active after leave")
	}

	moves, err = parseMoves(strings.NewReader("anchor left_shoulder\nflip\nscale 0.5\n"))
	if err != nil {
		t.Fatal(err)
	}
	applyMoves(s, moves)
	snap = s.Snapshot()
	if !snap.Flip || snap.Anchor != compose.RightShoulder || snap.Scale != 0.5 {
		t.Errorf("snapshot = %+v, want flipped right_shoulder at 0.5", snap)
	}
}
