package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"pfp-sticker/internal/compose"
	"pfp-sticker/internal/cutout"
	"pfp-sticker/internal/imageio"
)

type providerFunc func(ctx context.Context, sticker []byte, opts cutout.Options) (*image.NRGBA, error)

func (f providerFunc) Cutout(ctx context.Context, sticker []byte, opts cutout.Options) (*image.NRGBA, error) {
	return f(ctx, sticker, opts)
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func pngOf(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func fixedProvider(img *image.NRGBA) providerFunc {
	return func(context.Context, []byte, cutout.Options) (*image.NRGBA, error) { return img, nil }
}

func newChestSession(t *testing.T, p cutout.Provider) *Session {
	t.Helper()
	s := New(p, Options{Scale: 0.30, Anchor: compose.Chest}, nil)
	if err := s.LoadBase(pngOf(t, solid(1000, 1000, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))); err != nil {
		t.Fatalf("LoadBase() error = %v", err)
	}
	s.SetStickerSource([]byte("sticker"))
	return s
}

func TestComposeMissingInputs(t *testing.T) {
	called := false
	p := providerFunc(func(context.Context, []byte, cutout.Options) (*image.NRGBA, error) {
		called = true
		return nil, errors.New("unexpected")
	})

	s := New(p, Options{}, nil)
	s.SetStickerSource([]byte("sticker"))
	if err := s.Compose(context.Background()); !errors.Is(err, ErrMissingBase) {
		t.Errorf("Compose() without base error = %v, want ErrMissingBase", err)
	}

	s = New(p, Options{}, nil)
	if err := s.LoadBase(pngOf(t, solid(10, 10, color.NRGBA{A: 255}))); err != nil {
		t.Fatal(err)
	}
	if err := s.Compose(context.Background()); !errors.Is(err, ErrMissingSticker) {
		t.Errorf("Compose() without sticker error = %v, want ErrMissingSticker", err)
	}
	if called {
		t.Error("provider called despite missing input")
	}
}

func TestComposeInstallsSticker(t *testing.T) {
	var gotOpts cutout.Options
	p := providerFunc(func(_ context.Context, sticker []byte, opts cutout.Options) (*image.NRGBA, error) {
		gotOpts = opts
		return solid(200, 100, color.NRGBA{G: 255, A: 255}), nil
	})
	s := New(p, Options{Scale: 0.30, Anchor: compose.Chest, Cutout: cutout.Options{Shadow: true}}, nil)
	if err := s.LoadBase(pngOf(t, solid(1000, 1000, color.NRGBA{A: 255}))); err != nil {
		t.Fatal(err)
	}
	s.SetStickerSource([]byte("sticker"))

	if err := s.Compose(context.Background()); err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if !gotOpts.Shadow || gotOpts.StrokePx != 0 {
		t.Errorf("provider options = %+v", gotOpts)
	}

	want := Snapshot{
		Placement:  compose.Placement{X: 350, Y: 625},
		Scale:      0.30,
		Anchor:     compose.Chest,
		HasBase:    true,
		HasSticker: true,
		Box:        image.Rect(350, 625, 650, 775),
	}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("Snapshot() mismatch (-want +got):\n%s", diff)
	}

	out, err := s.Export()
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	img, _, err := imageio.Decode(out)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 1000, 1000) {
		t.Errorf("export bounds = %v, want 1000x1000", img.Bounds())
	}
	if c := img.NRGBAAt(500, 700); c != (color.NRGBA{G: 255, A: 255}) {
		t.Errorf("export pixel at chest = %v, want green", c)
	}
}

func TestComposeFailureKeepsState(t *testing.T) {
	fail := false
	p := providerFunc(func(context.Context, []byte, cutout.Options) (*image.NRGBA, error) {
		if fail {
			return nil, &cutout.ProviderError{Status: 400, Message: "cannot identify image file"}
		}
		return solid(200, 100, color.NRGBA{G: 255, A: 255}), nil
	})
	s := newChestSession(t, p)
	if err := s.Compose(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.PointerDown(500, 700)
	s.PointerMove(520, 690)
	s.PointerUp()
	before := s.Snapshot()
	exported, _ := s.Export()

	fail = true
	err := s.Compose(context.Background())
	var perr *cutout.ProviderError
	if !errors.As(err, &perr) || perr.Error() != "cannot identify image file" {
		t.Fatalf("Compose() error = %v, want provider message", err)
	}
	if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
		t.Errorf("failed compose changed state (-before +after):\n%s", diff)
	}
	after, _ := s.Export()
	if !bytes.Equal(exported, after) {
		t.Error("failed compose changed the rendered buffer")
	}
	if s.Pending() {
		t.Error("Pending() = true after failure")
	}
}

func TestComposeRejectsConcurrentRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	p := providerFunc(func(context.Context, []byte, cutout.Options) (*image.NRGBA, error) {
		close(started)
		<-release
		return solid(20, 20, color.NRGBA{R: 255, A: 255}), nil
	})
	s := newChestSession(t, p)

	done := s.ComposeAsync(context.Background())
	<-started
	if !s.Pending() {
		t.Error("Pending() = false during request")
	}
	if err := s.Compose(context.Background()); !errors.Is(err, ErrComposeInFlight) {
		t.Errorf("second Compose() error = %v, want ErrComposeInFlight", err)
	}

	// The session stays interactive while the request is pending.
	s.ChangeScale(0.4)

	close(release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first Compose() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ComposeAsync did not finish")
	}
	if !s.Snapshot().HasSticker {
		t.Error("sticker not installed after pending request finished")
	}
	if s.Pending() {
		t.Error("Pending() = true after completion")
	}
}

func TestComposeHonoursCancellation(t *testing.T) {
	p := providerFunc(func(ctx context.Context, _ []byte, _ cutout.Options) (*image.NRGBA, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	s := newChestSession(t, p)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Compose(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Compose() error = %v, want context.Canceled", err)
	}
	if s.Snapshot().HasSticker {
		t.Error("cancelled compose installed a sticker")
	}
}

func TestInteractionRerenders(t *testing.T) {
	s := newChestSession(t, fixedProvider(solid(200, 100, color.NRGBA{G: 255, A: 255})))
	if err := s.Compose(context.Background()); err != nil {
		t.Fatal(err)
	}
	before, _ := s.Export()

	if !s.PointerDown(400, 700) {
		t.Fatal("PointerDown() missed the sticker")
	}
	if !s.PointerMove(380, 650) {
		t.Error("PointerMove() reported no change")
	}
	s.PointerLeave()

	if got, want := s.Snapshot().Placement, (compose.Placement{X: 330, Y: 575}); got != want {
		t.Errorf("Placement = %v, want %v", got, want)
	}
	after, _ := s.Export()
	if bytes.Equal(before, after) {
		t.Error("drag did not re-render the composite")
	}

	s.ChangeScale(0.50)
	if got := s.Snapshot().Box.Dx(); got != 500 {
		t.Errorf("box width after ChangeScale = %d, want 500", got)
	}
	s.SetAnchor(compose.LeftShoulder)
	s.ToggleFlip()
	snap := s.Snapshot()
	if !snap.Flip || snap.Anchor != compose.RightShoulder {
		t.Errorf("after ToggleFlip: flip=%v anchor=%s", snap.Flip, snap.Anchor)
	}
	s.PlaceAt(0.5, 0.5)
	if got := s.Snapshot().Placement; got != (compose.Placement{X: 250, Y: 375}) {
		t.Errorf("PlaceAt(0.5, 0.5) placement = %v, want (250,375)", got)
	}
}

func TestViewportMapsPointer(t *testing.T) {
	s := newChestSession(t, fixedProvider(solid(200, 100, color.NRGBA{G: 255, A: 255})))
	if err := s.Compose(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, vp, err := s.Preview(250)
	if err != nil {
		t.Fatal(err)
	}
	if vp != (compose.Viewport{Width: 250, Height: 250}) {
		t.Fatalf("Preview viewport = %v, want 250x250", vp)
	}
	s.SetViewport(vp)
	if !s.PointerDown(125, 175) {
		t.Error("PointerDown() at preview coordinates missed")
	}
}

func TestLoadBaseDecodeFailure(t *testing.T) {
	s := New(fixedProvider(nil), Options{}, nil)
	if err := s.LoadBase([]byte("\x89PNG\r\n\x1a\nbroken")); !errors.Is(err, imageio.ErrDecode) {
		t.Errorf("LoadBase() error = %v, want ErrDecode", err)
	}
	if s.Snapshot().HasBase {
		t.Error("failed load installed a base")
	}
	if _, err := s.Export(); !errors.Is(err, ErrMissingBase) {
		t.Errorf("Export() error = %v, want ErrMissingBase", err)
	}
}
