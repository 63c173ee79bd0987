package cutout

import (
	"context"
	"image"

	"pfp-sticker/internal/imageio"
)

// Remover makes an image's background transparent.
type Remover interface {
	Remove(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error)
}

// BorderRemover treats the dominant colour along the image border as the
// background and clears every pixel connected to the border that lies within
// Tolerance of it. Images that already carry transparency are returned as a
// copy, untouched apart from the alpha cleanup.
type BorderRemover struct {
	// Tolerance is the maximum per-channel distance from the background
	// colour for a pixel to be cleared.
	Tolerance int
	// AlphaFloor clears pixels whose alpha ends up below it, removing the
	// faint fringe left around edges.
	AlphaFloor uint8
	// MinClusterRatio drops opaque islands smaller than this fraction of
	// all opaque pixels.
	MinClusterRatio float64
}

// DefaultRemover returns the remover used by the service.
func DefaultRemover() *BorderRemover {
	return &BorderRemover{Tolerance: 32, AlphaFloor: 30, MinClusterRatio: 0.01}
}

// Remove implements Remover.
func (r *BorderRemover) Remove(ctx context.Context, img *image.NRGBA) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := imageio.ToNRGBA(img)
	if out == img {
		out = &image.NRGBA{Pix: append([]uint8(nil), img.Pix...), Stride: img.Stride, Rect: img.Rect}
	}

	if !imageio.HasTransparency(out) {
		r.clearBackground(out)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	applyAlphaFloor(out, r.AlphaFloor)
	if r.MinClusterRatio > 0 {
		out = RemoveSmallClusters(out, r.MinClusterRatio)
	}
	return out, nil
}

// clearBackground flood-fills from every border pixel close to the border's
// dominant colour and makes the filled region transparent.
func (r *BorderRemover) clearBackground(img *image.NRGBA) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	stride := img.Stride
	bg := borderColor(img)

	near := func(idx int) bool {
		i := (idx/w)*stride + (idx%w)*4
		return absDiff(img.Pix[i], bg[0]) <= r.Tolerance &&
			absDiff(img.Pix[i+1], bg[1]) <= r.Tolerance &&
			absDiff(img.Pix[i+2], bg[2]) <= r.Tolerance
	}

	// 4-connected BFS seeded from the border
	seen := make([]bool, w*h)
	queue := make([]int, 0, 2*(w+h))
	push := func(idx int) {
		if !seen[idx] && near(idx) {
			seen[idx] = true
			queue = append(queue, idx)
		}
	}
	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		push(y * w)
		push(y*w + w - 1)
	}

	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		i := (curr/w)*stride + (curr%w)*4
		img.Pix[i] = 0
		img.Pix[i+1] = 0
		img.Pix[i+2] = 0
		img.Pix[i+3] = 0

		cx, cy := curr%w, curr/w
		if cx > 0 {
			push(curr - 1)
		}
		if cx < w-1 {
			push(curr + 1)
		}
		if cy > 0 {
			push(curr - w)
		}
		if cy < h-1 {
			push(curr + w)
		}
	}
}

// borderColor returns the mean colour of the most common quantised colour
// along the image border.
func borderColor(img *image.NRGBA) [3]uint8 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	type bucket struct {
		n       int
		r, g, b int
	}
	buckets := make(map[int]*bucket)
	add := func(x, y int) {
		i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
		r, g, bl := int(img.Pix[i]), int(img.Pix[i+1]), int(img.Pix[i+2])
		key := (r>>4)<<8 | (g>>4)<<4 | bl>>4
		bk := buckets[key]
		if bk == nil {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.n++
		bk.r += r
		bk.g += g
		bk.b += bl
	}
	for x := 0; x < w; x++ {
		add(x, 0)
		add(x, h-1)
	}
	for y := 1; y < h-1; y++ {
		add(0, y)
		add(w-1, y)
	}

	var best *bucket
	bestKey := -1
	for key, bk := range buckets {
		// Ties go to the lowest key so the result is deterministic.
		if best == nil || bk.n > best.n || (bk.n == best.n && key < bestKey) {
			best, bestKey = bk, key
		}
	}
	if best == nil {
		return [3]uint8{}
	}
	return [3]uint8{uint8(best.r / best.n), uint8(best.g / best.n), uint8(best.b / best.n)}
}

// applyAlphaFloor makes pixels with alpha below floor fully transparent.
func applyAlphaFloor(img *image.NRGBA, floor uint8) {
	if floor == 0 {
		return
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] < floor {
			img.Pix[i-3] = 0
			img.Pix[i-2] = 0
			img.Pix[i-1] = 0
			img.Pix[i] = 0
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
