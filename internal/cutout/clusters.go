package cutout

import (
	"image"

	"github.com/disintegration/imaging"
)

// RemoveSmallClusters clears opaque islands left behind by background
// removal. Components smaller than minRatio of all non-transparent pixels
// are zeroed; the largest component is always kept. Pixels touching on a
// corner belong to the same component. img is returned as is when it has at
// most one component.
func RemoveSmallClusters(img *image.NRGBA, minRatio float64) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	alphaAt := func(x, y int) uint8 {
		return img.Pix[img.PixOffset(img.Rect.Min.X+x, img.Rect.Min.Y+y)+3]
	}

	// Label in one raster pass, joining each pixel with the neighbours
	// already visited: W, NW, N, NE.
	sets := newDisjointSet(w * h)
	opaque := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if alphaAt(x, y) == 0 {
				continue
			}
			i := y*w + x
			sets.add(i)
			opaque++
			if x > 0 && alphaAt(x-1, y) > 0 {
				sets.union(i, i-1)
			}
			if y == 0 {
				continue
			}
			for nx := max(0, x-1); nx <= min(w-1, x+1); nx++ {
				if alphaAt(nx, y-1) > 0 {
					sets.union(i, (y-1)*w+nx)
				}
			}
		}
	}
	if opaque == 0 {
		return img
	}

	sizes := make(map[int]int)
	for i := range sets.parent {
		if sets.parent[i] >= 0 {
			sizes[sets.find(i)]++
		}
	}
	if len(sizes) <= 1 {
		return img
	}

	keep, best := -1, 0
	for root, n := range sizes {
		if n > best || (n == best && root < keep) {
			keep, best = root, n
		}
	}
	minSize := int(float64(opaque) * minRatio)

	out := imaging.Clone(img)
	for i, p := range sets.parent {
		if p < 0 {
			continue
		}
		root := sets.find(i)
		if root == keep || sizes[root] >= minSize {
			continue
		}
		x, y := i%w, i/w
		clear(out.Pix[out.PixOffset(x, y) : out.PixOffset(x, y)+4])
	}
	return out
}

// disjointSet is a union-find over pixel indices. parent is -1 for pixels
// that were never added.
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	p := make([]int, n)
	for i := range p {
		p[i] = -1
	}
	return &disjointSet{parent: p}
}

func (d *disjointSet) add(i int) { d.parent[i] = i }

func (d *disjointSet) find(i int) int {
	for d.parent[i] != i {
		d.parent[i] = d.parent[d.parent[i]]
		i = d.parent[i]
	}
	return i
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		d.parent[rb] = ra
	} else {
		d.parent[ra] = rb
	}
}
