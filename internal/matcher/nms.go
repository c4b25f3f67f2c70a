package matcher

import (
	"image"
	"sort"
)

// DefaultOverlap is the IoU above which a lower-scoring box is dropped.
const DefaultOverlap = 0.3

// Shape is the pixel size of a matched template. The zero Shape means no match.
type Shape struct {
	Width  int
	Height int
}

// IsZero reports whether the shape is unset.
func (s Shape) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// box returns the inclusive pixel box anchored at p.
func (s Shape) box(p image.Point) image.Rectangle {
	return image.Rect(p.X, p.Y, p.X+s.Width, p.Y+s.Height)
}

// IoU computes intersection over union of two boxes of the same shape.
// Box extents are counted inclusively, so a box covers Width+1 by Height+1 pixels.
func IoU(a, b image.Point, shape Shape) float64 {
	ba, bb := shape.box(a), shape.box(b)

	w := min(ba.Max.X, bb.Max.X) - max(ba.Min.X, bb.Min.X) + 1
	h := min(ba.Max.Y, bb.Max.Y) - max(ba.Min.Y, bb.Min.Y) + 1
	if w <= 0 || h <= 0 {
		return 0
	}

	inter := float64(w * h)
	area := float64((shape.Width + 1) * (shape.Height + 1))
	return inter / (2*area - inter)
}

// Suppress performs greedy non-max suppression over boxes of a shared shape.
// points are top-left corners and scores is parallel to points. The highest
// scoring box is kept, every remaining box overlapping it by more than overlap
// is discarded, and the process repeats. Equal scores keep input order.
// Kept points are returned in descending score order.
func Suppress(points []image.Point, scores []float32, shape Shape, overlap float64) []image.Point {
	if len(points) == 0 {
		return nil
	}

	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	var keep []image.Point
	for len(order) > 0 {
		best := order[0]
		keep = append(keep, points[best])

		rest := order[:0:0]
		for _, idx := range order[1:] {
			if IoU(points[best], points[idx], shape) <= overlap {
				rest = append(rest, idx)
			}
		}
		order = rest
	}

	return keep
}
