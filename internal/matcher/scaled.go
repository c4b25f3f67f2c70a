// Package matcher finds template occurrences in grayscale frames across a range of scales.
package matcher

import (
	"image"
	"slices"

	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/templates"
)

// Matcher finds the best supported template of a set in a frame.
type Matcher interface {
	// Match returns the winning template's suppressed hit locations.
	// A Result with no points means nothing reached the threshold.
	Match(frame gocv.Mat, set templates.Set, threshold float64) Result
}

// Result is the best-match summary of one Match call.
type Result struct {
	Points     []image.Point // top-left corners in frame space
	Shape      Shape         // resized template size of the winner
	Name       string
	Confidence float64 // peak normalized correlation of the winner
}

// Found reports whether any point survived the threshold.
func (r Result) Found() bool {
	return len(r.Points) > 0
}

// Options configures the scale sweep.
type Options struct {
	// MinScale and MaxScale bound the sweep relative to native template size.
	MinScale float64
	MaxScale float64
	// Steps is the number of uniformly spaced scales, endpoints included.
	Steps int
	// Overlap is the IoU limit handed to Suppress.
	Overlap float64
}

// DefaultOptions sweeps 7 scales from 0.6x to 1.2x.
func DefaultOptions() Options {
	return Options{
		MinScale: 0.6,
		MaxScale: 1.2,
		Steps:    7,
		Overlap:  DefaultOverlap,
	}
}

// Scales returns the scale factors of the sweep in ascending order.
func (o Options) Scales() []float64 {
	if o.Steps <= 1 {
		return []float64{o.MinScale}
	}
	step := (o.MaxScale - o.MinScale) / float64(o.Steps-1)
	scales := make([]float64, o.Steps)
	for i := range scales {
		scales[i] = o.MinScale + float64(i)*step
	}
	return scales
}

// ScaledSize is the pixel size of a native size resized by scale, truncated.
func ScaledSize(native image.Point, scale float64) image.Point {
	return image.Point{
		X: int(float64(native.X) * scale),
		Y: int(float64(native.Y) * scale),
	}
}

// ScaledMatcher runs normalized cross-correlation for every template and scale
// and keeps only the single best scoring pair.
type ScaledMatcher struct {
	opts Options
}

// NewScaledMatcher creates a ScaledMatcher with the given options.
func NewScaledMatcher(opts Options) *ScaledMatcher {
	return &ScaledMatcher{opts: opts}
}

// MatchScaled matches with DefaultOptions.
func MatchScaled(frame gocv.Mat, set templates.Set, threshold float64) Result {
	return NewScaledMatcher(DefaultOptions()).Match(frame, set, threshold)
}

// candidate holds the raw above-threshold hits of one template at one scale.
type candidate struct {
	name   string
	shape  Shape
	peak   float32
	points []image.Point
	scores []float32
}

// Match implements Matcher.
func (m *ScaledMatcher) Match(frame gocv.Mat, set templates.Set, threshold float64) Result {
	if frame.Empty() || len(set) == 0 {
		return Result{}
	}

	var candidates []candidate
	for _, scale := range m.opts.Scales() {
		for _, tmpl := range set {
			if c, ok := matchOne(frame, tmpl, scale, float32(threshold)); ok {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) == 0 {
		return Result{}
	}

	// First maximum wins so earlier scales and templates break ties.
	best := slices.MaxFunc(candidates, func(a, b candidate) int {
		switch {
		case a.peak < b.peak:
			return -1
		case a.peak > b.peak:
			return 1
		}
		return 0
	})

	return Result{
		Points:     Suppress(best.points, best.scores, best.shape, m.opts.Overlap),
		Shape:      best.shape,
		Name:       best.name,
		Confidence: float64(best.peak),
	}
}

// matchOne correlates one resized template against the frame. It reports
// false when the resized template does not fit or nothing reaches threshold.
func matchOne(frame gocv.Mat, tmpl templates.Template, scale float64, threshold float32) (candidate, bool) {
	size := ScaledSize(tmpl.Size(), scale)
	if size.X <= 0 || size.Y <= 0 || size.Y > frame.Rows() || size.X > frame.Cols() {
		return candidate{}, false
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(tmpl.Mat, &resized, size, 0, 0, gocv.InterpolationArea)

	result := gocv.NewMat()
	defer result.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(frame, resized, &result, gocv.TmCcoeffNormed, mask)

	_, peak, _, _ := gocv.MinMaxLoc(result)
	if peak < threshold || peak <= 0 {
		return candidate{}, false
	}

	data, err := result.DataPtrFloat32()
	if err != nil {
		return candidate{}, false
	}

	cols := result.Cols()
	c := candidate{
		name:  tmpl.Name,
		shape: Shape{Width: size.X, Height: size.Y},
		peak:  peak,
	}
	for i, v := range data {
		if v >= threshold {
			c.points = append(c.points, image.Point{X: i % cols, Y: i / cols})
			c.scores = append(c.scores, v)
		}
	}

	if len(c.points) == 0 {
		return candidate{}, false
	}
	return c, true
}
