package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Change detection constants
const (
	// BlurSize is the Gaussian kernel used to suppress capture noise (21x21)
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as changed
	DiffThreshold = 25
	// DefaultChangeThreshold is the changed-pixel percentage that counts as a new screen
	DefaultChangeThreshold = 1.0
)

// ChangeDetector compares consecutive grayscale frames. The reroll loop uses
// it to notice clicks that did not advance the screen.
type ChangeDetector struct {
	threshold   float64
	prev        gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewChangeDetector creates a ChangeDetector. threshold is the percentage of
// pixels that must differ, e.g. 1.0 means 1%.
func NewChangeDetector(threshold float64) *ChangeDetector {
	if threshold <= 0 {
		threshold = DefaultChangeThreshold
	}
	return &ChangeDetector{
		threshold: threshold,
		prev:      gocv.NewMat(),
	}
}

// Changed compares frame with the previously seen frame and reports whether
// the difference exceeds the threshold along with the changed percentage.
// The first frame only establishes the baseline and reports true.
func (c *ChangeDetector) Changed(frame gocv.Mat) (bool, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.Empty() {
		return false, 0
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(frame, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !c.initialized || c.prev.Rows() != blurred.Rows() || c.prev.Cols() != blurred.Cols() {
		blurred.CopyTo(&c.prev)
		c.initialized = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, c.prev, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&c.prev)

	return changed > c.threshold, changed
}

// Reset forgets the baseline frame.
func (c *ChangeDetector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
}

// Close releases resources used by the detector.
func (c *ChangeDetector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prev.Close()
	c.initialized = false
}
