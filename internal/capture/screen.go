// Package capture provides grayscale frame sources for the reroll loop.
package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/gift"
	"gocv.io/x/gocv"
)

// ErrScreenNotOpen is returned when reading from a screen that is not open.
var ErrScreenNotOpen = errors.New("screen is not open")

// Screen defines the interface for frame sources.
// Frames are single-channel 8-bit Mats; the caller closes them.
type Screen interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// ToGray converts any image to a single-channel Mat using luminance weights.
func ToGray(img image.Image) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), errors.New("nil image")
	}

	gray, ok := img.(*image.Gray)
	if !ok {
		g := gift.New(gift.Grayscale())
		gray = image.NewGray(g.Bounds(img.Bounds()))
		g.Draw(gray, img)
	}

	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("convert to mat: %w", err)
	}
	return mat, nil
}
