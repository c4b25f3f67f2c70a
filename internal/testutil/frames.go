// Package testutil builds synthetic grayscale frames and templates for tests.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"gocv.io/x/gocv"
)

var (
	white = color.RGBA{255, 255, 255, 0}
	gray  = color.RGBA{128, 128, 128, 0}
)

// BlankFrame returns a black single-channel frame. The caller must close it.
func BlankFrame(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8U)
}

// StarTemplate draws a textured mark on a black square of the given side.
// The off-center square keeps the correlation peak sharp.
func StarTemplate(size int) gocv.Mat {
	mat := BlankFrame(size, size)
	center := image.Pt(size/2, size/2)
	gocv.Circle(&mat, center, size*3/10, white, -1)
	gocv.Rectangle(&mat, image.Rect(size/10, size/10, size/4, size/4), gray, -1)
	return mat
}

// CharacterTemplate draws a cross with an off-center block, a shape that does
// not correlate with StarTemplate at any sweep scale.
func CharacterTemplate(size int) gocv.Mat {
	mat := BlankFrame(size, size)
	gocv.Rectangle(&mat, image.Rect(size*2/5, size/10, size*3/5, size*9/10), white, -1)
	gocv.Rectangle(&mat, image.Rect(size/10, size*3/10, size*9/10, size/2), white, -1)
	gocv.Rectangle(&mat, image.Rect(size*3/5, size*13/20, size*17/20, size*17/20), gray, -1)
	return mat
}

// Embed resizes tmpl to size and copies it into frame with its top-left corner at at.
func Embed(frame *gocv.Mat, tmpl gocv.Mat, at image.Point, size image.Point) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(tmpl, &resized, size, 0, 0, gocv.InterpolationArea)

	region := frame.Region(image.Rect(at.X, at.Y, at.X+size.X, at.Y+size.Y))
	defer region.Close()
	resized.CopyTo(&region)
}

// WriteTemplate stores mat as a PNG named name under dir and returns its path.
func WriteTemplate(dir, name string, mat gocv.Mat) (string, error) {
	path := filepath.Join(dir, name+".png")
	if ok := gocv.IMWrite(path, mat); !ok {
		return "", fmt.Errorf("write template %s", path)
	}
	return path, nil
}
