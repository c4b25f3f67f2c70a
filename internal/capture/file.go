package capture

import (
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// FileScreen serves a saved screenshot as every frame.
type FileScreen struct {
	path    string
	frame   gocv.Mat
	mu      sync.Mutex
	running bool
}

// NewFileScreen creates a FileScreen for the image at path.
func NewFileScreen(path string) *FileScreen {
	return &FileScreen{path: path}
}

// Open decodes the image as grayscale.
func (f *FileScreen) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return nil
	}

	if _, err := os.Stat(f.path); err != nil {
		return fmt.Errorf("open frame file: %w", err)
	}

	mat := gocv.IMRead(f.path, gocv.IMReadGrayScale)
	if mat.Empty() {
		mat.Close()
		return fmt.Errorf("decode frame file %s", f.path)
	}

	f.frame = mat
	f.running = true
	return nil
}

// Close releases the decoded image.
func (f *FileScreen) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		f.frame.Close()
	}
	f.running = false
	return nil
}

// ReadFrame returns a copy of the decoded image.
func (f *FileScreen) ReadFrame() (*gocv.Mat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil, ErrScreenNotOpen
	}

	frame := f.frame.Clone()
	return &frame, nil
}

// IsOpen returns true if the image has been decoded.
func (f *FileScreen) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}
