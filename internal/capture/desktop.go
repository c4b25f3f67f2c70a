package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
)

// desktopScreen grabs the primary monitor.
type desktopScreen struct {
	mu      sync.Mutex
	running bool
}

// NewDesktopScreen creates a Screen that captures the primary display.
func NewDesktopScreen() Screen {
	return &desktopScreen{}
}

// Open checks that the display can be queried.
func (d *desktopScreen) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	rect, err := screenshot.ScreenRect()
	if err != nil {
		return fmt.Errorf("query screen: %w", err)
	}
	if rect.Empty() {
		return errors.New("screen has no area")
	}

	d.running = true
	return nil
}

// Close stops capturing.
func (d *desktopScreen) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
	return nil
}

// ReadFrame captures the full screen as grayscale.
// The caller is responsible for closing the returned Mat.
func (d *desktopScreen) ReadFrame() (*gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil, ErrScreenNotOpen
	}

	img, err := screenshot.CaptureScreen()
	if err != nil {
		return nil, fmt.Errorf("capture screen: %w", err)
	}

	mat, err := ToGray(img)
	if err != nil {
		return nil, err
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// IsOpen returns true if the screen is open.
func (d *desktopScreen) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}
