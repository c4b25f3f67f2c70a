package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockScreen plays back pre-recorded frames for testing
type MockScreen struct {
	frames  []*gocv.Mat
	index   int
	loop    bool
	reads   int
	mu      sync.Mutex
	running bool
}

func NewMockScreen(frames []*gocv.Mat, loop bool) *MockScreen {
	return &MockScreen{
		frames: frames,
		loop:   loop,
	}
}

func (s *MockScreen) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.index = 0
	return nil
}

func (s *MockScreen) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockScreen) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrScreenNotOpen
	}

	if len(s.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if s.index >= len(s.frames) {
		if s.loop {
			s.index = 0
		} else {
			return nil, fmt.Errorf("no more frames")
		}
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++
	s.reads++

	return &frame, nil
}

func (s *MockScreen) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reads returns how many frames were served.
func (s *MockScreen) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Reset restarts playback from the beginning
func (s *MockScreen) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = 0
}
