package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/corona10/goimagehash"
	"gocv.io/x/gocv"
)

// SnapshotWriter stores debug frames as PNG files, skipping a frame whose
// perceptual hash equals the last stored one.
type SnapshotWriter struct {
	dir      string
	mu       sync.Mutex
	lastHash *goimagehash.ImageHash
	now      func() time.Time
}

// NewSnapshotWriter creates a SnapshotWriter writing into dir.
func NewSnapshotWriter(dir string) *SnapshotWriter {
	return &SnapshotWriter{dir: dir, now: time.Now}
}

// Save writes frame as <label>_<timestamp>.png. It returns the written path,
// or "" when the frame duplicates the previous snapshot.
func (w *SnapshotWriter) Save(frame gocv.Mat, label string) (string, error) {
	if frame.Empty() {
		return "", fmt.Errorf("empty frame")
	}

	img, err := frame.ToImage()
	if err != nil {
		return "", fmt.Errorf("convert frame: %w", err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("hash frame: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lastHash != nil {
		if dist, err := w.lastHash.Distance(hash); err == nil && dist == 0 {
			return "", nil
		}
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot directory: %w", err)
	}

	path := filepath.Join(w.dir, fmt.Sprintf("%s_%s.png", label, w.now().Format("20060102_150405.000")))
	if ok := gocv.IMWrite(path, frame); !ok {
		return "", fmt.Errorf("write snapshot %s", path)
	}

	w.lastHash = hash
	return path, nil
}
