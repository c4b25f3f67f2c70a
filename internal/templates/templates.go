// Package templates loads the grayscale reference images the matcher searches for.
package templates

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

// ErrNoTemplates is returned when a required role has no loadable images.
var ErrNoTemplates = errors.New("no templates found")

// Template is a named single-channel reference image.
// The Mat is owned by the Template and must not be modified after loading.
type Template struct {
	Name string
	Mat  gocv.Mat
}

// Size returns the native width and height of the template.
func (t Template) Size() image.Point {
	return image.Point{X: t.Mat.Cols(), Y: t.Mat.Rows()}
}

// Set is an ordered collection of templates sharing a role (stars, button, characters).
type Set []Template

// Names returns the template names in load order.
func (s Set) Names() []string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = t.Name
	}
	return names
}

// Close releases the image memory held by every template in the set.
func (s Set) Close() {
	for i := range s {
		s[i].Mat.Close()
	}
}

// Load reads every image matching the glob pattern as a grayscale template.
// Files that cannot be decoded are skipped. An empty result is not an error;
// only a malformed pattern is.
func Load(pattern string) (Set, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	set := make(Set, 0, len(files))
	for _, file := range files {
		mat := gocv.IMRead(file, gocv.IMReadGrayScale)
		if mat.Empty() {
			mat.Close()
			log.Debug().Str("file", file).Msg("skipping unreadable template")
			continue
		}

		set = append(set, Template{
			Name: stem(file),
			Mat:  mat,
		})
	}

	return set, nil
}

// LoadRequired is Load for a role the caller cannot run without.
// It returns ErrNoTemplates when nothing matched the pattern.
func LoadRequired(role, pattern string) (Set, error) {
	set, err := Load(pattern)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return nil, fmt.Errorf("%s (%s): %w", role, pattern, ErrNoTemplates)
	}
	return set, nil
}

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
