package matcher

import (
	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/templates"
)

// MockMatcher is a test implementation of the Matcher interface.
// Results are keyed by template name; the first template in the set with a
// configured result wins.
type MockMatcher struct {
	results map[string]Result
	calls   []float64
}

// NewMockMatcher creates a new MockMatcher instance.
func NewMockMatcher() *MockMatcher {
	return &MockMatcher{results: make(map[string]Result)}
}

// SetResult sets the result returned when a set containing name is matched.
func (m *MockMatcher) SetResult(name string, r Result) {
	if r.Name == "" {
		r.Name = name
	}
	m.results[name] = r
}

// Thresholds returns the threshold of every Match call in order.
func (m *MockMatcher) Thresholds() []float64 {
	return m.calls
}

// Match returns the pre-configured result or an empty Result.
func (m *MockMatcher) Match(frame gocv.Mat, set templates.Set, threshold float64) Result {
	m.calls = append(m.calls, threshold)
	for _, t := range set {
		if r, ok := m.results[t.Name]; ok {
			return r
		}
	}
	return Result{}
}
