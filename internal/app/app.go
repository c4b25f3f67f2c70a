// Package app runs the reroll loop: capture, match, evaluate, record and click.
package app

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/capture"
	"github.com/ayusman/reroller/internal/config"
	"github.com/ayusman/reroller/internal/logging"
	"github.com/ayusman/reroller/internal/matcher"
	"github.com/ayusman/reroller/internal/plugin"
	"github.com/ayusman/reroller/internal/store"
	"github.com/ayusman/reroller/internal/templates"
	"github.com/ayusman/reroller/internal/victory"
)

// ErrAttemptsExhausted is returned by Run when MaxAttempts is reached without success.
var ErrAttemptsExhausted = errors.New("max attempts reached")

// PausePoll is how often a paused loop checks whether it was resumed.
const PausePoll = 200 * time.Millisecond

// Config holds the collaborators of an App. Settings and Screen are required.
type Config struct {
	Settings *config.Config
	Screen   capture.Screen
	// Clicker presses the recruit button. Nil disables clicking.
	Clicker plugin.Clicker
	// Store records sessions and attempts. Nil disables history.
	Store *store.Store
	// Matcher defaults to a ScaledMatcher built from Settings.
	Matcher matcher.Matcher
	// Rand drives click offsets and delay jitter. Defaults to a time seeded source.
	Rand *rand.Rand
	// Snapshots enables saving success and near-miss frames to Settings.DebugDir.
	Snapshots bool
}

// Event is the outcome of one attempt.
type Event struct {
	Attempt  int             `json:"attempt"`
	Verdict  victory.Verdict `json:"verdict"`
	Snapshot string          `json:"snapshot,omitempty"`
	Clicked  bool            `json:"clicked"`
	Time     time.Time       `json:"time"`
	Duration time.Duration   `json:"duration_ns"`
}

// Status is a point-in-time view of the loop.
type Status struct {
	Running   bool       `json:"running"`
	Paused    bool       `json:"paused"`
	Mode      store.Mode `json:"mode"`
	Targets   []string   `json:"targets"`
	SessionID string     `json:"session_id,omitempty"`
	Attempts  int        `json:"attempts"`
	Last      *Event     `json:"last,omitempty"`
}

// App is the reroller.
type App struct {
	cfg       *config.Config
	screen    capture.Screen
	clicker   plugin.Clicker
	store     *store.Store
	matcher   matcher.Matcher
	evaluator *victory.Evaluator
	snapshots *capture.SnapshotWriter
	change    *capture.ChangeDetector
	rng       *rand.Rand
	log       zerolog.Logger

	stars   templates.Set
	buttons templates.Set
	targets templates.Set

	mu        sync.RWMutex
	running   bool
	paused    bool
	sessionID string
	attempts  int
	last      *Event
	listeners []func(Event)
}

// New validates the settings and loads every template set. Star and button
// templates are required; target character templates are optional and select
// target mode when present.
func New(c Config) (*App, error) {
	if c.Settings == nil {
		return nil, errors.New("settings are required")
	}
	if c.Screen == nil {
		return nil, errors.New("screen is required")
	}
	if err := c.Settings.Validate(); err != nil {
		return nil, err
	}

	stars, err := templates.LoadRequired("stars", c.Settings.StarPattern)
	if err != nil {
		return nil, err
	}
	buttons, err := templates.LoadRequired("button", c.Settings.ButtonPattern)
	if err != nil {
		stars.Close()
		return nil, err
	}
	targets, err := templates.Load(c.Settings.TargetPattern())
	if err != nil {
		stars.Close()
		buttons.Close()
		return nil, fmt.Errorf("load targets: %w", err)
	}

	m := c.Matcher
	if m == nil {
		m = matcher.NewScaledMatcher(c.Settings.MatcherOptions())
	}

	rng := c.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	a := &App{
		cfg:       c.Settings,
		screen:    c.Screen,
		clicker:   c.Clicker,
		store:     c.Store,
		matcher:   m,
		evaluator: victory.NewEvaluator(c.Settings.VictoryConfig(logging.Component("victory")), m),
		change:    capture.NewChangeDetector(capture.DefaultChangeThreshold),
		rng:       rng,
		log:       logging.Component("app"),
		stars:     stars,
		buttons:   buttons,
		targets:   targets,
	}
	if c.Snapshots {
		a.snapshots = capture.NewSnapshotWriter(c.Settings.DebugDir)
	}

	a.log.Info().
		Int("stars", len(stars)).
		Int("buttons", len(buttons)).
		Strs("targets", targets.Names()).
		Msgf("Starting... %s", a.modeLabel())

	return a, nil
}

// Close releases template memory and detector state.
func (a *App) Close() {
	a.stars.Close()
	a.buttons.Close()
	a.targets.Close()
	a.change.Close()
}

// Mode reports whether target characters are configured.
func (a *App) Mode() store.Mode {
	if len(a.targets) > 0 {
		return store.ModeTarget
	}
	return store.ModeGeneral
}

func (a *App) modeLabel() string {
	if a.Mode() == store.ModeTarget {
		return "Target Character Mode"
	}
	return "General REROLL Mode"
}

// SetPaused pauses or resumes the loop between attempts.
func (a *App) SetPaused(paused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = paused
}

// IsPaused reports whether the loop is paused.
func (a *App) IsPaused() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.paused
}

// OnVerdict registers fn to receive every attempt's event.
// Callbacks run synchronously on the loop goroutine.
func (a *App) OnVerdict(fn func(Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Status returns a snapshot of the loop state.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s := Status{
		Running:   a.running,
		Paused:    a.paused,
		Mode:      a.Mode(),
		Targets:   a.targets.Names(),
		SessionID: a.sessionID,
		Attempts:  a.attempts,
	}
	if a.last != nil {
		last := *a.last
		s.Last = &last
	}
	return s
}

// Evaluate matches stars in a grayscale frame and returns the verdict.
func (a *App) Evaluate(frame gocv.Mat) victory.Verdict {
	stars := a.matcher.Match(frame, a.stars, a.cfg.MatchThreshold)
	a.log.Debug().
		Int("points", len(stars.Points)).
		Str("template", stars.Name).
		Float64("confidence", stars.Confidence).
		Msg("star match")
	return a.evaluator.Evaluate(frame, stars, a.targets)
}

// publish stores ev as the latest event, persists it, and notifies listeners.
func (a *App) publish(ev Event) {
	a.mu.Lock()
	a.attempts = ev.Attempt
	a.last = &ev
	sessionID := a.sessionID
	listeners := append([]func(Event){}, a.listeners...)
	a.mu.Unlock()

	if a.store != nil && sessionID != "" {
		err := a.store.Attempts().Create(&store.Attempt{
			SessionID:     sessionID,
			Number:        ev.Attempt,
			FiveStarCount: ev.Verdict.FiveStarCount,
			Required:      ev.Verdict.Required,
			Columns:       ev.Verdict.Columns,
			TargetName:    ev.Verdict.TargetName,
			Success:       ev.Verdict.Success,
			Almost:        ev.Verdict.Almost,
			Message:       ev.Verdict.Message,
			Snapshot:      ev.Snapshot,
			Duration:      ev.Duration,
		})
		if err != nil {
			a.log.Error().Err(err).Int("attempt", ev.Attempt).Msg("failed to record attempt")
		}
	}

	for _, fn := range listeners {
		fn(ev)
	}
}
