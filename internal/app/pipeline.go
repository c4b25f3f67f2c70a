package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/reroller/internal/matcher"
	"github.com/ayusman/reroller/internal/store"
)

// clickMargin keeps humanized clicks this many pixels inside the button.
const clickMargin = 10

// Run drives the reroll loop until a frame satisfies the victory rule, ctx is
// canceled, or MaxAttempts is reached. Each attempt:
//  1. captures a grayscale frame
//  2. matches stars and evaluates the verdict
//  3. records and publishes the attempt
//  4. on failure presses the recruit button and waits RollDelay plus jitter,
//     or waits RetryDelay when the button is not visible
//
// It returns the winning event on success.
func (a *App) Run(ctx context.Context) (*Event, error) {
	if err := a.begin(); err != nil {
		return nil, err
	}
	defer a.end()

	for n := 1; ; n++ {
		if a.cfg.MaxAttempts > 0 && n > a.cfg.MaxAttempts {
			return nil, fmt.Errorf("%w (%d)", ErrAttemptsExhausted, a.cfg.MaxAttempts)
		}
		if err := a.waitWhilePaused(ctx); err != nil {
			return nil, err
		}

		ev, err := a.attempt(ctx, n, true)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.log.Error().Err(err).Int("attempt", n).Msg("attempt failed")
			if err := sleep(ctx, a.cfg.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if ev.Verdict.Success {
			a.log.Info().Int("attempt", n).Msg("SUCCESS!")
			return &ev, nil
		}

		delay := a.cfg.RetryDelay
		if ev.Clicked {
			delay = a.rollDelay()
		} else {
			a.log.Info().Msg("Retrying scan...")
		}
		if err := sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// Analyze evaluates a single frame without clicking and records it as a
// one-attempt session.
func (a *App) Analyze(ctx context.Context) (Event, error) {
	if err := a.begin(); err != nil {
		return Event{}, err
	}
	defer a.end()

	return a.attempt(ctx, 1, false)
}

// begin opens the screen and starts a session.
func (a *App) begin() error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("already running")
	}
	a.running = true
	a.attempts = 0
	a.last = nil
	a.mu.Unlock()

	if err := a.screen.Open(); err != nil {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return fmt.Errorf("open screen: %w", err)
	}
	a.change.Reset()

	if a.store != nil {
		sess := &store.Session{
			Mode:        a.Mode(),
			MinFiveStar: a.cfg.MinFiveStarCards,
			Targets:     a.targets.Names(),
		}
		if err := a.store.Sessions().Create(sess); err != nil {
			a.log.Error().Err(err).Msg("failed to create session")
		} else {
			a.mu.Lock()
			a.sessionID = sess.ID
			a.mu.Unlock()
			a.log.Debug().Str("session", sess.ID).Msg("session started")
		}
	}
	return nil
}

// end closes the screen and the session.
func (a *App) end() {
	if err := a.screen.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing screen")
	}

	a.mu.Lock()
	sessionID := a.sessionID
	a.sessionID = ""
	a.running = false
	a.mu.Unlock()

	if a.store != nil && sessionID != "" {
		if err := a.store.Sessions().Finish(sessionID); err != nil {
			a.log.Error().Err(err).Str("session", sessionID).Msg("failed to finish session")
		}
	}
}

// attempt runs one capture-evaluate cycle. With press set, a failed verdict
// is followed by a click on the recruit button when it is visible.
func (a *App) attempt(ctx context.Context, n int, press bool) (Event, error) {
	a.log.Info().Int("attempt", n).Msgf("[Attempt %d] Scanning...", n)
	start := time.Now()

	frame, err := a.screen.ReadFrame()
	if err != nil {
		return Event{}, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if changed, pct := a.change.Changed(*frame); !changed {
		a.log.Warn().Float64("changed_pct", pct).Msg("screen unchanged since last attempt")
	}

	v := a.Evaluate(*frame)
	a.log.Info().Msgf(" -> %s", v.Message)

	ev := Event{Attempt: n, Verdict: v, Time: start}

	if a.snapshots != nil && (v.Success || v.Almost) {
		label := "success"
		if !v.Success {
			label = "almost"
		}
		path, err := a.snapshots.Save(*frame, label)
		if err != nil {
			a.log.Warn().Err(err).Msg("failed to save snapshot")
		}
		ev.Snapshot = path
	}

	if press && !v.Success {
		ev.Clicked = a.pressButton(ctx, *frame)
	}

	ev.Duration = time.Since(start)
	a.publish(ev)
	return ev, nil
}

// pressButton finds the recruit button and clicks inside it.
func (a *App) pressButton(ctx context.Context, frame gocv.Mat) bool {
	if a.clicker == nil {
		return false
	}

	btn := a.matcher.Match(frame, a.buttons, a.cfg.MatchThreshold)
	if !btn.Found() {
		return false
	}

	at := ClickTarget(a.rng, btn.Points[0], btn.Shape)
	travel := TravelTime(a.rng, a.cfg.MoveMin, a.cfg.MoveMax)
	if err := a.clicker.Click(ctx, at, travel); err != nil {
		a.log.Error().Err(err).Msg("click failed")
		return false
	}
	a.log.Debug().
		Int("x", at.X).
		Int("y", at.Y).
		Dur("travel", travel).
		Str("template", btn.Name).
		Msg("clicked recruit button")
	return true
}

// ClickTarget picks a random point inside the box at p, keeping a margin from
// its edges. Boxes too small for the margin are clicked at their center.
func ClickTarget(rng *rand.Rand, p image.Point, shape matcher.Shape) image.Point {
	return image.Point{
		X: p.X + humanOffset(rng, shape.Width),
		Y: p.Y + humanOffset(rng, shape.Height),
	}
}

func humanOffset(rng *rand.Rand, size int) int {
	lo, hi := clickMargin, size-clickMargin
	if hi < lo {
		return size / 2
	}
	return lo + rng.Intn(hi-lo+1)
}

// TravelTime draws the pointer travel time uniformly from [lo, hi).
// An empty range yields lo.
func TravelTime(rng *rand.Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rng.Int63n(int64(hi-lo)))
}

// rollDelay is RollDelay plus a uniform jitter in [0, RollJitter).
func (a *App) rollDelay() time.Duration {
	d := a.cfg.RollDelay
	if a.cfg.RollJitter > 0 {
		d += time.Duration(a.rng.Int63n(int64(a.cfg.RollJitter)))
	}
	return d
}

func (a *App) waitWhilePaused(ctx context.Context) error {
	logged := false
	for a.IsPaused() {
		if !logged {
			a.log.Info().Msg("paused")
			logged = true
		}
		if err := sleep(ctx, PausePoll); err != nil {
			return err
		}
	}
	if logged {
		a.log.Info().Msg("resumed")
	}
	return ctx.Err()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
