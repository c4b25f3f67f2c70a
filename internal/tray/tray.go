// Package tray provides a system tray interface for the reroller.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/reroller/internal/app"
)

// maxTitle truncates long verdict messages in the menu.
const maxTitle = 60

// Tray represents the system tray application.
type Tray struct {
	onPause  func(paused bool)
	onStatus func()
	onQuit   func()
	paused   bool
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuPause       *systray.MenuItem
	menuLastVerdict *systray.MenuItem
}

// New creates a new Tray in the rolling state.
func New() *Tray {
	return &Tray{}
}

// OnPause sets the callback called when rolling is paused or resumed.
func (t *Tray) OnPause(fn func(paused bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnStatus sets the callback called when the status menu item is clicked.
func (t *Tray) OnStatus(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStatus = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, e.g. when the loop finishes.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Reroller")
	systray.SetTooltip("Gacha reroll automation")

	t.mu.Lock()
	t.menuPause = systray.AddMenuItem(pauseTitle(t.paused), "Pause or resume rolling")
	systray.AddSeparator()

	t.menuLastVerdict = systray.AddMenuItem("Last: none", "Last attempt verdict")
	t.menuLastVerdict.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuStatus := systray.AddMenuItem("Open Status...", "Open the status page in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Stop rolling and quit")

	go func() {
		for {
			select {
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-menuStatus.ClickedCh:
				t.handleStatus()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handlePause flips the paused state.
func (t *Tray) handlePause() {
	t.mu.Lock()
	t.paused = !t.paused
	paused := t.paused

	if t.menuPause != nil {
		t.menuPause.SetTitle(pauseTitle(paused))
	}

	callback := t.onPause
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(paused)
	}
}

func (t *Tray) handleStatus() {
	t.mu.RLock()
	callback := t.onStatus
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastVerdict shows the outcome of the latest attempt in the menu.
// It has the signature of an App.OnVerdict listener.
func (t *Tray) SetLastVerdict(ev app.Event) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastVerdict != nil {
		t.menuLastVerdict.SetTitle(verdictTitle(ev))
	}
}

// IsPaused returns the current paused state.
func (t *Tray) IsPaused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

func pauseTitle(paused bool) string {
	if paused {
		return "○ Paused"
	}
	return "● Rolling"
}

func verdictTitle(ev app.Event) string {
	title := fmt.Sprintf("Last: #%d %s", ev.Attempt, ev.Verdict.Message)
	if r := []rune(title); len(r) > maxTitle {
		title = string(r[:maxTitle-1]) + "…"
	}
	return title
}
