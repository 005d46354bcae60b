// Package tray provides the system tray menu for handmouse: pause/resume
// and a read-out of the current gesture state.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handmouse/internal/gesture"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle func(enabled bool)
	onStatus func()
	onQuit   func()
	enabled  bool
	state    gesture.State
	last     gesture.ActionKind
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuState  *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a new Tray with tracking enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
		state:   gesture.Idle,
		last:    gesture.None,
	}
}

// OnToggle sets the callback invoked when the user pauses or resumes.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnStatus sets the callback for the "Open status" item.
func (t *Tray) OnStatus(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStatus = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
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

// Quit tears down the tray and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handmouse")
	systray.SetTooltip("handmouse hand tracking mouse")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume hand tracking")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem(stateTitle(t.state), "Current gesture state")
	t.menuState.Disable()
	t.menuLast = systray.AddMenuItem(lastTitle(t.last), "Last discrete action")
	t.menuLast.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuStatus := systray.AddMenuItem("Open status...", "Open the status API in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit handmouse")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
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

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
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

// SetEnabled mirrors a pause/resume made elsewhere, such as over HTTP.
// It does not invoke the toggle callback.
func (t *Tray) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.enabled = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
}

// SetState updates the state line. Unchanged states are ignored so the
// per-frame caller does not churn the menu.
func (t *Tray) SetState(s gesture.State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s == t.state {
		return
	}
	t.state = s
	if t.menuState != nil {
		t.menuState.SetTitle(stateTitle(s))
	}
}

// SetLastAction records the latest discrete action. Move, scroll and none
// are ignored.
func (t *Tray) SetLastAction(k gesture.ActionKind) {
	if !k.Discrete() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.last = k
	if t.menuLast != nil {
		t.menuLast.SetTitle(lastTitle(k))
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// State returns the state last passed to SetState.
func (t *Tray) State() gesture.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// LastAction returns the last discrete action shown.
func (t *Tray) LastAction() gesture.ActionKind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

func stateTitle(s gesture.State) string {
	return "State: " + s.String()
}

func lastTitle(k gesture.ActionKind) string {
	return "Last: " + k.String()
}
