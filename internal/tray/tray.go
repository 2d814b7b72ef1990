// Package tray shows the running blink count in the macOS menu bar.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the macOS system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	count      uint64
	calibrated bool
	ready      bool
	quitting   bool
	mu         sync.RWMutex

	menuToggle *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, e.g. on a signal. A call made
// before the menu is ready takes effect once it is.
func (t *Tray) Quit() {
	t.mu.Lock()
	ready := t.ready
	t.quitting = true
	t.mu.Unlock()

	if ready {
		systray.Quit()
	}
}

func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(CountTitle(t.count))
	systray.SetTooltip("Palak blink counter")

	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle blink detection")
	systray.AddSeparator()

	t.menuStatus = systray.AddMenuItem(StatusTitle(t.calibrated), "Baseline calibration")
	t.menuStatus.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Palak")
	t.ready = true
	quitting := t.quitting
	t.mu.Unlock()

	if quitting {
		systray.Quit()
		return
	}

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	t.mu.Lock()
	t.ready = false
	t.mu.Unlock()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

// SetCount updates the menu bar title. Calls before the tray is ready are
// remembered and shown once it is.
func (t *Tray) SetCount(count uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if count == t.count && t.ready {
		return
	}
	t.count = count
	if t.ready {
		systray.SetTitle(CountTitle(count))
	}
}

// SetCalibrated updates the calibration status line.
func (t *Tray) SetCalibrated(calibrated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calibrated = calibrated
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(StatusTitle(calibrated))
	}
}

// Count returns the last count shown.
func (t *Tray) Count() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.count
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// CountTitle formats the menu bar text for count.
func CountTitle(count uint64) string {
	return fmt.Sprintf("Blinks: %d", count)
}

// StatusTitle formats the calibration status line.
func StatusTitle(calibrated bool) string {
	if calibrated {
		return "Baseline: calibrated"
	}
	return "Baseline: calibrating..."
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}
