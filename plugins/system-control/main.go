// Package main provides a system control plugin for macOS.
// Blinks can nudge the volume or drive media playback via AppleScript.
//
// Options come from the action's config, overridden by its params:
//
//	{"every": 3, "step": 5}
//
// "every" acts only on every Nth blink; "step" is the volume change in percent.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Count  uint64          `json:"count"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// options tune how a blink is turned into a system action.
type options struct {
	Every uint64 `json:"every"`
	Step  int    `json:"step"`
}

const defaultStep = 10

// actionHandler defines a function type for handling specific actions.
type actionHandler func(opts options) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"volume-up":        volumeUp,
	"volume-down":      volumeDown,
	"volume-mute":      volumeMute,
	"media-play-pause": mediaPlayPause,
	"media-next":       mediaNext,
	"media-prev":       mediaPrev,
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	// Look up the handler for the action
	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	opts, err := parseOptions(req.Config, req.Params)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if !opts.due(req.Count) {
		data, _ := json.Marshal(map[string]any{"action": req.Action, "count": req.Count, "skipped": true})
		writeSuccessResponse(data)
		return
	}

	if err := handler(opts); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	data, _ := json.Marshal(map[string]any{"action": req.Action, "count": req.Count})
	writeSuccessResponse(data)
}

// parseOptions layers params over config over defaults.
func parseOptions(config, params json.RawMessage) (options, error) {
	opts := options{Every: 1, Step: defaultStep}
	for _, raw := range []json.RawMessage{config, params} {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, &opts); err != nil {
			return options{}, fmt.Errorf("invalid options: %w", err)
		}
	}
	if opts.Every == 0 {
		opts.Every = 1
	}
	if opts.Step <= 0 || opts.Step > 100 {
		return options{}, fmt.Errorf("step must be in 1..100, got %d", opts.Step)
	}
	return opts, nil
}

// due reports whether the blink numbered count should trigger the action.
func (o options) due(count uint64) bool {
	return count > 0 && count%o.Every == 0
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response echoing what was done.
func writeSuccessResponse(data json.RawMessage) {
	resp := Response{
		Success: true,
		Data:    data,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	cmd := exec.Command("osascript", "-e", script)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

// volumeScript changes the output volume by delta percent.
func volumeScript(delta int) string {
	return fmt.Sprintf(`set volume output volume ((output volume of (get volume settings)) + %d)`, delta)
}

func volumeUp(opts options) error {
	return runAppleScript(volumeScript(opts.Step))
}

func volumeDown(opts options) error {
	return runAppleScript(volumeScript(-opts.Step))
}

// volumeMute toggles the system mute state.
func volumeMute(options) error {
	script := `set volume output muted (not (output muted of (get volume settings)))`
	return runAppleScript(script)
}

// mediaPlayPause toggles media play/pause using the F8/Play-Pause media key.
func mediaPlayPause(options) error {
	script := `tell application "System Events"
	key code 100
end tell`
	return runAppleScript(script)
}

// mediaNext skips to the next track using the F9/Next media key.
func mediaNext(options) error {
	script := `tell application "System Events"
	key code 101
end tell`
	return runAppleScript(script)
}

// mediaPrev skips to the previous track using the F7/Previous media key.
func mediaPrev(options) error {
	script := `tell application "System Events"
	key code 98
end tell`
	return runAppleScript(script)
}
