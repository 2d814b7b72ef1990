// Package main provides a keyboard plugin for macOS.
// On each blink it presses a key combination or types text via AppleScript.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
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

// KeystrokeParams defines parameters for the press and type actions.
// Text may contain {count}, replaced by the running blink count.
type KeystrokeParams struct {
	Key       string   `json:"key"`
	Text      string   `json:"text"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// modifierMap maps user-friendly modifier names to AppleScript equivalents.
var modifierMap = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	p, err := mergeParams(req.Config, req.Params)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	var script string
	switch req.Action {
	case "press":
		if p.Key == "" {
			writeErrorResponse("key is required")
			return
		}
		script = buildKeystrokeScript(p.Key, p.Modifiers)
	case "type":
		text := strings.ReplaceAll(p.Text, "{count}", strconv.FormatUint(req.Count, 10))
		if text == "" {
			writeErrorResponse("text is required")
			return
		}
		script = buildKeystrokeScript(text, nil)
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	if err := runAppleScript(script); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}
	writeSuccessResponse()
}

// mergeParams decodes the stored action config and overlays per-request params.
func mergeParams(config, params json.RawMessage) (KeystrokeParams, error) {
	var p KeystrokeParams
	for _, raw := range []json.RawMessage{config, params} {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("failed to parse params: %w", err)
		}
	}
	return p, nil
}

// buildKeystrokeScript generates an AppleScript for the given key and modifiers.
func buildKeystrokeScript(key string, modifiers []string) string {
	escaped := strings.ReplaceAll(key, `"`, `\"`)

	var appleModifiers []string
	for _, mod := range modifiers {
		if appleMod, ok := modifierMap[strings.ToLower(mod)]; ok {
			appleModifiers = append(appleModifiers, appleMod)
		}
	}

	if len(appleModifiers) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escaped)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`,
		escaped, strings.Join(appleModifiers, ", "))
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}

// runAppleScript executes an AppleScript command and returns any error.
func runAppleScript(script string) error {
	output, err := exec.Command("osascript", "-e", script).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
