// Package main provides a keyboard plugin that presses a key when a gesture
// is recognized. It uses AppleScript on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action  string          `json:"action"`
	Gesture string          `json:"gesture"`
	Source  string          `json:"source"`
	Config  json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PressConfig is the binding configuration for the press action.
type PressConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

// appleKeyCodes maps named keys to macOS virtual key codes.
var appleKeyCodes = map[string]int{
	"space":  49,
	"return": 36,
	"enter":  36,
	"up":     126,
	"down":   125,
	"left":   123,
	"right":  124,
	"escape": 53,
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

// xdotoolKeys maps named keys to X keysyms.
var xdotoolKeys = map[string]string{
	"space":  "space",
	"return": "Return",
	"enter":  "Return",
	"up":     "Up",
	"down":   "Down",
	"left":   "Left",
	"right":  "Right",
	"escape": "Escape",
}

var xdotoolModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	if req.Action != "press" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var cfg PressConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}
	if cfg.Key == "" {
		writeErrorResponse("key is required")
		return
	}

	name, args, err := pressCommand(runtime.GOOS, cfg)
	if err != nil {
		writeErrorResponse(err.Error())
		return
	}

	if os.Getenv("BHANGRA_PLUGIN_DRY_RUN") != "" {
		data, _ := json.Marshal(map[string]any{"command": append([]string{name}, args...)})
		writeSuccessResponse(data)
		return
	}

	if out, err := exec.Command(name, args...).CombinedOutput(); err != nil {
		writeErrorResponse(fmt.Sprintf("press %s failed: %v: %s", cfg.Key, err, out))
		return
	}
	writeSuccessResponse(nil)
}

// pressCommand returns the command line that presses cfg.Key on goos.
func pressCommand(goos string, cfg PressConfig) (string, []string, error) {
	key := strings.ToLower(cfg.Key)

	switch goos {
	case "darwin":
		var mods []string
		for _, m := range cfg.Modifiers {
			if am, ok := appleModifiers[strings.ToLower(m)]; ok {
				mods = append(mods, am)
			}
		}
		stroke := fmt.Sprintf("keystroke %q", cfg.Key)
		if code, ok := appleKeyCodes[key]; ok {
			stroke = fmt.Sprintf("key code %d", code)
		}
		if len(mods) > 0 {
			stroke += " using {" + strings.Join(mods, ", ") + "}"
		}
		return "osascript", []string{"-e", `tell application "System Events" to ` + stroke}, nil

	case "linux":
		sym, ok := xdotoolKeys[key]
		if !ok {
			sym = cfg.Key
		}
		var parts []string
		for _, m := range cfg.Modifiers {
			if xm, ok := xdotoolModifiers[strings.ToLower(m)]; ok {
				parts = append(parts, xm)
			}
		}
		parts = append(parts, sym)
		return "xdotool", []string{"key", strings.Join(parts, "+")}, nil
	}

	return "", nil, fmt.Errorf("keyboard plugin does not support %s", goos)
}

func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

func writeSuccessResponse(data json.RawMessage) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: data})
}
