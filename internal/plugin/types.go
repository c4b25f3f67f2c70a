// Package plugin runs external input plugins that act on the screen for the reroll loop.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Executable  string   `json:"executable"`
	Actions     []string `json:"actions"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request represents a request sent to a plugin for execution.
type Request struct {
	Action string          `json:"action"`
	Source string          `json:"source,omitempty"` // template that produced the request
	Params json.RawMessage `json:"params"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// ClickParams are the params of a "click" request.
type ClickParams struct {
	X int `json:"x"`
	Y int `json:"y"`
	// MoveMs is how long the pointer takes to travel to the target; 0 jumps.
	MoveMs int `json:"move_ms,omitempty"`
}
