// Package plugin discovers and runs out-of-process executors that apply
// generated waypoint paths to a real or virtual pointer.
package plugin

import (
	"encoding/json"
	"slices"

	"github.com/ayusman/cursorflow/internal/geom"
)

// Actions understood by executor plugins.
const (
	// ActionMove asks the plugin to walk the pointer along Path.
	ActionMove = "move"
	// ActionPing checks that the plugin starts and answers.
	ActionPing = "ping"
)

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// Supports reports whether the manifest lists action.
func (m Manifest) Supports(action string) bool {
	return slices.Contains(m.Actions, action)
}

// Request is written to the plugin's stdin as a single JSON document.
type Request struct {
	Action string       `json:"action"`
	Path   []geom.Point `json:"path,omitempty"`
	// Target is the predicted point the path leads to.
	Target *geom.Point `json:"target,omitempty"`
	// Cursor is the pointer position the path starts from.
	Cursor *geom.Point     `json:"cursor,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// NewMoveRequest builds a move request for path.
func NewMoveRequest(cursor, target geom.Point, path []geom.Point) *Request {
	return &Request{
		Action: ActionMove,
		Path:   path,
		Target: &target,
		Cursor: &cursor,
	}
}

// Response is read from the plugin's stdout.
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
