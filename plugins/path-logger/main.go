// Package main provides a dry-run executor plugin. Instead of moving a
// pointer it appends each received path to a JSON lines file for offline
// inspection.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/plugin"
)

// logEnv names the environment variable holding the log file path.
const logEnv = "CURSORFLOW_PATH_LOG"

// Config is the plugin configuration passed in the request.
type Config struct {
	File string `json:"file"`
}

// Entry is one line of the path log.
type Entry struct {
	Time      time.Time    `json:"time"`
	Cursor    *geom.Point  `json:"cursor,omitempty"`
	Target    *geom.Point  `json:"target,omitempty"`
	Waypoints int          `json:"waypoints"`
	Length    float64      `json:"length"`
	Path      []geom.Point `json:"path"`
}

type moveData struct {
	File      string `json:"file"`
	Waypoints int    `json:"waypoints"`
}

var errEmptyPath = errors.New("path has no waypoints")

func main() {
	// Read request from stdin
	var req plugin.Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(os.Stdout, errorResponse(fmt.Sprintf("failed to decode request: %v", err)))
		return
	}

	writeResponse(os.Stdout, handle(&req, time.Now()))
}

// handle runs a single request.
func handle(req *plugin.Request, now time.Time) plugin.Response {
	switch req.Action {
	case plugin.ActionPing:
		return plugin.Response{Success: true}
	case plugin.ActionMove:
		file, err := logFile(req.Config)
		if err != nil {
			return errorResponse(err.Error())
		}
		if err := appendEntry(file, req, now); err != nil {
			return errorResponse(fmt.Sprintf("action move failed: %v", err))
		}
		data, _ := json.Marshal(moveData{File: file, Waypoints: len(req.Path)})
		return plugin.Response{Success: true, Data: data}
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

// logFile resolves the log destination: config, then environment, then the
// temp dir.
func logFile(raw json.RawMessage) (string, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return "", fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if cfg.File != "" {
		return cfg.File, nil
	}
	if env := os.Getenv(logEnv); env != "" {
		return env, nil
	}
	return filepath.Join(os.TempDir(), "cursorflow-paths.jsonl"), nil
}

func appendEntry(file string, req *plugin.Request, now time.Time) error {
	if len(req.Path) == 0 {
		return errEmptyPath
	}

	line, err := json.Marshal(Entry{
		Time:      now,
		Cursor:    req.Cursor,
		Target:    req.Target,
		Waypoints: len(req.Path),
		Length:    pathLength(req.Path),
		Path:      req.Path,
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// pathLength is the polyline length of path, rounded to 0.01 px.
func pathLength(path []geom.Point) float64 {
	var total float64
	for i := 1; i < len(path); i++ {
		total += geom.Distance(path[i-1], path[i])
	}
	return math.Round(total*100) / 100
}

func errorResponse(msg string) plugin.Response {
	return plugin.Response{Success: false, Error: msg}
}

func writeResponse(w io.Writer, resp plugin.Response) {
	json.NewEncoder(w).Encode(resp)
}
