package testdata

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/ayusman/cursorflow/internal/detector"
)

//go:embed traces/*.json
var tracesFS embed.FS

// LoadTrace loads a recorded detection trace by name, without extension.
func LoadTrace(name string) ([]detector.Detection, error) {
	data, err := tracesFS.ReadFile(path.Join("traces", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", name, err)
	}

	var detections []detector.Detection
	if err := json.Unmarshal(data, &detections); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", name, err)
	}
	return detections, nil
}

// Traces lists the available trace names.
func Traces() ([]string, error) {
	entries, err := tracesFS.ReadDir("traces")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".json"))
	}
	return names, nil
}
