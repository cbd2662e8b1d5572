package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/<name>/plugin.json.
func writeManifest(t *testing.T, dir string, manifest Manifest) string {
	t.Helper()

	pluginDir := filepath.Join(dir, manifest.Name)
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		t.Fatalf("failed to marshal manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return pluginDir
}

func TestManager_Discover(t *testing.T) {
	tmpDir := t.TempDir()
	pluginDir := writeManifest(t, tmpDir, Manifest{
		Name:        "path-logger",
		Version:     "1.0.0",
		Description: "Logs waypoint paths",
		Executable:  "path-logger",
		Actions:     []string{ActionMove, ActionPing},
	})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	plugin := plugins[0]
	if plugin.Manifest.Name != "path-logger" {
		t.Errorf("expected plugin name 'path-logger', got %q", plugin.Manifest.Name)
	}
	if plugin.Path != pluginDir {
		t.Errorf("expected path %q, got %q", pluginDir, plugin.Path)
	}
	if plugin.Executable != filepath.Join(pluginDir, "path-logger") {
		t.Errorf("unexpected executable %q", plugin.Executable)
	}
	if !plugin.Manifest.Supports(ActionMove) || plugin.Manifest.Supports("click") {
		t.Errorf("unexpected action support: %v", plugin.Manifest.Actions)
	}
}

func TestManager_Discover_SkipsBadEntries(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "b", Executable: "b"})
	writeManifest(t, tmpDir, Manifest{Name: "a", Executable: "a"})

	// Invalid manifest, directory without manifest, stray file.
	bad := filepath.Join(tmpDir, "broken")
	os.MkdirAll(bad, 0755)
	os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("{not json"), 0644)
	os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755)
	os.WriteFile(filepath.Join(tmpDir, "README"), []byte("hi"), 0644)

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 2 {
		t.Fatalf("expected 2 plugins, got %d", len(plugins))
	}
	if plugins[0].Manifest.Name != "a" || plugins[1].Manifest.Name != "b" {
		t.Errorf("expected plugins sorted by name, got %q, %q", plugins[0].Manifest.Name, plugins[1].Manifest.Name)
	}
}

func TestManager_Discover_NonExistentDir(t *testing.T) {
	manager := NewManager("/path/that/does/not/exist", nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() should not fail for missing dir: %v", err)
	}
	if len(manager.List()) != 0 {
		t.Error("expected no plugins")
	}
	if manager.PluginDir() != "/path/that/does/not/exist" {
		t.Errorf("unexpected plugin dir %q", manager.PluginDir())
	}
}

func TestManager_GetAndResolve(t *testing.T) {
	tmpDir := t.TempDir()
	writeManifest(t, tmpDir, Manifest{Name: "mover", Executable: "mover", Actions: []string{ActionMove}})

	manager := NewManager(tmpDir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("mover"); err != nil {
		t.Errorf("Get() failed: %v", err)
	}
	if _, err := manager.Get("ghost"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("expected ErrPluginNotFound, got %v", err)
	}
	if _, err := manager.Resolve("mover", ActionMove); err != nil {
		t.Errorf("Resolve() failed: %v", err)
	}
	if _, err := manager.Resolve("mover", ActionPing); !errors.Is(err, ErrActionNotSupported) {
		t.Errorf("expected ErrActionNotSupported, got %v", err)
	}
}
