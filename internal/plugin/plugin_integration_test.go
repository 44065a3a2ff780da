package plugin

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// TestPlugin_Keyboard_Integration builds the bundled keyboard plugin and runs
// it in dry-run mode, so no key is actually pressed.
func TestPlugin_Keyboard_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("keyboard plugin supports linux and darwin only")
	}

	srcDir := findPluginDir("keyboard")
	if srcDir == "" {
		t.Skip("keyboard plugin sources not found")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go toolchain not available to build the plugin")
	}

	dir := t.TempDir()
	pluginDir := filepath.Join(dir, "keyboard")
	if err := os.MkdirAll(pluginDir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest, err := os.ReadFile(filepath.Join(srcDir, "plugin.json"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), manifest, 0644); err != nil {
		t.Fatal(err)
	}

	build := exec.Command(goBin, "build", "-o", filepath.Join(pluginDir, "keyboard"), ".")
	build.Dir = srcDir
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build keyboard plugin: %v\n%s", err, out)
	}

	mgr := NewManager(dir)
	if err := mgr.Discover(); err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	plug, err := mgr.Get("keyboard")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	t.Setenv("BHANGRA_PLUGIN_DRY_RUN", "1")
	executor := NewExecutor(10 * time.Second)

	resp, err := executor.Execute(context.Background(), plug, &Request{
		Action:  "press",
		Gesture: "jumping",
		Config:  json.RawMessage(`{"key":"space"}`),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("press failed: %s", resp.Error)
	}
	if !strings.Contains(string(resp.Data), "command") {
		t.Errorf("dry run data = %s", resp.Data)
	}

	// Missing key.
	resp, err = executor.Execute(context.Background(), plug, &Request{Action: "press", Config: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if resp.Success {
		t.Error("expected failure for empty key")
	}
}

func findPluginDir(name string) string {
	candidates := []string{
		filepath.Join("../../plugins", name),
		filepath.Join("../../../plugins", name),
	}

	for _, dir := range candidates {
		manifest := filepath.Join(dir, "plugin.json")
		if _, err := os.Stat(manifest); err == nil {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return dir
			}
			return abs
		}
	}
	return ""
}
