package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danderson/rom"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "romctl.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
modules = ["core.kmd.yaml", "/etc/rom/filters.kmd.json"]
format = "cbor"
max_depth = 16
`)
	got, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := config{
		Modules: []string{
			filepath.Join(filepath.Dir(path), "core.kmd.yaml"),
			"/etc/rom/filters.kmd.json",
		},
		Format:   "cbor",
		MaxDepth: 16,
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong config (-got+want):\n%s", diff)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	got, err := loadConfig(writeConfig(t, "# nothing\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	want := config{MaxDepth: rom.DefaultMaxDepth}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("wrong config (-got+want):\n%s", diff)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"unknown key", `formats = "json"`, "unknown keys"},
		{"bad format", `format = "xml"`, `unknown wire format "xml"`},
		{"bad depth", `max_depth = 0`, "max_depth must be positive"},
		{"bad syntax", `modules = [`, "loading config"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("loadConfig succeeded, want error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("loadConfig error %q does not contain %q", err, tc.wantErr)
			}
		})
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("loading a missing config succeeded")
	}
}
