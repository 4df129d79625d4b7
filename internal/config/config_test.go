package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := "jobs: 4\ncolor: never\ngit_command: /usr/local/bin/git\nprobe_timeout_ms: 5000\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.GetJobs() != 4 {
		t.Errorf("GetJobs() = %d, want 4", cfg.GetJobs())
	}
	if cfg.GetColor() != ColorNever {
		t.Errorf("GetColor() = %q, want never", cfg.GetColor())
	}
	if cfg.GetGitCommand() != "/usr/local/bin/git" {
		t.Errorf("GetGitCommand() = %q", cfg.GetGitCommand())
	}
	if cfg.GetHgCommand() != DefaultHgCommand {
		t.Errorf("GetHgCommand() = %q, want default", cfg.GetHgCommand())
	}
	if cfg.ProbeTimeout() != 5*time.Second {
		t.Errorf("ProbeTimeout() = %v, want 5s", cfg.ProbeTimeout())
	}

	// Verify Save() works (path should be set from Load)
	cfg.Jobs = 8
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	cfg2, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() after save failed: %v", err)
	}
	if cfg2.Jobs != 8 {
		t.Errorf("Jobs after reload = %d, want 8", cfg2.Jobs)
	}
	if cfg2.ConfigVersion == "" {
		t.Error("Save() did not stamp config_version")
	}
}

func TestLoadNotFound(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := Load(configPath); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("Load() error = %v, want ErrConfigNotFound", err)
	}

	cfg, err := LoadOrDefault(configPath)
	if err != nil {
		t.Fatalf("LoadOrDefault() failed: %v", err)
	}
	if cfg.GetJobs() != DefaultJobs || cfg.GetColor() != DefaultColor {
		t.Errorf("LoadOrDefault() = %+v, want defaults", cfg)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "jobs: [1,\n"},
		{"type", "jobs: many\n"},
		{"negative jobs", "jobs: -2\n"},
		{"bad color", "color: purple\n"},
		{"negative timeout", "probe_timeout_ms: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(configPath); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestMigrateColor(t *testing.T) {
	tests := map[string]string{
		"yes":    ColorAlways,
		"true":   ColorAlways,
		"off":    ColorNever,
		"Never":  ColorNever,
		"AUTO":   ColorAuto,
		"":       "",
		"always": ColorAlways,
	}
	for in, want := range tests {
		cfg := &Config{Color: in}
		if err := cfg.Migrate(); err != nil {
			t.Fatal(err)
		}
		if cfg.Color != want {
			t.Errorf("Migrate(%q) color = %q, want %q", in, cfg.Color, want)
		}
	}
}

func TestGettersOnNil(t *testing.T) {
	var cfg *Config
	if cfg.GetJobs() != DefaultJobs {
		t.Errorf("GetJobs() = %d", cfg.GetJobs())
	}
	if cfg.GetGitCommand() != DefaultGitCommand || cfg.GetHgCommand() != DefaultHgCommand {
		t.Error("nil config commands not defaulted")
	}
	if cfg.ProbeTimeout() != 30*time.Second {
		t.Errorf("ProbeTimeout() = %v", cfg.ProbeTimeout())
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/tmp/custom.yaml")
	p, err := DefaultPath()
	if err != nil || p != "/tmp/custom.yaml" {
		t.Errorf("DefaultPath() = %q, %v", p, err)
	}

	home := t.TempDir()
	t.Setenv(EnvConfigPath, "")
	t.Setenv("HOME", home)
	p, err = DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(p, home) || filepath.Base(p) != "config.yaml" {
		t.Errorf("DefaultPath() = %q", p)
	}
}

func TestSaveWithoutPath(t *testing.T) {
	if err := (&Config{}).Save(); err == nil {
		t.Error("Save() without path succeeded")
	}
}

func TestSetAndGet(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		want    string
		wantErr error
	}{
		{name: "jobs", key: "jobs", value: "4", want: "4"},
		{name: "legacy colour value", key: "color", value: "Yes", want: ColorAlways},
		{name: "git executable", key: "git_command", value: "/opt/git/bin/git", want: "/opt/git/bin/git"},
		{name: "probe timeout", key: "probe_timeout_ms", value: "1500", want: "1500"},
		{name: "not a number", key: "jobs", value: "many", wantErr: ErrInvalidConfig},
		{name: "negative jobs", key: "jobs", value: "-2", wantErr: ErrInvalidConfig},
		{name: "bad colour", key: "color", value: "purple", wantErr: ErrInvalidConfig},
		{name: "unknown key", key: "editor", value: "vi", wantErr: ErrUnknownKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := CreateDefault("")
			before := *cfg
			err := cfg.Set(tt.key, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Set() error = %v, want %v", err, tt.wantErr)
				}
				if *cfg != before {
					t.Errorf("failed Set() changed config to %+v", *cfg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			got, err := cfg.Get(tt.key)
			if err != nil || got != tt.want {
				t.Errorf("Get() = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}

func TestSetThenSavePersists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := LoadOrDefault(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path() != configPath {
		t.Errorf("Path() = %q, want %q", cfg.Path(), configPath)
	}
	if err := cfg.Set("color", "never"); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.GetColor() != ColorNever {
		t.Errorf("color after reload = %q, want never", reloaded.GetColor())
	}
	for _, key := range Keys() {
		if _, err := reloaded.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}
