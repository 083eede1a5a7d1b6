package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"lcterm/internal/credentials"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LCTERM_DATA_DIR", filepath.Join(dir, "data"))
	loaded, err := Load(filepath.Join(dir, "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := loaded.Config
	if loaded.Found || loaded.Configured() {
		t.Fatalf("expected missing file to report not found")
	}
	if cfg.Language != "rust" || cfg.Poll.MaxAttempts != 10 || cfg.UI.Theme != "dark" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("workspace_root: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected corrupt config error, got %v", err)
	}
}

func TestLoadInvalidValuesAreCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "workspace_root: " + dir + "\nlanguage: cobol\ndata_dir: " + dir + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected invalid language to fail load, got %v", err)
	}
}

func TestSaveLoadRoundTripWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.WorkspaceRoot = filepath.Join(dir, "ws")
	cfg.Language = "golang"
	cfg.Editor = "nvim"
	cfg.SessionToken = "sid"
	cfg.CSRFToken = "tok"
	cfg.DataDir = filepath.Join(dir, "data")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Language != "go" {
		t.Fatalf("expected language alias to normalise, got %q", cfg.Language)
	}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	t.Setenv("LCTERM_EDITOR", "code --wait")
	loaded, err := Load(path)
	if err != nil || !loaded.Configured() {
		t.Fatalf("load: %+v err=%v", loaded, err)
	}
	got := loaded.Config
	if got.Editor != "code --wait" || got.WorkspaceRoot != cfg.WorkspaceRoot || got.Language != "go" {
		t.Fatalf("unexpected config %+v", got)
	}
	s, err := got.Session()
	if err != nil || !s.Present() {
		t.Fatalf("expected session, got %+v %v", s, err)
	}
}

func TestApplyEnvNestedOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(&cfg, map[string]string{
		"LCTERM_POLL_MAX_ATTEMPTS": "3",
		"LCTERM_UI_THEME":          "light",
		"LEETCODE_SESSION":         "sid",
	})
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Poll.MaxAttempts != 3 || cfg.UI.Theme != "light" || cfg.SessionToken != "sid" {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
}

func TestPartialSessionIsRejected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionToken = "sid"
	s, err := cfg.Session()
	if !errors.Is(err, credentials.ErrPartialSession) {
		t.Fatalf("expected partial session error, got %v", err)
	}
	if s.Present() {
		t.Fatalf("expected anonymous session")
	}
}

func TestLoadPartialSessionNeedsSetup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "workspace_root: " + dir + "\nsession_token: sid\ndata_dir: " + dir + "\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("LEETCODE_CSRF", "")
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !loaded.Found || loaded.Configured() || loaded.SetupReason == "" {
		t.Fatalf("expected partial tokens to send the user to setup, got %+v", loaded)
	}
	if loaded.Config.SessionToken != "sid" {
		t.Fatalf("expected tokens kept for the setup form, got %q", loaded.Config.SessionToken)
	}
}

func TestValidateExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.WorkspaceRoot == "~/leetcode" || !filepath.IsAbs(cfg.WorkspaceRoot) {
		t.Fatalf("expected expanded workspace, got %q", cfg.WorkspaceRoot)
	}
	cfg.UI.Theme = "neon"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid theme to fail")
	}
}
