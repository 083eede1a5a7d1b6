package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"

	"lcterm/internal/credentials"
	"lcterm/internal/scaffold"
)

const appName = "lcterm"

var ErrCorrupt = errors.New("configuration file is unreadable")

// Config is what the user sets up once and the app reads at startup.
type Config struct {
	WorkspaceRoot string     `yaml:"workspace_root" env:"LCTERM_WORKSPACE"`
	Language      string     `yaml:"language" env:"LCTERM_LANGUAGE"`
	Editor        string     `yaml:"editor" env:"LCTERM_EDITOR"`
	SessionToken  string     `yaml:"session_token,omitempty" env:"LEETCODE_SESSION"`
	CSRFToken     string     `yaml:"csrf_token,omitempty" env:"LEETCODE_CSRF"`
	BaseURL       string     `yaml:"base_url,omitempty" env:"LCTERM_BASE_URL"`
	DataDir       string     `yaml:"data_dir,omitempty" env:"LCTERM_DATA_DIR"`
	Poll          PollConfig `yaml:"poll" envPrefix:"LCTERM_POLL_"`
	UI            UIConfig   `yaml:"ui" envPrefix:"LCTERM_UI_"`
}

type PollConfig struct {
	MaxAttempts    int `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
	InitialDelayMS int `yaml:"initial_delay_ms" env:"INITIAL_DELAY_MS"`
	MaxDelayMS     int `yaml:"max_delay_ms" env:"MAX_DELAY_MS"`
}

type UIConfig struct {
	Theme       string `yaml:"theme" env:"THEME"`
	MotionLevel string `yaml:"motion_level" env:"MOTION"`
	ASCIIOnly   bool   `yaml:"ascii_only,omitempty" env:"ASCII"`
}

func DefaultConfig() Config {
	return Config{
		WorkspaceRoot: "~/leetcode",
		Language:      string(scaffold.Rust),
		Poll: PollConfig{
			MaxAttempts:    10,
			InitialDelayMS: 500,
			MaxDelayMS:     4000,
		},
		UI: UIConfig{
			Theme:       "dark",
			MotionLevel: "full",
		},
	}
}

// DefaultPath is config.yaml in the user's config directory.
func DefaultPath() (string, error) {
	return gap.NewScope(gap.User, appName).ConfigPath("config.yaml")
}

// Loaded is the outcome of Load. SetupReason is non-empty when the file was
// read but cannot be used as-is; the app then starts in setup with it.
type Loaded struct {
	Config      Config
	Found       bool
	SetupReason string
}

// Configured reports whether the app can skip setup.
func (l Loaded) Configured() bool { return l.Found && l.SetupReason == "" }

// Load reads path, applies .env and environment overrides and validates the
// result. A missing file is not an error: Found is false and the defaults
// come back so the caller can start in setup.
func Load(path string) (Loaded, error) {
	cfg := DefaultConfig()
	found := false
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Loaded{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	default:
		found = true
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Loaded{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
	}
	if err := ApplyEnv(&cfg, nil); err != nil {
		return Loaded{}, err
	}
	if err := cfg.Validate(); err != nil {
		if found {
			return Loaded{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
		return Loaded{}, err
	}
	out := Loaded{Config: cfg, Found: found}
	if _, err := cfg.Session(); err != nil {
		out.SetupReason = "Only one of the session and CSRF tokens is set; enter both, or clear both to browse anonymously"
	}
	return out, nil
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from environ, or from the process environment when
// environ is nil.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	c.WorkspaceRoot = strings.TrimSpace(c.WorkspaceRoot)
	if c.WorkspaceRoot == "" {
		return errors.New("workspace root is required")
	}
	root, err := homedir.Expand(c.WorkspaceRoot)
	if err != nil {
		return fmt.Errorf("workspace root: %w", err)
	}
	c.WorkspaceRoot = filepath.Clean(root)

	if strings.TrimSpace(c.Language) == "" {
		c.Language = string(scaffold.Rust)
	}
	lang, err := scaffold.ParseLanguage(c.Language)
	if err != nil {
		return fmt.Errorf("invalid language %q (choose one of %v)", c.Language, scaffold.Languages())
	}
	c.Language = string(lang)

	c.Editor = strings.TrimSpace(c.Editor)
	if c.Editor == "" {
		c.Editor = defaultEditor()
	}
	c.SessionToken = strings.TrimSpace(c.SessionToken)
	c.CSRFToken = strings.TrimSpace(c.CSRFToken)
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("invalid base url %q", c.BaseURL)
	}

	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 10
	}
	if c.Poll.InitialDelayMS <= 0 {
		c.Poll.InitialDelayMS = 500
	}
	if c.Poll.MaxDelayMS < c.Poll.InitialDelayMS {
		c.Poll.MaxDelayMS = max(4000, c.Poll.InitialDelayMS)
	}

	switch c.UI.Theme {
	case "", "dark", "light", "notty":
	default:
		return fmt.Errorf("invalid ui theme %q", c.UI.Theme)
	}
	if c.UI.Theme == "" {
		c.UI.Theme = "dark"
	}
	switch c.UI.MotionLevel {
	case "", "off", "reduced", "full":
	default:
		return fmt.Errorf("invalid ui motion level %q", c.UI.MotionLevel)
	}
	if c.UI.MotionLevel == "" {
		c.UI.MotionLevel = "full"
	}

	if c.DataDir == "" {
		dir, err := gap.NewScope(gap.User, appName).DataPath("")
		if err != nil {
			return errors.New("cannot resolve user data directory")
		}
		c.DataDir = dir
	} else if c.DataDir, err = homedir.Expand(c.DataDir); err != nil {
		return fmt.Errorf("data dir: %w", err)
	}
	return nil
}

// Session returns the configured tokens. Half-configured tokens come back as
// the anonymous session together with credentials.ErrPartialSession.
func (c Config) Session() (credentials.Session, error) {
	s, err := credentials.NewSession(c.SessionToken, c.CSRFToken)
	if err != nil {
		return credentials.Session{}, err
	}
	return s, nil
}

func (c Config) ScaffoldLanguage() scaffold.Language {
	return scaffold.Language(c.Language)
}

func (c Config) PollInitialDelay() time.Duration {
	return time.Duration(c.Poll.InitialDelayMS) * time.Millisecond
}

func (c Config) PollMaxDelay() time.Duration {
	return time.Duration(c.Poll.MaxDelayMS) * time.Millisecond
}

func (c Config) StatePath() string { return filepath.Join(c.DataDir, "state.db") }

// Save writes cfg to path, readable only by the user since it holds tokens.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func defaultEditor() string {
	for _, k := range []string{"VISUAL", "EDITOR"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return "vi"
}
