package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Entry != "main" {
		t.Errorf("expected default entry 'main', got %q", cfg.Entry)
	}
	if !cfg.Markdown.Tables || !cfg.Markdown.Linkify || cfg.Markdown.HeadingIDs {
		t.Errorf("unexpected default markdown flags: %+v", cfg.Markdown)
	}
	if cfg.Logging.Level != "warning" {
		t.Errorf("expected default log level 'warning', got %q", cfg.Logging.Level)
	}
	if cfg.Watch.Debounce != 100*time.Millisecond {
		t.Errorf("expected default debounce 100ms, got %v", cfg.Watch.Debounce)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestInterpolateEnv(t *testing.T) {
	getenv := func(key string) string {
		switch key {
		case "TEST_ENTRY":
			return "tools/build"
		case "TEST_LEVEL":
			return "debug"
		default:
			return ""
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple substitution",
			input:    "entry: ${TEST_ENTRY}",
			expected: "entry: tools/build",
		},
		{
			name:     "with default (env set)",
			input:    "level: ${TEST_LEVEL:-info}",
			expected: "level: debug",
		},
		{
			name:     "with default (env not set)",
			input:    "level: ${UNSET_VAR:-info}",
			expected: "level: info",
		},
		{
			name:     "multiple substitutions",
			input:    "x: ${TEST_ENTRY}@${TEST_LEVEL}",
			expected: "x: tools/build@debug",
		},
		{
			name:     "unset without default",
			input:    "entry: ${UNSET_VAR}",
			expected: "entry: ",
		},
		{
			name:     "no substitution needed",
			input:    "static: value",
			expected: "static: value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := string(interpolateEnv([]byte(tt.input), getenv))
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tendril.yaml")

	configContent := `
entry: tools/build

markdown:
  heading_ids: true
  unsafe: false

runtime:
  call_stack_size: 512
  go_stack_trace: true

logging:
  level: debug
  output: logs/tendril.log

watch:
  debounce: 250ms
  paths:
    - content
    - /abs/templates
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, path, err := LoadWithPath(configPath, os.Getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if path != configPath {
		t.Errorf("expected path %q, got %q", configPath, path)
	}
	if cfg.BaseDir != dir {
		t.Errorf("expected base dir %q, got %q", dir, cfg.BaseDir)
	}
	if cfg.Entry != "tools/build" {
		t.Errorf("expected entry 'tools/build', got %q", cfg.Entry)
	}

	// Unset keys keep their defaults
	if !cfg.Markdown.Tables || !cfg.Markdown.HeadingIDs || cfg.Markdown.Unsafe {
		t.Errorf("unexpected markdown flags: %+v", cfg.Markdown)
	}
	opts := cfg.Markdown.Options()
	if !opts.HeadingIDs || opts.Unsafe || !opts.Strikethrough {
		t.Errorf("unexpected markdown options: %+v", opts)
	}

	if cfg.Runtime.CallStackSize != 512 || !cfg.Runtime.GoStackTrace {
		t.Errorf("unexpected runtime config: %+v", cfg.Runtime)
	}

	if cfg.Logging.Verbosity() != 2 {
		t.Errorf("expected debug verbosity 2, got %d", cfg.Logging.Verbosity())
	}
	if p := cfg.Logging.Path(); p == nil || *p != filepath.Join(dir, "logs", "tendril.log") {
		t.Errorf("expected log path resolved against config dir, got %v", p)
	}

	if cfg.Watch.Debounce != 250*time.Millisecond {
		t.Errorf("expected debounce 250ms, got %v", cfg.Watch.Debounce)
	}
	want := []string{filepath.Join(dir, "content"), "/abs/templates"}
	if len(cfg.Watch.Paths) != 2 || cfg.Watch.Paths[0] != want[0] || cfg.Watch.Paths[1] != want[1] {
		t.Errorf("expected watch paths %v, got %v", want, cfg.Watch.Paths)
	}
}

func TestLoadWithEnvInterpolation(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tendril.yaml")

	configContent := `
entry: ${TENDRIL_ENTRY:-main}
logging:
  level: info
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	getenv := func(key string) string {
		if key == "TENDRIL_ENTRY" {
			return "lib/page"
		}
		return ""
	}

	cfg, err := Load(configPath, getenv)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Entry != "lib/page" {
		t.Errorf("expected entry 'lib/page', got %q", cfg.Entry)
	}

	getenvEmpty := func(key string) string { return "" }
	cfg, err = Load(configPath, getenvEmpty)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Entry != "main" {
		t.Errorf("expected entry 'main' (default), got %q", cfg.Entry)
	}
}

func TestLoadParseError(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tendril.yaml")
	if err := os.WriteFile(configPath, []byte("entry: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath, os.Getenv)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config") {
		t.Errorf("expected parse error, got %v", err)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    string
		expectErr bool
		errSubstr string
	}{
		{
			name: "valid minimal config",
			config: `
logging:
  level: info
`,
			expectErr: false,
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: verbose
`,
			expectErr: true,
			errSubstr: "invalid log level",
		},
		{
			name: "empty entry",
			config: `
entry: ""
`,
			expectErr: true,
			errSubstr: "entry must not be empty",
		},
		{
			name: "negative call stack",
			config: `
runtime:
  call_stack_size: -1
`,
			expectErr: true,
			errSubstr: "call_stack_size",
		},
		{
			name: "negative debounce",
			config: `
watch:
  debounce: -5ms
`,
			expectErr: true,
			errSubstr: "watch.debounce",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			configPath := filepath.Join(dir, "tendril.yaml")
			if err := os.WriteFile(configPath, []byte(tt.config), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			_, err := Load(configPath, os.Getenv)
			if tt.expectErr {
				if err == nil {
					t.Error("expected error, got nil")
				} else if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("expected error containing %q, got %q", tt.errSubstr, err.Error())
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	noenv := func(string) string { return "" }

	// Test explicit path not found
	if _, err := resolveConfigPath("/nonexistent/path/tendril.yaml", noenv); err == nil {
		t.Error("expected error for nonexistent path")
	}

	// Test explicit path found
	dir := t.TempDir()
	configPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	resolved, err := resolveConfigPath(configPath, noenv)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resolved != configPath {
		t.Errorf("expected %q, got %q", configPath, resolved)
	}

	// TENDRIL_CONFIG is used when no explicit path is given
	getenv := func(key string) string {
		if key == "TENDRIL_CONFIG" {
			return configPath
		}
		return ""
	}
	if resolved, err := resolveConfigPath("", getenv); err != nil || resolved != configPath {
		t.Errorf("expected %q from TENDRIL_CONFIG, got %q, %v", configPath, resolved, err)
	}

	missing := func(key string) string {
		if key == "TENDRIL_CONFIG" {
			return filepath.Join(dir, "missing.yaml")
		}
		return ""
	}
	if _, err := resolveConfigPath("", missing); err == nil {
		t.Error("expected error for missing TENDRIL_CONFIG file")
	}
}

func TestLoadWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", t.TempDir())

	cfg, path, err := LoadWithPath("", func(string) string { return "" })
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config path, got %q", path)
	}
	if cfg.Entry != "main" {
		t.Errorf("expected defaults, got entry %q", cfg.Entry)
	}
	if cfg.BaseDir == "" {
		t.Error("expected base dir to fall back to the working directory")
	}
}

func TestLoadFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(FileName, []byte("entry: lib/page\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("", func(string) string { return "" })
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Entry != "lib/page" {
		t.Errorf("expected entry from ./%s, got %q", FileName, cfg.Entry)
	}
}

func TestLoggingVerbosity(t *testing.T) {
	tests := []struct {
		level string
		want  int
	}{
		{"quiet", -4},
		{"error", -2},
		{"warning", -1},
		{"notice", 0},
		{"info", 1},
		{"debug", 2},
		{"bogus", 0},
	}
	for _, tt := range tests {
		if got := (LoggingConfig{Level: tt.level}).Verbosity(); got != tt.want {
			t.Errorf("Verbosity(%q) = %d, want %d", tt.level, got, tt.want)
		}
	}
	if (LoggingConfig{Output: "stderr"}).Path() != nil {
		t.Error("stderr output should have no path")
	}
}
