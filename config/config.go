package config

import (
	"time"

	"github.com/sambeau/tendril/pkg/tendril/markdown"
)

// Config represents the complete tendril configuration
type Config struct {
	BaseDir  string         `yaml:"-"`     // Directory containing config file, for resolving relative paths
	Entry    string         `yaml:"entry"` // Embedded resource run at startup (default: "main")
	Markdown MarkdownConfig `yaml:"markdown"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
}

// MarkdownConfig selects the markdown extensions
type MarkdownConfig struct {
	Tables        bool `yaml:"tables"`
	Strikethrough bool `yaml:"strikethrough"`
	Linkify       bool `yaml:"linkify"`     // Bare URLs and e-mail addresses become links
	TaskList      bool `yaml:"task_list"`   // - [ ] / - [x] items
	HeadingIDs    bool `yaml:"heading_ids"` // id attributes on headings
	Unsafe        bool `yaml:"unsafe"`      // Pass raw HTML through
}

// Options converts the section to converter options.
func (m MarkdownConfig) Options() markdown.Options {
	return markdown.Options{
		Tables:        m.Tables,
		Strikethrough: m.Strikethrough,
		Linkify:       m.Linkify,
		TaskList:      m.TaskList,
		HeadingIDs:    m.HeadingIDs,
		Unsafe:        m.Unsafe,
	}
}

// RuntimeConfig sizes the Lua state
type RuntimeConfig struct {
	CallStackSize int  `yaml:"call_stack_size"` // 0 uses the runtime default
	RegistrySize  int  `yaml:"registry_size"`   // 0 uses the runtime default
	GoStackTrace  bool `yaml:"go_stack_trace"`  // Include Go stacks in panics raised by natives
}

// LoggingConfig holds host logging settings. Script output always goes
// to stdout.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // quiet, critical, error, warning, notice, info, debug
	Output string `yaml:"output"` // stderr or file path
}

// levels maps level names to commonlog verbosity.
var levels = map[string]int{
	"quiet":    -4,
	"critical": -3,
	"error":    -2,
	"warning":  -1,
	"notice":   0,
	"info":     1,
	"debug":    2,
}

// Verbosity returns the commonlog verbosity for the configured level.
func (l LoggingConfig) Verbosity() int {
	if v, ok := levels[l.Level]; ok {
		return v
	}
	return 0
}

// Path returns the log file path, or nil for stderr.
func (l LoggingConfig) Path() *string {
	if l.Output == "" || l.Output == "stderr" {
		return nil
	}
	p := l.Output
	return &p
}

// WatchConfig holds --watch settings
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"` // Quiet period between runs (e.g. "250ms")
	Paths    []string      `yaml:"paths"`    // Extra files or directories to watch
}

// Defaults returns a Config with sensible defaults
func Defaults() *Config {
	md := markdown.DefaultOptions()
	return &Config{
		Entry: "main",
		Markdown: MarkdownConfig{
			Tables:        md.Tables,
			Strikethrough: md.Strikethrough,
			Linkify:       md.Linkify,
			TaskList:      md.TaskList,
			HeadingIDs:    md.HeadingIDs,
			Unsafe:        md.Unsafe,
		},
		Logging: LoggingConfig{
			Level:  "warning",
			Output: "stderr",
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
	}
}
