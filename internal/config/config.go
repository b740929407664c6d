// Package config loads pocket's HCL configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/pocket/internal/lang"
	"github.com/agentic-research/pocket/internal/session"
)

// DefaultEndpoint is the public Piston execution API.
const DefaultEndpoint = "https://emkc.org/api/v2/piston/execute"

// Config is the decoded configuration file.
type Config struct {
	Root        string     `hcl:"root,optional"`
	Namespace   string     `hcl:"namespace,optional"`
	Registry    string     `hcl:"registry,optional"`
	SavePolicy  string     `hcl:"save_policy,optional"`
	LogLevel    string     `hcl:"log_level,optional"`
	LogFormat   string     `hcl:"log_format,optional"`
	MetricsAddr string     `hcl:"metrics_addr,optional"`
	Templates   string     `hcl:"templates,optional"`
	Execution   *Execution `hcl:"execution,block"`
	Languages   []Language `hcl:"language,block"`
}

// Execution configures the snippet runners.
type Execution struct {
	Endpoint     string `hcl:"endpoint,optional"`
	Timeout      string `hcl:"timeout,optional"`
	LocalTimeout string `hcl:"local_timeout,optional"`
	MaxCallStack int    `hcl:"max_call_stack,optional"`
}

// Language registers a custom extension.
type Language struct {
	Ext string `hcl:"ext,label"`
	Tag string `hcl:"tag"`
}

// DefaultPath returns $XDG_CONFIG_HOME/pocket/config.hcl.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.hcl"
	}
	return filepath.Join(dir, "pocket", "config.hcl")
}

// Load reads the file at path, applies defaults and environment overrides.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = DefaultPath()
	}
	src, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := Parse(filepath.Base(path), src, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes HCL source into cfg. filename is used for diagnostics and
// must carry an .hcl extension.
func Parse(filename string, src []byte, cfg *Config) error {
	if !strings.HasSuffix(filename, ".hcl") {
		filename += ".hcl"
	}
	if err := hclsimple.Decode(filename, src, nil, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("POCKET_ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv("POCKET_REGISTRY"); v != "" {
		c.Registry = v
	}
	if v := os.Getenv("POCKET_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("POCKET_PISTON_URL"); v != "" {
		if c.Execution == nil {
			c.Execution = &Execution{}
		}
		c.Execution.Endpoint = v
	}
}

func (c *Config) applyDefaults() {
	if c.Root == "" {
		c.Root = "~/Documents"
	}
	if c.Namespace == "" {
		c.Namespace = "PocketCodeStudio"
	}
	if c.Registry == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = "."
		}
		c.Registry = filepath.Join(dir, "pocket", "recent.db")
	}
	if c.SavePolicy == "" {
		c.SavePolicy = session.SaveOnSwitch
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Execution == nil {
		c.Execution = &Execution{}
	}
	if c.Execution.Endpoint == "" {
		c.Execution.Endpoint = DefaultEndpoint
	}
	if c.Execution.Timeout == "" {
		c.Execution.Timeout = "10s"
	}
	if c.Execution.LocalTimeout == "" {
		c.Execution.LocalTimeout = "5s"
	}
	if c.Execution.MaxCallStack == 0 {
		c.Execution.MaxCallStack = 1024
	}
	c.Root = expandHome(c.Root)
	c.Registry = expandHome(c.Registry)
	c.Templates = expandHome(c.Templates)
}

// Validate checks enumerations and durations.
func (c *Config) Validate() error {
	switch c.SavePolicy {
	case session.SaveManual, session.SaveOnSwitch:
	default:
		return fmt.Errorf("save_policy %q: want %q or %q", c.SavePolicy, session.SaveManual, session.SaveOnSwitch)
	}
	if _, err := time.ParseDuration(c.Execution.Timeout); err != nil {
		return fmt.Errorf("execution.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Execution.LocalTimeout); err != nil {
		return fmt.Errorf("execution.local_timeout: %w", err)
	}
	for _, l := range c.Languages {
		if l.Tag == "" {
			return fmt.Errorf("language %q: empty tag", l.Ext)
		}
	}
	return nil
}

// RemoteTimeout is the execution service deadline.
func (c *Config) RemoteTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Execution.Timeout)
	return d
}

// LocalTimeout bounds local script evaluation.
func (c *Config) LocalTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Execution.LocalTimeout)
	return d
}

// Resolver returns a language resolver carrying the custom extension
// mappings.
func (c *Config) Resolver() *lang.Resolver {
	r := lang.NewResolver()
	for _, l := range c.Languages {
		r.Register(l.Ext, lang.Tag(l.Tag))
	}
	return r
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
