// Package config loads rawlog.yaml.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/logfile"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "rawlog.yaml"

// Config represents a rawlog.yaml configuration file.
type Config struct {
	Version            int    `yaml:"version"              json:"version"`
	BaseDir            string `yaml:"base_dir"             json:"base_dir"`
	Timezone           string `yaml:"timezone,omitempty"         json:"timezone,omitempty"`
	TimestampLayout    string `yaml:"timestamp_layout,omitempty" json:"timestamp_layout,omitempty"`
	DeleteOnDeactivate bool   `yaml:"delete_on_deactivate" json:"delete_on_deactivate"`
	Socket             string `yaml:"socket"               json:"socket"`
	Admin              Admin  `yaml:"admin"                json:"admin"`

	// FilePath is where the config was loaded from. Not serialized.
	FilePath string `yaml:"-" json:"-"`
}

// Admin configures the HTTP admin page served by rawlogd.
type Admin struct {
	Listen string `yaml:"listen" json:"listen"` // empty disables the page
	Path   string `yaml:"path"   json:"path"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:            1,
		BaseDir:            "${data}/rawlog",
		Timezone:           "Local",
		TimestampLayout:    core.TimestampLayout,
		DeleteOnDeactivate: true,
		Socket:             "/tmp/rawlogd.sock",
		Admin:              Admin{Path: "/rawlog"},
	}
}

// LogPath returns the log file path.
func (c *Config) LogPath() string {
	return logfile.Path(c.BaseDir)
}

// Location resolves Timezone. Empty and "Local" mean the process's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	c.FilePath = path
	return c, nil
}

// LoadOrDefault loads path, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		c = Default()
		c.interpolate(builtinVars())
		c.FilePath = path
		return c, nil
	}
	return c, err
}

// Parse decodes YAML on top of Default and expands ${var} references.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.interpolate(builtinVars())
	return c, nil
}

// Save writes the config as YAML.
func Save(c *Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment. Missing files are
// ignored; existing variables win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from RAWLOG_* variables.
func ApplyEnv(c *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup("RAWLOG_BASE_DIR"); ok && v != "" {
		c.BaseDir = v
	}
	if v, ok := lookup("RAWLOG_SOCKET"); ok && v != "" {
		c.Socket = v
	}
	if v, ok := lookup("RAWLOG_TIMEZONE"); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := lookup("RAWLOG_ADMIN_LISTEN"); ok {
		c.Admin.Listen = v
	}
	c.interpolate(builtinVars())
}

func (c *Config) interpolate(vars map[string]string) {
	c.BaseDir = expand(c.BaseDir, vars)
	c.Socket = expand(c.Socket, vars)
}

func expand(s string, vars map[string]string) string {
	for k, v := range vars {
		s = strings.ReplaceAll(s, "${"+k+"}", v)
	}
	return s
}

func builtinVars() map[string]string {
	vars := map[string]string{"tmp": os.TempDir()}
	home, err := os.UserHomeDir()
	if err == nil {
		vars["home"] = home
	}
	data := os.Getenv("XDG_DATA_HOME")
	if data == "" && home != "" {
		data = filepath.Join(home, ".local", "share")
	}
	if data != "" {
		vars["data"] = data
	}
	return vars
}
