package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Paths   Paths   `yaml:"paths"`
	Scan    Scan    `yaml:"scan"`
	Queue   Queue   `yaml:"queue"`
	Sync    Sync    `yaml:"sync"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Paths struct {
	RawRoot     string `yaml:"raw_root"`
	DataDir     string `yaml:"data_dir"`
	OutputDir   string `yaml:"output_dir"`
	MasterFile  string `yaml:"master_file"`
	MasterSheet string `yaml:"master_sheet"`
}

type Scan struct {
	CreateMissing bool     `yaml:"create_missing"`
	Extensions    []string `yaml:"extensions"`
}

type Queue struct {
	LockTimeout     time.Duration `yaml:"lock_timeout"`
	ProcessingLease time.Duration `yaml:"processing_lease"`
}

type Sync struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for qualitypipe.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "qualitypipe")
}

// DataDir returns the XDG data directory for qualitypipe.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "qualitypipe")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/qualitypipe/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'qualitypipe init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Paths: Paths{MasterSheet: "Project List"},
		Scan:  Scan{Extensions: []string{".csv", ".xlsx"}},
		Queue: Queue{
			LockTimeout:     30 * time.Second,
			ProcessingLease: 2 * time.Hour,
		},
		Sync:    Sync{Timeout: 10 * time.Minute},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO", Format: "text"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, ext := range c.Scan.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Scan.Extensions[i] = ext
	}
	if c.Queue.LockTimeout <= 0 {
		return fmt.Errorf("queue.lock_timeout must be positive, got %s", c.Queue.LockTimeout)
	}
	if c.Queue.ProcessingLease < 0 {
		return fmt.Errorf("queue.processing_lease must not be negative, got %s", c.Queue.ProcessingLease)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Paths.DataDir != "" {
		return expandHome(c.Paths.DataDir)
	}
	return DataDir()
}

// GetOutputDir returns the parquet root, defaulting under the data directory.
func (c *Config) GetOutputDir() string {
	if c.Paths.OutputDir != "" {
		return expandHome(c.Paths.OutputDir)
	}
	return filepath.Join(c.GetDataDir(), "parquet")
}

// GetRawRoot returns the vendor folder root.
func (c *Config) GetRawRoot() string {
	return expandHome(c.Paths.RawRoot)
}

// GetMasterFile returns the project master list path.
func (c *Config) GetMasterFile() string {
	return expandHome(c.Paths.MasterFile)
}

// DBPath returns the sqlite store location.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "qualitypipe.db")
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
