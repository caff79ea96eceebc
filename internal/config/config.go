package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host     string
	Port     int
	Password string // admin password; empty disables the admin routes

	StaticDirectory string
	LogDirectory    string
	Debug           bool

	DatabasePath   string
	HistoryEnabled bool
	HistoryWorkers int

	DevicePath  string
	FrameWidth  int
	FrameHeight int
	BufferDepth int // camera stream buffers

	BroadcastCapacity int // pending events kept per viewer
	MaxScans          int // 0 = scan forever

	PingInterval time.Duration
	ReadTimeout  time.Duration

	ConfigFile  string
	WatchConfig bool
}

// Default returns the configuration used when nothing else is provided.
func Default() *Config {
	return &Config{
		Host:              "0.0.0.0",
		Port:              8080,
		StaticDirectory:   filepath.Join(".", "frontend", "dist"),
		LogDirectory:      filepath.Join(".", "logs"),
		DatabasePath:      filepath.Join(".", "data", "scans.db"),
		HistoryEnabled:    true,
		HistoryWorkers:    1,
		DevicePath:        "/dev/video0",
		FrameWidth:        640,
		FrameHeight:       480,
		BufferDepth:       4,
		BroadcastCapacity: 16,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// Load builds a Config from defaults, the optional TOML file at path and the
// environment (including a .env file in the working directory). Settings whose
// flag name is present in changed are left untouched so flags keep precedence.
func Load(cfg *Config, path string, changed map[string]bool) error {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if path != "" && FileExists(path) {
		fc, err := LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := ApplyFile(cfg, fc, changed); err != nil {
			return err
		}
		cfg.ConfigFile = path
	}

	if err := ApplyEnv(cfg, changed); err != nil {
		return err
	}
	return cfg.Validate()
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame size must be positive, got %dx%d", c.FrameWidth, c.FrameHeight)
	}
	if c.BufferDepth <= 0 {
		return fmt.Errorf("buffer depth must be positive")
	}
	if c.BroadcastCapacity <= 0 {
		return fmt.Errorf("broadcast capacity must be positive")
	}
	if c.HistoryWorkers <= 0 {
		return fmt.Errorf("history workers must be positive")
	}
	if c.MaxScans < 0 {
		return fmt.Errorf("max scans must not be negative")
	}
	if c.PingInterval <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("ping interval and read timeout must be positive")
	}
	if c.PingInterval >= c.ReadTimeout {
		return fmt.Errorf("ping interval (%s) must be shorter than read timeout (%s)", c.PingInterval, c.ReadTimeout)
	}
	if c.DevicePath == "" {
		return fmt.Errorf("device path is required")
	}
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Reload re-reads the TOML file at path on top of a copy of base, then the
// environment. Flags recorded in changed keep their values.
func Reload(base *Config, path string, changed map[string]bool) (*Config, error) {
	cfg := *base

	fc, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := ApplyFile(&cfg, fc, changed); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg, changed); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
