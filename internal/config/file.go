package config

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	Password          string `toml:"password"`
	StaticDir         string `toml:"static_dir"`
	LogDir            string `toml:"log_dir"`
	Debug             *bool  `toml:"debug"`
	DatabasePath      string `toml:"database_path"`
	HistoryEnabled    *bool  `toml:"history_enabled"`
	HistoryWorkers    int    `toml:"history_workers"`
	Device            string `toml:"device"`
	Width             int    `toml:"width"`
	Height            int    `toml:"height"`
	BufferDepth       int    `toml:"buffer_depth"`
	BroadcastCapacity int    `toml:"broadcast_capacity"`
	MaxScans          int    `toml:"max_scans"`
	PingInterval      string `toml:"ping_interval"`
	ReadTimeout       string `toml:"read_timeout"`
	WatchConfig       *bool  `toml:"watch_config"`
}

// LoadFile reads and parses a TOML config file from the given path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ./kiosk.toml when present, otherwise ~/.kiosk/config.toml.
func DefaultConfigPath() string {
	if FileExists("kiosk.toml") {
		return "kiosk.toml"
	}
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".kiosk", "config.toml")
	}
	return ""
}

// ApplyFile applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFile(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newSetter(changed)

	s.setString("host", fc.Host, &cfg.Host)
	s.setString("password", fc.Password, &cfg.Password)
	s.setString("static-dir", fc.StaticDir, &cfg.StaticDirectory)
	s.setString("log-dir", fc.LogDir, &cfg.LogDirectory)
	s.setString("db", fc.DatabasePath, &cfg.DatabasePath)
	s.setString("device", fc.Device, &cfg.DevicePath)

	s.setInt("port", fc.Port, &cfg.Port)
	s.setInt("history-workers", fc.HistoryWorkers, &cfg.HistoryWorkers)
	s.setInt("width", fc.Width, &cfg.FrameWidth)
	s.setInt("height", fc.Height, &cfg.FrameHeight)
	s.setInt("buffers", fc.BufferDepth, &cfg.BufferDepth)
	s.setInt("backlog", fc.BroadcastCapacity, &cfg.BroadcastCapacity)
	s.setInt("max-scans", fc.MaxScans, &cfg.MaxScans)

	if err := s.setDuration("ping-interval", fc.PingInterval, &cfg.PingInterval); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", fc.ReadTimeout, &cfg.ReadTimeout); err != nil {
		return err
	}

	s.setBool("debug", fc.Debug, &cfg.Debug)
	s.setBool("history", fc.HistoryEnabled, &cfg.HistoryEnabled)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}
