package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ApplyEnv applies configuration from environment variables.
// These override file config but are overridden by flags (checked via changed map).
func ApplyEnv(cfg *Config, changed map[string]bool) error {
	s := newSetter(changed)

	s.setString("host", os.Getenv("HOST"), &cfg.Host)
	s.setString("password", os.Getenv("PASSWORD"), &cfg.Password)
	s.setString("static-dir", os.Getenv("STATIC_DIR"), &cfg.StaticDirectory)
	s.setString("log-dir", os.Getenv("LOG_DIR"), &cfg.LogDirectory)
	s.setString("db", os.Getenv("DATABASE_PATH"), &cfg.DatabasePath)
	s.setString("device", os.Getenv("VIDEO_DEVICE"), &cfg.DevicePath)

	ints := []struct {
		flag string
		env  string
		dst  *int
	}{
		{"port", "PORT", &cfg.Port},
		{"history-workers", "HISTORY_WORKERS", &cfg.HistoryWorkers},
		{"width", "FRAME_WIDTH", &cfg.FrameWidth},
		{"height", "FRAME_HEIGHT", &cfg.FrameHeight},
		{"buffers", "BUFFER_DEPTH", &cfg.BufferDepth},
		{"backlog", "BROADCAST_CAPACITY", &cfg.BroadcastCapacity},
		{"max-scans", "MAX_SCANS", &cfg.MaxScans},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, os.Getenv(i.env), i.dst); err != nil {
			return err
		}
	}

	if err := s.setDuration("ping-interval", os.Getenv("PING_INTERVAL"), &cfg.PingInterval); err != nil {
		return err
	}
	if err := s.setDuration("read-timeout", os.Getenv("READ_TIMEOUT"), &cfg.ReadTimeout); err != nil {
		return err
	}

	s.setBoolFromString("debug", os.Getenv("DEBUG"), &cfg.Debug)
	s.setBoolFromString("history", os.Getenv("HISTORY_ENABLED"), &cfg.HistoryEnabled)
	s.setBoolFromString("watch-config", os.Getenv("WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}

// setter applies configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type setter struct {
	changed map[string]bool
}

func newSetter(changed map[string]bool) *setter {
	if changed == nil {
		changed = map[string]bool{}
	}
	return &setter{changed: changed}
}

func (s *setter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *setter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *setter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *setter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *setter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
