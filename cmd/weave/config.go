package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rendis/weave/internal/remotetool"
	"github.com/rendis/weave/internal/scheduler"
)

// Config holds all weave configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	BasePath string `json:"base_path"` // root for definition and file lookups
	DBPath   string `json:"db_path"`
	LogLevel string `json:"log_level"`
	LogJSON  bool   `json:"log_json"`

	MaxIterations     int `json:"max_iterations"`
	MaxLoopIterations int `json:"max_loop_iterations"`
	HistoryKeep       int `json:"history_keep"`

	// CommandRunner is the external program that serves command nodes:
	// it receives the prompt on stdin and writes the response to stdout.
	CommandRunner []string `json:"command_runner,omitempty"`

	Servers []remotetool.ServerConfig `json:"servers,omitempty"`
	Jobs    []scheduler.Job           `json:"jobs,omitempty"`
}

func defaultConfig() Config {
	return Config{
		BasePath:    ".",
		DBPath:      filepath.Join(weaveDir(), "weave.db"),
		LogLevel:    "info",
		HistoryKeep: 200,
	}
}

func weaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".weave"
	}
	return filepath.Join(home, ".weave")
}

func settingsPath() string {
	return filepath.Join(weaveDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("WEAVE_BASE_PATH"); v != "" {
		cfg.BasePath = v
	}
	if v := os.Getenv("WEAVE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("WEAVE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WEAVE_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "true" || v == "1"
	}
	if v := os.Getenv("WEAVE_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIterations = n
		}
	}
	if v := os.Getenv("WEAVE_MAX_LOOP_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxLoopIterations = n
		}
	}
	if v := os.Getenv("WEAVE_HISTORY_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryKeep = n
		}
	}

	return cfg
}
