// Package config loads server settings from the environment.
//
// An optional .env file in the working directory is read first; variables
// already set in the environment win over it. Every key carries the
// SCAFFOLD_ prefix:
//
//	SCAFFOLD_PORT                 HTTP port (8080)
//	SCAFFOLD_DB                   SQLite path (scaffold.db)
//	SCAFFOLD_LOG_LEVEL            debug, info, warn, error (info)
//	SCAFFOLD_LOG_FORMAT           text or json (text)
//	SCAFFOLD_CORS_ORIGINS         comma-separated allowed origins
//	SCAFFOLD_CHECKLIST_TEMPLATES  optional YAML templates file
//	SCAFFOLD_AUDIT_INTERVAL       ledger audit period, 0 disables (1h)
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const prefix = "SCAFFOLD_"

type Config struct {
	Port               int
	DBPath             string
	LogLevel           string
	LogFormat          string
	CORSOrigins        []string
	ChecklistTemplates string
	AuditInterval      time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Port:          8080,
		DBPath:        "scaffold.db",
		LogLevel:      "info",
		LogFormat:     "text",
		AuditInterval: time.Hour,
	}
}

// Load reads .env (if present) and the environment on top of Default.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup without touching .env.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(prefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%sPORT: %w", prefix, err)
		}
		cfg.Port = port
	}
	if v, ok := get("DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}
	if v, ok := get("CHECKLIST_TEMPLATES"); ok {
		cfg.ChecklistTemplates = v
	}
	if v, ok := get("AUDIT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%sAUDIT_INTERVAL: %w", prefix, err)
		}
		cfg.AuditInterval = d
	}

	return cfg, cfg.Validate()
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format must be text or json, got %q", c.LogFormat)
	}
	if c.AuditInterval < 0 {
		return fmt.Errorf("audit interval must not be negative, got %s", c.AuditInterval)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// NewLogger builds the application logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log level must be debug, info, warn or error, got %q", s)
}
