package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"SCAFFOLD_PORT":                "9090",
		"SCAFFOLD_DB":                  "/var/lib/yard.db",
		"SCAFFOLD_LOG_LEVEL":           "DEBUG",
		"SCAFFOLD_LOG_FORMAT":          "json",
		"SCAFFOLD_CORS_ORIGINS":        "https://yard.example.com, http://localhost:3000,",
		"SCAFFOLD_CHECKLIST_TEMPLATES": "templates.yaml",
		"SCAFFOLD_AUDIT_INTERVAL":      "15m",
	}))

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/var/lib/yard.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://yard.example.com", "http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "templates.yaml", cfg.ChecklistTemplates)
	assert.Equal(t, 15*time.Minute, cfg.AuditInterval)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"non-numeric port", map[string]string{"SCAFFOLD_PORT": "http"}},
		{"port out of range", map[string]string{"SCAFFOLD_PORT": "70000"}},
		{"unknown level", map[string]string{"SCAFFOLD_LOG_LEVEL": "trace"}},
		{"unknown format", map[string]string{"SCAFFOLD_LOG_FORMAT": "xml"}},
		{"bad interval", map[string]string{"SCAFFOLD_AUDIT_INTERVAL": "hourly"}},
		{"negative interval", map[string]string{"SCAFFOLD_AUDIT_INTERVAL": "-1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromEnv(lookupFrom(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SCAFFOLD_PORT", "8181")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8181, cfg.Port)
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "equipment_id", 7)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"equipment_id":7`)
}
