package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// fdEnvKeys — все переменные окружения процесса.
var fdEnvKeys = []string{
	"FD_PORT", "FD_SETTINGS_FILE", "FD_TEMP_DIR", "FD_MAX_FILE_SIZE",
	"FD_PURGE_CRON", "FD_RECONCILE_CRON", "FD_TLS_CERT", "FD_TLS_KEY",
	"FD_LOG_LEVEL", "FD_LOG_FORMAT", "FD_DEPHEALTH_CHECK_INTERVAL",
	"FD_SERVICE_NAME", "FD_SHUTDOWN_TIMEOUT",
}

// clearFDEnv очищает переменные FD_* на время теста.
// t.Setenv восстанавливает исходные значения после теста.
func clearFDEnv(t *testing.T) {
	t.Helper()
	for _, k := range fdEnvKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearFDEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, ожидалось 8080", cfg.Port)
	}
	if cfg.TempDir != os.TempDir() {
		t.Errorf("TempDir = %q, ожидалось %q", cfg.TempDir, os.TempDir())
	}
	if cfg.MaxFileSize != 1073741824 {
		t.Errorf("MaxFileSize = %d, ожидалось 1073741824", cfg.MaxFileSize)
	}
	if cfg.PurgeCron != "*/5 * * * *" {
		t.Errorf("PurgeCron = %q", cfg.PurgeCron)
	}
	if cfg.ReconcileCron != "0 * * * *" {
		t.Errorf("ReconcileCron = %q", cfg.ReconcileCron)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидалось INFO", cfg.LogLevel)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, ожидалось json", cfg.LogFormat)
	}
	if cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("DephealthCheckInterval = %v, ожидалось 15s", cfg.DephealthCheckInterval)
	}
	if cfg.ServiceName != "filedrop" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, ожидалось 5s", cfg.ShutdownTimeout)
	}
	if cfg.TLSEnabled() {
		t.Error("TLS не должен быть включён по умолчанию")
	}
}

func TestLoad_AllCustomValues(t *testing.T) {
	clearFDEnv(t)
	vars := map[string]string{
		"FD_PORT":                     "9090",
		"FD_SETTINGS_FILE":            "/etc/filedrop/settings.yaml",
		"FD_TEMP_DIR":                 "/var/tmp/filedrop",
		"FD_MAX_FILE_SIZE":            "1048576",
		"FD_PURGE_CRON":               "@every 30s",
		"FD_RECONCILE_CRON":           "off",
		"FD_TLS_CERT":                 "/certs/tls.crt",
		"FD_TLS_KEY":                  "/certs/tls.key",
		"FD_LOG_LEVEL":                "debug",
		"FD_LOG_FORMAT":               "text",
		"FD_DEPHEALTH_CHECK_INTERVAL": "30s",
		"FD_SERVICE_NAME":             "filedrop-eu",
		"FD_SHUTDOWN_TIMEOUT":         "10s",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.SettingsFile != "/etc/filedrop/settings.yaml" {
		t.Errorf("SettingsFile = %q", cfg.SettingsFile)
	}
	if cfg.TempDir != "/var/tmp/filedrop" {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if cfg.MaxFileSize != 1048576 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.PurgeCron != "@every 30s" {
		t.Errorf("PurgeCron = %q", cfg.PurgeCron)
	}
	if cfg.ReconcileCron != "" {
		t.Errorf("ReconcileCron = %q, ожидалась пустая строка", cfg.ReconcileCron)
	}
	if !cfg.TLSEnabled() {
		t.Error("TLS должен быть включён")
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("логирование: %v %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.DephealthCheckInterval != 30*time.Second {
		t.Errorf("DephealthCheckInterval = %v", cfg.DephealthCheckInterval)
	}
	if cfg.ServiceName != "filedrop-eu" {
		t.Errorf("ServiceName = %q", cfg.ServiceName)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port not number", "FD_PORT", "abc"},
		{"port out of range", "FD_PORT", "70000"},
		{"max size zero", "FD_MAX_FILE_SIZE", "0"},
		{"max size text", "FD_MAX_FILE_SIZE", "big"},
		{"purge cron", "FD_PURGE_CRON", "every minute"},
		{"reconcile cron", "FD_RECONCILE_CRON", "* * *"},
		{"log level", "FD_LOG_LEVEL", "trace"},
		{"log format", "FD_LOG_FORMAT", "xml"},
		{"dephealth interval", "FD_DEPHEALTH_CHECK_INTERVAL", "15"},
		{"shutdown timeout", "FD_SHUTDOWN_TIMEOUT", "soon"},
		{"tls cert only", "FD_TLS_CERT", "/certs/tls.crt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearFDEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %s=%q", tt.key, tt.val)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %v, %v", in, got, err)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	logger := SetupLogger(&Config{LogLevel: slog.LevelWarn, LogFormat: "text"})
	if logger == nil {
		t.Fatal("SetupLogger вернул nil")
	}
	if logger.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("INFO не должен быть включён при уровне WARN")
	}
	if !logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("ERROR должен быть включён")
	}
}
