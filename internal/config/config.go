// Пакет config — загрузка и валидация конфигурации процесса filedrop
// из переменных окружения FD_*.
// Настройки хранилища (location, retention, шифрование) живут отдельно,
// в пакете settings, и перечитываются без рестарта.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/filedrop/internal/scheduler"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит параметры процесса filedrop.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к YAML-файлу настроек хранилища (опционально)
	SettingsFile string
	// Директория для временных файлов multipart
	TempDir string
	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Расписание purge (cron, 5 или 6 полей)
	PurgeCron string
	// Расписание сверки хранилища; пустое значение отключает сверку
	ReconcileCron string
	// Путь к TLS сертификату (опционально, вместе с TLSKey)
	TLSCert string
	// Путь к TLS приватному ключу
	TLSKey string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя сервиса в графе topologymetrics
	ServiceName string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// FD_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("FD_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FD_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("FD_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	cfg.SettingsFile = getEnvDefault("FD_SETTINGS_FILE", "")

	// FD_TEMP_DIR — по умолчанию системная временная директория
	cfg.TempDir = getEnvDefault("FD_TEMP_DIR", os.TempDir())

	// FD_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	maxFileSize, err := getEnvInt64("FD_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: %w", err)
	}
	if maxFileSize <= 0 {
		return nil, fmt.Errorf("FD_MAX_FILE_SIZE: значение должно быть положительным")
	}
	cfg.MaxFileSize = maxFileSize

	// FD_PURGE_CRON — расписание purge (по умолчанию каждые 5 минут)
	cfg.PurgeCron = getEnvDefault("FD_PURGE_CRON", "*/5 * * * *")
	if err := scheduler.ValidateSpec(cfg.PurgeCron); err != nil {
		return nil, fmt.Errorf("FD_PURGE_CRON: некорректное выражение %q: %w", cfg.PurgeCron, err)
	}

	// FD_RECONCILE_CRON — расписание сверки (по умолчанию раз в час, "off" отключает)
	cfg.ReconcileCron = getEnvDefault("FD_RECONCILE_CRON", "0 * * * *")
	if strings.EqualFold(cfg.ReconcileCron, "off") {
		cfg.ReconcileCron = ""
	}
	if cfg.ReconcileCron != "" {
		if err := scheduler.ValidateSpec(cfg.ReconcileCron); err != nil {
			return nil, fmt.Errorf("FD_RECONCILE_CRON: некорректное выражение %q: %w", cfg.ReconcileCron, err)
		}
	}

	// FD_TLS_CERT / FD_TLS_KEY — задаются только вместе
	cfg.TLSCert = getEnvDefault("FD_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("FD_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("FD_TLS_CERT и FD_TLS_KEY должны быть заданы вместе")
	}

	// FD_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FD_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FD_LOG_LEVEL: %w", err)
	}

	// FD_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FD_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FD_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// FD_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FD_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	cfg.ServiceName = getEnvDefault("FD_SERVICE_NAME", "filedrop")

	// FD_SHUTDOWN_TIMEOUT — таймаут graceful shutdown HTTP-сервера (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FD_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FD_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// TLSEnabled возвращает true, если заданы сертификат и ключ.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
