// Пакет config — загрузка и валидация конфигурации Feed Intake
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды табличного хранилища.
const (
	SheetBackendGoogle = "google"
	SheetBackendMemory = "memory"
)

// Config содержит все параметры конфигурации Feed Intake.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- PostgreSQL (метаданные файлов) ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Табличное хранилище ---

	// Бэкенд: google или memory
	SheetBackend string
	// Путь к JSON-ключу сервисного аккаунта Google
	GoogleCredentialsFile string
	// ID таблицы Google Sheets
	SpreadsheetID string
	// Имя листа (пусто: первый лист)
	SheetTitle string
	// Максимум строк в одной операции хранилища (1-1000)
	BatchSize int

	// --- Проверка загрузок ---

	PricePerM2Min float64
	PricePerM2Max float64

	// --- Объектное хранилище ---

	S3Endpoint       string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3Region         string
	S3UseSSL         bool
	S3PublicEndpoint string
	S3Prefix         string
	// Каталог локальных копий опубликованных фидов
	FeedDir string

	// --- JWT ---

	JWTJWKSURL string
	// Ожидаемый issuer (пусто: не проверяется)
	JWTIssuer string
	// Допустимое расхождение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Путь к CA-сертификату для JWKS endpoint (опционально)
	JWKSCACertPath      string
	JWKSClientTimeout   time.Duration
	JWKSRefreshInterval time.Duration

	// --- Доступ ---

	// Разрешённые владельцы (пусто: любой аутентифицированный)
	AllowedOwners []string
	// Администраторы
	AdminIDs []string

	// --- Фоновые задачи ---

	// Срок хранения метаданных обработанных файлов в днях
	RetentionDays int
	// Интервал очистки метаданных
	RetentionInterval time.Duration
	// Время жизни снимка каталога (0: без кэша)
	CatalogCacheTTL time.Duration
	// Через сколько незавершённая обработка файла считается брошенной
	ProcessingTimeout time.Duration

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	DephealthIsEntry       bool
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FI_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FI_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FI_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FI_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FI_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FI_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("FI_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FI_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// FI_MAX_UPLOAD_SIZE — по умолчанию 20 MiB
	cfg.MaxUploadSize, err = getEnvInt64("FI_MAX_UPLOAD_SIZE", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("FI_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("FI_MAX_UPLOAD_SIZE: значение должно быть положительным, получено %d", cfg.MaxUploadSize)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("FI_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("FI_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.HTTPWriteTimeout, err = getEnvDuration("FI_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("FI_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("FI_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("FI_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("FI_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("FI_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("FI_DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.DBPort, err = getEnvInt("FI_DB_PORT", 5432); err != nil {
		return nil, fmt.Errorf("FI_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("FI_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("FI_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("FI_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("FI_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FI_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Табличное хранилище ---

	cfg.SheetBackend = getEnvDefault("FI_SHEET_BACKEND", SheetBackendGoogle)
	switch cfg.SheetBackend {
	case SheetBackendGoogle:
		if cfg.GoogleCredentialsFile, err = getEnvRequired("FI_GOOGLE_CREDENTIALS_FILE"); err != nil {
			return nil, err
		}
		if cfg.SpreadsheetID, err = getEnvRequired("FI_SPREADSHEET_ID"); err != nil {
			return nil, err
		}
	case SheetBackendMemory:
	default:
		return nil, fmt.Errorf("FI_SHEET_BACKEND: недопустимое значение %q, допустимые: google, memory", cfg.SheetBackend)
	}
	cfg.SheetTitle = getEnvDefault("FI_SHEET_TITLE", "")

	// FI_BATCH_SIZE — строк в одной операции хранилища (по умолчанию 1000)
	cfg.BatchSize, err = getEnvInt("FI_BATCH_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FI_BATCH_SIZE: %w", err)
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > 1000 {
		return nil, fmt.Errorf("FI_BATCH_SIZE: значение %d вне допустимого диапазона 1-1000", cfg.BatchSize)
	}

	// --- Проверка загрузок ---

	if cfg.PricePerM2Min, err = getEnvFloat("FI_PRICE_PER_M2_MIN", 50000); err != nil {
		return nil, fmt.Errorf("FI_PRICE_PER_M2_MIN: %w", err)
	}
	if cfg.PricePerM2Max, err = getEnvFloat("FI_PRICE_PER_M2_MAX", 1000000); err != nil {
		return nil, fmt.Errorf("FI_PRICE_PER_M2_MAX: %w", err)
	}
	if cfg.PricePerM2Min < 0 || cfg.PricePerM2Min >= cfg.PricePerM2Max {
		return nil, fmt.Errorf("FI_PRICE_PER_M2_MIN: значение %g должно быть неотрицательным и меньше FI_PRICE_PER_M2_MAX (%g)",
			cfg.PricePerM2Min, cfg.PricePerM2Max)
	}

	// --- Объектное хранилище ---

	if cfg.S3Endpoint, err = getEnvRequired("FI_S3_ENDPOINT"); err != nil {
		return nil, err
	}
	// minio ожидает host[:port] без схемы
	cfg.S3Endpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.S3Endpoint, "https://"), "http://")
	cfg.S3Endpoint = strings.TrimRight(cfg.S3Endpoint, "/")
	if cfg.S3AccessKey, err = getEnvRequired("FI_S3_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3SecretKey, err = getEnvRequired("FI_S3_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3Bucket, err = getEnvRequired("FI_S3_BUCKET"); err != nil {
		return nil, err
	}
	cfg.S3Region = getEnvDefault("FI_S3_REGION", "us-east-1")
	if cfg.S3UseSSL, err = getEnvBool("FI_S3_USE_SSL", true); err != nil {
		return nil, fmt.Errorf("FI_S3_USE_SSL: %w", err)
	}
	cfg.S3PublicEndpoint = getEnvDefault("FI_S3_PUBLIC_ENDPOINT", "")
	cfg.S3Prefix = getEnvDefault("FI_S3_PREFIX", "feeds/")
	cfg.FeedDir = getEnvDefault("FI_FEED_DIR", "data/feeds")

	// --- JWT ---

	if cfg.JWTJWKSURL, err = getEnvRequired("FI_JWT_JWKS_URL"); err != nil {
		return nil, err
	}
	cfg.JWTIssuer = getEnvDefault("FI_JWT_ISSUER", "")
	if cfg.JWTLeeway, err = getEnvDuration("FI_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("FI_JWT_LEEWAY: %w", err)
	}
	cfg.JWKSCACertPath = getEnvDefault("FI_JWKS_CA_CERT", "")
	if cfg.JWKSCACertPath != "" {
		if _, err := os.Stat(cfg.JWKSCACertPath); err != nil {
			return nil, fmt.Errorf("FI_JWKS_CA_CERT: файл %q недоступен: %w", cfg.JWKSCACertPath, err)
		}
	}
	if cfg.JWKSClientTimeout, err = getEnvDuration("FI_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("FI_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("FI_JWKS_REFRESH_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("FI_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// --- Доступ ---

	cfg.AllowedOwners = parseCSV(getEnvDefault("FI_ALLOWED_OWNERS", ""))
	cfg.AdminIDs = parseCSV(getEnvDefault("FI_ADMIN_IDS", ""))

	// --- Фоновые задачи ---

	cfg.RetentionDays, err = getEnvInt("FI_RETENTION_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("FI_RETENTION_DAYS: %w", err)
	}
	if cfg.RetentionDays < 1 {
		return nil, fmt.Errorf("FI_RETENTION_DAYS: значение должно быть положительным, получено %d", cfg.RetentionDays)
	}
	if cfg.RetentionInterval, err = getEnvDuration("FI_RETENTION_INTERVAL", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("FI_RETENTION_INTERVAL: %w", err)
	}
	if cfg.CatalogCacheTTL, err = getEnvDuration("FI_CATALOG_CACHE_TTL", 30*time.Second); err != nil {
		return nil, fmt.Errorf("FI_CATALOG_CACHE_TTL: %w", err)
	}
	if cfg.ProcessingTimeout, err = getEnvDuration("FI_PROCESSING_TIMEOUT", 30*time.Minute); err != nil {
		return nil, fmt.Errorf("FI_PROCESSING_TIMEOUT: %w", err)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("FI_DEPHEALTH_GROUP", "feed-intake")
	if cfg.DephealthCheckInterval, err = getEnvDuration("FI_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("FI_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	if cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false); err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL для меток мониторинга (без пароля).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// S3URL возвращает базовый URL объектного хранилища.
func (c *Config) S3URL() string {
	scheme := "http"
	if c.S3UseSSL {
		scheme = "https"
	}
	return scheme + "://" + c.S3Endpoint
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

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

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

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
