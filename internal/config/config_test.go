package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// allKeys — все переменные, которые читает Load.
var allKeys = []string{
	"FI_PORT", "FI_LOG_LEVEL", "FI_LOG_FORMAT", "FI_MAX_UPLOAD_SIZE",
	"FI_HTTP_READ_TIMEOUT", "FI_HTTP_WRITE_TIMEOUT", "FI_HTTP_IDLE_TIMEOUT", "FI_SHUTDOWN_TIMEOUT",
	"FI_DB_HOST", "FI_DB_PORT", "FI_DB_NAME", "FI_DB_USER", "FI_DB_PASSWORD", "FI_DB_SSL_MODE",
	"FI_SHEET_BACKEND", "FI_GOOGLE_CREDENTIALS_FILE", "FI_SPREADSHEET_ID", "FI_SHEET_TITLE", "FI_BATCH_SIZE",
	"FI_PRICE_PER_M2_MIN", "FI_PRICE_PER_M2_MAX",
	"FI_S3_ENDPOINT", "FI_S3_ACCESS_KEY", "FI_S3_SECRET_KEY", "FI_S3_BUCKET",
	"FI_S3_REGION", "FI_S3_USE_SSL", "FI_S3_PUBLIC_ENDPOINT", "FI_S3_PREFIX", "FI_FEED_DIR",
	"FI_JWT_JWKS_URL", "FI_JWT_ISSUER", "FI_JWT_LEEWAY", "FI_JWKS_CA_CERT",
	"FI_JWKS_CLIENT_TIMEOUT", "FI_JWKS_REFRESH_INTERVAL",
	"FI_ALLOWED_OWNERS", "FI_ADMIN_IDS",
	"FI_RETENTION_DAYS", "FI_RETENTION_INTERVAL", "FI_CATALOG_CACHE_TTL", "FI_PROCESSING_TIMEOUT",
	"FI_DEPHEALTH_GROUP", "FI_DEPHEALTH_CHECK_INTERVAL", "DEPHEALTH_ISENTRY",
}

// minimalEnvs — минимальный набор обязательных переменных.
func minimalEnvs() map[string]string {
	return map[string]string{
		"FI_DB_HOST":                 "localhost",
		"FI_DB_NAME":                 "feeds",
		"FI_DB_USER":                 "feeds",
		"FI_DB_PASSWORD":             "secret",
		"FI_GOOGLE_CREDENTIALS_FILE": "/etc/feed-intake/sa.json",
		"FI_SPREADSHEET_ID":          "sheet-1",
		"FI_S3_ENDPOINT":             "s3.example.com",
		"FI_S3_ACCESS_KEY":           "access",
		"FI_S3_SECRET_KEY":           "secret",
		"FI_S3_BUCKET":               "catalog",
		"FI_JWT_JWKS_URL":            "https://idp.example.com/certs",
	}
}

// setEnvs очищает все переменные конфигурации и устанавливает переданные.
func setEnvs(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, minimalEnvs())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}

	if cfg.Port != 8040 {
		t.Errorf("Port = %d, хотели 8040", cfg.Port)
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "json" {
		t.Errorf("логирование = %v/%s", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.MaxUploadSize != 20971520 {
		t.Errorf("MaxUploadSize = %d", cfg.MaxUploadSize)
	}
	if cfg.HTTPReadTimeout != 30*time.Second || cfg.HTTPWriteTimeout != 60*time.Second || cfg.HTTPIdleTimeout != 120*time.Second {
		t.Errorf("таймауты = %v/%v/%v", cfg.HTTPReadTimeout, cfg.HTTPWriteTimeout, cfg.HTTPIdleTimeout)
	}
	if cfg.DBPort != 5432 || cfg.DBSSLMode != "disable" {
		t.Errorf("DB = %d/%s", cfg.DBPort, cfg.DBSSLMode)
	}
	if cfg.SheetBackend != SheetBackendGoogle || cfg.BatchSize != 1000 {
		t.Errorf("хранилище = %s/%d", cfg.SheetBackend, cfg.BatchSize)
	}
	if cfg.PricePerM2Min != 50000 || cfg.PricePerM2Max != 1000000 {
		t.Errorf("диапазон цены = %g..%g", cfg.PricePerM2Min, cfg.PricePerM2Max)
	}
	if cfg.S3Region != "us-east-1" || !cfg.S3UseSSL || cfg.S3Prefix != "feeds/" || cfg.FeedDir != "data/feeds" {
		t.Errorf("S3 = %s/%v/%s/%s", cfg.S3Region, cfg.S3UseSSL, cfg.S3Prefix, cfg.FeedDir)
	}
	if cfg.JWTLeeway != 5*time.Second || cfg.JWKSClientTimeout != 10*time.Second || cfg.JWKSRefreshInterval != 15*time.Second {
		t.Errorf("JWT = %v/%v/%v", cfg.JWTLeeway, cfg.JWKSClientTimeout, cfg.JWKSRefreshInterval)
	}
	if cfg.RetentionDays != 30 || cfg.RetentionInterval != 24*time.Hour || cfg.CatalogCacheTTL != 30*time.Second {
		t.Errorf("фоновые задачи = %d/%v/%v", cfg.RetentionDays, cfg.RetentionInterval, cfg.CatalogCacheTTL)
	}
	if cfg.ProcessingTimeout != 30*time.Minute {
		t.Errorf("ProcessingTimeout = %v", cfg.ProcessingTimeout)
	}
	if cfg.DephealthGroup != "feed-intake" || cfg.DephealthIsEntry {
		t.Errorf("dephealth = %s/%v", cfg.DephealthGroup, cfg.DephealthIsEntry)
	}
	if cfg.AllowedOwners != nil || cfg.AdminIDs != nil {
		t.Errorf("списки доступа должны быть пустыми: %v %v", cfg.AllowedOwners, cfg.AdminIDs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	envs := minimalEnvs()
	envs["FI_PORT"] = "9000"
	envs["FI_LOG_LEVEL"] = "debug"
	envs["FI_LOG_FORMAT"] = "text"
	envs["FI_SHEET_BACKEND"] = "memory"
	envs["FI_GOOGLE_CREDENTIALS_FILE"] = ""
	envs["FI_SPREADSHEET_ID"] = ""
	envs["FI_BATCH_SIZE"] = "250"
	envs["FI_S3_ENDPOINT"] = "https://minio.local:9000/"
	envs["FI_S3_USE_SSL"] = "false"
	envs["FI_ALLOWED_OWNERS"] = " 7, 8 ,,9"
	envs["FI_ADMIN_IDS"] = "1"
	envs["DEPHEALTH_ISENTRY"] = "true"
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	if cfg.Port != 9000 || cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("сервер = %d/%v/%s", cfg.Port, cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.SheetBackend != SheetBackendMemory || cfg.BatchSize != 250 {
		t.Errorf("хранилище = %s/%d", cfg.SheetBackend, cfg.BatchSize)
	}
	if cfg.S3Endpoint != "minio.local:9000" {
		t.Errorf("S3Endpoint = %q, хотели без схемы", cfg.S3Endpoint)
	}
	if cfg.S3URL() != "http://minio.local:9000" {
		t.Errorf("S3URL = %q", cfg.S3URL())
	}
	if strings.Join(cfg.AllowedOwners, "|") != "7|8|9" {
		t.Errorf("AllowedOwners = %v", cfg.AllowedOwners)
	}
	if !cfg.DephealthIsEntry {
		t.Error("DephealthIsEntry должен быть true")
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{"нет хоста БД", "FI_DB_HOST", "", "FI_DB_HOST"},
		{"нет JWKS", "FI_JWT_JWKS_URL", "", "FI_JWT_JWKS_URL"},
		{"нет бакета", "FI_S3_BUCKET", "", "FI_S3_BUCKET"},
		{"нет таблицы Google", "FI_SPREADSHEET_ID", "", "FI_SPREADSHEET_ID"},
		{"порт не число", "FI_PORT", "abc", "FI_PORT"},
		{"уровень логов", "FI_LOG_LEVEL", "verbose", "FI_LOG_LEVEL"},
		{"формат логов", "FI_LOG_FORMAT", "xml", "FI_LOG_FORMAT"},
		{"SSL", "FI_DB_SSL_MODE", "maybe", "FI_DB_SSL_MODE"},
		{"бэкенд", "FI_SHEET_BACKEND", "excel", "FI_SHEET_BACKEND"},
		{"пачка больше 1000", "FI_BATCH_SIZE", "1001", "FI_BATCH_SIZE"},
		{"пачка 0", "FI_BATCH_SIZE", "0", "FI_BATCH_SIZE"},
		{"цена", "FI_PRICE_PER_M2_MIN", "2000000", "FI_PRICE_PER_M2_MIN"},
		{"булево", "FI_S3_USE_SSL", "да", "FI_S3_USE_SSL"},
		{"длительность", "FI_RETENTION_INTERVAL", "сутки", "FI_RETENTION_INTERVAL"},
		{"таймаут обработки", "FI_PROCESSING_TIMEOUT", "полчаса", "FI_PROCESSING_TIMEOUT"},
		{"срок хранения", "FI_RETENTION_DAYS", "0", "FI_RETENTION_DAYS"},
		{"размер загрузки", "FI_MAX_UPLOAD_SIZE", "-1", "FI_MAX_UPLOAD_SIZE"},
		{"CA-сертификат", "FI_JWKS_CA_CERT", "/нет/такого/файла.pem", "FI_JWKS_CA_CERT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envs := minimalEnvs()
			envs[tt.key] = tt.value
			setEnvs(t, envs)

			_, err := Load()
			if err == nil {
				t.Fatal("Load() должен вернуть ошибку")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ошибка %q не содержит %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoad_CACertExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	if err := os.WriteFile(path, []byte("-----BEGIN CERTIFICATE-----"), 0o600); err != nil {
		t.Fatal(err)
	}
	envs := minimalEnvs()
	envs["FI_JWKS_CA_CERT"] = path
	setEnvs(t, envs)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() ошибка: %v", err)
	}
	if cfg.JWKSCACertPath != path {
		t.Errorf("JWKSCACertPath = %q", cfg.JWKSCACertPath)
	}
}

func TestConfig_DatabaseStrings(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: 5432, DBName: "feeds", DBUser: "u", DBPassword: "p", DBSSLMode: "disable"}
	if got := cfg.DatabaseDSN(); got != "host=db port=5432 dbname=feeds user=u password=p sslmode=disable" {
		t.Errorf("DatabaseDSN = %q", got)
	}
	if got := cfg.DatabaseURL(); strings.Contains(got, "p@") || got != "postgres://u@db:5432/feeds" {
		t.Errorf("DatabaseURL = %q", got)
	}
}
