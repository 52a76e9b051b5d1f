package database

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/BogdanPhenda/Nova/internal/config"
	"github.com/BogdanPhenda/Nova/internal/database/dbtest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMigrateURL_EscapesCredentials(t *testing.T) {
	cfg := &config.Config{
		DBHost: "db", DBPort: 5432, DBName: "feeds",
		DBUser: "feeds", DBPassword: "p@ss/word", DBSSLMode: "disable",
	}
	got := migrateURL(cfg)
	if !strings.HasPrefix(got, "pgx5://feeds:p%40ss%2Fword@db:5432/feeds") {
		t.Errorf("migrateURL = %q", got)
	}
	if !strings.HasSuffix(got, "?sslmode=disable") {
		t.Errorf("migrateURL без sslmode: %q", got)
	}
}

// TestMigrate проверяет применение миграций и идемпотентность повторного запуска.
func TestMigrate(t *testing.T) {
	cfg := dbtest.Config(t)
	logger := testLogger()

	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Migrate() вернул ошибку: %v", err)
	}
	if err := Migrate(cfg, logger); err != nil {
		t.Fatalf("Повторный Migrate() вернул ошибку: %v", err)
	}

	ctx := context.Background()
	pool, err := Connect(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Connect() вернул ошибку: %v", err)
	}
	defer pool.Close()

	var exists bool
	err = pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'file_metadata'
		)`).Scan(&exists)
	if err != nil {
		t.Fatalf("Ошибка проверки таблицы: %v", err)
	}
	if !exists {
		t.Error("Таблица file_metadata не создана")
	}

	status, msg := NewReadinessChecker(pool).CheckReady()
	if status != "ok" {
		t.Errorf("CheckReady() = %q, %q; ожидали ok", status, msg)
	}
}
