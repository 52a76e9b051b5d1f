// Точка входа сервиса приёма фидов недвижимости.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// табличному и объектному хранилищам, собирает конвейер приёма
// и запускает HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/BogdanPhenda/Nova/internal/api/handlers"
	"github.com/BogdanPhenda/Nova/internal/api/middleware"
	"github.com/BogdanPhenda/Nova/internal/config"
	"github.com/BogdanPhenda/Nova/internal/database"
	"github.com/BogdanPhenda/Nova/internal/feed"
	"github.com/BogdanPhenda/Nova/internal/normalizer"
	"github.com/BogdanPhenda/Nova/internal/objstore"
	"github.com/BogdanPhenda/Nova/internal/repository"
	"github.com/BogdanPhenda/Nova/internal/server"
	"github.com/BogdanPhenda/Nova/internal/service"
	"github.com/BogdanPhenda/Nova/internal/sheet"
	"github.com/BogdanPhenda/Nova/internal/validator"
)

func main() {
	// 0. Локальный .env для разработки (в кластере переменные задаёт манифест)
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Ошибка чтения .env", slog.String("error", err.Error()))
	}

	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Feed Intake запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("sheet_backend", cfg.SheetBackend),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Табличное хранилище объявлений
	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к табличному хранилищу", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Объектное хранилище фидов
	objects, err := objstore.New(objstore.Config{
		Endpoint:       cfg.S3Endpoint,
		AccessKey:      cfg.S3AccessKey,
		SecretKey:      cfg.S3SecretKey,
		Bucket:         cfg.S3Bucket,
		Region:         cfg.S3Region,
		UseSSL:         cfg.S3UseSSL,
		PublicEndpoint: cfg.S3PublicEndpoint,
		Prefix:         cfg.S3Prefix,
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания S3-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Конвейер приёма
	vcfg := validator.DefaultConfig()
	vcfg.MinPricePerM2 = cfg.PricePerM2Min
	vcfg.MaxPricePerM2 = cfg.PricePerM2Max

	fileRepo := repository.NewFileMetadataRepository(pool)
	filesSvc := service.NewFileService(fileRepo, time.Now, cfg.ProcessingTimeout, logger)
	reconciler := service.NewReconciler(store, cfg.BatchSize, logger)
	catalog := service.NewCatalog(store, cfg.CatalogCacheTTL, logger)
	publisher := service.NewPublisher(feed.New(time.Now), objects, cfg.FeedDir, logger)
	intake := service.NewIntakeService(
		validator.New(vcfg),
		normalizer.New(time.Now),
		reconciler,
		catalog,
		publisher,
		filesSvc,
		logger,
	)

	// 8. Readiness checkers (PostgreSQL, объектное хранилище, JWKS)
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.JWKSCACertPath, cfg.JWKSClientTimeout)
	if err != nil {
		logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), objects, jwksChecker)
	apiHandler := handlers.NewAPIHandler(healthHandler, intake, filesSvc, cfg.MaxUploadSize, logger)

	// 9. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(middleware.JWTAuthConfig{
		JWKSURL:         cfg.JWTJWKSURL,
		CACertPath:      cfg.JWKSCACertPath,
		Issuer:          cfg.JWTIssuer,
		ClientTimeout:   cfg.JWKSClientTimeout,
		RefreshInterval: cfg.JWKSRefreshInterval,
		JWTLeeway:       cfg.JWTLeeway,
		Access: middleware.AccessPolicy{
			AllowedOwners: cfg.AllowedOwners,
			AdminIDs:      cfg.AdminIDs,
		},
	}, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
		slog.Int("allowed_owners", len(cfg.AllowedOwners)),
	)

	// 10. Фоновая очистка реестра файлов
	retentionSvc := service.NewRetentionService(fileRepo, cfg.RetentionDays, cfg.RetentionInterval, logger)
	retentionSvc.Start(ctx)

	// 10.1 topologymetrics — мониторинг зависимостей (PostgreSQL + объектное хранилище)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "feed-intake",
		Group:         cfg.DephealthGroup,
		PgConnURL:     cfg.DatabaseURL(),
		S3URL:         cfg.S3URL(),
		CheckInterval: cfg.DephealthCheckInterval,
		IsEntry:       cfg.DephealthIsEntry,
	}, pgDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
		dephealthSvc = nil
	}

	// 11. HTTP-сервер
	srv := server.New(cfg, logger, apiHandler, jwtAuth.Middleware(),
		middleware.RequestLogger(logger),
		middleware.MetricsMiddleware(),
	)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	retentionSvc.Stop()

	logger.Info("Feed Intake остановлен")
}

// newStore выбирает бэкенд табличного хранилища.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (sheet.Store, error) {
	if cfg.SheetBackend == config.SheetBackendMemory {
		logger.Warn("Табличное хранилище в памяти: данные не переживут перезапуск")
		return sheet.NewMemory(), nil
	}
	return sheet.NewGoogleSheet(ctx, sheet.GoogleConfig{
		CredentialsFile: cfg.GoogleCredentialsFile,
		SpreadsheetID:   cfg.SpreadsheetID,
		SheetTitle:      cfg.SheetTitle,
	}, logger)
}
