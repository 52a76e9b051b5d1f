// handler.go — основной обработчик API: загрузки, реестр файлов, фиды.
// Делегирует запросы в сервисный слой, ошибки сервиса переводит
// в HTTP-ответы единого формата.
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/BogdanPhenda/Nova/internal/api/errors"
	"github.com/BogdanPhenda/Nova/internal/api/middleware"
	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/service"
	"github.com/BogdanPhenda/Nova/internal/upload"
)

// Intake — конвейер приёма загрузок (service.IntakeService).
type Intake interface {
	Process(ctx context.Context, req service.UploadRequest) (*service.UploadResult, error)
	Validate(name string, body io.Reader) (*model.ValidationResult, string, error)
	DeleteFile(ctx context.Context, caller service.Caller, fileID string) (*service.DeleteResult, error)
	PublishOwner(ctx context.Context, ownerID string) (string, error)
	PublishFile(ctx context.Context, caller service.Caller, fileID string) (string, error)
	PublishAll(ctx context.Context) (string, error)
	Deduplicate(ctx context.Context) (int, error)
}

// FileRegistry — реестр файлов (service.FileService).
type FileRegistry interface {
	Get(ctx context.Context, caller service.Caller, fileID string) (*model.FileMetadata, error)
	List(ctx context.Context, ownerID string, objectType *string) ([]*model.FileMetadata, error)
}

// APIHandler — обработчик бизнес-endpoints.
type APIHandler struct {
	health        *HealthHandler
	intake        Intake
	files         FileRegistry
	maxUploadSize int64
	logger        *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	intake Intake,
	files FileRegistry,
	maxUploadSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:        health,
		intake:        intake,
		files:         files,
		maxUploadSize: maxUploadSize,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// callerFromRequest возвращает идентичность из контекста JWT middleware.
func callerFromRequest(r *http.Request) (service.Caller, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil || claims.Subject == "" {
		return service.Caller{}, false
	}
	return service.Caller{OwnerID: claims.Subject, Admin: claims.Admin}, true
}

// handleServiceError переводит ошибку сервиса в HTTP-ответ.
func (h *APIHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	log := h.logger.With(slog.String("request_id", middleware.RequestIDFromContext(r.Context())))
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Файл принадлежит другому владельцу")
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, "Файл уже обрабатывается")
	case errors.Is(err, service.ErrNoData):
		apierrors.NoData(w, "Нет объявлений для фида")
	case errors.Is(err, upload.ErrUnsupportedFormat):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrReconcileFailed):
		log.Error(op, slog.String("error", err.Error()))
		apierrors.StoreUnavailable(w, "Ошибка табличного хранилища")
	default:
		log.Error(op, slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка")
	}
}

// fileResponse — запись реестра в ответе API.
type fileResponse struct {
	FileID       string  `json:"file_id"`
	OwnerID      string  `json:"owner_id"`
	OriginalName string  `json:"original_name"`
	ObjectType   string  `json:"object_type"`
	Status       string  `json:"status"`
	Description  *string `json:"description,omitempty"`
	UploadDate   string  `json:"upload_date"`
	LastUpdate   string  `json:"last_update"`
}

func toFileResponse(f *model.FileMetadata) fileResponse {
	return fileResponse{
		FileID:       f.FileID,
		OwnerID:      f.OwnerID,
		OriginalName: f.OriginalName,
		ObjectType:   f.ObjectType,
		Status:       string(f.Status),
		Description:  f.Description,
		UploadDate:   f.UploadDate.UTC().Format(time.RFC3339),
		LastUpdate:   f.LastUpdate.UTC().Format(time.RFC3339),
	}
}

// nonNil — пустые списки сообщений сериализуются как [].
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
