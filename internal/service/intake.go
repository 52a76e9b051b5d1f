// intake.go — приём загрузок: декодирование, проверка, нормализация,
// сверка с хранилищем и публикация фида владельца.
//
// Сверка отвязана от отмены запроса: обрыв соединения клиента
// не должен оставлять пакет применённым наполовину.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/feed"
	"github.com/BogdanPhenda/Nova/internal/normalizer"
	"github.com/BogdanPhenda/Nova/internal/upload"
	"github.com/BogdanPhenda/Nova/internal/validator"
)

// UploadRequest — загрузка файла владельцем.
type UploadRequest struct {
	OwnerID string
	// FileID — идентификатор ранее загруженного файла (пусто: новый файл)
	FileID   string
	FileName string
	Body     io.Reader
}

// UploadResult — итог обработки загрузки.
type UploadResult struct {
	FileID     string
	Format     string
	Status     model.FileStatus
	Validation *model.ValidationResult
	Reconcile  *model.ReconcileResult
	FeedURL    string
	// Messages — ошибки и предупреждения всех этапов в порядке их появления
	Messages []string
}

// DeleteResult — итог удаления файла.
type DeleteResult struct {
	RowsDeleted int
	Warnings    []string
	// FeedURL — ссылка на фид владельца (пусто, если объявлений не осталось)
	FeedURL string
}

// IntakeService — конвейер приёма загрузок.
type IntakeService struct {
	validator  *validator.Validator
	normalizer *normalizer.Normalizer
	reconciler *Reconciler
	catalog    *Catalog
	publisher  *Publisher
	files      *FileService
	logger     *slog.Logger
}

// NewIntakeService создаёт конвейер приёма.
func NewIntakeService(
	v *validator.Validator,
	n *normalizer.Normalizer,
	reconciler *Reconciler,
	catalog *Catalog,
	publisher *Publisher,
	files *FileService,
	logger *slog.Logger,
) *IntakeService {
	return &IntakeService{
		validator:  v,
		normalizer: n,
		reconciler: reconciler,
		catalog:    catalog,
		publisher:  publisher,
		files:      files,
		logger:     logger.With(slog.String("component", "intake")),
	}
}

// Validate декодирует и проверяет файл без записи в хранилище.
// Неподдерживаемый формат возвращается ошибкой, нечитаемый файл
// ошибкой проверки.
func (s *IntakeService) Validate(name string, body io.Reader) (*model.ValidationResult, string, error) {
	_, vr, format, err := s.check(name, body)
	return vr, format, err
}

func (s *IntakeService) check(name string, body io.Reader) (*model.Dataset, *model.ValidationResult, string, error) {
	ds, format, err := upload.Decode(name, body)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedFormat) {
			return nil, nil, "", err
		}
		return nil, &model.ValidationResult{Errors: []string{err.Error()}}, format, nil
	}
	return ds, s.validator.Validate(ds), format, nil
}

// Process выполняет полный цикл приёма загрузки.
//
// Ошибки проверки возвращаются вместе с результатом как ErrValidationFailed,
// ошибки сверки как ErrReconcileFailed. Ошибка публикации фида не отменяет
// записанные строки и попадает в сообщения результата.
func (s *IntakeService) Process(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	format, err := upload.DetectFormat(req.FileName)
	if err != nil {
		return nil, err
	}

	meta, err := s.files.Begin(ctx, req.FileID, req.OwnerID, req.FileName, format)
	if err != nil {
		return nil, err
	}
	log := s.logger.With(
		slog.String("owner_id", req.OwnerID),
		slog.String("file_id", meta.FileID),
	)
	result := &UploadResult{FileID: meta.FileID, Format: format}

	ds, vr, _, err := s.check(req.FileName, req.Body)
	if err != nil {
		s.finish(ctx, log, meta, result, model.FileStatusError, err.Error())
		return result, err
	}
	result.Validation = vr
	result.Messages = append(result.Messages, vr.Messages()...)
	if !vr.OK {
		s.finish(ctx, log, meta, result, model.FileStatusError, strings.Join(vr.Errors, "; "))
		return result, fmt.Errorf("%w: ошибок %d", ErrValidationFailed, len(vr.Errors))
	}

	batch := s.normalizer.Normalize(ds, req.OwnerID, meta.FileID)
	rec := s.reconciler.Reconcile(context.WithoutCancel(ctx), batch)
	s.catalog.Invalidate()
	result.Reconcile = rec
	result.Messages = append(result.Messages, rec.Errors...)
	result.Messages = append(result.Messages, rec.Warnings...)
	if rec.Failed() {
		s.finish(ctx, log, meta, result, model.FileStatusError, strings.Join(rec.Errors, "; "))
		return result, fmt.Errorf("%w: %s", ErrReconcileFailed, strings.Join(rec.Errors, "; "))
	}

	url, err := s.PublishOwner(ctx, req.OwnerID)
	if err != nil {
		log.Warn("Фид владельца не опубликован", slog.String("error", err.Error()))
		result.Messages = append(result.Messages, fmt.Sprintf("Фид не опубликован: %v", err))
	}
	result.FeedURL = url

	s.finish(ctx, log, meta, result, model.FileStatusProcessed,
		fmt.Sprintf("Записано строк: %d, удалено: %d", rec.RowsWritten, rec.RowsDeleted))
	return result, nil
}

// finish фиксирует итоговый статус. Реестр вторичен по отношению
// к хранилищу объявлений, поэтому его ошибки только логируются.
func (s *IntakeService) finish(ctx context.Context, log *slog.Logger, meta *model.FileMetadata, result *UploadResult, status model.FileStatus, description string) {
	result.Status = status
	if err := s.files.Finish(ctx, meta, status, description); err != nil {
		log.Error("Ошибка фиксации статуса файла",
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// DeleteFile удаляет строки файла из хранилища, запись реестра
// и перепубликует фид владельца.
func (s *IntakeService) DeleteFile(ctx context.Context, caller Caller, fileID string) (*DeleteResult, error) {
	meta, err := s.files.Get(ctx, caller, fileID)
	if err != nil {
		return nil, err
	}

	rec := s.reconciler.Remove(context.WithoutCancel(ctx), meta.OwnerID, fileID)
	s.catalog.Invalidate()
	if rec.Failed() {
		return nil, fmt.Errorf("%w: %s", ErrReconcileFailed, strings.Join(rec.Errors, "; "))
	}
	result := &DeleteResult{RowsDeleted: rec.RowsDeleted, Warnings: rec.Warnings}

	if err := s.files.Delete(ctx, fileID); err != nil && !errors.Is(err, ErrNotFound) {
		return result, err
	}

	url, err := s.PublishOwner(ctx, meta.OwnerID)
	if err != nil && !errors.Is(err, ErrNoData) {
		s.logger.Warn("Фид владельца не опубликован",
			slog.String("owner_id", meta.OwnerID),
			slog.String("error", err.Error()),
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("Фид не опубликован: %v", err))
	}
	result.FeedURL = url
	return result, nil
}

// PublishOwner публикует фид всех объявлений владельца.
func (s *IntakeService) PublishOwner(ctx context.Context, ownerID string) (string, error) {
	rows, err := s.catalog.ByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return s.publisher.Publish(ctx, feed.OwnerFeedName(ownerID), rows)
}

// PublishFile публикует фид объявлений одного файла.
func (s *IntakeService) PublishFile(ctx context.Context, caller Caller, fileID string) (string, error) {
	meta, err := s.files.Get(ctx, caller, fileID)
	if err != nil {
		return "", err
	}
	rows, err := s.catalog.BySourceFile(ctx, meta.OwnerID, fileID)
	if err != nil {
		return "", err
	}
	return s.publisher.Publish(ctx, feed.FileFeedName(fileID), rows)
}

// PublishAll публикует сводный фид по всем владельцам.
func (s *IntakeService) PublishAll(ctx context.Context) (string, error) {
	rows, err := s.catalog.Listings(ctx)
	if err != nil {
		return "", err
	}
	return s.publisher.Publish(ctx, feed.AllFeedName, rows)
}

// Deduplicate удаляет повторы (owner_id, listing_id) в хранилище.
func (s *IntakeService) Deduplicate(ctx context.Context) (int, error) {
	n, err := s.reconciler.Deduplicate(context.WithoutCancel(ctx))
	s.catalog.Invalidate()
	return n, err
}
