// files.go — реестр загруженных файлов: регистрация, смена статусов,
// проверка владельца.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/repository"
)

// Caller — идентичность вызывающего.
type Caller struct {
	OwnerID string
	Admin   bool
}

// owns сообщает, может ли вызывающий работать с файлом.
func (c Caller) owns(f *model.FileMetadata) bool {
	return c.Admin || f.OwnerID == c.OwnerID
}

// FileService — сервис реестра файлов.
type FileService struct {
	repo              repository.FileMetadataRepository
	now               func() time.Time
	processingTimeout time.Duration
	logger            *slog.Logger
}

// NewFileService создаёт сервис реестра файлов. now — источник времени (nil: time.Now).
// processingTimeout — через сколько после последнего обновления запись
// в статусе processing считается брошенной (<= 0: никогда).
func NewFileService(repo repository.FileMetadataRepository, now func() time.Time, processingTimeout time.Duration, logger *slog.Logger) *FileService {
	if now == nil {
		now = time.Now
	}
	return &FileService{
		repo:              repo,
		now:               now,
		processingTimeout: processingTimeout,
		logger:            logger.With(slog.String("component", "file_service")),
	}
}

// Begin регистрирует загрузку и переводит её в статус processing.
// Пустой fileID — новый файл с новым UUID. Существующий fileID —
// повторная загрузка: файл должен принадлежать владельцу и не
// находиться в обработке. Брошенная обработка (processing дольше
// processingTimeout) сначала завершается статусом error.
func (s *FileService) Begin(ctx context.Context, fileID, ownerID, name, objectType string) (*model.FileMetadata, error) {
	now := s.now().UTC()

	if fileID == "" {
		f := &model.FileMetadata{
			FileID:       uuid.NewString(),
			OwnerID:      ownerID,
			OriginalName: name,
			ObjectType:   objectType,
			Status:       model.FileStatusNew,
			UploadDate:   now,
			LastUpdate:   now,
		}
		if err := s.repo.Create(ctx, f); err != nil {
			return nil, fmt.Errorf("регистрация файла: %w", err)
		}
		return f, s.moveTo(ctx, f, model.FileStatusProcessing, nil)
	}

	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	if f.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: файл %s принадлежит другому владельцу", ErrForbidden, fileID)
	}
	if f.Status == model.FileStatusProcessing {
		if s.processingTimeout <= 0 || now.Sub(f.LastUpdate) < s.processingTimeout {
			return nil, fmt.Errorf("%w: файл %s уже обрабатывается", ErrConflict, fileID)
		}
		s.logger.Warn("Обработка файла не была завершена, запись перехвачена",
			slog.String("file_id", f.FileID),
			slog.Time("last_update", f.LastUpdate),
		)
		abandoned := "Обработка прервана"
		if err := s.moveTo(ctx, f, model.FileStatusError, &abandoned); err != nil {
			return nil, err
		}
	}

	f.OriginalName = name
	f.ObjectType = objectType
	return f, s.moveTo(ctx, f, model.FileStatusProcessing, nil)
}

// Finish фиксирует итог обработки (processed или error) с описанием.
func (s *FileService) Finish(ctx context.Context, f *model.FileMetadata, status model.FileStatus, description string) error {
	var desc *string
	if description != "" {
		desc = &description
	}
	return s.moveTo(ctx, f, status, desc)
}

func (s *FileService) moveTo(ctx context.Context, f *model.FileMetadata, status model.FileStatus, desc *string) error {
	if err := f.Transition(status, desc, s.now().UTC()); err != nil {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if err := s.repo.UpdateStatus(ctx, f); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, f.FileID)
		}
		return fmt.Errorf("обновление статуса файла: %w", err)
	}

	s.logger.Info("Статус файла изменён",
		slog.String("file_id", f.FileID),
		slog.String("owner_id", f.OwnerID),
		slog.String("status", string(f.Status)),
	)
	return nil
}

// Get возвращает запись о файле, доступную вызывающему.
func (s *FileService) Get(ctx context.Context, caller Caller, fileID string) (*model.FileMetadata, error) {
	f, err := s.repo.GetByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: файл %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("получение файла: %w", err)
	}
	if !caller.owns(f) {
		return nil, fmt.Errorf("%w: файл %s", ErrForbidden, fileID)
	}
	return f, nil
}

// List возвращает файлы владельца, новые первыми. objectType — необязательный фильтр.
func (s *FileService) List(ctx context.Context, ownerID string, objectType *string) ([]*model.FileMetadata, error) {
	files, err := s.repo.List(ctx, repository.FileListFilters{
		OwnerID:    &ownerID,
		ObjectType: objectType,
	})
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	return files, nil
}

// Delete удаляет запись о файле.
func (s *FileService) Delete(ctx context.Context, fileID string) error {
	if err := s.repo.Delete(ctx, fileID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: файл %s", ErrNotFound, fileID)
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}
	s.logger.Info("Запись о файле удалена", slog.String("file_id", fileID))
	return nil
}
