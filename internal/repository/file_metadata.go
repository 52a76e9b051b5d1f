package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// FileMetadataRepository — CRUD для таблицы file_metadata.
type FileMetadataRepository interface {
	// Create создаёт запись. Повтор file_id — ErrConflict.
	Create(ctx context.Context, f *model.FileMetadata) error
	// GetByID возвращает запись по file_id.
	GetByID(ctx context.Context, fileID string) (*model.FileMetadata, error)
	// List возвращает записи по фильтрам, новые первыми.
	List(ctx context.Context, filters FileListFilters) ([]*model.FileMetadata, error)
	// UpdateStatus сохраняет статус, описание и время изменения записи.
	UpdateStatus(ctx context.Context, f *model.FileMetadata) error
	// Delete удаляет запись.
	Delete(ctx context.Context, fileID string) error
	// DeleteStale удаляет записи в указанных статусах, не менявшиеся с before.
	DeleteStale(ctx context.Context, before time.Time, statuses []model.FileStatus) (int, error)
}

// FileListFilters — фильтры списка файлов.
type FileListFilters struct {
	OwnerID    *string
	ObjectType *string
	Status     *model.FileStatus
}

const fileColumns = `file_id, owner_id, original_name, object_type, status,
	description, upload_date, last_update`

type fileMetadataRepo struct {
	db DBTX
}

// NewFileMetadataRepository создаёт репозиторий метаданных файлов.
func NewFileMetadataRepository(db DBTX) FileMetadataRepository {
	return &fileMetadataRepo{db: db}
}

func scanFile(row pgx.Row) (*model.FileMetadata, error) {
	f := &model.FileMetadata{}
	var status string
	err := row.Scan(
		&f.FileID, &f.OwnerID, &f.OriginalName, &f.ObjectType, &status,
		&f.Description, &f.UploadDate, &f.LastUpdate,
	)
	if err != nil {
		return nil, err
	}
	f.Status = model.FileStatus(status)
	return f, nil
}

func (r *fileMetadataRepo) Create(ctx context.Context, f *model.FileMetadata) error {
	query := `
		INSERT INTO file_metadata (file_id, owner_id, original_name, object_type,
			status, description, upload_date, last_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(ctx, query,
		f.FileID, f.OwnerID, f.OriginalName, f.ObjectType,
		string(f.Status), f.Description, f.UploadDate, f.LastUpdate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: файл %s уже зарегистрирован", ErrConflict, f.FileID)
		}
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileMetadataRepo) GetByID(ctx context.Context, fileID string) (*model.FileMetadata, error) {
	query := `SELECT ` + fileColumns + ` FROM file_metadata WHERE file_id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

// buildFileWhere строит WHERE-условие и аргументы для фильтрации файлов.
func buildFileWhere(filters FileListFilters) (string, []any) {
	var conditions []string
	var args []any

	if filters.OwnerID != nil {
		args = append(args, *filters.OwnerID)
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filters.ObjectType != nil {
		args = append(args, *filters.ObjectType)
		conditions = append(conditions, fmt.Sprintf("object_type = $%d", len(args)))
	}
	if filters.Status != nil {
		args = append(args, string(*filters.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func (r *fileMetadataRepo) List(ctx context.Context, filters FileListFilters) ([]*model.FileMetadata, error) {
	where, args := buildFileWhere(filters)
	query := `SELECT ` + fileColumns + ` FROM file_metadata ` + where + ` ORDER BY upload_date DESC, file_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileMetadata
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}

func (r *fileMetadataRepo) UpdateStatus(ctx context.Context, f *model.FileMetadata) error {
	query := `
		UPDATE file_metadata
		SET status = $2, description = $3, last_update = $4,
			original_name = $5, object_type = $6
		WHERE file_id = $1`

	tag, err := r.db.Exec(ctx, query,
		f.FileID, string(f.Status), f.Description, f.LastUpdate, f.OriginalName, f.ObjectType,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileMetadataRepo) Delete(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM file_metadata WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *fileMetadataRepo) DeleteStale(ctx context.Context, before time.Time, statuses []model.FileStatus) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	tag, err := r.db.Exec(ctx,
		`DELETE FROM file_metadata WHERE last_update < $1 AND status = ANY($2)`,
		before, names,
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления устаревших записей: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
