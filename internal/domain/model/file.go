package model

import (
	"errors"
	"fmt"
	"time"
)

// FileStatus — статус обработки загруженного файла.
type FileStatus string

const (
	// FileStatusNew — файл принят, обработка не начата
	FileStatusNew FileStatus = "new"
	// FileStatusProcessing — идёт валидация и сверка
	FileStatusProcessing FileStatus = "processing"
	// FileStatusProcessed — строки записаны, фид опубликован
	FileStatusProcessed FileStatus = "processed"
	// FileStatusError — обработка завершилась ошибкой
	FileStatusError FileStatus = "error"
)

// ErrInvalidTransition — недопустимая смена статуса файла.
var ErrInvalidTransition = errors.New("недопустимый переход статуса файла")

// fileTransitions — матрица допустимых переходов статусов.
// processed → processing и error → processing — повторная загрузка того же файла.
var fileTransitions = map[FileStatus]map[FileStatus]bool{
	FileStatusNew:        {FileStatusProcessing: true},
	FileStatusProcessing: {FileStatusProcessed: true, FileStatusError: true},
	FileStatusProcessed:  {FileStatusProcessing: true},
	FileStatusError:      {FileStatusProcessing: true},
}

// IsValid сообщает, является ли статус одним из известных.
func (s FileStatus) IsValid() bool {
	_, ok := fileTransitions[s]
	return ok
}

// CanTransitionTo проверяет допустимость перехода в target.
func (s FileStatus) CanTransitionTo(target FileStatus) bool {
	return fileTransitions[s][target]
}

// FileMetadata — запись о загруженном файле. Хранится отдельно от
// табличного хранилища и может быть потеряна без ущерба для объявлений.
type FileMetadata struct {
	FileID       string
	OwnerID      string
	OriginalName string
	// ObjectType — формат загрузки (xlsx, csv, json)
	ObjectType  string
	Status      FileStatus
	UploadDate  time.Time
	LastUpdate  time.Time
	Description *string
}

// Transition переводит запись в новый статус.
func (f *FileMetadata) Transition(target FileStatus, description *string, now time.Time) error {
	if !f.Status.CanTransitionTo(target) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, f.Status, target)
	}
	f.Status = target
	f.Description = description
	f.LastUpdate = now
	return nil
}
