// Пакет sheet — табличное хранилище объявлений.
//
// Store — узкий контракт удалённой таблицы: строка 1 — заголовок,
// индексы строк начинаются с 1. Реализации:
//   - Memory — in-memory таблица (тесты, локальный запуск)
//   - GoogleSheet — лист Google Sheets через Sheets API v4
package sheet

import (
	"context"
	"errors"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// ErrCorruptHeader — в заголовке хранилища повторяются колонки.
var ErrCorruptHeader = errors.New("заголовок хранилища содержит повторяющиеся колонки")

// Store — операции удалённой таблицы, которых достаточно для сверки.
type Store interface {
	// ReadHeader возвращает строку 1 (пустой срез для пустой таблицы).
	ReadHeader(ctx context.Context) ([]string, error)
	// WriteHeader записывает строку 1.
	WriteHeader(ctx context.Context, header []string) error
	// ReadAllRows возвращает все строки, включая заголовок с индексом 0.
	ReadAllRows(ctx context.Context) ([][]string, error)
	// AppendRows дописывает строки в конец таблицы одной операцией.
	AppendRows(ctx context.Context, rows [][]string) error
	// DeleteRows удаляет строки по 1-based индексам одной операцией,
	// в переданном порядке.
	DeleteRows(ctx context.Context, indices []int) error
	// Clear удаляет все строки, включая заголовок.
	Clear(ctx context.Context) error
}

// CanonicalHeader приводит имена колонок заголовка к каноническому виду.
func CanonicalHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = model.CanonicalColumnName(h)
	}
	return out
}

// CheckHeader возвращает ErrCorruptHeader, если непустые канонические
// имена колонок повторяются.
func CheckHeader(canonical []string) error {
	seen := make(map[string]bool, len(canonical))
	for _, h := range canonical {
		if h == "" {
			continue
		}
		if seen[h] {
			return ErrCorruptHeader
		}
		seen[h] = true
	}
	return nil
}
