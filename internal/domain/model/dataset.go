package model

import "strings"

// Dataset — декодированная таблица загрузки: упорядоченные колонки
// и строки значений. Короткие строки дополняются пустыми ячейками при чтении.
type Dataset struct {
	Columns []string
	Rows    [][]Value
}

// ColumnIndex возвращает позицию колонки или -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn сообщает, есть ли колонка в таблице.
func (d *Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// Cell возвращает значение ячейки по номеру строки и позиции колонки.
func (d *Dataset) Cell(row, col int) Value {
	if col < 0 || row < 0 || row >= len(d.Rows) || col >= len(d.Rows[row]) {
		return Null()
	}
	return d.Rows[row][col]
}

// Column возвращает значения колонки по имени (nil, если колонки нет).
func (d *Dataset) Column(name string) []Value {
	idx := d.ColumnIndex(name)
	if idx < 0 {
		return nil
	}
	out := make([]Value, len(d.Rows))
	for i := range d.Rows {
		out[i] = d.Cell(i, idx)
	}
	return out
}

// columnAliases — имена колонок старого шаблона и прежней схемы хранилища.
var columnAliases = map[string]string{
	"internal_id":           ColListingID,
	"windows_view":          ColWindowView,
	"number":                ColApartmentNumber,
	"image_urls":            ColImages,
	"developer_telegram_id": ColOwnerID,
	"creation_date":         ColCreatedAt,
	"last_update_date":      ColUpdatedAt,
}

// CanonicalColumnName приводит заголовок колонки к каноническому имени:
// обрезка пробелов, нижний регистр, пробелы → "_", разрешение псевдонимов.
func CanonicalColumnName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), "_")
	if alias, ok := columnAliases[n]; ok {
		return alias
	}
	return n
}
