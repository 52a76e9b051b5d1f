// Пакет normalizer — приведение проверенной таблицы к каноническому виду
// и простановка провенанса (владелец, файл-источник, время).
package normalizer

import (
	"time"

	"github.com/google/uuid"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// Normalizer строит канонический пакет из таблицы загрузки.
type Normalizer struct {
	now func() time.Time
}

// New создаёт нормализатор. now — источник времени (nil: time.Now).
func New(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize возвращает новый канонический пакет, исходная таблица не меняется.
// Неизвестные колонки отбрасываются, служебные перезаписываются.
// Пустой sourceFileID заменяется новым UUID.
func (n *Normalizer) Normalize(ds *model.Dataset, ownerID, sourceFileID string) *model.Batch {
	if sourceFileID == "" {
		sourceFileID = uuid.NewString()
	}
	stamp := n.now().UTC().Format(time.RFC3339)

	batch := &model.Batch{
		OwnerID:      ownerID,
		SourceFileID: sourceFileID,
	}

	type colRef struct {
		idx int
		col model.Column
	}
	var refs []colRef
	seen := make(map[string]bool)
	for i, name := range ds.Columns {
		col, ok := model.LookupColumn(name)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		refs = append(refs, colRef{idx: i, col: col})
		batch.Columns = append(batch.Columns, name)
	}

	batch.Listings = make([]model.Listing, 0, len(ds.Rows))
	for r := range ds.Rows {
		var l model.Listing
		for _, ref := range refs {
			l.Set(ref.col.Name, ds.Cell(r, ref.idx).CanonicalAs(ref.col.Kind))
		}
		l.OwnerID = ownerID
		l.SourceFileID = sourceFileID
		l.CreatedAt = stamp
		l.UpdatedAt = stamp
		batch.Listings = append(batch.Listings, l)
	}
	return batch
}

// CanonicalCell приводит строку, прочитанную из хранилища, к канонической
// форме колонки. Для уже канонических значений — тождественное преобразование.
func CanonicalCell(column, raw string) string {
	v := model.String(raw)
	if col, ok := model.LookupColumn(column); ok {
		return v.CanonicalAs(col.Kind)
	}
	return v.Canonical()
}

// Listing строит объявление из строки хранилища по заголовку
// (канонические имена колонок, см. model.CanonicalColumnName).
// Значения приводятся к канонической форме, неизвестные колонки пропускаются.
func Listing(header []string, row []string) model.Listing {
	var l model.Listing
	for i, name := range header {
		if i >= len(row) {
			break
		}
		l.Set(name, CanonicalCell(name, row[i]))
	}
	return l
}

// Row кодирует объявление в строку хранилища по заголовку.
func Row(header []string, l *model.Listing) []string {
	row := make([]string, len(header))
	for i, name := range header {
		row[i] = l.Get(name)
	}
	return row
}
