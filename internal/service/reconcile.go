// reconcile.go — сверка пакета объявлений с табличным хранилищем.
//
// Один вызов Reconcile выполняет read-modify-write:
//  1. Синхронизация заголовка (создание, расширение, пересоздание без служебных колонок)
//  2. Поиск замещаемых строк владельца
//  3. Пакетное удаление в обратном порядке индексов, с построчным откатом
//  4. Пакетное добавление строк пакета
//
// Индексы строк глобальны для хранилища, поэтому все операции
// сериализуются одним мьютексом.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/normalizer"
	"github.com/BogdanPhenda/Nova/internal/sheet"
)

// MaxBatchSize — верхняя граница числа строк в одной операции хранилища.
const MaxBatchSize = 1000

// Prometheus метрики сверки
var (
	// reconcileTotal — количество сверок по результату (ok, error).
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fi_reconcile_total",
		Help: "Общее количество сверок с табличным хранилищем",
	}, []string{"result"})

	// reconcileRowsWrittenTotal — количество записанных строк.
	reconcileRowsWrittenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fi_reconcile_rows_written_total",
		Help: "Общее количество строк, добавленных в хранилище",
	})

	// reconcileRowsDeletedTotal — количество удалённых строк.
	reconcileRowsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fi_reconcile_rows_deleted_total",
		Help: "Общее количество строк, удалённых из хранилища",
	})

	// reconcileDurationSeconds — длительность сверки.
	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fi_reconcile_duration_seconds",
		Help:    "Длительность сверки в секундах",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Reconciler — сверка пакетов с табличным хранилищем.
type Reconciler struct {
	store     sheet.Store
	batchSize int
	logger    *slog.Logger

	mu sync.Mutex // сериализация всех изменяющих операций
}

// NewReconciler создаёт сервис сверки. batchSize вне диапазона 1..1000
// заменяется на 1000.
func NewReconciler(store sheet.Store, batchSize int, logger *slog.Logger) *Reconciler {
	if batchSize <= 0 || batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}
	return &Reconciler{
		store:     store,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "reconciler")),
	}
}

// layout — канонический заголовок хранилища и позиции ключевых колонок.
type layout struct {
	header []string
	owner  int
	source int
	id     int
}

func newLayout(canonical []string) layout {
	return layout{
		header: canonical,
		owner:  slices.Index(canonical, model.ColOwnerID),
		source: slices.Index(canonical, model.ColSourceFileID),
		id:     slices.Index(canonical, model.ColListingID),
	}
}

func (l layout) hasProvenance() bool {
	for _, c := range model.ProvenanceColumns {
		if !slices.Contains(l.header, c) {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Reconcile заменяет вклад пакета в хранилище: удаляет замещаемые строки
// владельца и добавляет строки пакета. При ошибке хранилища возвращает
// результат с нулём записанных строк и сообщением об ошибке.
func (r *Reconciler) Reconcile(ctx context.Context, batch *model.Batch) *model.ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &model.ReconcileResult{}
	log := r.logger.With(
		slog.String("owner_id", batch.OwnerID),
		slog.String("source_file_id", batch.SourceFileID),
	)

	lay, warnings, err := r.syncHeader(ctx, batch.Columns)
	result.Warnings = append(result.Warnings, warnings...)
	if err != nil {
		return r.fail(log, result, start, "Ошибка синхронизации заголовка", err)
	}

	rows, err := r.store.ReadAllRows(ctx)
	if err != nil {
		return r.fail(log, result, start, "Ошибка чтения хранилища", err)
	}

	indices := supersededRows(rows, lay, batch.OwnerID, batch.SourceFileID, batch.ListingIDs())
	deleted, delWarnings, err := r.deleteRows(ctx, indices)
	result.Warnings = append(result.Warnings, delWarnings...)
	reconcileRowsDeletedTotal.Add(float64(deleted))
	if err != nil {
		return r.fail(log, result, start, "Ошибка удаления строк", err)
	}
	result.RowsDeleted = deleted

	encoded := make([][]string, len(batch.Listings))
	for i := range batch.Listings {
		encoded[i] = normalizer.Row(lay.header, &batch.Listings[i])
	}
	for _, chunk := range chunks(encoded, r.batchSize) {
		if err := r.store.AppendRows(ctx, chunk); err != nil {
			return r.fail(log, result, start, "Ошибка добавления строк", err)
		}
	}
	result.RowsWritten = len(encoded)

	reconcileTotal.WithLabelValues("ok").Inc()
	reconcileRowsWrittenTotal.Add(float64(result.RowsWritten))
	reconcileDurationSeconds.Observe(time.Since(start).Seconds())

	log.Info("Сверка завершена",
		slog.Int("rows_written", result.RowsWritten),
		slog.Int("rows_deleted", result.RowsDeleted),
		slog.Int("warnings", len(result.Warnings)),
		slog.Duration("duration", time.Since(start)),
	)
	return result
}

// Remove удаляет из хранилища все строки файла-источника владельца.
func (r *Reconciler) Remove(ctx context.Context, ownerID, sourceFileID string) *model.ReconcileResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	result := &model.ReconcileResult{}
	log := r.logger.With(
		slog.String("owner_id", ownerID),
		slog.String("source_file_id", sourceFileID),
	)

	rows, err := r.store.ReadAllRows(ctx)
	if err != nil {
		return r.fail(log, result, start, "Ошибка чтения хранилища", err)
	}
	if len(rows) == 0 {
		return result
	}

	lay := newLayout(sheet.CanonicalHeader(rows[0]))
	indices := supersededRows(rows, lay, ownerID, sourceFileID, nil)
	deleted, warnings, err := r.deleteRows(ctx, indices)
	result.Warnings = append(result.Warnings, warnings...)
	reconcileRowsDeletedTotal.Add(float64(deleted))
	if err != nil {
		return r.fail(log, result, start, "Ошибка удаления строк", err)
	}
	result.RowsDeleted = deleted

	reconcileTotal.WithLabelValues("ok").Inc()
	reconcileDurationSeconds.Observe(time.Since(start).Seconds())
	log.Info("Строки файла удалены", slog.Int("rows_deleted", deleted))
	return result
}

// Deduplicate удаляет повторы пары (owner_id, listing_id), оставляя первое
// вхождение. Возвращает количество удалённых строк.
func (r *Reconciler) Deduplicate(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.store.ReadAllRows(ctx)
	if err != nil {
		return 0, fmt.Errorf("чтение хранилища: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	canonical := sheet.CanonicalHeader(rows[0])
	if err := sheet.CheckHeader(canonical); err != nil {
		return 0, err
	}
	lay := newLayout(canonical)
	if lay.owner < 0 || lay.id < 0 {
		return 0, nil
	}

	seen := make(map[[2]string]bool)
	var dups []int
	for i := 1; i < len(rows); i++ {
		key := [2]string{cell(rows[i], lay.owner), cell(rows[i], lay.id)}
		if key[1] == "" {
			continue
		}
		if seen[key] {
			dups = append(dups, i+1)
			continue
		}
		seen[key] = true
	}
	slices.Reverse(dups)

	deleted, warnings, err := r.deleteRows(ctx, dups)
	reconcileRowsDeletedTotal.Add(float64(deleted))
	for _, w := range warnings {
		r.logger.Warn(w)
	}
	if err != nil {
		return deleted, fmt.Errorf("удаление дубликатов: %w", err)
	}

	r.logger.Info("Дубликаты удалены", slog.Int("rows_deleted", deleted))
	return deleted, nil
}

func (r *Reconciler) fail(log *slog.Logger, result *model.ReconcileResult, start time.Time, msg string, err error) *model.ReconcileResult {
	log.Error(msg, slog.String("error", err.Error()))
	reconcileTotal.WithLabelValues("error").Inc()
	reconcileDurationSeconds.Observe(time.Since(start).Seconds())

	result.RowsWritten = 0
	result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", msg, err))
	return result
}

// syncHeader приводит заголовок хранилища к виду, вмещающему колонки пакета.
// Заголовок только расширяется. Если в непустом заголовке нет служебных
// колонок, хранилище очищается и заголовок пересоздаётся.
func (r *Reconciler) syncHeader(ctx context.Context, columns []string) (layout, []string, error) {
	raw, err := r.store.ReadHeader(ctx)
	if err != nil {
		return layout{}, nil, fmt.Errorf("чтение заголовка: %w", err)
	}
	canonical := sheet.CanonicalHeader(raw)

	if isBlank(canonical) {
		header := append(slices.Clone(model.ProvenanceColumns), columns...)
		if err := r.store.WriteHeader(ctx, header); err != nil {
			return layout{}, nil, fmt.Errorf("запись заголовка: %w", err)
		}
		r.logger.Info("Заголовок хранилища создан", slog.Int("columns", len(header)))
		return newLayout(header), nil, nil
	}

	if err := sheet.CheckHeader(canonical); err != nil {
		return layout{}, nil, err
	}

	lay := newLayout(canonical)
	if !lay.hasProvenance() {
		header := slices.Clone(model.ProvenanceColumns)
		for _, c := range canonical {
			if c != "" && !slices.Contains(header, c) {
				header = append(header, c)
			}
		}
		header = widen(header, columns)

		r.logger.Warn("В заголовке хранилища нет служебных колонок, хранилище пересоздаётся",
			slog.Any("header", raw),
		)
		if err := r.store.Clear(ctx); err != nil {
			return layout{}, nil, fmt.Errorf("очистка хранилища: %w", err)
		}
		if err := r.store.WriteHeader(ctx, header); err != nil {
			return layout{}, nil, fmt.Errorf("запись заголовка: %w", err)
		}
		warning := "В заголовке хранилища не было служебных колонок: хранилище очищено и создано заново"
		return newLayout(header), []string{warning}, nil
	}

	widened := widen(canonical, columns)
	if len(widened) == len(canonical) {
		return lay, nil, nil
	}
	// Существующие имена колонок сохраняются как есть
	header := append(slices.Clone(raw), widened[len(canonical):]...)
	if err := r.store.WriteHeader(ctx, header); err != nil {
		return layout{}, nil, fmt.Errorf("расширение заголовка: %w", err)
	}
	r.logger.Info("Заголовок хранилища расширен",
		slog.Any("added", widened[len(canonical):]),
	)
	return newLayout(widened), nil, nil
}

// widen дописывает в конец заголовка отсутствующие колонки.
func widen(header, columns []string) []string {
	out := slices.Clone(header)
	for _, c := range columns {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func isBlank(header []string) bool {
	for _, h := range header {
		if h != "" {
			return false
		}
	}
	return true
}

// supersededRows возвращает 1-based индексы строк владельца, которые
// заменяются: тот же файл-источник или listing_id из ids. Строки без
// владельца или файла-источника не совпадают никогда. Строки других
// файлов владельца, чьих listing_id нет в ids, сохраняются.
// Индексы по убыванию.
func supersededRows(rows [][]string, lay layout, ownerID, sourceFileID string, ids map[string]struct{}) []int {
	if lay.owner < 0 || lay.source < 0 || ownerID == "" {
		return nil
	}
	var out []int
	for i := len(rows) - 1; i >= 1; i-- {
		owner := cell(rows[i], lay.owner)
		source := cell(rows[i], lay.source)
		if owner == "" || source == "" || owner != ownerID {
			continue
		}
		if source == sourceFileID {
			out = append(out, i+1)
			continue
		}
		if _, ok := ids[cell(rows[i], lay.id)]; ok && lay.id >= 0 {
			out = append(out, i+1)
		}
	}
	return out
}

// deleteRows удаляет строки пачками не больше batchSize. Индексы должны
// идти по убыванию. Если пачка не удалилась, строки удаляются по одной,
// ошибки отдельных строк становятся предупреждениями. Ошибка возвращается,
// только если в пачке не удалось удалить ни одной строки.
func (r *Reconciler) deleteRows(ctx context.Context, indices []int) (int, []string, error) {
	deleted := 0
	var warnings []string
	for _, chunk := range chunks(indices, r.batchSize) {
		err := r.store.DeleteRows(ctx, chunk)
		if err == nil {
			deleted += len(chunk)
			continue
		}

		r.logger.Warn("Пакетное удаление не удалось, удаление по одной строке",
			slog.Int("rows", len(chunk)),
			slog.String("error", err.Error()),
		)
		ok := 0
		var lastErr error
		for _, idx := range chunk {
			if err := r.store.DeleteRows(ctx, []int{idx}); err != nil {
				lastErr = err
				warnings = append(warnings, fmt.Sprintf("Не удалось удалить строку %d: %v", idx, err))
				continue
			}
			ok++
		}
		deleted += ok
		if ok == 0 {
			return deleted, warnings, lastErr
		}
	}
	return deleted, warnings, nil
}

// chunks делит срез на последовательные части длиной не больше size.
func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
