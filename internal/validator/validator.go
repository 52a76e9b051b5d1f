// Пакет validator — проверка загруженной таблицы объявлений.
//
// Ошибки блокируют приём файла, предупреждения только показываются
// пользователю. Порядок сообщений детерминирован:
//   - обязательные колонки и пустые значения
//   - типы данных
//   - числовые и перекрёстные проверки
//   - уникальность listing_id
//   - предупреждения
package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// Config — параметры бизнес-правил валидации.
type Config struct {
	// MinPricePerM2, MaxPricePerM2 — правдоподобный диапазон цены за м²
	MinPricePerM2 float64
	MaxPricePerM2 float64
	// HighPriceQuantile — квантиль цены, выше которого объявление считается дорогим
	HighPriceQuantile float64
	// ResidentialTypes — типы недвижимости, для которых проверяется этажность
	ResidentialTypes []string
}

// DefaultConfig возвращает параметры по умолчанию.
func DefaultConfig() Config {
	return Config{
		MinPricePerM2:     50_000,
		MaxPricePerM2:     1_000_000,
		HighPriceQuantile: 0.8,
		ResidentialTypes:  []string{"квартира", "апартаменты", "комната"},
	}
}

// Validator проверяет таблицу загрузки. Без состояния, безопасен
// для одновременного использования.
type Validator struct {
	cfg         Config
	residential map[string]bool
}

// New создаёт валидатор с указанной конфигурацией.
func New(cfg Config) *Validator {
	residential := make(map[string]bool, len(cfg.ResidentialTypes))
	for _, t := range cfg.ResidentialTypes {
		residential[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Validator{cfg: cfg, residential: residential}
}

// report накапливает сообщения одной проверки.
type report struct {
	errors   []string
	warnings []string
}

func (r *report) errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *report) warnf(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Validate проверяет таблицу и возвращает результат.
// Исходная таблица не изменяется.
func (v *Validator) Validate(ds *model.Dataset) *model.ValidationResult {
	r := &report{}

	if ds == nil || len(ds.Rows) == 0 {
		r.errorf("Файл не содержит строк с данными")
		return result(r)
	}

	v.checkColumns(ds, r)
	v.checkRequired(ds, r)
	badTypes := v.checkTypes(ds, r)
	v.checkNumeric(ds, badTypes, r)
	v.checkCrossField(ds, badTypes, r)
	v.checkUnique(ds, r)

	v.warnPricePerM2(ds, badTypes, r)
	v.warnExpensiveWithoutDescription(ds, badTypes, r)
	v.warnImages(ds, r)
	v.warnRecommended(ds, r)
	v.warnHierarchy(ds, r)

	return result(r)
}

func result(r *report) *model.ValidationResult {
	return &model.ValidationResult{
		OK:       len(r.errors) == 0,
		Errors:   r.errors,
		Warnings: r.warnings,
	}
}

// checkColumns — повторяющиеся и неизвестные колонки.
func (v *Validator) checkColumns(ds *model.Dataset, r *report) {
	seen := make(map[string]bool, len(ds.Columns))
	for _, c := range ds.Columns {
		if seen[c] {
			r.errorf("Колонка %s встречается несколько раз", c)
			continue
		}
		seen[c] = true
		if !model.IsKnownColumn(c) {
			r.warnf("Неизвестная колонка %s будет проигнорирована", c)
		}
	}
}

// checkRequired — наличие обязательных колонок и отсутствие пустых значений.
func (v *Validator) checkRequired(ds *model.Dataset, r *report) {
	for _, c := range model.DataColumns {
		if !c.Required {
			continue
		}
		values := ds.Column(c.Name)
		if values == nil {
			r.errorf("Отсутствует обязательная колонка: %s", c.Name)
			continue
		}
		var empty []int
		for i, val := range values {
			if val.IsNull() {
				empty = append(empty, i)
			}
		}
		if len(empty) > 0 {
			r.errorf("Пустые значения в обязательной колонке %s, строки: %s", c.Name, joinRows(empty))
		}
	}
}

// checkTypes пробует привести каждую известную колонку к её типу.
// Возвращает множество колонок с ошибкой типа — числовые правила их пропускают.
func (v *Validator) checkTypes(ds *model.Dataset, r *report) map[string]bool {
	bad := make(map[string]bool)
	for _, c := range model.DataColumns {
		if c.Kind != model.KindFloat && c.Kind != model.KindInt {
			continue
		}
		values := ds.Column(c.Name)
		var failed []int
		for i, val := range values {
			if val.IsNull() {
				continue
			}
			var err error
			if c.Kind == model.KindInt {
				_, err = val.AsInt()
			} else {
				_, err = val.AsFloat()
			}
			if err != nil {
				failed = append(failed, i)
			}
		}
		if len(failed) > 0 {
			bad[c.Name] = true
			r.errorf("Ошибка в колонке %s: неверный тип данных, ожидается %s (строки: %s)",
				c.Name, c.Kind, joinRows(failed))
		}
	}
	return bad
}

// checkNumeric — отрицательные цена и площади.
func (v *Validator) checkNumeric(ds *model.Dataset, bad map[string]bool, r *report) {
	for _, name := range []string{model.ColPrice, model.ColAreaTotal, model.ColAreaLiving, model.ColAreaKitchen} {
		if bad[name] {
			continue
		}
		var negative []int
		for i, f := range numbers(ds, name) {
			if f != nil && *f < 0 {
				negative = append(negative, i)
			}
		}
		if len(negative) > 0 {
			r.errorf("Отрицательные значения в колонке %s, строки: %s", name, joinRows(negative))
		}
	}
}

// checkCrossField — сумма площадей и этажность.
func (v *Validator) checkCrossField(ds *model.Dataset, bad map[string]bool, r *report) {
	if !bad[model.ColAreaTotal] && !bad[model.ColAreaLiving] && !bad[model.ColAreaKitchen] {
		total := numbers(ds, model.ColAreaTotal)
		living := numbers(ds, model.ColAreaLiving)
		kitchen := numbers(ds, model.ColAreaKitchen)
		if total != nil && living != nil && kitchen != nil {
			var rows []int
			for i := range total {
				if total[i] != nil && living[i] != nil && kitchen[i] != nil && *living[i]+*kitchen[i] > *total[i] {
					rows = append(rows, i)
				}
			}
			if len(rows) > 0 {
				r.errorf("Сумма жилой площади и площади кухни больше общей площади, строки: %s", joinRows(rows))
			}
		}
	}

	if bad[model.ColFloor] || bad[model.ColFloorsTotal] {
		return
	}
	floor := numbers(ds, model.ColFloor)
	floorsTotal := numbers(ds, model.ColFloorsTotal)
	if floor == nil || floorsTotal == nil {
		return
	}
	propertyTypes := ds.Column(model.ColPropertyType)
	var rows []int
	for i := range floor {
		if floor[i] == nil || floorsTotal[i] == nil || *floor[i] <= *floorsTotal[i] {
			continue
		}
		if propertyTypes != nil && !v.isResidential(propertyTypes[i]) {
			continue
		}
		rows = append(rows, i)
	}
	if len(rows) > 0 {
		r.errorf("Этаж больше этажности дома, строки: %s", joinRows(rows))
	}
}

// isResidential — пустой тип недвижимости считается жилым.
func (v *Validator) isResidential(val model.Value) bool {
	if val.IsNull() {
		return true
	}
	return v.residential[strings.ToLower(val.Canonical())]
}

// checkUnique — повторяющиеся listing_id внутри загрузки.
func (v *Validator) checkUnique(ds *model.Dataset, r *report) {
	ids := ds.Column(model.ColListingID)
	if ids == nil {
		return
	}
	counts := make(map[string]int, len(ids))
	var order []string
	for _, val := range ids {
		if val.IsNull() {
			continue
		}
		id := val.Canonical()
		if counts[id] == 0 {
			order = append(order, id)
		}
		counts[id]++
	}
	var dups []string
	for _, id := range order {
		if counts[id] > 1 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		r.errorf("Дублирующиеся listing_id: %s", strings.Join(dups, ", "))
	}
}

// numbers возвращает числовые значения колонки; nil-элементы — пустые
// или нечисловые ячейки. Для отсутствующей колонки возвращает nil.
func numbers(ds *model.Dataset, name string) []*float64 {
	values := ds.Column(name)
	if values == nil {
		return nil
	}
	out := make([]*float64, len(values))
	for i, val := range values {
		if val.IsNull() {
			continue
		}
		if f, err := val.AsFloat(); err == nil {
			out[i] = &f
		}
	}
	return out
}

// joinRows форматирует номера строк через запятую.
func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, n := range rows {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// quantile — квантиль с линейной интерполяцией между соседними значениями.
func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[lo+1]-sorted[lo])*frac
}
