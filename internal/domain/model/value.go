// Пакет model — доменные модели сервиса приёма объявлений.
// Value и Dataset — типизированное представление загруженной таблицы,
// Listing — каноническая строка хранилища, FileMetadata — запись о файле.
package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind — семантический тип колонки.
type Kind int

const (
	// KindString — строка
	KindString Kind = iota
	// KindFloat — число с плавающей точкой
	KindFloat
	// KindInt — целое число
	KindInt
	// KindBool — логическое значение
	KindBool
)

// String возвращает имя типа для сообщений валидации.
func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	default:
		return "str"
	}
}

type valueKind uint8

const (
	valueNull valueKind = iota
	valueString
	valueNumber
	valueBool
	valueTime
)

// Value — значение ячейки загруженной таблицы.
// Нулевое значение Value — пустая ячейка.
type Value struct {
	kind valueKind
	s    string
	f    float64
	b    bool
	t    time.Time
}

// Null возвращает пустую ячейку.
func Null() Value { return Value{} }

// String возвращает строковую ячейку.
func String(s string) Value { return Value{kind: valueString, s: s} }

// Number возвращает числовую ячейку. NaN считается пустой ячейкой.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Value{}
	}
	return Value{kind: valueNumber, f: f}
}

// Bool возвращает логическую ячейку.
func Bool(b bool) Value { return Value{kind: valueBool, b: b} }

// Time возвращает ячейку даты/времени.
func Time(t time.Time) Value { return Value{kind: valueTime, t: t} }

// IsNull сообщает, пуста ли ячейка. Строка из одних пробелов считается пустой.
func (v Value) IsNull() bool {
	switch v.kind {
	case valueNull:
		return true
	case valueString:
		return strings.TrimSpace(v.s) == ""
	default:
		return false
	}
}

// Canonical возвращает каноническую строковую форму значения:
// пусто → "", bool → "1"/"0", целое число → без дробной части,
// дата → RFC 3339, строка → без пробелов по краям.
func (v Value) Canonical() string {
	switch v.kind {
	case valueString:
		return strings.TrimSpace(v.s)
	case valueNumber:
		return FormatNumber(v.f)
	case valueBool:
		if v.b {
			return "1"
		}
		return "0"
	case valueTime:
		return v.t.Format(time.RFC3339)
	default:
		return ""
	}
}

// CanonicalAs приводит значение к типу колонки и возвращает каноническую форму.
// Если приведение невозможно, возвращается Canonical().
func (v Value) CanonicalAs(kind Kind) string {
	if v.IsNull() {
		return ""
	}
	switch kind {
	case KindBool:
		if v.AsBool() {
			return "1"
		}
		return "0"
	case KindFloat:
		if f, err := v.AsFloat(); err == nil {
			return FormatNumber(f)
		}
	case KindInt:
		if n, err := v.AsInt(); err == nil {
			return strconv.FormatInt(n, 10)
		}
	}
	return v.Canonical()
}

// AsFloat приводит значение к float64.
// Строки допускают десятичную запятую и пробелы между разрядами.
func (v Value) AsFloat() (float64, error) {
	switch v.kind {
	case valueNumber:
		return v.f, nil
	case valueBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case valueString:
		return ParseNumber(v.s)
	default:
		return 0, fmt.Errorf("значение %q не является числом", v.Canonical())
	}
}

// AsInt приводит значение к целому числу. Дробные значения и выход
// за пределы int64 — ошибка.
func (v Value) AsInt() (int64, error) {
	f, err := v.AsFloat()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("значение %v не является целым числом", f)
	}
	if f >= 1<<63 || f < -(1<<63) {
		return 0, fmt.Errorf("значение %v вне диапазона целых чисел", f)
	}
	return int64(f), nil
}

// AsBool приводит значение к bool. Никогда не возвращает ошибку:
// true/1/yes/да (без учёта регистра) — истина, всё остальное — ложь.
func (v Value) AsBool() bool {
	switch v.kind {
	case valueBool:
		return v.b
	case valueNumber:
		return v.f == 1
	case valueString:
		return ParseBool(v.s)
	default:
		return false
	}
}

// ParseBool распознаёт фиксированный набор «истинных» токенов.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "да":
		return true
	default:
		return false
	}
}

// ParseNumber разбирает число из строки таблицы: "1 200 000", "54,2", "3.0".
func ParseNumber(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(cleaned)
	if !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("значение %q не является числом", s)
	}
	return f, nil
}

// FormatNumber форматирует число без хвостового ".0" для целых значений.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
