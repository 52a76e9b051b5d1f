// Пакет upload — декодирование загруженных файлов (xlsx, csv, json)
// в типизированную таблицу model.Dataset.
package upload

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// Форматы загрузки.
const (
	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
	FormatJSON = "json"
)

var (
	// ErrUnsupportedFormat — расширение файла не поддерживается.
	ErrUnsupportedFormat = errors.New("неподдерживаемый формат файла: допустимы .xlsx, .csv, .json")
	// ErrEmptyDataset — в файле нет заголовка.
	ErrEmptyDataset = errors.New("файл не содержит заголовка")
	// ErrDuplicateColumn — два ключа объекта указывают на одну колонку.
	ErrDuplicateColumn = errors.New("повторяющаяся колонка")
)

// DetectFormat определяет формат по расширению имени файла.
func DetectFormat(name string) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// Decode читает файл и возвращает таблицу и её формат.
// Имена колонок приводятся к каноническому виду.
func Decode(name string, r io.Reader) (*model.Dataset, string, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return nil, "", err
	}

	var ds *model.Dataset
	switch format {
	case FormatXLSX:
		ds, err = decodeXLSX(r)
	case FormatCSV:
		ds, err = decodeCSV(r)
	case FormatJSON:
		ds, err = decodeJSON(r)
	}
	if err != nil {
		return nil, format, err
	}
	return ds, format, nil
}

// decodeXLSX читает первый лист книги. Ячейки читаются как хранимые
// значения, без числового формата отображения ("#,##0", даты).
func decodeXLSX(r io.Reader) (*model.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyDataset
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения листа %q: %w", sheets[0], err)
	}
	return fromStrings(rows)
}

// decodeCSV читает CSV с разделителем "," или ";" (определяется по заголовку).
func decodeCSV(r io.Reader) (*model.Dataset, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	firstLine := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		firstLine = data[:i]
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	if bytes.Count(firstLine, []byte(";")) > bytes.Count(firstLine, []byte(",")) {
		reader.Comma = ';'
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора csv: %w", err)
	}
	return fromStrings(rows)
}

// fromStrings строит таблицу из строк: первая — заголовок.
// Колонки с пустым заголовком и полностью пустые строки пропускаются.
func fromStrings(rows [][]string) (*model.Dataset, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyDataset
	}

	var keep []int
	ds := &model.Dataset{}
	for i, h := range rows[0] {
		name := model.CanonicalColumnName(h)
		if name == "" {
			continue
		}
		keep = append(keep, i)
		ds.Columns = append(ds.Columns, name)
	}
	if len(ds.Columns) == 0 {
		return nil, ErrEmptyDataset
	}

	for _, raw := range rows[1:] {
		row := make([]model.Value, len(keep))
		empty := true
		for j, i := range keep {
			if i >= len(raw) || strings.TrimSpace(raw[i]) == "" {
				continue
			}
			row[j] = model.String(raw[i])
			empty = false
		}
		if !empty {
			ds.Rows = append(ds.Rows, row)
		}
	}
	return ds, nil
}

// decodeJSON читает массив объектов. Порядок колонок — порядок первого
// появления ключей.
func decodeJSON(r io.Reader) (*model.Dataset, error) {
	var items []json.RawMessage
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("ошибка разбора json: ожидается массив объектов: %w", err)
	}

	ds := &model.Dataset{}
	positions := make(map[string]int)
	var objects [][]jsonField

	for i, raw := range items {
		fields, err := decodeObject(raw)
		if err != nil {
			return nil, fmt.Errorf("элемент %d: %w", i, err)
		}
		for _, f := range fields {
			if _, ok := positions[f.name]; !ok {
				positions[f.name] = len(ds.Columns)
				ds.Columns = append(ds.Columns, f.name)
			}
		}
		objects = append(objects, fields)
	}
	if len(ds.Columns) == 0 {
		return nil, ErrEmptyDataset
	}

	for _, fields := range objects {
		row := make([]model.Value, len(ds.Columns))
		for _, f := range fields {
			row[positions[f.name]] = f.value
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

type jsonField struct {
	name  string
	value model.Value
}

// decodeObject разбирает объект с сохранением порядка ключей.
func decodeObject(raw json.RawMessage) ([]jsonField, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("ожидается объект")
	}

	var fields []jsonField
	keys := make(map[string]string)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)

		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		name := model.CanonicalColumnName(key)
		if name == "" {
			continue
		}
		if prev, ok := keys[name]; ok {
			return nil, fmt.Errorf("%w: ключи %q и %q задают колонку %s", ErrDuplicateColumn, prev, key, name)
		}
		keys[name] = key
		fields = append(fields, jsonField{name: name, value: jsonValue(val)})
	}
	return fields, nil
}

func jsonValue(val any) model.Value {
	switch v := val.(type) {
	case nil:
		return model.Null()
	case bool:
		return model.Bool(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return model.Number(f)
		}
		return model.String(v.String())
	case string:
		return model.String(v)
	default:
		b, _ := json.Marshal(v)
		return model.String(string(b))
	}
}
