package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleConfig — параметры подключения к Google Sheets.
type GoogleConfig struct {
	// CredentialsFile — JSON ключ сервисного аккаунта (пусто: ADC или опции клиента)
	CredentialsFile string
	// SpreadsheetID — идентификатор книги
	SpreadsheetID string
	// SheetTitle — название листа (пусто: первый лист книги)
	SheetTitle string
}

// GoogleSheet — Store поверх листа Google Sheets (API v4).
type GoogleSheet struct {
	svc           *sheets.Service
	spreadsheetID string
	title         string
	sheetID       int64
	logger        *slog.Logger
}

// NewGoogleSheet подключается к книге и определяет лист.
// opts — дополнительные опции клиента (endpoint, HTTP-клиент в тестах).
func NewGoogleSheet(ctx context.Context, cfg GoogleConfig, logger *slog.Logger, opts ...option.ClientOption) (*GoogleSheet, error) {
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("создание клиента Google Sheets: %w", err)
	}

	book, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("получение книги %s: %w", cfg.SpreadsheetID, err)
	}

	var props *sheets.SheetProperties
	for _, s := range book.Sheets {
		if s.Properties == nil {
			continue
		}
		if cfg.SheetTitle == "" || s.Properties.Title == cfg.SheetTitle {
			props = s.Properties
			break
		}
	}
	if props == nil {
		return nil, fmt.Errorf("лист %q не найден в книге %s", cfg.SheetTitle, cfg.SpreadsheetID)
	}

	logger.Info("Подключение к Google Sheets установлено",
		slog.String("spreadsheet_id", cfg.SpreadsheetID),
		slog.String("sheet", props.Title),
	)

	return &GoogleSheet{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		title:         props.Title,
		sheetID:       props.SheetId,
		logger:        logger.With(slog.String("component", "google_sheet")),
	}, nil
}

// a1 возвращает диапазон в нотации A1 с экранированным названием листа.
func (g *GoogleSheet) a1(rng string) string {
	quoted := "'" + strings.ReplaceAll(g.title, "'", "''") + "'"
	if rng == "" {
		return quoted
	}
	return quoted + "!" + rng
}

// ReadHeader читает строку 1.
func (g *GoogleSheet) ReadHeader(ctx context.Context) ([]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("чтение заголовка: %w", err)
	}
	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// WriteHeader перезаписывает строку 1.
func (g *GoogleSheet) WriteHeader(ctx context.Context, header []string) error {
	vr := &sheets.ValueRange{Values: [][]any{toCells(header)}}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, g.a1("1:1"), vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("запись заголовка: %w", err)
	}
	return nil
}

// ReadAllRows читает весь лист.
func (g *GoogleSheet) ReadAllRows(ctx context.Context) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.a1("")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("чтение листа: %w", err)
	}
	rows := make([][]string, len(resp.Values))
	for i, r := range resp.Values {
		rows[i] = toStrings(r)
	}
	return rows, nil
}

// AppendRows дописывает строки в конец листа одним запросом.
func (g *GoogleSheet) AppendRows(ctx context.Context, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]any, len(rows))
	for i, r := range rows {
		values[i] = toCells(r)
	}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, g.a1("A1"), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("добавление %d строк: %w", len(rows), err)
	}
	return nil
}

// DeleteRows удаляет строки одним batchUpdate; запросы применяются
// последовательно в переданном порядке.
func (g *GoogleSheet) DeleteRows(ctx context.Context, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	reqs := make([]*sheets.Request, 0, len(indices))
	for _, idx := range indices {
		if idx < 2 {
			return fmt.Errorf("недопустимый индекс строки %d", idx)
		}
		reqs = append(reqs, &sheets.Request{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    g.sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(idx - 1),
					EndIndex:   int64(idx),
				},
			},
		})
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("удаление %d строк: %w", len(indices), err)
	}
	return nil
}

// Clear очищает значения листа.
func (g *GoogleSheet) Clear(ctx context.Context) error {
	_, err := g.svc.Spreadsheets.Values.Clear(g.spreadsheetID, g.a1(""), &sheets.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("очистка листа: %w", err)
	}
	g.logger.Warn("Лист очищен", slog.String("sheet", g.title))
	return nil
}

func toStrings(cells []any) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		if s, ok := c.(string); ok {
			out[i] = s
			continue
		}
		if c != nil {
			out[i] = fmt.Sprint(c)
		}
	}
	return out
}

func toCells(row []string) []any {
	out := make([]any, len(row))
	for i, s := range row {
		out[i] = s
	}
	return out
}
