package sheet

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMemory_HeaderAndRows(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	h, err := m.ReadHeader(ctx)
	if err != nil || len(h) != 0 {
		t.Fatalf("пустое хранилище: ReadHeader = %v, %v", h, err)
	}

	if err := m.WriteHeader(ctx, []string{"owner_id", "listing_id"}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	if err := m.AppendRows(ctx, [][]string{{"7", "a"}, {"7", "b"}, {"8", "c"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}

	// Удаление в обратном порядке: строки 4 и 2 (c и a)
	if err := m.DeleteRows(ctx, []int{4, 2}); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}

	want := [][]string{{"owner_id", "listing_id"}, {"7", "b"}}
	rows, _ := m.ReadAllRows(ctx)
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("ReadAllRows = %v, хотели %v", rows, want)
	}
}

func TestMemory_DeleteRowsRejectsHeaderAndOutOfRange(t *testing.T) {
	ctx := context.Background()
	m := NewMemory([]string{"h"}, []string{"r1"})

	for _, idx := range [][]int{{1}, {3}, {2, 5}} {
		if err := m.DeleteRows(ctx, idx); err == nil {
			t.Errorf("DeleteRows(%v) должен вернуть ошибку", idx)
		}
	}
	if got := len(m.Rows()); got != 2 {
		t.Errorf("после ошибок осталось %d строк, хотели 2", got)
	}
}

func TestMemory_ClearAndCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory([]string{"h"}, []string{"r1"})

	rows := m.Rows()
	rows[1][0] = "изменено"
	if m.Rows()[1][0] != "r1" {
		t.Error("Rows() должен возвращать копию")
	}

	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(m.Rows()) != 0 {
		t.Error("после Clear хранилище должно быть пустым")
	}
}

func TestCheckHeader(t *testing.T) {
	if err := CheckHeader(CanonicalHeader([]string{"owner_id", "internal_id", "listing_id"})); !errors.Is(err, ErrCorruptHeader) {
		t.Errorf("internal_id и listing_id — одна колонка, ожидалась ErrCorruptHeader, получено %v", err)
	}
	if err := CheckHeader([]string{"owner_id", "", "", "listing_id"}); err != nil {
		t.Errorf("пустые имена не считаются повтором: %v", err)
	}
}

// fakeSheetsAPI — минимальный двойник Sheets API v4.
type fakeSheetsAPI struct {
	mu       sync.Mutex
	header   []any
	batch    *sheets.BatchUpdateSpreadsheetRequest
	appended [][]any
}

func (f *fakeSheetsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path

	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/spreadsheets/book"):
		_, _ = io.WriteString(w, `{"sheets":[{"properties":{"sheetId":42,"title":"Объявления"}}]}`)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		req := &sheets.BatchUpdateSpreadsheetRequest{}
		_ = json.NewDecoder(r.Body).Decode(req)
		f.batch = req
		_, _ = io.WriteString(w, `{"spreadsheetId":"book"}`)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		vr := &sheets.ValueRange{}
		_ = json.NewDecoder(r.Body).Decode(vr)
		f.appended = append(f.appended, vr.Values...)
		_, _ = io.WriteString(w, `{"spreadsheetId":"book"}`)

	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		vals, _ := json.Marshal([][]any{f.header})
		_, _ = w.Write([]byte(`{"range":"x","values":` + string(vals) + `}`))

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"not found"}}`)
	}
}

func newTestGoogleSheet(t *testing.T, api *fakeSheetsAPI) *GoogleSheet {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	g, err := NewGoogleSheet(context.Background(),
		GoogleConfig{SpreadsheetID: "book"},
		testLogger(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewGoogleSheet: %v", err)
	}
	return g
}

func TestGoogleSheet_ResolvesFirstSheet(t *testing.T) {
	g := newTestGoogleSheet(t, &fakeSheetsAPI{})
	if g.title != "Объявления" || g.sheetID != 42 {
		t.Errorf("лист = %q/%d, хотели Объявления/42", g.title, g.sheetID)
	}
	if got := g.a1("1:1"); got != "'Объявления'!1:1" {
		t.Errorf("a1 = %q", got)
	}
}

func TestGoogleSheet_ReadHeader(t *testing.T) {
	api := &fakeSheetsAPI{header: []any{"owner_id", "listing_id", 12.0}}
	g := newTestGoogleSheet(t, api)

	h, err := g.ReadHeader(context.Background())
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	want := []string{"owner_id", "listing_id", "12"}
	if !reflect.DeepEqual(h, want) {
		t.Errorf("ReadHeader = %v, хотели %v", h, want)
	}
}

func TestGoogleSheet_DeleteRowsSingleBatch(t *testing.T) {
	api := &fakeSheetsAPI{}
	g := newTestGoogleSheet(t, api)

	if err := g.DeleteRows(context.Background(), []int{9, 5, 2}); err != nil {
		t.Fatalf("DeleteRows: %v", err)
	}
	if api.batch == nil || len(api.batch.Requests) != 3 {
		t.Fatalf("ожидался один batchUpdate из 3 запросов, получено %+v", api.batch)
	}
	first := api.batch.Requests[0].DeleteDimension.Range
	if first.SheetId != 42 || first.Dimension != "ROWS" || first.StartIndex != 8 || first.EndIndex != 9 {
		t.Errorf("первый диапазон = %+v", first)
	}

	if err := g.DeleteRows(context.Background(), []int{1}); err == nil {
		t.Error("удаление заголовка должно быть запрещено")
	}
}

func TestGoogleSheet_AppendRows(t *testing.T) {
	api := &fakeSheetsAPI{}
	g := newTestGoogleSheet(t, api)

	if err := g.AppendRows(context.Background(), [][]string{{"7", "x1"}, {"7", "x2"}}); err != nil {
		t.Fatalf("AppendRows: %v", err)
	}
	if len(api.appended) != 2 || api.appended[1][1] != "x2" {
		t.Errorf("appended = %v", api.appended)
	}
}
