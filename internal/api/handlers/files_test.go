package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
	"github.com/BogdanPhenda/Nova/internal/service"
)

func registryFixture() *fakeRegistry {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	file := func(id, owner, objectType string) *model.FileMetadata {
		return &model.FileMetadata{
			FileID:       id,
			OwnerID:      owner,
			OriginalName: id + "." + objectType,
			ObjectType:   objectType,
			Status:       model.FileStatusProcessed,
			UploadDate:   at,
			LastUpdate:   at,
		}
	}
	return &fakeRegistry{files: []*model.FileMetadata{
		file("a", "7", "csv"),
		file("b", "7", "xlsx"),
		file("c", "8", "csv"),
	}}
}

func TestListFiles(t *testing.T) {
	h := newTestHandler(&fakeIntake{}, registryFixture(), 1024)

	rec := serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/files", nil), "7", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	var body fileListResponse
	decode(t, rec, &body)
	if body.Total != 2 || len(body.Items) != 2 {
		t.Fatalf("ожидалось 2 файла владельца 7, получено %+v", body)
	}
	if body.Items[0].UploadDate != "2026-03-01T12:00:00Z" {
		t.Errorf("upload_date = %q", body.Items[0].UploadDate)
	}

	rec = serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/files?object_type=xlsx", nil), "7", false))
	decode(t, rec, &body)
	if body.Total != 1 || body.Items[0].FileID != "b" {
		t.Errorf("фильтр object_type: %+v", body)
	}

	rec = serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/files", nil), "9", false))
	decode(t, rec, &body)
	if body.Total != 0 || body.Items == nil {
		t.Errorf("пустой список должен быть []: %+v", body)
	}
}

func TestListFiles_Error(t *testing.T) {
	reg := &fakeRegistry{listErr: errors.New("соединение потеряно")}
	h := newTestHandler(&fakeIntake{}, reg, 1024)

	rec := serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodGet, "/api/v1/files", nil), "7", false))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, хотели 500", rec.Code)
	}
}

func TestGetFile(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		caller   string
		admin    bool
		wantCode int
	}{
		{"свой файл", "a", "7", false, http.StatusOK},
		{"чужой файл", "c", "7", false, http.StatusForbidden},
		{"администратор", "c", "1", true, http.StatusOK},
		{"нет файла", "zzz", "7", false, http.StatusNotFound},
	}

	h := newTestHandler(&fakeIntake{}, registryFixture(), 1024)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/files/"+tt.id, nil)
			rec := serve(testRouter(h), asCaller(req, tt.caller, tt.admin))
			if rec.Code != tt.wantCode {
				t.Fatalf("статус = %d, хотели %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				var body fileResponse
				decode(t, rec, &body)
				if body.FileID != tt.id {
					t.Errorf("file_id = %q", body.FileID)
				}
			}
		})
	}
}

func TestDeleteFile(t *testing.T) {
	intake := &fakeIntake{deleteRes: &service.DeleteResult{RowsDeleted: 3}}
	h := newTestHandler(intake, registryFixture(), 1024)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/files/a", nil)
	rec := serve(testRouter(h), asCaller(req, "7", false))
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d: %s", rec.Code, rec.Body.String())
	}
	if intake.lastFileID != "a" {
		t.Errorf("удалялся файл %q", intake.lastFileID)
	}
	var body deleteResponse
	decode(t, rec, &body)
	if body.FileID != "a" || body.RowsDeleted != 3 || body.Warnings == nil || body.FeedURL != "" {
		t.Errorf("ответ = %+v", body)
	}
}

func TestDeleteFile_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"чужой файл", service.ErrForbidden, http.StatusForbidden},
		{"нет файла", fmt.Errorf("удаление: %w", service.ErrNotFound), http.StatusNotFound},
		{"в обработке", service.ErrConflict, http.StatusConflict},
		{"хранилище", fmt.Errorf("%w: timeout", service.ErrReconcileFailed), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(&fakeIntake{deleteErr: tt.err}, registryFixture(), 1024)
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/files/a", nil)
			rec := serve(testRouter(h), asCaller(req, "7", false))
			if rec.Code != tt.wantCode {
				t.Errorf("статус = %d, хотели %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestPublishFeeds(t *testing.T) {
	intake := &fakeIntake{feedURL: "https://cdn.example.com/feeds/x.xml"}
	h := newTestHandler(intake, registryFixture(), 1024)
	router := testRouter(h)

	rec := serve(router, asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/feeds/me", nil), "7", false))
	var body feedResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.Name != "feed_7.xml" || body.URL != intake.feedURL {
		t.Errorf("фид владельца: %d %+v", rec.Code, body)
	}
	if intake.lastOwner != "7" {
		t.Errorf("публиковался владелец %q", intake.lastOwner)
	}

	rec = serve(router, asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/files/a/feed", nil), "7", false))
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.Name != "feed_a.xml" || intake.lastFileID != "a" {
		t.Errorf("фид файла: %d %+v", rec.Code, body)
	}

	rec = serve(router, asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/admin/feeds/all", nil), "1", true))
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.Name != "feed_all.xml" {
		t.Errorf("сводный фид: %d %+v", rec.Code, body)
	}
}

func TestPublishFeeds_NoData(t *testing.T) {
	intake := &fakeIntake{feedErr: fmt.Errorf("%w: feed_7.xml", service.ErrNoData)}
	h := newTestHandler(intake, registryFixture(), 1024)

	rec := serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/feeds/me", nil), "7", false))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("статус = %d, хотели 404", rec.Code)
	}
	if got := errorCode(t, rec); got != "NO_DATA" {
		t.Errorf("код = %q", got)
	}
}

func TestPublishMyFeed_Unauthorized(t *testing.T) {
	h := newTestHandler(&fakeIntake{}, registryFixture(), 1024)
	rec := serve(testRouter(h), httptest.NewRequest(http.MethodPost, "/api/v1/feeds/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("статус = %d, хотели 401", rec.Code)
	}
}

func TestDeduplicate(t *testing.T) {
	h := newTestHandler(&fakeIntake{dedup: 4}, registryFixture(), 1024)
	rec := serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/admin/deduplicate", nil), "1", true))
	var body deduplicateResponse
	decode(t, rec, &body)
	if rec.Code != http.StatusOK || body.RowsDeleted != 4 {
		t.Errorf("ответ = %d %+v", rec.Code, body)
	}

	h = newTestHandler(&fakeIntake{dedupErr: errors.New("сбой")}, registryFixture(), 1024)
	rec = serve(testRouter(h), asCaller(httptest.NewRequest(http.MethodPost, "/api/v1/admin/deduplicate", nil), "1", true))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("статус = %d, хотели 500", rec.Code)
	}
}
