package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRoutePattern(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			got = routePattern(r)
		})
	})
	router.Get("/api/v1/files/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/files/0b7d6a1e-0000-4000-8000-000000000001", nil))
	if got != "/api/v1/files/{id}" {
		t.Errorf("routePattern = %q", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); p != unmatchedPath {
		t.Errorf("без контекста chi: %q", p)
	}
}

func TestMetricsAndLogging_StatusPassThrough(t *testing.T) {
	h := MetricsMiddleware()(RequestLogger(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("x"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot || rec.Body.String() != "x" {
		t.Errorf("ответ изменён middleware: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var seen string
	router := chi.NewRouter()
	router.Use(RequestLogger(logger))
	router.Get("/api/v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	// Входящий идентификатор сохраняется
	req := httptest.NewRequest(http.MethodGet, "/api/v1/files/abc", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if seen != "req-42" || rec.Header().Get(RequestIDHeader) != "req-42" {
		t.Errorf("request id: контекст %q, заголовок %q", seen, rec.Header().Get(RequestIDHeader))
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("ошибка разбора записи журнала: %v\n%s", err, buf.String())
	}
	if entry["level"] != "WARN" || entry["route"] != "/api/v1/files/{id}" || entry["request_id"] != "req-42" {
		t.Errorf("запись журнала = %v", entry)
	}

	// Без заголовка генерируется новый
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/files/abc", nil))
	if id := rec.Header().Get(RequestIDHeader); len(id) != 36 || id != seen {
		t.Errorf("сгенерированный id = %q, в контексте %q", id, seen)
	}
}
