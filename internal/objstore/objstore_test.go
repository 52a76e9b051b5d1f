package objstore

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
)

type recordedRequest struct {
	method      string
	path        string
	contentType string
	acl         string
}

// fakeS3 — минимальный двойник S3 API: принимает PUT/DELETE/HEAD.
type fakeS3 struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		method:      r.Method,
		path:        r.URL.Path,
		contentType: r.Header.Get("Content-Type"),
		acl:         r.Header.Get("X-Amz-Acl"),
	})
	f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeS3) last(method string) (recordedRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].method == method {
			return f.requests[i], true
		}
	}
	return recordedRequest{}, false
}

func newTestClient(t *testing.T, fake *fakeS3, publicEndpoint string) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	c, err := New(Config{
		Endpoint:       u.Host,
		AccessKey:      "access",
		SecretKey:      "secret",
		Bucket:         "catalog",
		Region:         "us-east-1",
		PublicEndpoint: publicEndpoint,
		Prefix:         "feeds/",
	}, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestClient_Upload(t *testing.T) {
	fake := &fakeS3{}
	c := newTestClient(t, fake, "https://cdn.example.com/catalog/")

	url, err := c.Upload(context.Background(), "feed_7.xml", []byte("<realty-feed/>"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "https://cdn.example.com/catalog/feeds/feed_7.xml" {
		t.Errorf("url = %q", url)
	}

	req, ok := fake.last(http.MethodPut)
	if !ok {
		t.Fatal("PUT-запрос не выполнен")
	}
	if req.path != "/catalog/feeds/feed_7.xml" {
		t.Errorf("path = %q", req.path)
	}
	if req.contentType != "application/xml" {
		t.Errorf("Content-Type = %q", req.contentType)
	}
	if req.acl != "public-read" {
		t.Errorf("x-amz-acl = %q", req.acl)
	}
}

func TestClient_PublicURLWithoutPublicEndpoint(t *testing.T) {
	c := newTestClient(t, &fakeS3{}, "")
	got := c.PublicURL(c.ObjectKey("feed_all.xml"))
	if !strings.HasPrefix(got, "http://127.0.0.1:") || !strings.HasSuffix(got, "/catalog/feeds/feed_all.xml") {
		t.Errorf("PublicURL = %q", got)
	}
}

func TestClient_Delete(t *testing.T) {
	fake := &fakeS3{}
	c := newTestClient(t, fake, "")

	if err := c.Delete(context.Background(), "feed_7.xml"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	req, ok := fake.last(http.MethodDelete)
	if !ok || req.path != "/catalog/feeds/feed_7.xml" {
		t.Errorf("DELETE-запрос = %+v", req)
	}
}
