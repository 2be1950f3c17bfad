package downloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func newFileServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchWritesFileAndReportsProgress(t *testing.T) {
	t.Parallel()

	server := newFileServer(t, map[string]string{"/a.bin": strings.Repeat("x", 4096)})
	dest := filepath.Join(t.TempDir(), "a.bin")

	var last int64
	err := New().Fetch(context.Background(), Download{URL: server.URL + "/a.bin", Path: dest}, func(cur int64) { last = cur })
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) != 4096 || last != 4096 {
		t.Fatalf("len=%d last=%d want=4096", len(data), last)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file should be gone, stat err=%v", err)
	}
}

func TestFetchHTTPErrorLeavesNoFile(t *testing.T) {
	t.Parallel()

	server := newFileServer(t, nil)
	dest := filepath.Join(t.TempDir(), "missing.bin")

	err := New().Fetch(context.Background(), Download{URL: server.URL + "/missing.bin", Path: dest}, nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("Fetch err=%v want HTTP 404", err)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("no file should be written, stat err=%v", statErr)
	}
}

func TestFetchSendsBearer(t *testing.T) {
	t.Parallel()

	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c := &Client{HTTP: server.Client(), Bearer: "secret"}
	if err := c.Fetch(context.Background(), Download{URL: server.URL, Path: filepath.Join(t.TempDir(), "f")}, nil); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got != "Bearer secret" {
		t.Fatalf("Authorization=%q want=%q", got, "Bearer secret")
	}
}

func TestRunDownloadsAll(t *testing.T) {
	t.Parallel()

	files := map[string]string{"/1": "one", "/2": "two", "/3": "three"}
	server := newFileServer(t, files)
	dir := t.TempDir()

	var downloads []Download
	for p := range files {
		downloads = append(downloads, Download{URL: server.URL + p, Path: filepath.Join(dir, strings.TrimPrefix(p, "/"))})
	}

	var mu sync.Mutex
	tracked := 0
	err := New().Run(context.Background(), downloads, 2, func(Download) ProgressFunc {
		mu.Lock()
		tracked++
		mu.Unlock()
		return func(int64) {}
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if tracked != len(files) {
		t.Fatalf("tracked=%d want=%d", tracked, len(files))
	}
	for p, body := range files {
		data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(p, "/")))
		if err != nil || string(data) != body {
			t.Fatalf("file %s=%q err=%v want=%q", p, data, err, body)
		}
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	t.Parallel()

	server := newFileServer(t, map[string]string{"/ok": "ok"})
	dir := t.TempDir()

	err := New().Run(context.Background(), []Download{
		{URL: server.URL + "/ok", Path: filepath.Join(dir, "ok")},
		{URL: server.URL + "/gone", Path: filepath.Join(dir, "gone")},
	}, 2, nil)
	if err == nil || !strings.Contains(err.Error(), "gone") {
		t.Fatalf("Run err=%v want failure naming gone", err)
	}
}
