package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	okPing := func(context.Context) error { return nil }
	badPing := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name     string
		ping     func(context.Context) error
		modelDir string
		path     string
		want     int
		failed   string
	}{
		{name: "healthz ignores dependencies", ping: badPing, modelDir: "/does/not/exist", path: "/healthz", want: 200},
		{name: "readyz ok", ping: okPing, modelDir: dir, path: "/readyz", want: 200},
		{name: "readyz without ping", ping: nil, modelDir: "", path: "/readyz", want: 200},
		{name: "readyz database down", ping: badPing, modelDir: dir, path: "/readyz", want: 503, failed: "database"},
		{name: "readyz model dir missing", ping: okPing, modelDir: filepath.Join(dir, "missing"), path: "/readyz", want: 503, failed: "model_directory"},
		{name: "readyz model dir is a file", ping: okPing, modelDir: file, path: "/readyz", want: 503, failed: "model_directory"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			NewHealthHandler(tc.ping, tc.modelDir).Register(r)
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			r.ServeHTTP(w, req)

			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d (%s)", tc.want, w.Code, w.Body.String())
			}
			if tc.failed == "" {
				return
			}
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Status != "degraded" || body.Checks[tc.failed] == "ok" {
				t.Fatalf("expected %s to be reported, got %+v", tc.failed, body)
			}
		})
	}
}
