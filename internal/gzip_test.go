package internal

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGzipMiddleware(t *testing.T) {
	const body = `{"token":"a.b.c","image":"iVBORw0KGgo="}`

	h := GzipMiddleware(gzip.BestSpeed, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))

	t.Run("compressed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Content-Encoding"); got != "gzip" {
			t.Fatalf("wanted gzip encoding, got %q", got)
		}

		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(zr)
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != body {
			t.Errorf("wanted %q, got %q", body, data)
		}
	})

	t.Run("identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if got := rec.Header().Get("Content-Encoding"); got != "" {
			t.Errorf("wanted no encoding, got %q", got)
		}
		if rec.Body.String() != body {
			t.Errorf("wanted %q, got %q", body, rec.Body.String())
		}
	})
}
