package httpds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestFetchFirstBytes(t *testing.T) {
	t.Parallel()

	const body = "Platform,Genre\nPS4,Action\n"
	var sawRange string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawRange = r.Header.Get("Range")
		// Ignores Range on purpose; the client must cap the read itself.
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	got, err := newTestClient(0).FetchFirstBytes(context.Background(), srv.URL, 8)
	if err != nil {
		t.Fatalf("FetchFirstBytes: %v", err)
	}
	if string(got) != body[:8] {
		t.Fatalf("got %q want %q", got, body[:8])
	}
	if sawRange != "bytes=0-7" {
		t.Fatalf("Range=%q want bytes=0-7", sawRange)
	}
}

func TestFetchFirstBytes_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(0)
	if _, err := c.FetchFirstBytes(context.Background(), srv.URL, 0); err == nil {
		t.Fatalf("expected error for n <= 0")
	}
	if _, err := c.FetchFirstBytes(context.Background(), srv.URL, 10); err == nil {
		t.Fatalf("expected error for 404")
	}
}
