package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client with tiny backoffs and a no-op sleep hook.
func newTestClient(retries int) *Client {
	c := NewClient(Config{
		MaxRetries:     retries,
		Timeout:        2 * time.Second,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	c.sleep = func(time.Duration) {}
	return c
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{InsecureSkipVerify: true, MaxRetries: -3})

	if c.httpClient.Timeout != 30*time.Second {
		t.Fatalf("timeout=%v want 30s", c.httpClient.Timeout)
	}
	if c.maxRetries != 0 {
		t.Fatalf("maxRetries=%d want 0", c.maxRetries)
	}
	if c.initialBackoff != 200*time.Millisecond || c.maxBackoff != 5*time.Second {
		t.Fatalf("backoff=%v/%v want 200ms/5s", c.initialBackoff, c.maxBackoff)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.httpClient.Transport)
	}
	if tr.TLSClientConfig == nil || !tr.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("expected InsecureSkipVerify=true when configured")
	}
	if got := c.baseHeaders.Get("User-Agent"); got != DefaultUserAgent {
		t.Fatalf("User-Agent=%q want %q", got, DefaultUserAgent)
	}
}

func TestDo_Headers(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	c := NewClient(Config{BaseHeaders: http.Header{"Accept": {"text/plain"}, "User-Agent": {"custom"}}})
	resp, err := c.Get(context.Background(), srv.URL, http.Header{"Accept": {"text/csv"}})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if gotUA != "custom" {
		t.Fatalf("User-Agent=%q want custom", gotUA)
	}
	if gotAccept != "text/csv" {
		t.Fatalf("Accept=%q want per-request value text/csv", gotAccept)
	}
}

func TestDo_Retries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		retries   int
		failFirst int32
		failCode  int
		wantHits  int32
		wantErr   bool
		wantCode  int
	}{
		{name: "success_no_retry", retries: 3, wantHits: 1, wantCode: 200},
		{name: "5xx_then_success", retries: 3, failFirst: 2, failCode: 500, wantHits: 3, wantCode: 200},
		{name: "429_then_success", retries: 1, failFirst: 1, failCode: 429, wantHits: 2, wantCode: 200},
		{name: "exhausted", retries: 2, failFirst: 99, failCode: 503, wantHits: 3, wantErr: true},
		{name: "400_not_retried", retries: 5, failFirst: 99, failCode: 400, wantHits: 1, wantCode: 400},
		{name: "304_not_retried", retries: 5, failFirst: 99, failCode: 304, wantHits: 1, wantCode: 304},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if atomic.AddInt32(&hits, 1) <= tc.failFirst {
					w.WriteHeader(tc.failCode)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			resp, err := newTestClient(tc.retries).Get(context.Background(), srv.URL, nil)
			if tc.wantErr {
				if err == nil {
					resp.Body.Close()
					t.Fatalf("expected error after exhausting retries")
				}
			} else {
				if err != nil {
					t.Fatalf("Get: %v", err)
				}
				resp.Body.Close()
				if resp.StatusCode != tc.wantCode {
					t.Fatalf("status=%d want %d", resp.StatusCode, tc.wantCode)
				}
			}
			if got := atomic.LoadInt32(&hits); got != tc.wantHits {
				t.Fatalf("hits=%d want %d", got, tc.wantHits)
			}
		})
	}
}

func TestDo_RejectsEmptyArgs(t *testing.T) {
	t.Parallel()

	c := newTestClient(0)
	if _, err := c.Do(context.Background(), "", "http://example.com", nil, nil); err == nil {
		t.Fatalf("expected error for empty method")
	}
	if _, err := c.Do(context.Background(), http.MethodGet, "", nil, nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestDo_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestClient(2).Get(ctx, "http://example.invalid", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestBackoffDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		initial time.Duration
		attempt int
		max     time.Duration
		want    time.Duration
	}{
		{100 * time.Millisecond, 0, time.Second, 100 * time.Millisecond},
		{100 * time.Millisecond, 1, time.Second, 200 * time.Millisecond},
		{100 * time.Millisecond, 2, time.Second, 400 * time.Millisecond},
		{600 * time.Millisecond, 1, time.Second, time.Second},
		{2 * time.Second, 0, time.Second, time.Second},
		{time.Second, 62, 5 * time.Second, 5 * time.Second},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.initial.String()+"/attempt="+strconv.Itoa(tt.attempt), func(t *testing.T) {
			t.Parallel()
			if got := backoffDuration(tt.initial, tt.attempt, tt.max); got != tt.want {
				t.Fatalf("backoffDuration(%v, %d, %v) = %v, want %v", tt.initial, tt.attempt, tt.max, got, tt.want)
			}
		})
	}
}

func TestIsRetryableStatus(t *testing.T) {
	t.Parallel()

	for code, want := range map[int]bool{
		200: false, 304: false, 400: false, 404: false,
		429: true, 500: true, 503: true, 599: true,
	} {
		if got := isRetryableStatus(code); got != want {
			t.Errorf("isRetryableStatus(%d)=%v want %v", code, got, want)
		}
	}
}

func TestCustomTransport(t *testing.T) {
	t.Parallel()

	custom := &http.Transport{TLSClientConfig: &tls.Config{}}
	c := NewClient(Config{Transport: custom, InsecureSkipVerify: true})

	if c.httpClient.Transport != http.RoundTripper(custom) {
		t.Fatalf("expected custom transport to be used")
	}
	if custom.TLSClientConfig.InsecureSkipVerify {
		t.Fatalf("InsecureSkipVerify must not be applied to a custom transport")
	}
}

func TestSleepWithContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := sleepWithContext(ctx, func(time.Duration) {}, 100*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
