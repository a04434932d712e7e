package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/aluiziolira/enhance-goodreads-export/auth"
	"github.com/aluiziolira/enhance-goodreads-export/config"
)

func newTestFetcher(t *testing.T, cfg *config.Config) *Fetcher {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	f, err := New(cfg, &auth.Session{Jar: jar, UserAgent: "test-agent"})
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "http://example.test"
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	return cfg
}

func TestFetchSuccess(t *testing.T) {
	cfg := testConfig()
	f := newTestFetcher(t, cfg)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/book/show/1",
		httpmock.NewStringResponder(http.StatusOK, "<html>book</html>"))
	f.collector.WithTransport(transport)

	body, err := f.Fetch(context.Background(), "http://example.test/book/show/1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "<html>book</html>" {
		t.Errorf("body = %q", body)
	}
}

func TestFetchRetriesThenFails(t *testing.T) {
	cfg := testConfig()
	f := newTestFetcher(t, cfg)

	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/book/show/2",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
		})
	f.collector.WithTransport(transport)

	_, err := f.Fetch(context.Background(), "http://example.test/book/show/2")
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	var netErr ErrNetwork
	if !errors.As(err, &netErr) {
		t.Errorf("error = %T, want ErrNetwork", err)
	}
	if want := cfg.MaxRetries + 1; calls != want {
		t.Errorf("attempts = %d, want %d", calls, want)
	}
	if got := f.Retries(); got != cfg.MaxRetries {
		t.Errorf("retries = %d, want %d", got, cfg.MaxRetries)
	}
}

func TestFetchRecoversAfterTransientError(t *testing.T) {
	cfg := testConfig()
	f := newTestFetcher(t, cfg)

	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/book/show/3",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, "recovered"), nil
		})
	f.collector.WithTransport(transport)

	body, err := f.Fetch(context.Background(), "http://example.test/book/show/3")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != "recovered" {
		t.Errorf("body = %q", body)
	}
}

func TestFetchCachesPages(t *testing.T) {
	cfg := testConfig()
	f := newTestFetcher(t, cfg)

	calls := 0
	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/book/show/4",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusOK, "cached"), nil
		})
	f.collector.WithTransport(transport)

	for i := 0; i < 3; i++ {
		body, err := f.Fetch(context.Background(), "http://example.test/book/show/4")
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if string(body) != "cached" {
			t.Errorf("body = %q", body)
		}
	}
	if calls != 1 {
		t.Errorf("transport calls = %d, want 1", calls)
	}
}

func TestFetchHonoursContextCancellation(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = time.Hour
	cfg.RetryBackoffMax = time.Hour
	f := newTestFetcher(t, cfg)

	transport := httpmock.NewMockTransport()
	transport.RegisterResponder("GET", "http://example.test/book/show/5",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))
	f.collector.WithTransport(transport)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, "http://example.test/book/show/5")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error after cancellation")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not return after cancellation")
	}
}

func TestBackoffCapped(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBackoff = 200 * time.Millisecond
	cfg.RetryBackoffMax = 500 * time.Millisecond
	f := newTestFetcher(t, cfg)

	if delay := f.backoff(1); delay != 200*time.Millisecond {
		t.Errorf("backoff(1) = %v, want 200ms", delay)
	}
	if delay := f.backoff(2); delay != 400*time.Millisecond {
		t.Errorf("backoff(2) = %v, want 400ms", delay)
	}
	for attempt := 3; attempt <= 6; attempt++ {
		if delay := f.backoff(attempt); delay > cfg.RetryBackoffMax {
			t.Errorf("backoff(%d) = %v exceeds max %v", attempt, delay, cfg.RetryBackoffMax)
		}
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError(tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}
