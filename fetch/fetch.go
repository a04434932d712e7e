// Package fetch downloads site pages over an authenticated session with
// timeouts, bounded retries, and exponential backoff.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/gocolly/colly/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/enhance-goodreads-export/auth"
	"github.com/aluiziolira/enhance-goodreads-export/config"
)

// Fetcher wraps a colly collector bound to the authenticated session. Pages
// are fetched strictly one at a time; a small LRU cache absorbs repeated
// URLs within a run.
type Fetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	cache     *lru.Cache[string, []byte]
	Metrics   *Metrics

	mu      sync.Mutex // serializes fetches; the pipeline is sequential by design
	retries int

	// Captured by the collector callbacks for the in-flight visit.
	body   []byte
	status int
	err    error
}

// New builds a fetcher that reuses the session's cookies and user agent.
func New(cfg *config.Config, sess *auth.Session) (*Fetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(sess.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(cloudflarebp.AddCloudFlareByPass(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        8,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}))
	collector.SetCookieJar(sess.Jar)

	cache, err := lru.New[string, []byte](cfg.PageCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}

	f := &Fetcher{
		cfg:       cfg,
		collector: collector,
		cache:     cache,
		Metrics:   NewMetrics(),
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", "en-US")
	})
	collector.OnResponse(func(r *colly.Response) {
		f.body = r.Body
		f.status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		f.status = status
		f.err = classifyError(err, status)
	})

	return f, nil
}

// Fetch downloads one page, retrying transport and HTTP errors with
// exponential backoff. After the attempts are exhausted the last error is
// returned as a network failure. Extraction problems are the caller's
// concern and are never retried here.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if body, ok := f.cache.Get(pageURL); ok {
		f.Metrics.IncCacheHit()
		return body, nil
	}

	start := time.Now()
	defer func() {
		f.Metrics.ObserveDuration(time.Since(start))
	}()

	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			f.retries++
			f.Metrics.IncRetries()
			select {
			case <-ctx.Done():
				return nil, ErrNetwork{URL: pageURL, Err: ctx.Err()}
			case <-time.After(f.backoff(attempt)):
			}
		}

		body, err := f.visit(pageURL)
		if err == nil {
			f.Metrics.IncFetch("ok")
			f.cache.Add(pageURL, body)
			return body, nil
		}
		lastErr = err
		f.Metrics.IncFetch("error")
		f.Metrics.IncError(errorTypeLabel(err))
	}

	return nil, ErrNetwork{URL: pageURL, Err: lastErr}
}

// Retries reports how many retry attempts this fetcher has made so far.
func (f *Fetcher) Retries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retries
}

// visit performs one synchronous collector visit and hands back what the
// callbacks captured.
func (f *Fetcher) visit(pageURL string) ([]byte, error) {
	f.body, f.status, f.err = nil, 0, nil
	if err := f.collector.Visit(pageURL); err != nil {
		return nil, classifyError(err, 0)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

// backoff doubles the base delay per attempt, capped at the configured
// maximum.
func (f *Fetcher) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := f.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	delay := base * time.Duration(1<<(attempt-1))
	if max := f.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}
