// Package config holds runtime configuration for the export enhancer.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings for one enhancement run.
type Config struct {
	// Dataset paths.
	CSVPath    string // export file, enriched in place
	UpdatePath string // optional previously enhanced file for carry-forward

	// Processing behaviour.
	Force           bool // reprocess rows that already carry derived fields
	IgnoreErrors    bool // log per-row failures and continue
	CheckpointEvery int  // full dataset rewrite every N processed rows

	// Genre filtering. Nil means the threshold is not applied.
	MinGenreVotes        *int
	MinGenreVoteFraction *float64

	// Site endpoints.
	BaseURL       string
	SignInURL     string
	SignInPostURL string
	PostLoginURL  string // expected browser URL after an interactive login
	BookURL       string // book page, expects a book id appended
	ReviewURL     string // reading activity page, expects a book id appended

	// Credentials for the credential login flow. Empty when the
	// interactive browser flow is used instead.
	Email        string
	Password     string
	BrowserLogin bool

	// Network behaviour.
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	UserAgent       string
	PageCacheSize   int

	MetricsAddr string
	Verbose     bool
}

// DefaultConfig returns the defaults matching the live site.
func DefaultConfig() *Config {
	return &Config{
		CheckpointEvery: 20,
		BaseURL:         "https://www.goodreads.com",
		SignInURL:       "https://www.goodreads.com/user/sign_in",
		SignInPostURL:   "https://www.goodreads.com/ap/signin",
		PostLoginURL:    "https://www.goodreads.com/",
		BookURL:         "https://www.goodreads.com/book/show/",
		ReviewURL:       "https://www.goodreads.com/review/edit/",
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryBackoff:    200 * time.Millisecond,
		RetryBackoffMax: 2 * time.Second,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36" +
			" (KHTML, like Gecko) Chrome/101.0.4951.54 Safari/537.36",
		PageCacheSize: 256,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.CSVPath == "" {
		return fmt.Errorf("export file path cannot be empty")
	}
	if c.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive")
	}
	for name, raw := range map[string]string{
		"base URL":    c.BaseURL,
		"sign-in URL": c.SignInURL,
		"book URL":    c.BookURL,
		"review URL":  c.ReviewURL,
	} {
		parsed, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("%s must include a host", name)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.PageCacheSize <= 0 {
		return fmt.Errorf("page cache size must be positive")
	}
	if c.MinGenreVotes != nil && *c.MinGenreVotes < 0 {
		return fmt.Errorf("minimum genre votes cannot be negative")
	}
	if c.MinGenreVoteFraction != nil && (*c.MinGenreVoteFraction < 0 || *c.MinGenreVoteFraction > 1) {
		return fmt.Errorf("minimum genre vote fraction must be between 0 and 1")
	}
	if !c.BrowserLogin && (c.Email == "" || c.Password == "") {
		return fmt.Errorf("email and password are required unless browser login is enabled")
	}
	return nil
}

// SetGenreVotes parses the genre vote threshold option: a plain number is an
// absolute minimum, a trailing "%" makes it a fraction of the top vote count.
func (c *Config) SetGenreVotes(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasSuffix(raw, "%") {
		value, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "%")), 64)
		if err != nil {
			return fmt.Errorf("invalid genre votes percentage %q: %w", raw, err)
		}
		frac := value / 100
		c.MinGenreVoteFraction = &frac
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("invalid genre votes value %q: either a number or a percentage must be provided", raw)
	}
	c.MinGenreVotes = &value
	return nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return parsed, true, nil
}
