package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/aluiziolira/enhance-goodreads-export/config"
)

// BrowserFlow lets a human complete the sign-in in a real, visible browser
// and then copies the resulting cookies and user agent into a Session. It
// sidesteps the challenge machinery entirely, which makes it the fallback
// when the credential flow keeps getting rejected.
type BrowserFlow struct {
	cfg    *config.Config
	prompt LoginPrompt

	// ControlURL attaches to an already running browser instead of
	// launching one. The attached browser is left running afterwards.
	ControlURL string
}

// NewBrowserFlow builds the flow. A nil prompt falls back to the CLI
// "press enter" prompt.
func NewBrowserFlow(cfg *config.Config, prompt LoginPrompt) *BrowserFlow {
	if prompt == nil {
		prompt = CLILoginPrompt
	}
	return &BrowserFlow{cfg: cfg, prompt: prompt}
}

// Login opens the sign-in page, blocks until the prompt reports the human
// is done, verifies the browser landed on the expected post-login URL, and
// returns a Session carrying the browser's cookies and user agent.
func (f *BrowserFlow) Login(ctx context.Context) (*Session, error) {
	browser, cleanup, err := f.connect()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("open browser tab: %w", err)}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := page.Context(navCtx).Navigate(f.cfg.SignInURL); err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("navigate to sign-in page: %w", err)}
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		slog.Warn("sign-in page load wait timed out", slog.Any("error", err))
	}

	// Human-in-the-loop: no timeout by design.
	if err := f.prompt(); err != nil {
		return nil, ErrAuth{Err: err}
	}

	info, err := page.Info()
	if err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("read browser state: %w", err)}
	}
	if info.URL != f.cfg.PostLoginURL {
		return nil, ErrAuth{Err: fmt.Errorf("browser is on %q, expected %q: login incomplete", info.URL, f.cfg.PostLoginURL)}
	}

	userAgent, err := browserUserAgent(page)
	if err != nil {
		return nil, ErrAuth{Err: err}
	}
	jar, err := copyCookies(page)
	if err != nil {
		return nil, ErrAuth{Err: err}
	}

	slog.Info("copied browser session", slog.String("user_agent", userAgent))
	return &Session{Jar: jar, UserAgent: userAgent}, nil
}

// connect attaches to the configured browser or launches a visible one.
func (f *BrowserFlow) connect() (*rod.Browser, func(), error) {
	controlURL := f.ControlURL
	var lnch *launcher.Launcher
	if controlURL == "" {
		lnch = launcher.New().
			Headless(false).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, nil, ErrAuth{Err: fmt.Errorf("launch browser: %w", err)}
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, ErrAuth{Err: fmt.Errorf("connect to browser: %w", err)}
	}

	cleanup := func() {
		if lnch == nil {
			// Attached to the user's browser: leave it running.
			return
		}
		browser.Close()
		lnch.Cleanup()
	}
	return browser, cleanup, nil
}

func browserUserAgent(page *rod.Page) (string, error) {
	res, err := page.Eval(`() => navigator.userAgent`)
	if err != nil {
		return "", fmt.Errorf("read browser user agent: %w", err)
	}
	return res.Value.Str(), nil
}

// copyCookies moves the browser's cookies into a fresh cookie jar.
func copyCookies(page *rod.Page) (http.CookieJar, error) {
	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("read browser cookies: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	for _, c := range cookies {
		scheme := "http"
		if c.Secure {
			scheme = "https"
		}
		u := &url.URL{Scheme: scheme, Host: strings.TrimPrefix(c.Domain, "."), Path: c.Path}
		jar.SetCookies(u, []*http.Cookie{{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}})
	}
	return jar, nil
}
