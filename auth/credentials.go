package auth

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http/cookiejar"
	"net/url"
	"strings"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/aluiziolira/enhance-goodreads-export/config"
	"github.com/aluiziolira/enhance-goodreads-export/metadata"
)

// maxChallengeRounds bounds the sign-in loop; a healthy flow needs one or
// two rounds, anything more means the answers are being rejected.
const maxChallengeRounds = 8

// CredentialFlow drives the delegated identity-provider sign-in with an
// email/password pair, solving CAPTCHA challenges through the injected
// solver and attaching an encrypted device fingerprint to every attempt.
type CredentialFlow struct {
	cfg    *config.Config
	codec  *metadata.Codec
	solver ChallengeSolver
	client *resty.Client
}

// NewCredentialFlow builds the flow. A nil solver falls back to the
// stdin-based CLI solver.
func NewCredentialFlow(cfg *config.Config, solver ChallengeSolver) (*CredentialFlow, error) {
	if solver == nil {
		solver = CLIChallengeSolver
	}
	codec, err := metadata.NewCodec(metadata.DefaultKey)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept-Language", "en-US")
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	return &CredentialFlow{
		cfg:    cfg,
		codec:  codec,
		solver: solver,
		client: client,
	}, nil
}

// Login performs the multi-step sign-in and returns the authenticated
// session.
func (f *CredentialFlow) Login(ctx context.Context) (*Session, error) {
	slog.Info("fetching sign-in page", slog.String("url", f.cfg.SignInURL))
	res, err := f.get(ctx, f.cfg.SignInURL)
	if err != nil {
		return nil, err
	}
	doc, err := parseHTML(res)
	if err != nil {
		return nil, err
	}

	signinURL, ok := findDelegatedSignInLink(doc, f.cfg.SignInPostURL)
	if !ok {
		return nil, ErrAuth{Err: fmt.Errorf("did not find the email sign-in link, maybe the page layout changed")}
	}

	slog.Info("fetching email sign-in page", slog.String("url", signinURL))
	res, err = f.get(ctx, signinURL)
	if err != nil {
		return nil, err
	}

	for round := 0; ; round++ {
		if round >= maxChallengeRounds {
			return nil, ErrAuth{Err: fmt.Errorf("sign-in challenge did not accept the answers after %d rounds", round)}
		}

		doc, err = parseHTML(res)
		if err != nil {
			return nil, err
		}
		if msg := doc.Find("#auth-error-message-box"); msg.Length() > 0 {
			slog.Warn("sign-in page reported an error", slog.String("message", strings.TrimSpace(msg.Text())))
		}

		form := findSignInForm(doc)
		if form == nil {
			return nil, ErrAuth{Err: fmt.Errorf("no sign-in form on challenge page, maybe the page layout changed")}
		}
		fields := formInputs(form)

		if err := f.solveCaptcha(ctx, doc, fields); err != nil {
			return nil, err
		}

		fingerprint, err := metadata.DesktopFingerprint(f.cfg.UserAgent, signinURL)
		if err != nil {
			return nil, ErrAuth{Err: err}
		}
		fields["email"] = f.cfg.Email
		fields["password"] = f.cfg.Password
		fields["create"] = "0"
		fields["encryptedPasswordExpected"] = ""
		fields["metadata1"] = f.codec.Encrypt(fingerprint)

		method, action, err := formAction(form, res.RawResponse.Request.URL)
		if err != nil {
			return nil, err
		}

		slog.Info("submitting sign-in form", slog.String("action", action))
		res, err = f.client.R().
			SetContext(ctx).
			SetFormData(fields).
			Execute(method, action)
		if err != nil {
			return nil, ErrAuth{Err: fmt.Errorf("submit sign-in form: %w", err)}
		}
		if res.IsError() {
			return nil, ErrAuth{Err: fmt.Errorf("sign-in form submission returned status %d", res.StatusCode())}
		}

		finalURL := res.RawResponse.Request.URL.String()
		if !strings.HasPrefix(finalURL, f.cfg.SignInPostURL) {
			slog.Info("signed in", slog.String("landed_on", finalURL))
			break
		}
	}

	return &Session{Jar: f.client.GetClient().Jar, UserAgent: f.cfg.UserAgent}, nil
}

func (f *CredentialFlow) get(ctx context.Context, rawURL string) (*resty.Response, error) {
	res, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("fetch %s: %w", rawURL, err)}
	}
	if res.IsError() {
		return nil, ErrAuth{Err: fmt.Errorf("fetch %s: status %d", rawURL, res.StatusCode())}
	}
	return res, nil
}

// solveCaptcha detects an image challenge on the page and, when present,
// routes it through the solver and attaches the answer to the form fields.
func (f *CredentialFlow) solveCaptcha(ctx context.Context, doc *goquery.Document, fields map[string]string) error {
	img := doc.Find("img[alt*='CAPTCHA']").First()
	if img.Length() == 0 {
		return nil
	}
	src, ok := img.Attr("src")
	if !ok || src == "" {
		return ErrAuth{Err: fmt.Errorf("captcha image has no source url")}
	}

	slog.Info("captcha challenge detected", slog.String("url", src))
	res, err := f.get(ctx, src)
	if err != nil {
		return err
	}
	guess, err := f.solver(res.Body())
	if err != nil {
		return ErrAuth{Err: fmt.Errorf("solve captcha: %w", err)}
	}

	fields["guess"] = guess
	fields["use_image_captcha"] = "true"
	fields["use_audio_captcha"] = "false"
	fields["showPasswordChecked"] = "false"
	return nil
}

func parseHTML(res *resty.Response) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, ErrAuth{Err: fmt.Errorf("parse sign-in page: %w", err)}
	}
	return doc, nil
}

// findDelegatedSignInLink locates the href pointing at the delegated
// identity provider's sign-in endpoint.
func findDelegatedSignInLink(doc *goquery.Document, signInPostURL string) (string, bool) {
	var href string
	doc.Find("[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if u, _ := sel.Attr("href"); strings.Contains(u, signInPostURL) {
			href = u
			return false
		}
		return true
	})
	return href, href != ""
}

// findSignInForm prefers the form named signIn and falls back to the first
// form on the page.
func findSignInForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form[name=signIn]").First()
	if form.Length() == 0 {
		form = doc.Find("form").First()
	}
	if form.Length() == 0 {
		return nil
	}
	return form
}

// formInputs collects every named input; hidden ones keep their value,
// everything else starts empty.
func formInputs(form *goquery.Selection) map[string]string {
	fields := make(map[string]string)
	form.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		fields[name] = ""
		if typ, _ := input.Attr("type"); typ == "hidden" {
			fields[name], _ = input.Attr("value")
		}
	})
	return fields
}

// formAction reads the method and action declared on the form, resolving a
// relative action against the page URL.
func formAction(form *goquery.Selection, pageURL *url.URL) (method, action string, err error) {
	rawAction, ok := form.Attr("action")
	if !ok || rawAction == "" {
		return "", "", ErrAuth{Err: fmt.Errorf("sign-in form has no action")}
	}
	parsed, perr := url.Parse(rawAction)
	if perr != nil {
		return "", "", ErrAuth{Err: fmt.Errorf("sign-in form action %q: %w", rawAction, perr)}
	}
	method = strings.ToUpper(form.AttrOr("method", "GET"))
	return method, pageURL.ResolveReference(parsed).String(), nil
}
