// Package auth establishes an authenticated session with the site, either
// by driving the delegated credential sign-in flow or by borrowing the
// cookies of an interactively completed browser login.
package auth

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// Session is the authenticated HTTP context the fetcher reuses for the
// whole run. It is created once and never mutated afterwards.
type Session struct {
	Jar       http.CookieJar
	UserAgent string
}

// ErrAuth indicates the sign-in flow failed: the page markup did not match
// expectations, the HTTP layer errored, or the interactive login did not
// land on the expected URL.
type ErrAuth struct {
	Err error
}

func (e ErrAuth) Error() string {
	return fmt.Errorf("auth: %w", e.Err).Error()
}

func (e ErrAuth) Unwrap() error {
	return e.Err
}

// ChallengeSolver answers a CAPTCHA image challenge with its text. It may
// block indefinitely waiting for a human.
type ChallengeSolver func(image []byte) (string, error)

// LoginPrompt blocks until a human has completed an interactive sign-in.
type LoginPrompt func() error

// CLIChallengeSolver persists the challenge image next to the process and
// prompts for the answer on stdin.
func CLIChallengeSolver(image []byte) (string, error) {
	const filename = "captcha.png"
	if err := os.WriteFile(filename, image, 0o644); err != nil {
		return "", fmt.Errorf("save captcha image: %w", err)
	}
	fmt.Printf("Captcha saved to current directory (%q).\n", filename)
	fmt.Print("Please enter the characters in the captcha: ")

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", fmt.Errorf("read captcha answer: %w", scanner.Err())
	}
	return strings.ToLower(strings.TrimSpace(scanner.Text())), nil
}

// CLILoginPrompt waits for the user to confirm they finished signing in.
func CLILoginPrompt() error {
	fmt.Print("Sign in using the opened browser window, then press enter: ")
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return fmt.Errorf("wait for login confirmation: %w", scanner.Err())
	}
	return nil
}
