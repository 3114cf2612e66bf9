package main

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/themacn/trial-abuse-guard/internal/config"
	"github.com/themacn/trial-abuse-guard/internal/verifier"
)

var emailPattern = regexp.MustCompile(`^[0-9a-zA-Z]([-.\w]*[0-9a-zA-Z_+])*@(([0-9a-zA-Z][-\w]*\.)+[a-zA-Z]{2,9})$`)

func (app *App) isValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (app *App) extractDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at+1 >= len(email) {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func (app *App) hasMXRecord(domain string) bool {
	mx, err := app.LookupMXFunc(domain)
	return err == nil && len(mx) > 0
}

// verifyWithRetries runs v up to MaxRetries+1 times, each attempt bounded by
// the configured timeout. The last error is returned when every attempt
// fails.
func (app *App) verifyWithRetries(ctx context.Context, v verifier.Verifier, email string, settings config.EmailVerifierConfig) (bool, error) {
	var lastErr error

	for attempt := 0; attempt <= settings.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(app.retryDelay):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, settings.Timeout())
		valid, err := v.Verify(attemptCtx, email)
		cancel()
		if err == nil {
			return valid, nil
		}
		lastErr = err
	}

	return false, lastErr
}
