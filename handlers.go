package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/themacn/trial-abuse-guard/internal/metrics"
)

type webhookPayload struct {
	Email     string `json:"email"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (app *App) handleSignup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.SignupDuration.Observe(time.Since(start).Seconds()) }()

	log := app.log(r)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ip := app.getIP(r)
	if app.Limiter != nil && !app.Limiter.Allow(ip) {
		log.Debug("rate limit exceeded", zap.String("ip", ip))
		app.reject(w, r, "", "rate_limited", "Rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	if err := r.ParseForm(); err != nil {
		log.Debug("invalid form submission", zap.Error(err))
		app.reject(w, r, "", "bad_form", "Invalid form submission", http.StatusBadRequest)
		return
	}

	if app.Config.HoneypotField != "" && r.FormValue(app.Config.HoneypotField) != "" {
		metrics.SignupAttempts.WithLabelValues("bot_trap").Inc()
		log.Debug("honeypot triggered", zap.String("field", app.Config.HoneypotField))
		app.fireWebhook("", "failed", "Honeypot triggered")
		app.redirectThankYou(w, r)
		return
	}

	missing := []string{}
	for _, field := range app.Config.RequiredFields {
		if r.FormValue(field) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		msg := fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", "))
		app.reject(w, r, "", "missing_fields", msg, http.StatusUnprocessableEntity)
		return
	}

	email := r.FormValue("email")
	if !app.isValidEmail(email) {
		app.reject(w, r, email, "invalid_email_format", "Invalid email format", http.StatusUnprocessableEntity)
		return
	}
	domain := app.extractDomain(email)
	if domain == "" {
		app.reject(w, r, email, "email_domain_parse_error", "Could not extract domain", http.StatusUnprocessableEntity)
		return
	}

	if app.Config.CheckMX && !app.hasMXRecord(domain) {
		app.reject(w, r, email, "mx_failed", "Email domain has no MX record", http.StatusUnprocessableEntity)
		return
	}

	if app.Config.CheckDisposable && app.isTemporary(domain) {
		log.Info("disposable email rejected", zap.String("domain", domain))
		app.reject(w, r, email, "disposable_email", "Disposable email not allowed", http.StatusUnprocessableEntity)
		return
	}

	if app.Verifier != nil {
		provider := app.Config.EmailVerifier.Provider
		valid, err := app.verifyWithRetries(r.Context(), app.Verifier, email, app.Config.EmailVerifier)
		switch {
		case err != nil:
			metrics.VerifierResults.WithLabelValues(provider, "error").Inc()
			log.Warn("email verification failed", zap.String("provider", provider), zap.Error(err))
			if !app.Config.EmailVerifier.FailOpen {
				app.reject(w, r, email, "verifier_error", "Email verification failed", http.StatusBadGateway)
				return
			}
		case !valid:
			metrics.VerifierResults.WithLabelValues(provider, "invalid").Inc()
			app.reject(w, r, email, "email_invalid", "Email failed verification", http.StatusUnprocessableEntity)
			return
		default:
			metrics.VerifierResults.WithLabelValues(provider, "valid").Inc()
		}
	}

	payload := make(url.Values)
	for _, field := range app.Config.AllowedFields {
		if val := r.FormValue(field); val != "" {
			payload.Set(field, val)
		}
	}

	if app.Config.Forward.Method == http.MethodPost {
		resp, err := app.HTTPClient.PostForm(app.Config.Forward.URL, payload)
		if err != nil {
			log.Warn("forward failed", zap.String("url", app.Config.Forward.URL), zap.Error(err))
			app.reject(w, r, email, "forward_error", "Failed to forward submission", http.StatusBadGateway)
			return
		}
		resp.Body.Close()
		log.Debug("submission forwarded", zap.String("url", app.Config.Forward.URL), zap.Int("status", resp.StatusCode))
	}

	metrics.SignupAttempts.WithLabelValues("success").Inc()
	app.fireWebhook(email, "success", "")
	app.redirectThankYou(w, r)
}

// reject records a failed signup under result, notifies the failure webhook
// and answers according to onError.
func (app *App) reject(w http.ResponseWriter, r *http.Request, email, result, msg string, status int) {
	metrics.SignupAttempts.WithLabelValues(result).Inc()
	app.log(r).Debug("signup rejected", zap.String("result", result), zap.Int("status", status))
	app.fireWebhook(email, "failed", msg)
	app.handleError(w, r, msg, status)
}

func (app *App) isTemporary(domain string) bool {
	if app.Domains == nil {
		return false
	}
	temporary := app.Domains.IsTemporary(domain)
	if temporary {
		metrics.TempDomainChecks.WithLabelValues("temporary").Inc()
	} else {
		metrics.TempDomainChecks.WithLabelValues("permanent").Inc()
	}
	return temporary
}

type checkResponse struct {
	Email     string `json:"email"`
	Domain    string `json:"domain"`
	Temporary bool   `json:"temporary"`
}

func (app *App) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
		return
	}
	if app.Domains == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "domain list not loaded"})
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if !app.isValidEmail(email) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "invalid email format"})
		return
	}

	domain := app.extractDomain(email)
	writeJSON(w, http.StatusOK, checkResponse{
		Email:     email,
		Domain:    domain,
		Temporary: app.isTemporary(domain),
	})
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if app.Domains != nil {
		body["domains"] = app.Domains.Size()
	}
	writeJSON(w, http.StatusOK, body)
}

func (app *App) handleError(w http.ResponseWriter, r *http.Request, msg string, status int) {
	if app.Config.OnError.Action == "redirect" {
		target := app.Config.ThankYouURL
		if app.Config.OnError.Method == http.MethodGet && app.Config.OnError.ForwardData && r.Form != nil {
			if query := r.Form.Encode(); query != "" {
				if strings.Contains(target, "?") {
					target += "&" + query
				} else {
					target += "?" + query
				}
			}
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error": %q}`, msg)
}

func (app *App) redirectThankYou(w http.ResponseWriter, r *http.Request) {
	if app.Config.ThankYouURL == "" {
		app.log(r).Error("thank you URL not configured")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Thank you page URL not configured"})
		return
	}

	// Allow relative URLs (e.g., /thanks) or full URLs
	parsed, err := url.ParseRequestURI(app.Config.ThankYouURL)
	if err != nil || (parsed.Scheme == "" && parsed.Host == "" && !strings.HasPrefix(app.Config.ThankYouURL, "/")) {
		app.log(r).Error("invalid thank you URL", zap.String("url", app.Config.ThankYouURL), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Invalid thank you page URL"})
		return
	}

	http.Redirect(w, r, app.Config.ThankYouURL, http.StatusFound)
}

func (app *App) fireWebhook(email, status, errorMsg string) {
	webhookURL := app.Config.Webhook.FailureURL
	if status == "success" {
		webhookURL = app.Config.Webhook.SuccessURL
	}
	if webhookURL == "" {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Email:     email,
		Status:    status,
		Error:     errorMsg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		app.Logger.Warn("webhook payload not encoded", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
		if err != nil {
			app.Logger.Warn("webhook request not built", zap.String("url", webhookURL), zap.Error(err))
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.HTTPClient.Do(req)
		if err != nil {
			app.Logger.Warn("webhook failed", zap.String("url", webhookURL), zap.Error(err))
			return
		}
		resp.Body.Close()
		app.Logger.Debug("webhook sent", zap.String("url", webhookURL), zap.Int("status", resp.StatusCode))
	}()
}
