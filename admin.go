package main

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/themacn/trial-abuse-guard/internal/tempdomain"
)

// domainsRequest entries are not validated one by one; invalid domains are
// dropped by the service like any other input.
type domainsRequest struct {
	Domains []string `json:"domains" validate:"required,min=1,max=10000"`
}

type importRequest struct {
	Path string `json:"path" validate:"required"`
}

type domainsResponse struct {
	Count   int      `json:"count"`
	Domains []string `json:"domains"`
}

type mutationResponse struct {
	Changed int `json:"changed"`
	Total   int `json:"total"`
}

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 4 << 20

func (app *App) mountAdmin(mux *http.ServeMux) {
	p := strings.TrimSuffix(app.Config.Admin.Prefix, "/")

	routes := map[string]http.HandlerFunc{
		"GET " + p + "/domains/stats":   app.adminStats,
		"GET " + p + "/domains":         app.adminSearch,
		"GET " + p + "/domains/check":   app.adminCheck,
		"POST " + p + "/domains":        app.adminAdd,
		"DELETE " + p + "/domains":      app.adminRemove,
		"POST " + p + "/domains/update": app.adminUpdate,
		"POST " + p + "/domains/reset":  app.adminReset,
		"GET " + p + "/domains/export":  app.adminExport,
		"POST " + p + "/domains/import": app.adminImport,
	}
	for pattern, h := range routes {
		mux.Handle(pattern, app.requireToken(h))
	}
}

// requireToken checks the bearer token. An empty configured token rejects
// every request.
func (app *App) requireToken(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := app.Config.Admin.Token
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" || !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		if app.Domains == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "domain list not loaded"})
			return
		}
		next(w, r)
	})
}

func (app *App) adminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, app.Domains.Stats())
}

func (app *App) adminSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var domains []string
	switch {
	case q.Get("regex") != "":
		found, err := app.Domains.SearchRegexp(q.Get("regex"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		domains = found
	case q.Get("q") != "":
		domains = app.Domains.Search(q.Get("q"))
	default:
		domains = app.Domains.Domains()
	}
	writeJSON(w, http.StatusOK, domainsResponse{Count: len(domains), Domains: domains})
}

func (app *App) adminCheck(w http.ResponseWriter, r *http.Request) {
	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if domain == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "domain is required"})
		return
	}
	normalized, _ := tempdomain.Normalize(domain)
	writeJSON(w, http.StatusOK, map[string]any{
		"domain":     domain,
		"normalized": normalized,
		"temporary":  app.Domains.IsTemporary(domain),
	})
}

func (app *App) adminAdd(w http.ResponseWriter, r *http.Request) {
	var req domainsRequest
	if !app.decode(w, r, &req) {
		return
	}
	n := app.Domains.AddDomains(req.Domains...)
	app.log(r).Info("temp domains added via admin", zap.Int("requested", len(req.Domains)), zap.Int("added", n))
	writeJSON(w, http.StatusOK, mutationResponse{Changed: n, Total: app.Domains.Size()})
}

func (app *App) adminRemove(w http.ResponseWriter, r *http.Request) {
	var req domainsRequest
	if !app.decode(w, r, &req) {
		return
	}
	n := app.Domains.RemoveDomains(req.Domains...)
	app.log(r).Info("temp domains removed via admin", zap.Int("requested", len(req.Domains)), zap.Int("removed", n))
	writeJSON(w, http.StatusOK, mutationResponse{Changed: n, Total: app.Domains.Size()})
}

func (app *App) adminUpdate(w http.ResponseWriter, r *http.Request) {
	res, err := app.Domains.ForceUpdate(r.Context())
	if errors.Is(err, tempdomain.ErrServiceDestroyed) {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (app *App) adminReset(w http.ResponseWriter, r *http.Request) {
	app.Domains.Reset()
	writeJSON(w, http.StatusOK, mutationResponse{Total: app.Domains.Size()})
}

func (app *App) adminExport(w http.ResponseWriter, r *http.Request) {
	format, err := tempdomain.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}

	contentType := "application/json"
	if format == tempdomain.FormatText {
		contentType = "text/plain; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="temp-domains.%s"`, format))
	if err := app.Domains.WriteExport(w, format); err != nil {
		app.log(r).Warn("export failed", zap.Error(err))
	}
}

func (app *App) adminImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !app.decode(w, r, &req) {
		return
	}
	n, err := app.Domains.Import(req.Path)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Changed: n, Total: app.Domains.Size()})
}

// decode reads and validates a JSON body into v, answering 400 on failure.
func (app *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}

	if err := app.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fe.Field()] = fmt.Sprintf("failed %s validation", fe.Tag())
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: details})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return false
	}
	return true
}
