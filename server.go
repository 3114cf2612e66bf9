package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/themacn/trial-abuse-guard/internal/config"
	"github.com/themacn/trial-abuse-guard/internal/metrics"
	"github.com/themacn/trial-abuse-guard/internal/ratelimit"
	"github.com/themacn/trial-abuse-guard/internal/tempdomain"
	"github.com/themacn/trial-abuse-guard/internal/verifier"
)

const (
	shutdownTimeout = 10 * time.Second
	// rate-limit buckets idle this long are dropped
	limiterIdle = 10 * time.Minute
)

// App holds the application state and dependencies.
type App struct {
	Config       *config.Config
	Domains      *tempdomain.Service
	Logger       *zap.Logger
	Limiter      *ratelimit.Limiter
	Verifier     verifier.Verifier
	HTTPClient   *http.Client
	LookupMXFunc func(string) ([]*net.MX, error)

	validate   *validator.Validate
	retryDelay time.Duration
}

// NewApp creates a new App with default dependencies.
func NewApp(cfg *config.Config, domains *tempdomain.Service, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &App{
		Config:       cfg,
		Domains:      domains,
		Logger:       logger,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
		LookupMXFunc: net.LookupMX,
		validate:     validator.New(),
		retryDelay:   500 * time.Millisecond,
	}
}

// Setup wires the optional pieces named by the config: rate limiter,
// external verifier and metrics collectors.
func (app *App) Setup() error {
	if err := app.setupRateLimiter(); err != nil {
		return err
	}
	if err := app.setupEmailVerifier(); err != nil {
		return err
	}
	if app.Config.Metrics.Enabled {
		metrics.Init()
	}
	return nil
}

func (app *App) setupRateLimiter() error {
	if !app.Config.RateLimit.Enabled {
		return nil
	}
	app.Limiter = ratelimit.New(app.Config.RateLimit.RequestsPerMin, app.Config.RateLimit.Burst)
	app.Logger.Info("rate limiting enabled",
		zap.Int("per_minute", app.Config.RateLimit.RequestsPerMin),
		zap.Int("burst", app.Config.RateLimit.Burst))
	return nil
}

func (app *App) setupEmailVerifier() error {
	provider := app.Config.EmailVerifier.Provider
	if provider == "" {
		return nil
	}
	v, err := verifier.NewFromProvider(provider, verifier.Settings{
		APIKey: app.Config.EmailVerifier.APIKey,
		Client: app.HTTPClient,
	})
	if err != nil {
		return fmt.Errorf("load email verifier: %w", err)
	}
	app.Verifier = v
	app.Logger.Info("email verification enabled", zap.String("provider", provider))
	return nil
}

// Handler returns the public mux wrapped in the request-id and panic
// recovery middleware.
func (app *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(app.Config.Route, app.handleSignup)
	mux.HandleFunc(app.Config.Health.Route, app.handleHealth)
	if app.Config.Check.Enabled {
		mux.HandleFunc(app.Config.Check.Route, app.handleCheck)
	}
	if app.Config.ThankYouURL == "/thanks" && app.Config.Route != "/thanks" {
		mux.HandleFunc("/thanks", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, "<h1>Thank You!</h1>")
		})
	}
	if app.Config.Admin.Enabled {
		if app.Config.Admin.Token == "" {
			app.Logger.Error("admin API not mounted: no token configured", zap.String("prefix", app.Config.Admin.Prefix))
		} else {
			app.mountAdmin(mux)
		}
	}
	return app.withRequestID(app.recoverer(mux))
}

func (app *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(app.Config.Metrics.Route, promhttp.Handler())
	return mux
}

// Serve runs the public server, the metrics server when enabled and the
// limiter sweeper until ctx is done, then shuts the servers down.
func (app *App) Serve(ctx context.Context) error {
	servers := []*http.Server{{
		Addr:              app.Config.ListenAddress,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if app.Config.Metrics.Enabled {
		servers = append(servers, &http.Server{
			Addr:              app.Config.Metrics.Address,
			Handler:           app.metricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			app.Logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		var errs error
		for _, srv := range servers {
			errs = errors.Join(errs, srv.Shutdown(shutdownCtx))
		}
		app.Logger.Info("servers stopped")
		return errs
	})

	if app.Limiter != nil {
		g.Go(func() error {
			ticker := time.NewTicker(limiterIdle)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if n := app.Limiter.Sweep(limiterIdle); n > 0 {
						app.Logger.Debug("rate limit buckets dropped", zap.Int("count", n))
					}
				}
			}
		})
	}

	return g.Wait()
}
