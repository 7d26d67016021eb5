package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	apphandler "seriosity/internal/application/handler"
	"seriosity/internal/bootstrap"
	evhandler "seriosity/internal/evidence/handler"
	ivhandler "seriosity/internal/interview/handler"
	"seriosity/internal/platform/config"
	"seriosity/internal/platform/httpserver"
	"seriosity/internal/platform/logger"
	"seriosity/internal/platform/metrics"
	"seriosity/internal/platform/tracing"
	ratelimitmetrics "seriosity/internal/ratelimit/metrics"
	ratelimitmw "seriosity/internal/ratelimit/middleware"
	ratelimit "seriosity/internal/ratelimit/models"
	"seriosity/pkg/platform/httputil"
	"seriosity/pkg/platform/middleware/auth"
	"seriosity/pkg/platform/middleware/requestid"
	"seriosity/pkg/platform/middleware/requesttime"
)

// main wires dependencies, exposes the HTTP router and runs the notification
// dispatcher next to the server until a shutdown signal arrives.
func main() {
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		log.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	app, err := bootstrap.Build(ctx, cfg, log, bootstrap.WithMetrics())
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := newRouter(app, cfg, log)
	srv := httpserver.New(cfg.Addr, router)

	// The dispatcher outlives the server so notifications raised by
	// in-flight requests during shutdown are still delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.Dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		log.Info("starting seriosity", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		log.Info("shutting down")
		defer stopDispatch()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func newRouter(app *bootstrap.App, cfg config.Server, log *slog.Logger) chi.Router {
	httpMetrics := metrics.New()

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(httpMetrics.Middleware)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := app.Ready(ctx); err != nil {
			log.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiter := ratelimitmw.New(app.RateLimits, map[ratelimit.Class]ratelimit.Limit{
		ratelimit.ClassInterview:   {Requests: cfg.RateLimit.Interview, Window: cfg.RateLimit.Window},
		ratelimit.ClassEvidence:    {Requests: cfg.RateLimit.Evidence, Window: cfg.RateLimit.Window},
		ratelimit.ClassApplication: {Requests: cfg.RateLimit.Application, Window: cfg.RateLimit.Window},
	}, log,
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(ratelimitmetrics.New()),
	)

	validator := auth.NewHMACValidator(cfg.JWTSigningKey, cfg.JWTIssuer)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(validator, log))
		r.Group(func(r chi.Router) {
			r.Use(limiter.PerActor(ratelimit.ClassInterview))
			ivhandler.New(app.Interviews, log).Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.PerActor(ratelimit.ClassEvidence))
			evhandler.New(app.Evidence, log).Register(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(limiter.PerActor(ratelimit.ClassApplication))
			apphandler.New(app.Applications, log).Register(r)
		})
	})
	return r
}
