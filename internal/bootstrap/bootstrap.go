// Package bootstrap assembles the services from configuration. Both the HTTP
// server and the operator CLI build on it so they share one set of stores.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	appmetrics "seriosity/internal/application/metrics"
	appservice "seriosity/internal/application/service"
	appstore "seriosity/internal/application/store"
	"seriosity/internal/evidence/cache"
	evmetrics "seriosity/internal/evidence/metrics"
	evservice "seriosity/internal/evidence/service"
	evstore "seriosity/internal/evidence/store"
	ivmetrics "seriosity/internal/interview/metrics"
	"seriosity/internal/interview/providers"
	ivservice "seriosity/internal/interview/service"
	ivstore "seriosity/internal/interview/store"
	"seriosity/internal/media"
	"seriosity/internal/notification"
	notifymetrics "seriosity/internal/notification/metrics"
	"seriosity/internal/platform/config"
	"seriosity/internal/platform/kafka"
	"seriosity/internal/platform/postgres"
	"seriosity/internal/platform/redis"
	ratelimitmw "seriosity/internal/ratelimit/middleware"
	ratelimitstore "seriosity/internal/ratelimit/store"
	id "seriosity/pkg/domain"
)

// PropertyRegistry resolves and records property ownership.
type PropertyRegistry interface {
	appservice.Directory
	RegisterProperty(ctx context.Context, propertyID id.PropertyID, landlordID id.LandlordID) error
}

// EvidenceStore is the combined evidence and score persistence.
type EvidenceStore interface {
	evservice.Store
	evservice.ScoreStore
}

// App holds the assembled services and the connections behind them.
type App struct {
	Evidence     *evservice.Service
	Interviews   *ivservice.Service
	Applications *appservice.Service
	Dispatcher   *notification.Dispatcher
	Properties   PropertyRegistry
	RateLimits   ratelimitmw.Store

	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
}

// Option tunes what Build wires in.
type Option func(o *options)

type options struct {
	withMetrics bool
}

// WithMetrics registers Prometheus metrics for every service. Only one App
// per process may use it.
func WithMetrics() Option {
	return func(o *options) {
		o.withMetrics = true
	}
}

// Build connects to the configured backends and constructs the services.
// Each backend left unconfigured falls back to its in-memory implementation.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	app := &App{}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	var (
		evidenceStore  EvidenceStore
		interviewStore ivservice.Store
		applications   appservice.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		app.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		evidenceStore = evstore.NewPostgres(db)
		interviewStore = ivstore.NewPostgres(db)
		applications = appstore.NewPostgres(db)
		app.Properties = appstore.NewPostgresDirectory(db)
		logger.InfoContext(ctx, "using postgres stores")
	} else {
		evidenceStore = evstore.NewInMemoryStore()
		interviewStore = ivstore.NewInMemoryStore()
		applications = appstore.NewInMemoryStore()
		app.Properties = appstore.NewInMemoryDirectory()
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
	}

	var blobs ivservice.MediaStore
	if cfg.Media.Bucket != "" {
		s3Store, err := media.NewS3StoreFromConfig(ctx, cfg.Media)
		if err != nil {
			return nil, err
		}
		blobs = s3Store
	} else {
		blobs = media.NewInMemoryStore()
		logger.WarnContext(ctx, "MEDIA_BUCKET not set, keeping media in memory")
	}

	var (
		evMetrics     *evmetrics.Metrics
		ivMetrics     *ivmetrics.Metrics
		appMetrics    *appmetrics.Metrics
		notifyMetrics *notifymetrics.Metrics
	)
	if o.withMetrics {
		evMetrics = evmetrics.New()
		ivMetrics = ivmetrics.New()
		appMetrics = appmetrics.New()
		notifyMetrics = notifymetrics.New()
	}

	evOpts := []evservice.Option{
		evservice.WithLogger(logger),
		evservice.WithMetrics(evMetrics),
		evservice.WithMediaStore(blobs),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		app.redis = redisClient
		evOpts = append(evOpts, evservice.WithScoreCache(cache.NewRedisScoreCache(redisClient.Client, cfg.ScoreCache.TTL)))
		app.RateLimits = ratelimitstore.NewRedisStore(redisClient.Client)
	} else {
		app.RateLimits = ratelimitstore.NewInMemoryStore()
		logger.WarnContext(ctx, "REDIS_URL not set, score cache disabled and rate limits kept per process")
	}
	app.Evidence = evservice.New(evidenceStore, evidenceStore, evOpts...)

	var sink notification.Sink
	kafkaClient, err := kafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kafkaClient != nil {
		app.kafka = kafkaClient
		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.Kafka); err != nil {
			return nil, err
		}
		sink = notification.NewKafkaSink(kafkaClient, cfg.Kafka.Topic)
	} else {
		sink = notification.NewLogSink(logger)
		logger.WarnContext(ctx, "KAFKA_BROKERS not set, notifications go to the log")
	}
	app.Dispatcher = notification.NewDispatcher(sink,
		notification.WithLogger(logger),
		notification.WithMetrics(notifyMetrics),
		notification.WithBuffer(cfg.Notification.Buffer),
	)

	if cfg.OpenAI.APIKey == "" {
		logger.WarnContext(ctx, "OPENAI_API_KEY not set, recorded answers will fall back to placeholders")
	}
	client := providers.NewOpenAIClient(cfg.OpenAI)
	app.Interviews = ivservice.New(
		interviewStore,
		blobs,
		providers.NewTranscriber(client, cfg.OpenAI.TranscribeModel),
		providers.NewAnalyzer(client, cfg.OpenAI.AnalysisModel),
		app.Evidence,
		ivservice.WithLogger(logger),
		ivservice.WithMetrics(ivMetrics),
		ivservice.WithConfig(ivservice.Config{
			Workers:           cfg.Pipeline.TranscribeWorkers,
			TranscribeTimeout: cfg.Pipeline.TranscribeTimeout,
			AnalysisTimeout:   cfg.Pipeline.AnalysisTimeout,
			MaxAttempts:       cfg.Pipeline.RetryMaxAttempts,
			InitialInterval:   cfg.Pipeline.RetryInitialInterval,
			MaxInterval:       cfg.Pipeline.RetryMaxInterval,
		}),
	)

	app.Applications = appservice.New(applications, app.Properties, app.Dispatcher,
		appservice.WithLogger(logger),
		appservice.WithMetrics(appMetrics),
	)

	ok = true
	return app, nil
}

// DB returns the Postgres handle, or nil when running in memory.
func (a *App) DB() *sql.DB {
	return a.db
}

// Ready reports whether the configured backends answer.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases backend connections.
func (a *App) Close() {
	if a.kafka != nil {
		a.kafka.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
