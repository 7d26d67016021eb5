package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server captures process-level configuration. Empty connection settings
// select the in-memory implementation for that concern so the service runs
// locally without infrastructure.
type Server struct {
	Addr          string `env:"SERIOSITY_ADDR" envDefault:":8080"`
	JWTSigningKey string `env:"JWT_SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	JWTIssuer     string `env:"JWT_ISSUER" envDefault:"seriosity"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`

	Redis        RedisConfig
	ScoreCache   ScoreCacheConfig
	Kafka        KafkaConfig
	Media        MediaConfig
	OpenAI       OpenAIConfig
	Pipeline     PipelineConfig
	Notification NotificationConfig
	RateLimit    RateLimitConfig
	Tracing      TracingConfig
}

// RedisConfig configures the shared go-redis client.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"2s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"500ms"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"500ms"`
}

// ScoreCacheConfig bounds how long a computed score is served from Redis.
type ScoreCacheConfig struct {
	TTL time.Duration `env:"SCORE_CACHE_TTL" envDefault:"10m"`
}

// KafkaConfig configures the notification sink.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"NOTIFICATION_TOPIC" envDefault:"seriosity.notifications"`

	Partitions        int32 `env:"NOTIFICATION_TOPIC_PARTITIONS" envDefault:"3"`
	ReplicationFactor int16 `env:"NOTIFICATION_TOPIC_REPLICATION" envDefault:"1"`
}

// MediaConfig configures blob storage for answers and documents.
type MediaConfig struct {
	Bucket string `env:"MEDIA_BUCKET"`
	Region string `env:"AWS_REGION" envDefault:"eu-west-1"`
	Prefix string `env:"MEDIA_PREFIX" envDefault:"seriosity"`
}

// OpenAIConfig configures the speech-to-text and transcript analysis adapters.
type OpenAIConfig struct {
	APIKey          string `env:"OPENAI_API_KEY"`
	BaseURL         string `env:"OPENAI_BASE_URL"`
	TranscribeModel string `env:"OPENAI_TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	AnalysisModel   string `env:"OPENAI_ANALYSIS_MODEL" envDefault:"gpt-4o-mini"`
}

// PipelineConfig tunes the interview evidence pipeline.
type PipelineConfig struct {
	TranscribeTimeout    time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"45s"`
	AnalysisTimeout      time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"60s"`
	TranscribeWorkers    int           `env:"TRANSCRIBE_WORKERS" envDefault:"4"`
	RetryMaxAttempts     int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"3"`
	RetryInitialInterval time.Duration `env:"RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	RetryMaxInterval     time.Duration `env:"RETRY_MAX_INTERVAL" envDefault:"5s"`
}

// NotificationConfig sizes the async dispatcher.
type NotificationConfig struct {
	Buffer int `env:"NOTIFICATION_BUFFER" envDefault:"256"`
}

// RateLimitConfig sets per-actor request budgets for each endpoint group.
// A non-positive budget leaves that group unlimited.
type RateLimitConfig struct {
	Disabled    bool          `env:"RATE_LIMIT_DISABLED" envDefault:"false"`
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1h"`
	Interview   int           `env:"RATE_LIMIT_INTERVIEW" envDefault:"120"`
	Evidence    int           `env:"RATE_LIMIT_EVIDENCE" envDefault:"120"`
	Application int           `env:"RATE_LIMIT_APPLICATION" envDefault:"600"`
}

// TracingConfig enables OTLP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"seriosity"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

// FromEnv parses Server from the environment.
func FromEnv() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Pipeline.TranscribeWorkers < 1 {
		return Server{}, fmt.Errorf("TRANSCRIBE_WORKERS must be at least 1")
	}
	if cfg.Pipeline.RetryMaxAttempts < 1 {
		return Server{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}
