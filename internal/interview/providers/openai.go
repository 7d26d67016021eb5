// Package providers adapts hosted speech-to-text and language models to the
// interview pipeline's Transcriber and Analyzer ports.
package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"seriosity/internal/interview/ports"
	"seriosity/internal/platform/config"
)

// NewOpenAIClient builds a client with SDK retries disabled; the pipeline
// owns retry policy.
func NewOpenAIClient(cfg config.OpenAIConfig) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return openai.NewClient(opts...)
}

// classify maps a client error onto a pipeline error category.
func classify(ctx context.Context, err error) ports.ErrorCategory {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ports.ErrorTimeout
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch code := apiErr.StatusCode; {
		case code == http.StatusTooManyRequests:
			return ports.ErrorRateLimited
		case code == http.StatusUnauthorized, code == http.StatusForbidden:
			return ports.ErrorAuthentication
		case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
			return ports.ErrorTimeout
		case code >= 500:
			return ports.ErrorOutage
		case code == http.StatusBadRequest, code == http.StatusRequestEntityTooLarge,
			code == http.StatusUnsupportedMediaType, code == http.StatusUnprocessableEntity:
			return ports.ErrorInvalidInput
		}
	}
	return ports.ErrorOutage
}
