package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seriosity/internal/interview/models"
	"seriosity/internal/interview/ports"
	"seriosity/internal/platform/config"
	id "seriosity/pkg/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Transcriber, *Analyzer) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewOpenAIClient(config.OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/"})
	return NewTranscriber(client, "whisper-1"), NewAnalyzer(client, "gpt-4o-mini")
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1700000000,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestTranscriber(t *testing.T) {
	recording := ports.Recording{QuestionID: "q1", Kind: models.MediaAudio, ContentType: "audio/webm", Filename: "q1.webm", Data: []byte("audio")}

	t.Run("returns the transcript text", func(t *testing.T) {
		transcriber, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio/transcriptions", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			data, _ := io.ReadAll(file)
			assert.Equal(t, "audio", string(data))
			assert.Equal(t, "q1.webm", header.Filename)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"text":"I work nights"}`))
		})

		text, err := transcriber.Transcribe(context.Background(), recording)
		require.NoError(t, err)
		assert.Equal(t, "I work nights", text)
	})

	t.Run("empty recording is invalid input", func(t *testing.T) {
		transcriber, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no request expected")
		})
		_, err := transcriber.Transcribe(context.Background(), ports.Recording{QuestionID: "q1"})
		assert.Equal(t, ports.ErrorInvalidInput, ports.CategoryOf(err))
		assert.False(t, ports.IsRetryable(err))
	})

	statusCases := []struct {
		status    int
		category  ports.ErrorCategory
		retryable bool
	}{
		{http.StatusTooManyRequests, ports.ErrorRateLimited, true},
		{http.StatusServiceUnavailable, ports.ErrorOutage, true},
		{http.StatusUnauthorized, ports.ErrorAuthentication, false},
		{http.StatusBadRequest, ports.ErrorInvalidInput, false},
	}
	for _, tc := range statusCases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			transcriber, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"error"}}`))
			})
			_, err := transcriber.Transcribe(context.Background(), recording)
			require.Error(t, err)
			assert.Equal(t, tc.category, ports.CategoryOf(err))
			assert.Equal(t, tc.retryable, ports.IsRetryable(err))
		})
	}

	t.Run("deadline is a timeout", func(t *testing.T) {
		release := make(chan struct{})
		transcriber, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := transcriber.Transcribe(ctx, recording)
		assert.Equal(t, ports.ErrorTimeout, ports.CategoryOf(err))
		assert.True(t, ports.IsRetryable(err))
	})
}

func TestAnalyzer(t *testing.T) {
	profile := ports.ProfileContext{TenantID: id.NewTenantID(), QuestionIDs: []id.QuestionID{"q1", "q2"}}

	t.Run("parses the JSON reply", func(t *testing.T) {
		_, analyzer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/chat/completions", r.URL.Path)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "gpt-4o-mini", body["model"])
			messages, _ := body["messages"].([]any)
			require.Len(t, messages, 2)
			user, _ := messages[1].(map[string]any)
			assert.Contains(t, user["content"], "[q1]\nhello")

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(chatReply("```json\n" +
				`{"clarity_score":0.9,"consistency_score":0.4,"evasiveness_detected":true,"extracted_facts":{"pets":"dog"}}` +
				"\n```"))
		})

		analysis, err := analyzer.Analyze(context.Background(), "[q1]\nhello\n\n[q2]\nworld", profile)
		require.NoError(t, err)
		assert.Equal(t, 0.9, analysis.Clarity)
		assert.Equal(t, 0.4, analysis.Consistency)
		assert.True(t, analysis.Evasive)
		assert.Equal(t, "dog", analysis.Facts["pets"])
	})

	t.Run("server error is a retryable outage", func(t *testing.T) {
		_, analyzer := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		_, err := analyzer.Analyze(context.Background(), "[q1]\nhello", profile)
		var analysisErr *ports.AnalysisError
		require.ErrorAs(t, err, &analysisErr)
		assert.Equal(t, ports.ErrorOutage, analysisErr.Category)
		assert.True(t, analysisErr.Retryable)
	})
}

func TestParseAnalysis(t *testing.T) {
	cases := map[string]string{
		"not json":       "I think they are great",
		"missing scores": `{"evasiveness_detected":false}`,
		"out of range":   `{"clarity_score":1.5,"consistency_score":0.5}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseAnalysis(content)
			require.Error(t, err)
			assert.Equal(t, ports.ErrorBadData, ports.CategoryOf(err))
			assert.False(t, ports.IsRetryable(err))
		})
	}

	analysis, err := parseAnalysis(strings.TrimSpace(`  {"clarity_score":0,"consistency_score":1}  `))
	require.NoError(t, err)
	assert.Equal(t, 0.0, analysis.Clarity)
	assert.Equal(t, 1.0, analysis.Consistency)
}
