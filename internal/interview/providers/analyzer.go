package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"seriosity/internal/interview/models"
	"seriosity/internal/interview/ports"
)

const analysisInstructions = `You assess rental applicants from their interview answers.
Each answer is introduced by its question id in square brackets. An answer of
"` + models.PlaceholderTranscript + `" could not be transcribed; ignore it rather
than penalise it.
Reply with a single JSON object and nothing else:
{"clarity_score": number 0..1, "consistency_score": number 0..1,
 "evasiveness_detected": boolean, "extracted_facts": {string: string}}
clarity_score rates how clear and complete the answers are.
consistency_score rates how well the answers agree with each other.
evasiveness_detected is true when the applicant avoids direct answers.
extracted_facts holds short facts such as employer, household size or pets.`

type analysisPayload struct {
	Clarity     *float64          `json:"clarity_score"`
	Consistency *float64          `json:"consistency_score"`
	Evasive     bool              `json:"evasiveness_detected"`
	Facts       map[string]string `json:"extracted_facts"`
}

// Analyzer scores an aggregate transcript with an OpenAI chat model.
type Analyzer struct {
	client openai.Client
	model  string
}

func NewAnalyzer(client openai.Client, model string) *Analyzer {
	return &Analyzer{client: client, model: model}
}

func (a *Analyzer) Analyze(ctx context.Context, transcript string, profile ports.ProfileContext) (models.Analysis, error) {
	prompt := fmt.Sprintf("Applicant %s answered %d questions.\n\n%s",
		profile.TenantID, len(profile.QuestionIDs), transcript)

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analysisInstructions),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return models.Analysis{}, ports.NewAnalysisError(classify(ctx, err), "analysis request failed", err)
	}
	if len(resp.Choices) == 0 {
		return models.Analysis{}, ports.NewAnalysisError(ports.ErrorBadData, "analysis returned no choices", nil)
	}
	return parseAnalysis(resp.Choices[0].Message.Content)
}

// parseAnalysis reads the model's JSON reply, tolerating a fenced code block.
func parseAnalysis(content string) (models.Analysis, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return models.Analysis{}, ports.NewAnalysisError(ports.ErrorBadData, "analysis is not valid JSON", err)
	}
	if payload.Clarity == nil || payload.Consistency == nil {
		return models.Analysis{}, ports.NewAnalysisError(ports.ErrorBadData, "analysis is missing scores", nil)
	}
	analysis := models.Analysis{
		Clarity:     *payload.Clarity,
		Consistency: *payload.Consistency,
		Evasive:     payload.Evasive,
		Facts:       payload.Facts,
	}
	if err := analysis.Validate(); err != nil {
		return models.Analysis{}, ports.NewAnalysisError(ports.ErrorBadData, "analysis out of range", err)
	}
	return analysis, nil
}
