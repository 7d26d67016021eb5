package providers

import (
	"bytes"
	"context"

	"github.com/openai/openai-go"

	"seriosity/internal/interview/ports"
)

// Transcriber sends recordings to the OpenAI audio transcription endpoint.
type Transcriber struct {
	client openai.Client
	model  string
}

func NewTranscriber(client openai.Client, model string) *Transcriber {
	return &Transcriber{client: client, model: model}
}

func (t *Transcriber) Transcribe(ctx context.Context, recording ports.Recording) (string, error) {
	if len(recording.Data) == 0 {
		return "", ports.NewTranscriptionError(ports.ErrorInvalidInput, "recording is empty", nil)
	}
	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(t.model),
		File:  openai.File(bytes.NewReader(recording.Data), recording.Filename, recording.ContentType),
	})
	if err != nil {
		return "", ports.NewTranscriptionError(classify(ctx, err), "transcription request failed", err)
	}
	return resp.Text, nil
}
