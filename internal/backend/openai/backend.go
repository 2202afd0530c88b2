package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/mapsafe"
)

// DefaultAPIKeyEnv is read when the config names no API key variable.
const DefaultAPIKeyEnv = "OPENAI_API_KEY"

// DefaultModel is used when the model instance carries no name.
const DefaultModel = "whisper-1"

// Backend implements backend.Backend with the hosted transcription API.
// Any OpenAI-compatible server works by setting base_url.
type Backend struct {
	client   *openai.Client
	language string
}

// NewBackend creates a transcription backend. Extra request options are
// appended after the ones derived from cfg.
func NewBackend(cfg config.OpenAIConfig, opts ...option.RequestOption) (*Backend, error) {
	keyEnv := cfg.APIKeyEnv
	if keyEnv == "" {
		keyEnv = DefaultAPIKeyEnv
	}

	apiKey := os.Getenv(keyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s is not set", backend.ErrUnconfigured, keyEnv)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	clientOpts = append(clientOpts, opts...)
	client := openai.NewClient(clientOpts...)

	return &Backend{
		client:   &client,
		language: cfg.Language,
	}, nil
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderOpenAI
}

// Infer implements backend.Backend.
// Input: audio bytes.
// Output: transcription text.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	audio, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio input: %w", err)
	}
	if len(audio) == 0 {
		return nil, backend.ErrEmptyInput
	}

	filename := filepath.Base(mapsafe.Get(req.Parameters, backend.ParamFilename, "audio.wav"))
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	model := req.ModelPath
	if model == "" {
		model = DefaultModel
	}

	params := openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(model),
		File:  openai.File(bytes.NewReader(audio), filename, contentType),
	}
	if lang := mapsafe.Get(req.Parameters, backend.ParamLanguage, b.language); lang != "" {
		params.Language = openai.String(lang)
	}

	start := time.Now()

	res, err := b.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}

	text := res.Text

	return &backend.Response{
		Output: strings.NewReader(text),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           model,
			Timestamp:       time.Now(),
			DurationSeconds: time.Since(start).Seconds(),
			OutputSizeBytes: int64(len(text)),
		},
	}, nil
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return nil
}
