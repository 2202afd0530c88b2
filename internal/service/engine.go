package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/model"
)

// Engine is the process-wide inference handle. It resolves the image and stt
// models to their backends and runs at most one inference call at a time.
type Engine struct {
	backends   *backend.Registry
	models     *model.Registry
	sem        *semaphore.Weighted
	imageModel string
	sttModel   string
}

// NewEngine creates an Engine over the prepared registries. An empty model ID
// disables the matching operation.
func NewEngine(backends *backend.Registry, models *model.Registry, imageModel, sttModel string) *Engine {
	return &Engine{
		backends:   backends,
		models:     models,
		sem:        semaphore.NewWeighted(1),
		imageModel: imageModel,
		sttModel:   sttModel,
	}
}

// Synthesize renders prompt into an image of the given size.
func (e *Engine) Synthesize(ctx context.Context, prompt string, width, height, steps int) (image.Image, error) {
	resp, err := e.infer(ctx, e.imageModel, &backend.Request{
		Input: strings.NewReader(prompt),
		Parameters: map[string]any{
			backend.ParamWidth:  width,
			backend.ParamHeight: height,
			backend.ParamSteps:  steps,
		},
	})
	if err != nil {
		return nil, err
	}

	img, format, err := image.Decode(resp.Output)
	if err != nil {
		return nil, fmt.Errorf("%w: decode backend image: %w", ErrInference, err)
	}

	slog.Debug("Image synthesized",
		"provider", resp.Metadata.Provider,
		"format", format,
		"size", img.Bounds().Size(),
		"duration_seconds", resp.Metadata.DurationSeconds,
	)

	return img, nil
}

// Transcribe converts audio to text. filename hints the container format.
func (e *Engine) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: %w", ErrInference, backend.ErrEmptyInput)
	}

	params := map[string]any{}
	if filename != "" {
		params[backend.ParamFilename] = filename
	}

	resp, err := e.infer(ctx, e.sttModel, &backend.Request{
		Input:      bytes.NewReader(audio),
		Parameters: params,
	})
	if err != nil {
		return "", err
	}

	text, err := io.ReadAll(resp.Output)
	if err != nil {
		return "", fmt.Errorf("%w: read transcription: %w", ErrInference, err)
	}

	slog.Debug("Audio transcribed",
		"provider", resp.Metadata.Provider,
		"chars", len(text),
		"duration_seconds", resp.Metadata.DurationSeconds,
	)

	return string(text), nil
}

func (e *Engine) infer(ctx context.Context, modelID string, req *backend.Request) (*backend.Response, error) {
	if modelID == "" {
		return nil, fmt.Errorf("%w: %w", ErrInference, ErrNotAssigned)
	}

	m, ok := e.models.Get(modelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrInference, modelID, model.ErrNotFound)
	}

	provider := backend.BackendProvider(m.Config.Backend)
	b, ok := e.backends.Get(provider)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w", ErrInference, provider, backend.ErrNotFound)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}
	defer e.sem.Release(1)

	req.ModelPath = m.Path

	resp, err := b.Infer(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInference, provider, err)
	}
	if resp.Metadata == nil {
		resp.Metadata = &backend.ResponseMetadata{Provider: provider, Model: m.Path}
	}

	return resp, nil
}
