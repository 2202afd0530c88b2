package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/backend/automatic1111"
	"github.com/ekisa-team/stickerforge/internal/backend/openai"
	"github.com/ekisa-team/stickerforge/internal/backend/sdcpp"
	"github.com/ekisa-team/stickerforge/internal/backend/whisper"
	"github.com/ekisa-team/stickerforge/internal/config"
)

// buildBackends constructs every backend configured under backends. On error
// the backends built so far are closed.
func buildBackends(cfg *config.Config, accel backend.Accelerator, servers whisper.Starter) (*backend.Registry, error) {
	registry := backend.NewRegistry()
	b := cfg.Backends

	fail := func(err error) (*backend.Registry, error) {
		if cerr := registry.Close(); cerr != nil {
			slog.Warn("Failed to close backends", "error", cerr)
		}
		return nil, err
	}

	if b.WhisperCPP != nil {
		registry.Register(whisper.NewBackend(*b.WhisperCPP, servers, accel))
	}

	if b.StableDiffusionCPP != nil {
		sd, err := sdcpp.NewBackend(*b.StableDiffusionCPP, accel)
		if err != nil {
			return fail(fmt.Errorf("stable-diffusion.cpp: %w", err))
		}
		registry.Register(sd)
	}

	if b.Automatic1111 != nil {
		a1111, err := automatic1111.NewBackend(*b.Automatic1111)
		if err != nil {
			return fail(err)
		}
		registry.Register(a1111)
	}

	if b.OpenAI != nil {
		oa, err := openai.NewBackend(*b.OpenAI)
		switch {
		case errors.Is(err, backend.ErrUnconfigured):
			slog.Warn("Skipping openai backend", "reason", err)
		case err != nil:
			return fail(fmt.Errorf("openai: %w", err))
		default:
			registry.Register(oa)
		}
	}

	slog.Info("Backends ready", "providers", registry.Providers())
	return registry, nil
}
