package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/config/source"
	"github.com/ekisa-team/stickerforge/internal/envvar"
	"github.com/ekisa-team/stickerforge/internal/xfs"
)

// DownloaderFunc returns the downloader for a source type.
type DownloaderFunc func(config.SourceType) (source.Downloader, error)

// Manager prepares the models assigned to the image and stt services.
type Manager struct {
	registry    *Registry
	downloaders DownloaderFunc
}

// NewManager creates a new Manager using the built-in downloaders.
func NewManager() *Manager {
	return NewManagerWithDownloaders(source.GetDownloader)
}

// NewManagerWithDownloaders creates a Manager with a custom downloader lookup.
func NewManagerWithDownloaders(downloaders DownloaderFunc) *Manager {
	return &Manager{
		registry:    NewRegistry(),
		downloaders: downloaders,
	}
}

// Registry returns the model registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// LoadModelsFromConfig downloads every assigned model and registers it.
// Models are prepared once at startup; the weights never change afterwards.
func (m *Manager) LoadModelsFromConfig(ctx context.Context, cfg *config.Config) error {
	assigned := make(map[string]bool)
	for _, id := range cfg.Services.Image.Models {
		assigned[id] = true
	}
	for _, id := range cfg.Services.STT.Models {
		assigned[id] = true
	}

	modelsPath := resolveModelsPath(cfg)
	if err := source.EnsureModelsDirectory(modelsPath); err != nil {
		return fmt.Errorf("failed to prepare models directory %s: %w", modelsPath, err)
	}

	for id := range assigned {
		modelConfig, ok := cfg.Models[id]
		if !ok {
			slog.Warn("Model not found in config", "model_id", id)
			continue
		}

		instance, err := m.prepare(ctx, id, &modelConfig, modelsPath)
		if err != nil {
			return fmt.Errorf("failed to prepare model %s: %w", id, err)
		}

		m.registry.Set(instance)
		slog.Info("Model ready", "model_id", id, "backend", modelConfig.Backend, "path", instance.Path, "remote", instance.Remote())
	}

	return nil
}

func (m *Manager) prepare(ctx context.Context, id string, modelConfig *config.ModelConfig, modelsPath string) (*Instance, error) {
	src, err := modelConfig.GetSource()
	if errors.Is(err, config.ErrNoSource) {
		name := modelConfig.Name
		if name == "" {
			name = id
		}
		instance := NewInstance(modelConfig, id, name)
		instance.SetStatus(StatusReady)
		return instance, nil
	}
	if err != nil {
		return nil, err
	}

	downloader, err := m.downloaders(src.Type())
	if err != nil {
		return nil, err
	}

	dir, _, err := downloader.Download(ctx, modelConfig, modelsPath)
	if err != nil {
		return nil, err
	}

	path, err := ResolveWeightFile(dir, modelConfig.File)
	if err != nil {
		return nil, err
	}

	instance := NewInstance(modelConfig, id, path)
	instance.SetStatus(StatusReady)
	return instance, nil
}

// ResolveWeightFile finds the weight file matching pattern inside dir.
// An empty pattern selects dir itself.
func ResolveWeightFile(dir, pattern string) (string, error) {
	if pattern == "" {
		return dir, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return "", fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s in %s", ErrFileNotFound, pattern, dir)
	}

	return matches[0], nil
}

// resolveModelsPath returns the path to the models directory.
// Precedence:
// 1. STICKERFORGE_MODELS_PATH environment variable.
// 2. ModelsDir field in the config.
// 3. Default models path.
func resolveModelsPath(cfg *config.Config) string {
	if p := os.Getenv(envvar.StickerforgeModelsPath); p != "" {
		return xfs.ExpandTilde(p)
	}
	if cfg.Storage.ModelsDir != "" {
		return xfs.ExpandTilde(cfg.Storage.ModelsDir)
	}
	return xfs.ExpandTilde(config.DefaultModelsPath())
}
