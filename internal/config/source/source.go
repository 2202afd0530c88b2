package source

import (
	"context"
	"fmt"
	"os"

	"github.com/ekisa-team/stickerforge/internal/config"
)

// Downloader fetches model weights into a local directory.
type Downloader interface {
	// Download places the model under targetDir and returns its directory.
	// The boolean reports whether an up-to-date copy was already present.
	Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error)
}

// GetDownloader returns the downloader for a source type.
func GetDownloader(sourceType config.SourceType) (Downloader, error) {
	switch sourceType {
	case config.SourceTypeHuggingFace:
		return NewHuggingFaceDownloader(), nil
	default:
		return nil, fmt.Errorf("unsupported model source type: %s", sourceType)
	}
}

// EnsureModelsDirectory creates the models cache directory if needed.
func EnsureModelsDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}
	return nil
}
