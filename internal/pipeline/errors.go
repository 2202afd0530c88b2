package pipeline

import (
	"errors"

	"github.com/ekisa-team/stickerforge/internal/artifact"
	"github.com/ekisa-team/stickerforge/internal/service"
)

var (
	// ErrDecode is returned for uploads that are empty or not a supported image.
	ErrDecode = errors.New("malformed upload")

	// ErrEmptyPrompt is returned for text requests with no visible characters.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrInference is returned when synthesis or transcription fails.
	ErrInference = service.ErrInference

	// ErrStorage is returned when the finished sticker cannot be written.
	ErrStorage = artifact.ErrStorage
)
