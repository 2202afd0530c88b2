package backend

import (
	"context"
	"io"
	"time"
)

// BackendProvider is a string identifier for a backend provider.
type BackendProvider string

const (
	BackendProviderStableDiffusionCPP BackendProvider = "stable-diffusion.cpp"
	BackendProviderAutomatic1111      BackendProvider = "automatic1111"
	BackendProviderWhisperCPP         BackendProvider = "whisper.cpp"
	BackendProviderOpenAI             BackendProvider = "openai"
)

// Parameter keys understood by the backends.
const (
	ParamWidth    = "width"
	ParamHeight   = "height"
	ParamSteps    = "steps"
	ParamFilename = "filename"
	ParamLanguage = "language"
)

// Backend defines the core interface for all inference backends.
// Image backends read a prompt and write PNG bytes; speech backends read
// audio bytes and write the transcription.
type Backend interface {
	// Provider returns the backend identifier.
	Provider() BackendProvider

	// Infer executes inference and returns complete result.
	Infer(ctx context.Context, req *Request) (*Response, error)

	// Close cleans up resources.
	Close() error
}

// Request encapsulates all parameters for an inference call.
type Request struct {
	// Input is the raw input data (prompt text or audio bytes).
	Input io.Reader

	// Parameters contains backend-specific inference parameters.
	Parameters map[string]any

	// ModelPath is the weight file, or the model name on remote backends.
	ModelPath string
}

// Response contains the result of an inference operation.
type Response struct {
	// Output is the raw output data.
	Output io.Reader

	// Metadata contains backend-specific information.
	Metadata *ResponseMetadata
}

// ResponseMetadata contains metadata about the response.
type ResponseMetadata struct {
	Timestamp       time.Time       `json:"timestamp"`
	BackendSpecific map[string]any  `json:"backend_specific,omitempty"`
	Provider        BackendProvider `json:"provider"`
	Model           string          `json:"model"`
	DurationSeconds float64         `json:"inference_time_seconds"`
	OutputSizeBytes int64           `json:"output_size_bytes"`
}
