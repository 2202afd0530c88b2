package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/mapsafe"
)

// DefaultPort is the whisper-server port used when the config sets none.
const DefaultPort = 8082

// Starter starts the whisper-server sidecar. *backend.ServerManager satisfies it.
type Starter interface {
	StartServer(ctx context.Context, cfg backend.ServerConfig) error
	StopServer(name string, port int) error
}

// Backend implements backend.Backend for whisper.cpp.
type Backend struct {
	servers Starter
	client  *http.Client
	cfg     config.WhisperCPPConfig
	accel   backend.Accelerator
	host    string
	port    int
}

// TranscriptionResponse is the verbose_json body returned by whisper-server.
type TranscriptionResponse struct {
	Task             string              `json:"task,omitempty"`
	Language         string              `json:"language,omitempty"`
	Duration         float64             `json:"duration,omitempty"`
	Text             string              `json:"text,omitempty"`
	Segments         []TranscriptSegment `json:"segments,omitempty"`
	DetectedLanguage string              `json:"detected_language,omitempty"`
}

// TranscriptSegment is a single segment in the transcription.
type TranscriptSegment struct {
	ID           int     `json:"id"`
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
}

// NewBackend creates a new Backend instance.
func NewBackend(cfg config.WhisperCPPConfig, servers Starter, accel backend.Accelerator) *Backend {
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}

	return &Backend{
		servers: servers,
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		cfg:   cfg,
		accel: accel,
		host:  "127.0.0.1",
		port:  port,
	}
}

// Close implements backend.Backend.
func (b *Backend) Close() error {
	return b.servers.StopServer(string(b.Provider()), b.port)
}

// Provider implements backend.Backend.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderWhisperCPP
}

// Infer implements backend.Backend.
// Input: audio bytes in any container whisper-server (or ffmpeg with --convert) reads.
// Output: transcription text.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	if err := b.servers.StartServer(ctx, backend.ServerConfig{
		Name:       string(b.Provider()),
		BinPath:    b.cfg.BinPath,
		Args:       b.serverArgs(req.ModelPath),
		Port:       b.port,
		HealthPath: "/",
	}); err != nil {
		return nil, fmt.Errorf("failed to start server: %w", err)
	}

	audio, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio input: %w", err)
	}
	if len(audio) == 0 {
		return nil, backend.ErrEmptyInput
	}

	body, contentType, err := b.buildForm(audio, req.Parameters)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("http://%s:%d/inference", b.host, b.port), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)

	start := time.Now()

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start).Seconds()

	if resp.StatusCode != http.StatusOK {
		msg, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		return nil, fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, msg)
	}

	var tr TranscriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &backend.Response{
		Output: bytes.NewReader([]byte(tr.Text)),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelPath,
			Timestamp:       time.Now(),
			DurationSeconds: elapsed,
			OutputSizeBytes: int64(len(tr.Text)),
			BackendSpecific: map[string]any{
				"language": tr.Language,
				"duration": tr.Duration,
				"segments": len(tr.Segments),
			},
		},
	}, nil
}

func (b *Backend) serverArgs(modelPath string) []string {
	args := []string{
		"--model", modelPath,
		"--host", b.host,
		"--port", strconv.Itoa(b.port),
	}

	if b.cfg.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(b.cfg.Threads))
	}
	if b.cfg.Convert {
		args = append(args, "--convert")
	}
	if !b.accel.Accelerated() {
		args = append(args, "--no-gpu")
	}

	return args
}

func (b *Backend) buildForm(audio []byte, p map[string]any) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	filename := filepath.Base(mapsafe.Get(p, backend.ParamFilename, "audio.wav"))
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	language := mapsafe.Get(p, backend.ParamLanguage, b.cfg.Language)
	if language == "" {
		language = "auto"
	}

	fields := map[string]string{
		"language":        language,
		"response_format": "verbose_json",
		"temperature":     "0.00",
	}
	for key, value := range fields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
