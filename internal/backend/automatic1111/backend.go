package automatic1111

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/mapsafe"
)

const txt2imgPath = "/sdapi/v1/txt2img"

// Backend implements backend.Backend against an AUTOMATIC1111 web UI API.
type Backend struct {
	client *http.Client
	cfg    config.Automatic1111Config
	host   string
}

// TextToImageRequest is the txt2img request body.
type TextToImageRequest struct {
	OverrideSettings map[string]any `json:"override_settings,omitempty"`
	Prompt           string         `json:"prompt"`
	NegativePrompt   string         `json:"negative_prompt,omitempty"`
	SamplerName      string         `json:"sampler_name,omitempty"`
	Width            int            `json:"width"`
	Height           int            `json:"height"`
	Steps            int            `json:"steps"`
	CFGScale         float64        `json:"cfg_scale"`
	Seed             int            `json:"seed"`
	BatchSize        int            `json:"batch_size"`
	NIter            int            `json:"n_iter"`
}

type textToImageResponse struct {
	Images []string `json:"images"`
	Info   string   `json:"info"`
}

// NewBackend creates a backend for the API at cfg.Host.
func NewBackend(cfg config.Automatic1111Config) (*Backend, error) {
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		return nil, errors.New("automatic1111: missing host")
	}

	return &Backend{
		client: &http.Client{Timeout: 10 * time.Minute},
		cfg:    cfg,
		host:   host,
	}, nil
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderAutomatic1111
}

// Infer renders one image.
// Input: prompt text.
// Output: PNG bytes.
func (b *Backend) Infer(ctx context.Context, req *backend.Request) (*backend.Response, error) {
	prompt, err := io.ReadAll(req.Input)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if len(bytes.TrimSpace(prompt)) == 0 {
		return nil, backend.ErrEmptyInput
	}

	body := b.buildRequest(req, string(prompt))

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+txt2imgPath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json; charset=UTF-8")

	start := time.Now()

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("request failed with status code %d: %s", resp.StatusCode, msg)
	}

	var out textToImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Images) == 0 {
		return nil, backend.ErrEmptyOutput
	}

	img, err := base64.StdEncoding.DecodeString(out.Images[0])
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return &backend.Response{
		Output: bytes.NewReader(img),
		Metadata: &backend.ResponseMetadata{
			Provider:        b.Provider(),
			Model:           req.ModelPath,
			Timestamp:       time.Now(),
			DurationSeconds: time.Since(start).Seconds(),
			OutputSizeBytes: int64(len(img)),
			BackendSpecific: map[string]any{
				"info": out.Info,
			},
		},
	}, nil
}

func (b *Backend) buildRequest(req *backend.Request, prompt string) *TextToImageRequest {
	p := req.Parameters

	cfgScale := b.cfg.CFGScale
	if cfgScale == 0 {
		cfgScale = 1.0
	}

	body := &TextToImageRequest{
		Prompt:      prompt,
		SamplerName: b.cfg.Sampler,
		Width:       mapsafe.Get(p, backend.ParamWidth, 512),
		Height:      mapsafe.Get(p, backend.ParamHeight, 512),
		Steps:       mapsafe.Get(p, backend.ParamSteps, 20),
		CFGScale:    cfgScale,
		Seed:        -1,
		BatchSize:   1,
		NIter:       1,
	}

	if req.ModelPath != "" {
		body.OverrideSettings = map[string]any{"sd_model_checkpoint": req.ModelPath}
	}

	return body
}

// Close cleans up resources. The web UI is managed outside this process.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
