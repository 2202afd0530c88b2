package sdcpp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/mapsafe"
)

const (
	defaultTimeout  = 5 * time.Minute
	defaultSize     = 512
	defaultSteps    = 20
	defaultCFGScale = 1.0
)

// Backend implements backend.Backend for the stable-diffusion.cpp `sd` CLI.
type Backend struct {
	executor *backend.Executor
	cfg      config.StableDiffusionCPPConfig
	accel    backend.Accelerator
	tempDir  string
}

// NewBackend creates a new stable-diffusion.cpp backend.
func NewBackend(cfg config.StableDiffusionCPPConfig, accel backend.Accelerator) (*Backend, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	executor, err := backend.NewExecutor(cfg.BinPath, timeout)
	if err != nil {
		return nil, err
	}

	return NewBackendWithExecutor(executor, cfg, accel), nil
}

// NewBackendWithExecutor creates a backend around an existing executor.
func NewBackendWithExecutor(executor *backend.Executor, cfg config.StableDiffusionCPPConfig, accel backend.Accelerator) *Backend {
	return &Backend{
		executor: executor,
		cfg:      cfg,
		accel:    accel,
		tempDir:  os.TempDir(),
	}
}

// Provider returns the backend provider.
func (b *Backend) Provider() backend.BackendProvider {
	return backend.BackendProviderStableDiffusionCPP
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

	// sd writes its result to a file, read it back and drop it.
	out, err := os.CreateTemp(b.tempDir, "sd_*.png")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	outputFile := out.Name()
	out.Close()
	defer os.Remove(outputFile)

	args := b.buildArgs(req, string(prompt), outputFile)

	start := time.Now()
	stdout, stderr, err := b.executor.Execute(ctx, args, nil)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w\nstderr: %s", err, stderr)
	}

	img, err := os.ReadFile(outputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	if len(img) == 0 {
		return nil, backend.ErrEmptyOutput
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
				"stdout":    string(stdout),
				"args":      strings.Join(args, " "),
				"device":    b.accel.Device,
				"precision": b.accel.Precision,
			},
		},
	}, nil
}

// buildArgs builds sd command-line arguments.
func (b *Backend) buildArgs(req *backend.Request, prompt, outputFile string) []string {
	p := req.Parameters

	cfgScale := b.cfg.CFGScale
	if cfgScale == 0 {
		cfgScale = defaultCFGScale
	}

	args := []string{
		"--model", req.ModelPath,
		"--prompt", b.withAdapters(prompt),
		"--output", outputFile,
		"--width", strconv.Itoa(mapsafe.Get(p, backend.ParamWidth, defaultSize)),
		"--height", strconv.Itoa(mapsafe.Get(p, backend.ParamHeight, defaultSize)),
		"--steps", strconv.Itoa(mapsafe.Get(p, backend.ParamSteps, defaultSteps)),
		"--cfg-scale", strconv.FormatFloat(cfgScale, 'f', 2, 64),
		"--seed", "-1",
		"--type", string(b.accel.Precision),
	}

	if b.cfg.Sampler != "" {
		args = append(args, "--sampling-method", b.cfg.Sampler)
	}

	if b.cfg.LoRADir != "" {
		args = append(args, "--lora-model-dir", b.cfg.LoRADir)
	}

	// Flash attention is only built into GPU builds of sd.
	if b.accel.Accelerated() {
		args = append(args, "--diffusion-fa")
	}

	return append(args, b.cfg.ExtraArgs...)
}

// withAdapters appends the LoRA tags sd uses to fuse adapters into the base
// weights for this sampling run.
func (b *Backend) withAdapters(prompt string) string {
	if b.cfg.LoRADir == "" || len(b.cfg.LoRAs) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	for _, l := range b.cfg.LoRAs {
		fmt.Fprintf(&sb, " <lora:%s:%s>", l.Name, strconv.FormatFloat(l.Weight, 'f', -1, 64))
	}
	return sb.String()
}

// Close cleans up resources. sd runs once per call and holds nothing.
func (b *Backend) Close() error {
	return nil
}
