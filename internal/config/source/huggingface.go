package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ekisa-team/stickerforge/internal/config"
)

const (
	defaultRetryDelay = 2 * time.Second
	defaultMaxRetries = 3
	defaultTimeout    = 10 * time.Minute
	markerFilename    = ".stickerforge-downloaded"
)

// RunFunc executes the hf CLI and returns its combined output.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// HuggingFaceDownloader downloads a model repository with the `hf` CLI.
type HuggingFaceDownloader struct {
	run        RunFunc
	bin        string
	retryDelay time.Duration
	maxRetries int
}

// NewHuggingFaceDownloader creates a downloader using the hf binary on PATH.
func NewHuggingFaceDownloader() *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		run:        execRun,
		bin:        "hf",
		retryDelay: defaultRetryDelay,
		maxRetries: defaultMaxRetries,
	}
}

// NewHuggingFaceDownloaderWithRunner creates a downloader with a custom runner.
func NewHuggingFaceDownloaderWithRunner(run RunFunc, retryDelay time.Duration) *HuggingFaceDownloader {
	return &HuggingFaceDownloader{
		run:        run,
		bin:        "hf",
		retryDelay: retryDelay,
		maxRetries: defaultMaxRetries,
	}
}

// Download downloads a Hugging Face repository into targetDir/<repo>.
// A marker file records repo and revision so unchanged models are skipped.
func (d *HuggingFaceDownloader) Download(ctx context.Context, modelConfig *config.ModelConfig, targetDir string) (string, bool, error) {
	src, err := modelConfig.GetSource()
	if err != nil {
		return "", false, fmt.Errorf("failed to get model source: %w", err)
	}

	hf, ok := src.(config.HuggingFaceSource)
	if !ok {
		return "", false, fmt.Errorf("invalid source type: %T", src)
	}

	repo := strings.TrimSpace(hf.Repo)
	if repo == "" || strings.Contains(repo, "..") {
		return "", false, fmt.Errorf("invalid repo name: %q", hf.Repo)
	}

	fullPath := filepath.Join(targetDir, repo)
	markerPath := filepath.Join(fullPath, markerFilename)
	marker := markerContent(repo, hf.Revision, hf.Include)

	if !hf.ForceDownload && !shouldRedownload(markerPath, marker) {
		slog.Info("Model already downloaded and up-to-date, skipping", "repo", repo, "path", fullPath)
		return fullPath, true, nil
	}

	if err := os.MkdirAll(fullPath, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create directory: %w", err)
	}

	args := buildArgs(hf, repo, fullPath)

	var lastErr error
	for attempt := range d.maxRetries {
		if attempt > 0 {
			slog.Info("Retrying download", "repo", repo, "attempt", attempt+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", false, fmt.Errorf("download canceled: %w", ctx.Err())
			case <-time.After(d.retryDelay):
			}
		} else {
			slog.Info("Downloading model", "repo", repo, "path", fullPath)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
		output, err := d.run(attemptCtx, d.bin, args...)
		attemptErr := attemptCtx.Err()
		cancel()

		if err == nil {
			if err := os.WriteFile(markerPath, []byte(marker), 0o644); err != nil {
				slog.Warn("Failed to write download marker", "path", markerPath, "error", err)
			}

			slog.Info("Model downloaded successfully", "repo", repo, "path", fullPath, "attempt", attempt+1)
			return fullPath, false, nil
		}

		lastErr = err
		slog.Error("Failed to download model", "repo", repo, "attempt", attempt+1, "error", err, "output", string(output))

		switch {
		case errors.Is(attemptErr, context.DeadlineExceeded):
			slog.Warn("Download timed out", "repo", repo, "attempt", attempt+1)
		case errors.Is(ctx.Err(), context.Canceled):
			return "", false, fmt.Errorf("download canceled: %w", err)
		}
	}

	return "", false, fmt.Errorf("download %s failed after %d attempts: %w", repo, d.maxRetries, lastErr)
}

func buildArgs(hf config.HuggingFaceSource, repo, dir string) []string {
	args := []string{"download", repo, "--local-dir", dir}

	if hf.Revision != "" {
		args = append(args, "--revision", hf.Revision)
	}
	if hf.RepoType != "" {
		args = append(args, "--repo-type", hf.RepoType)
	}
	for _, inc := range hf.Include {
		args = append(args, "--include", inc)
	}
	for _, exc := range hf.Exclude {
		args = append(args, "--exclude", exc)
	}
	if hf.ForceDownload {
		args = append(args, "--force-download")
	}
	if hf.Token != "" {
		args = append(args, "--token", hf.Token)
	}
	if hf.MaxWorkers > 0 {
		args = append(args, "--max-workers", strconv.Itoa(hf.MaxWorkers))
	}

	return args
}

// markerContent is compared against the marker file to detect config changes.
func markerContent(repo, revision string, include []string) string {
	return fmt.Sprintf("repo: %s\nrevision: %s\ninclude: %s\n", repo, revision, strings.Join(include, ","))
}

func shouldRedownload(markerPath, expected string) bool {
	content, err := os.ReadFile(markerPath)
	if err != nil {
		slog.Debug("Marker file missing or unreadable", "path", markerPath, "error", err)
		return true
	}

	if string(content) != expected {
		slog.Info("Model config changed (marker mismatch), will redownload", "marker_path", markerPath)
		return true
	}

	return false
}
