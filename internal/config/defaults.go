package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/ekisa-team/stickerforge/internal/envvar"
)

const (
	// DefaultOutputDir is the artifact directory, relative to the working directory.
	DefaultOutputDir = "generated_stickers"

	defaultHTTPPort = 8000
	defaultGRPCPort = 9000
)

// DefaultConfigPath returns the default path for the stickerforge config directory.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "stickerforge", "config")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "stickerforge")
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "stickerforge")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "stickerforge")
		}
		return filepath.Join(home, ".config", "stickerforge")
	}
}

// DefaultModelsPath returns the default path for the stickerforge models directory.
func DefaultModelsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "stickerforge", "models")
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(home, "AppData", "Local", "stickerforge", "models")
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "stickerforge", "models")
	default: // Linux, BSD, etc.
		if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
			return filepath.Join(xdg, "stickerforge", "models")
		}
		return filepath.Join(home, ".cache", "stickerforge", "models")
	}
}

// DefaultHTTPPort returns the HTTP port from STICKERFORGE_SERVER_HTTP_PORT or 8000.
func DefaultHTTPPort() int {
	return portFromEnv(envvar.StickerforgeServerHTTPPort, defaultHTTPPort)
}

// DefaultGRPCPort returns the gRPC port from STICKERFORGE_SERVER_GRPC_PORT or 9000.
func DefaultGRPCPort() int {
	return portFromEnv(envvar.StickerforgeServerGRPCPort, defaultGRPCPort)
}

func portFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return fallback
	}

	return port
}
