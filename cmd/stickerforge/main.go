package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ekisa-team/stickerforge/internal/artifact"
	"github.com/ekisa-team/stickerforge/internal/backend"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/env"
	"github.com/ekisa-team/stickerforge/internal/logger"
	"github.com/ekisa-team/stickerforge/internal/model"
	"github.com/ekisa-team/stickerforge/internal/pipeline"
	grpcserver "github.com/ekisa-team/stickerforge/internal/server/grpc"
	httpserver "github.com/ekisa-team/stickerforge/internal/server/http"
	"github.com/ekisa-team/stickerforge/internal/service"
)

func main() {
	var (
		flagHTTPPort   = flag.Int("http-port", config.DefaultHTTPPort(), "HTTP port to listen on")
		flagGRPCPort   = flag.Int("grpc-port", config.DefaultGRPCPort(), "GRPC port to listen on")
		flagConfigPath = flag.String("config", path.Join(config.DefaultConfigPath(), "config.yaml"), "Path to config file")
		flagSchemaPath = flag.String("schema", path.Join(config.DefaultConfigPath(), "stickerforge.v1.schema.json"), "Path to schema file")
	)
	flag.Parse()

	environment := env.FromEnv()

	slog.SetDefault(
		logger.New(environment,
			logger.WithLogToFile(environment.IsProduction()),
			logger.WithLogFile("logs/stickerforge.log"),
			logger.WithLevel(logger.LevelFromEnv()),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *flagConfigPath, *flagSchemaPath, *flagHTTPPort, *flagGRPCPort); err != nil {
		slog.Error("stickerforge stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, schemaPath string, httpPort, grpcPort int) error {
	var orchestrator atomic.Pointer[pipeline.Orchestrator]

	watcher, err := config.NewWatcher(configPath, schemaPath, func(cfg *config.Config, err error) {
		if err != nil {
			slog.Error("Failed to reload config", "error", err)
			return
		}

		if o := orchestrator.Load(); o != nil {
			o.UpdateSettings(pipeline.SettingsFromConfig(cfg.Sticker))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	defer watcher.Close()

	cfg := watcher.Snapshot()
	slog.Info("Config loaded successfully", "config", configPath, "schema", schemaPath, "profile", cfg.Profile)

	store, err := artifact.NewStore(cfg.ResolveOutputDir())
	if err != nil {
		return fmt.Errorf("failed to prepare output directory: %w", err)
	}

	grpcSrv := grpcserver.NewServer(fmt.Sprintf(":%d", grpcPort))
	errCh := make(chan error, 2)
	go func() { errCh <- grpcSrv.ListenAndServe() }()
	defer grpcSrv.Stop()

	manager := model.NewManager()
	if err := manager.LoadModelsFromConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to load models from config: %w", err)
	}
	for _, m := range manager.Registry().List() {
		slog.Debug("Model registered", "model_id", m.ID, "status", m.Status, "remote", m.Remote())
	}

	accel := backend.SelectAccelerator(cfg.Device, backend.DetectDevice)

	servers := backend.NewServerManager()
	defer servers.StopAll()

	backends, err := buildBackends(cfg, accel, servers)
	if err != nil {
		return fmt.Errorf("failed to build backends: %w", err)
	}
	defer func() {
		if err := backends.Close(); err != nil {
			slog.Warn("Failed to close backends", "error", err)
		}
	}()

	engine := service.NewEngine(backends, manager.Registry(), cfg.Services.Image.Primary(), cfg.Services.STT.Primary())

	params := cfg.Profile.Params()
	orchestrator.Store(pipeline.New(engine, store, params, pipeline.SettingsFromConfig(watcher.Snapshot().Sticker)))

	httpSrv := httpserver.NewServer(fmt.Sprintf(":%d", httpPort), orchestrator.Load())
	go func() { errCh <- httpSrv.ListenAndServe() }()

	grpcSrv.SetServing(true)
	slog.Info("stickerforge ready",
		"http_port", httpPort,
		"grpc_port", grpcPort,
		"output_dir", store.Dir(),
		"size", params.Size,
		"steps", params.Steps,
		"device", accel.Device,
	)

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case serveErr = <-errCh:
	}

	grpcSrv.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Warn("HTTP shutdown failed", "error", err)
	}

	return serveErr
}
