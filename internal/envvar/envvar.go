package envvar

const (
	// StickerforgeEnv is the environment variable used to determine the environment
	StickerforgeEnv = "STICKERFORGE_ENV"

	// StickerforgeServerHTTPPort is the environment variable used to determine the HTTP port
	StickerforgeServerHTTPPort = "STICKERFORGE_SERVER_HTTP_PORT"

	// StickerforgeServerGRPCPort is the environment variable used to determine the gRPC port
	StickerforgeServerGRPCPort = "STICKERFORGE_SERVER_GRPC_PORT"

	// StickerforgeModelsPath overrides storage.models_dir from the config file
	StickerforgeModelsPath = "STICKERFORGE_MODELS_PATH"

	// StickerforgeOutputDir overrides storage.output_dir from the config file
	StickerforgeOutputDir = "STICKERFORGE_OUTPUT_DIR"

	// StickerforgeLogLevel sets the minimum slog level (debug, info, warn, error)
	StickerforgeLogLevel = "STICKERFORGE_LOG_LEVEL"
)
