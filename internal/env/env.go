package env

import (
	"os"
	"strings"

	"github.com/ekisa-team/stickerforge/internal/envvar"
)

// Environment is the deployment environment the process runs in.
type Environment string

const (
	// Development enables human-readable colored logs.
	Development Environment = "development"

	// Production switches logs to JSON.
	Production Environment = "production"

	// Test is used by test binaries.
	Test Environment = "test"
)

// FromEnv reads the environment from STICKERFORGE_ENV, defaulting to development.
func FromEnv() Environment {
	return Parse(os.Getenv(envvar.StickerforgeEnv))
}

// Parse converts a raw string into an Environment. Unknown values fall back to development.
func Parse(raw string) Environment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "prod", "production":
		return Production
	case "test":
		return Test
	default:
		return Development
	}
}

// IsProduction reports whether e is the production environment.
func (e Environment) IsProduction() bool {
	return e == Production
}

// String implements fmt.Stringer.
func (e Environment) String() string {
	return string(e)
}
