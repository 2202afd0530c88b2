package config

import (
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.yaml.in/yaml/v3"
)

// LoadAndValidate loads the YAML config at path, validates it against the JSON
// schema at schemaPath and applies defaults.
func LoadAndValidate(path, schemaPath string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read config: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: invalid YAML: %w", err)
	}

	schema, err := jsonschema.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("config: failed to compile schema: %w", err)
	}

	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal into Config struct: %w", err)
	}

	if err := cfg.checkAssignments(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// checkAssignments verifies cross references the schema cannot express.
func (c *Config) checkAssignments() error {
	assignments := []struct {
		want ModelType
		ids  []string
	}{
		{ModelTypeImage, c.Services.Image.Models},
		{ModelTypeSTT, c.Services.STT.Models},
	}

	for _, a := range assignments {
		for _, id := range a.ids {
			m, ok := c.Models[id]
			if !ok {
				return fmt.Errorf("config: service %s references unknown model %q", a.want, id)
			}
			if m.Type != a.want {
				return fmt.Errorf("config: model %q has type %s, want %s", id, m.Type, a.want)
			}
		}
	}

	return nil
}
