package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed sources.yaml
var defaultSources []byte

// Load builds a Config by layering defaults, the embedded source
// registry, an optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. embedded source registry (sources.yaml)
//  3. file (YAML) at path, or at NHANES_CONFIG when path is empty
//  4. env (prefix NHANES_)
func Load(ctx context.Context, path string) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// The embedded registry supplies the lab and demo file lists.
	if err := k.Load(rawbytes.Provider(defaultSources), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: embedded sources: %w", ErrLoadConfig, err)
	}

	// Load from file if provided
	if path == "" {
		path = os.Getenv("NHANES_CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// Environment variables: NHANES_OUTPUT_DIR, NHANES_WORKER_COUNT, ...
	// Map env keys like NHANES_WORKER_COUNT -> worker_count (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("NHANES_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "nhanes_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: environment: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
