// Package config resolves the small set of knobs a running core needs:
// catalog locations, the selected Embedder realization, and the
// broadcaster's queue depth (spec.md §6.4). Grounded on the teacher's
// internal/config loader (os.ExpandEnv over a YAML file, environment
// variables taking precedence over file values), narrowed from the
// teacher's channel/gateway/LLM configuration surface to the handful of
// settings the catalog, embedder, and broadcaster actually consume.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// EmbedderKind selects which Embedder realization a running core wires up.
type EmbedderKind string

const (
	EmbedderLocal  EmbedderKind = "local"
	EmbedderOpenAI EmbedderKind = "openai"
	EmbedderOllama EmbedderKind = "ollama"
	EmbedderOff    EmbedderKind = "off"
)

// Config is the resolved configuration for one core process.
type Config struct {
	// GlobalHome is the directory containing the global aggregate catalog
	// (<GlobalHome>/global.db), overridden by OMNI_CORTEX_HOME (spec.md §6.4).
	GlobalHome string `yaml:"global_home"`

	// Embedder selects the Embedder realization; OMNI_CORTEX_EMBED=off
	// forces the no-vector path regardless of the file value (spec.md §6.4).
	Embedder EmbedderKind `yaml:"embedder"`

	// EmbedderModel names the model for the openai/ollama realizations
	// (e.g. "text-embedding-3-small", "nomic-embed-text").
	EmbedderModel string `yaml:"embedder_model"`

	// EmbedderBaseURL overrides the realization's default endpoint (OpenAI's
	// API base or Ollama's server address).
	EmbedderBaseURL string `yaml:"embedder_base_url"`

	// BroadcastQueueDepth bounds each subscriber's pending-event queue
	// (spec.md §5; 0 selects broadcast.DefaultQueueDepth).
	BroadcastQueueDepth int `yaml:"broadcast_queue_depth"`
}

// Default returns the zero-configuration defaults: a user-home global
// catalog directory and the local embedder.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		GlobalHome: filepath.Join(home, ".omni-cortex"),
		Embedder:   EmbedderLocal,
	}
}

// Load reads path (if non-empty and present) as a YAML config file merged
// over Default(), expands ${VAR} references against the process
// environment the way the teacher's loader does, then applies the
// OMNI_CORTEX_HOME / OMNI_CORTEX_EMBED environment overrides last so they
// always win over the file (spec.md §6.4).
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.BroadcastQueueDepth < 0 {
		return Config{}, fmt.Errorf("broadcast_queue_depth must not be negative, got %d", cfg.BroadcastQueueDepth)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if home := os.Getenv("OMNI_CORTEX_HOME"); home != "" {
		cfg.GlobalHome = home
	}
	switch os.Getenv("OMNI_CORTEX_EMBED") {
	case "off":
		cfg.Embedder = EmbedderOff
	case "local":
		cfg.Embedder = EmbedderLocal
	}
	if depth := os.Getenv("OMNI_CORTEX_BROADCAST_QUEUE_DEPTH"); depth != "" {
		if n, err := strconv.Atoi(depth); err == nil {
			cfg.BroadcastQueueDepth = n
		}
	}
}

// GlobalCatalogPath is the path to the global aggregate catalog (spec.md §4.1).
func (c Config) GlobalCatalogPath() string {
	return filepath.Join(c.GlobalHome, "global.db")
}

// ProjectCatalogPath is the path to a project's catalog (spec.md §4.1).
func ProjectCatalogPath(projectPath string) string {
	return filepath.Join(projectPath, ".omni-cortex", "cortex.db")
}

// ProjectStateDir is the directory holding a project's session state file
// and catalog (spec.md §4.1, §4.6).
func ProjectStateDir(projectPath string) string {
	return filepath.Join(projectPath, ".omni-cortex")
}
