// Package config loads HORNET's YAML configuration tree: server
// ports and timeouts, detection-squad membership and thresholds,
// periodic-job schedules, retention windows, and registered
// playbooks. Connection secrets (database, Redis) stay env-only,
// matching the teacher's split between a YAML config tree and
// env-sourced connection parameters.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/jobs"
	"github.com/hornet-sec/hornet/pkg/storage"
)

// ServerConfig holds the HTTP/WebSocket server's own parameters.
type ServerConfig struct {
	HTTPPort       string        `yaml:"http_port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// EdgeSecret is the HMAC key shared with edge agents for
	// SignedAction signing/verification (spec §4.9).
	EdgeSecret string `yaml:"edge_secret"`
}

// DetectionConfig tunes the dispatcher's fan-out and the thresholds
// seeded into the runtime ThresholdStore at startup.
type DetectionConfig struct {
	Squad            []string      `yaml:"squad"`
	PerAgentDeadline time.Duration `yaml:"per_agent_deadline"`
	Budget           int           `yaml:"budget"`
	Thresholds       Thresholds    `yaml:"thresholds"`
}

// WebhookConfig describes the default outbound webhook connector
// wired into the executor's ConnectorRegistry at startup.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// Playbook is a named, ordered agent sequence an operator can point an
// incident class at; listed verbatim by GET /config/playbooks. HORNET
// ships no playbook execution engine of its own (agents are invoked by
// phase, not by playbook) — this is metadata surfaced for operator
// tooling and documentation, grounded on the teacher's AlertType/chain
// registry concept generalized from "alert type -> chain" to "incident
// class -> agent sequence".
type Playbook struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	AgentSequence []string `yaml:"agent_sequence"`
}

// Config is the root configuration tree.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Detection DetectionConfig `yaml:"detection"`
	Jobs      jobs.Config     `yaml:"jobs"`
	Retention RetentionConfig `yaml:"retention"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Playbooks []Playbook      `yaml:"playbooks"`
	Defaults  Defaults        `yaml:"defaults"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Database and Redis are never read from YAML: connection secrets
	// come from the environment only, the same split the teacher's
	// database.LoadConfigFromEnv() enforces.
	Database storage.Config  `yaml:"-"`
	Redis    eventbus.Config `yaml:"-"`
}

// DefaultConfig returns every built-in default, the base mergo.Merge
// fills a loaded document's zero-valued fields from.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			HTTPPort:       "8080",
			RequestTimeout: 30 * time.Second,
		},
		Detection: DetectionConfig{
			Squad:            nil, // nil selects agent.DefaultDetectionSquad
			PerAgentDeadline: 10 * time.Second,
			Budget:           50000,
			Thresholds:       DefaultThresholds(),
		},
		Jobs:      jobs.DefaultConfig(),
		Retention: DefaultRetentionConfig(),
	}
}

// EnvDir is the environment variable pointing at the configuration
// directory, mirroring the teacher's CONFIG_DIR.
const EnvDir = "HORNET_CONFIG_DIR"

// DefaultConfigDir is used when EnvDir is unset.
const DefaultConfigDir = "./deploy/config"

// ConfigFileName is the single YAML document this package loads, found
// under the configuration directory.
const ConfigFileName = "hornet.yaml"

// Load reads ConfigFileName from dir (falling back to built-in
// defaults entirely if the file does not exist — a fresh checkout with
// no config tree still starts up), expands environment variables,
// merges the result over DefaultConfig(), loads the env-only
// Database/Redis sections, then validates the whole.
func Load(dir string) (*Config, error) {
	if dir == "" {
		dir = DefaultConfigDir
	}
	cfg := DefaultConfig()

	path := filepath.Join(dir, ConfigFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		data = ExpandEnv(data)
		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
		}
		if err := mergo.Merge(&loaded, cfg); err != nil {
			return nil, NewLoadError(path, err)
		}
		cfg = loaded
	case os.IsNotExist(err):
		// No config tree: run entirely on built-in defaults and env vars.
	default:
		return nil, NewLoadError(path, err)
	}

	dbCfg, err := storage.LoadConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("config: database: %w", err)
	}
	cfg.Database = dbCfg
	cfg.Redis = loadRedisConfigFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, NewValidationError("config", path, "", err)
	}
	return &cfg, nil
}

// Validate checks cross-cutting invariants the YAML loader alone
// can't: threshold bounds and a non-empty HTTP port.
func (c Config) Validate() error {
	if c.Server.HTTPPort == "" {
		return fmt.Errorf("%w: server.http_port is required", ErrMissingRequiredField)
	}
	if err := c.Detection.Thresholds.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}

func loadRedisConfigFromEnv() eventbus.Config {
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		fmt.Sscanf(v, "%d", &db)
	}
	return eventbus.Config{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
