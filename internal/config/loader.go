package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentcore.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTCORE_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTCORE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AGENTCORE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AGENTCORE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AGENTCORE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AGENTCORE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AGENTCORE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Completion.URL, "AGENTCORE_COMPLETION_URL")
	setString(&cfg.Completion.MasterKey, "AGENTCORE_COMPLETION_KEY")
	setDuration(&cfg.Completion.Timeout, "AGENTCORE_COMPLETION_TIMEOUT")
	setString(&cfg.Logging.Level, "AGENTCORE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTCORE_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AGENTCORE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTCORE_BREAKER_TIMEOUT")
	setDuration(&cfg.Scheduler.PollInterval, "AGENTCORE_POLL_INTERVAL")
	setInt(&cfg.Workers.MaxConcurrent, "AGENTCORE_WORKERS_MAX")
	setFloat64(&cfg.Workers.TenantQuota, "AGENTCORE_WORKERS_TENANT_QUOTA")
	setDuration(&cfg.Workers.TaskTimeout, "AGENTCORE_TASK_TIMEOUT")
	setInt(&cfg.Workers.MaxAttempts, "AGENTCORE_MAX_ATTEMPTS")
	setDuration(&cfg.Workers.RetryBaseDelay, "AGENTCORE_RETRY_BASE_DELAY")
	setDuration(&cfg.Approval.TTL, "AGENTCORE_APPROVAL_TTL")
	setFloat64(&cfg.Approval.EscalateAfter, "AGENTCORE_APPROVAL_ESCALATE_AFTER")
	setDuration(&cfg.Approval.SweepInterval, "AGENTCORE_APPROVAL_SWEEP_INTERVAL")
	setString(&cfg.Notifier.Provider, "AGENTCORE_NOTIFIER")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setInt64(&cfg.DecisionCache.MaxSizeMB, "AGENTCORE_DECISION_CACHE_SIZE_MB")
	setDuration(&cfg.DecisionCache.TTL, "AGENTCORE_DECISION_CACHE_TTL")
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if cfg.Workers.MaxConcurrent < 1 {
		return fmt.Errorf("workers.max_concurrent must be >= 1, got %d", cfg.Workers.MaxConcurrent)
	}
	if cfg.Workers.TenantQuota <= 0 || cfg.Workers.TenantQuota > 1 {
		return fmt.Errorf("workers.tenant_quota must be in (0, 1], got %v", cfg.Workers.TenantQuota)
	}
	if cfg.Workers.MaxAttempts < 1 {
		return fmt.Errorf("workers.max_attempts must be >= 1, got %d", cfg.Workers.MaxAttempts)
	}
	if cfg.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("scheduler.poll_interval must be positive, got %v", cfg.Scheduler.PollInterval)
	}
	if cfg.Approval.TTL <= 0 {
		return fmt.Errorf("approval.ttl must be positive, got %v", cfg.Approval.TTL)
	}
	if cfg.Approval.EscalateAfter < 0 || cfg.Approval.EscalateAfter >= 1 {
		return fmt.Errorf("approval.escalate_after must be in [0, 1), got %v", cfg.Approval.EscalateAfter)
	}
	return nil
}

// --- env setter helpers ---

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
