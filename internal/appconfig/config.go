package appconfig

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API           APIConfig           `yaml:"api"`
	Aggregator    AggregatorConfig    `yaml:"aggregator"`
	Observability ObservabilityConfig `yaml:"observability"`
	Redis         RedisConfig         `yaml:"redis"`
	Postgres      PostgresConfig      `yaml:"postgres"`
}

type ObservabilityConfig struct {
	ServiceName string `yaml:"service_name"`
	InstanceID  string `yaml:"instance_id"`
}

type APIConfig struct {
	Port               int          `yaml:"port"`
	GinMode            string       `yaml:"gin_mode"`
	DatabaseURL        string       `yaml:"database_url"`
	RedisURL           string       `yaml:"redis_url"`
	Auth               AuthConfig   `yaml:"auth"`
	Limits             APILimits    `yaml:"limits"`
	Metrics            Metrics      `yaml:"metrics"`
	ShutdownTimeoutSec int          `yaml:"shutdown_timeout_sec"`
	Stream             StreamConfig `yaml:"stream"`
	Outbox             OutboxConfig `yaml:"outbox"`
	CORSAllowedOrigins []string     `yaml:"cors_allowed_origins"`
	RankingCacheTTLSec int          `yaml:"ranking_cache_ttl_sec"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type APILimits struct {
	SubmitBodyMaxBytes int64 `yaml:"submit_body_max_bytes"`
}

type OutboxConfig struct {
	DispatchIntervalMs int `yaml:"dispatch_interval_ms"`
	DispatchBatchSize  int `yaml:"dispatch_batch_size"`
	RetryBaseMs        int `yaml:"retry_base_ms"`
	RetryMaxMs         int `yaml:"retry_max_ms"`
}

type AggregatorConfig struct {
	DatabaseURL      string      `yaml:"database_url"`
	Timezone         string      `yaml:"timezone"`
	RunAtHour        *int        `yaml:"run_at_hour"`
	RunAtMinute      *int        `yaml:"run_at_minute"`
	QuestionsPerDay  int         `yaml:"questions_per_day"`
	Retry            RetryConfig `yaml:"retry"`
	Metrics          Metrics     `yaml:"metrics"`
	MetricsPort      int         `yaml:"metrics_port"`
	RunOnceOnStartup *bool       `yaml:"run_once_on_startup"`
}

type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
	BackoffMaxMs  int `yaml:"backoff_max_ms"`
}

type Metrics struct {
	ServiceName string `yaml:"service_name"`
	InstanceID  string `yaml:"instance_id"`
}

type StreamConfig struct {
	StreamKey    string `yaml:"stream_key"`
	StreamMaxLen int64  `yaml:"stream_maxlen"`
}

type RedisConfig struct {
	PoolSize       int `yaml:"pool_size"`
	MinIdleConns   int `yaml:"min_idle_conns"`
	DialTimeoutMs  int `yaml:"dial_timeout_ms"`
	ReadTimeoutMs  int `yaml:"read_timeout_ms"`
	WriteTimeoutMs int `yaml:"write_timeout_ms"`
}

type PostgresConfig struct {
	MaxConns           int `yaml:"max_conns"`
	MinConns           int `yaml:"min_conns"`
	MaxConnLifetimeMin int `yaml:"max_conn_lifetime_min"`
	MaxConnIdleMin     int `yaml:"max_conn_idle_min"`
}

func ResolveConfigPath() string {
	if v := os.Getenv("APP_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	if _, err := os.Stat("/app/config.yaml"); err == nil {
		return "/app/config.yaml"
	}
	return ""
}

func Load() (*Config, string, error) {
	path := ResolveConfigPath()
	if path == "" {
		return &Config{}, "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

func SetEnvIfEmpty(key, value string) {
	if value == "" {
		return
	}
	if _, ok := os.LookupEnv(key); ok {
		return
	}
	_ = os.Setenv(key, value)
}

func SetEnvIfEmptyInt(key string, value int) {
	if value <= 0 {
		return
	}
	SetEnvIfEmpty(key, strconv.Itoa(value))
}

// SetEnvIfEmptyIntPtr is for settings where zero is a valid value, so the
// pointer distinguishes "set to 0" from "absent".
func SetEnvIfEmptyIntPtr(key string, value *int) {
	if value == nil || *value < 0 {
		return
	}
	SetEnvIfEmpty(key, strconv.Itoa(*value))
}

func SetEnvIfEmptyInt64(key string, value int64) {
	if value <= 0 {
		return
	}
	SetEnvIfEmpty(key, strconv.FormatInt(value, 10))
}

func SetEnvIfEmptyBool(key string, value *bool) {
	if value == nil {
		return
	}
	SetEnvIfEmpty(key, strconv.FormatBool(*value))
}

func SetEnvIfEmptySlice(key string, values []string) {
	if len(values) == 0 {
		return
	}
	SetEnvIfEmpty(key, strings.Join(values, ","))
}
