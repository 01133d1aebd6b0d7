// Package config loads service configuration from an optional YAML file with
// PROPTOKEN_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "PROPTOKEN"

// Activity sink kinds.
const (
	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkNATS  = "nats"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Activity  ActivityConfig  `mapstructure:"activity"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds submitter token settings. AdminToken enables the
// operator activity routes when set.
type AuthConfig struct {
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	Issuer        string `mapstructure:"issuer"`
	AdminToken    string `mapstructure:"admin_token"`
}

// DatabaseConfig selects Postgres when URL is set, in-memory stores otherwise.
type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	ConnMaxLife  time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig selects the Redis lock and cache when URL is set.
type RedisConfig struct {
	URL         string        `mapstructure:"url"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type OracleConfig struct {
	Timeout               time.Duration `mapstructure:"timeout"`
	RegistryCacheTTL      time.Duration `mapstructure:"registry_cache_ttl"`
	SatelliteConfidence   float64       `mapstructure:"satellite_confidence"`
	RegistryConfidence    float64       `mapstructure:"registry_confidence"`
	ActivityConfidence    float64       `mapstructure:"activity_confidence"`
	SimulatedProbeLatency time.Duration `mapstructure:"simulated_probe_latency"`
}

type AnalysisConfig struct {
	URL             string        `mapstructure:"url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures int           `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type PipelineConfig struct {
	RunTimeout time.Duration `mapstructure:"run_timeout"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// RateLimitConfig caps mutating submission requests per submitter. Zero
// Submissions disables the limit.
type RateLimitConfig struct {
	Submissions int           `mapstructure:"submissions"`
	Window      time.Duration `mapstructure:"window"`
}

type ActivityConfig struct {
	Capacity int    `mapstructure:"capacity"`
	Sink     string `mapstructure:"sink"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	Partitions int32    `mapstructure:"partitions"`
}

type NATSConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_header_timeout", "5s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("auth.jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("auth.issuer", "proptoken")
	v.SetDefault("auth.admin_token", "")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("oracle.timeout", "5s")
	v.SetDefault("oracle.registry_cache_ttl", "5m")
	v.SetDefault("oracle.satellite_confidence", 0.92)
	v.SetDefault("oracle.registry_confidence", 0.88)
	v.SetDefault("oracle.activity_confidence", 0.78)
	v.SetDefault("oracle.simulated_probe_latency", "0s")
	v.SetDefault("analysis.url", "http://localhost:8000")
	v.SetDefault("analysis.timeout", "10s")
	v.SetDefault("analysis.breaker_failures", 5)
	v.SetDefault("analysis.breaker_cooldown", "30s")
	v.SetDefault("pipeline.run_timeout", "2m")
	v.SetDefault("pipeline.lock_ttl", "5m")
	v.SetDefault("ratelimit.submissions", 30)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("activity.capacity", 1000)
	v.SetDefault("activity.sink", SinkNone)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "proptoken.activity")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.subject_prefix", "proptoken.activity")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads configPath when given, otherwise ./config.yaml if present, then
// applies environment overrides (PROPTOKEN_PIPELINE_RUN_TIMEOUT and so on).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/proptoken")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("auth.jwt_signing_key is required"))
	}
	if c.Pipeline.RunTimeout <= 0 {
		errs = append(errs, errors.New("pipeline.run_timeout must be positive"))
	}
	// A lock that expires mid-run would let a second run start.
	if c.Pipeline.LockTTL <= c.Pipeline.RunTimeout {
		errs = append(errs, fmt.Errorf("pipeline.lock_ttl (%s) must exceed pipeline.run_timeout (%s)", c.Pipeline.LockTTL, c.Pipeline.RunTimeout))
	}
	if c.Oracle.Timeout <= 0 || c.Analysis.Timeout <= 0 {
		errs = append(errs, errors.New("oracle.timeout and analysis.timeout must be positive"))
	}
	for name, conf := range map[string]float64{
		"oracle.satellite_confidence": c.Oracle.SatelliteConfidence,
		"oracle.registry_confidence":  c.Oracle.RegistryConfidence,
		"oracle.activity_confidence":  c.Oracle.ActivityConfidence,
	} {
		if conf < 0 || conf > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1]", name))
		}
	}
	if c.RateLimit.Submissions < 0 || (c.RateLimit.Submissions > 0 && c.RateLimit.Window <= 0) {
		errs = append(errs, errors.New("ratelimit.submissions must be non-negative with a positive ratelimit.window"))
	}
	if c.Activity.Capacity <= 0 {
		errs = append(errs, errors.New("activity.capacity must be positive"))
	}
	switch c.Activity.Sink {
	case SinkNone:
	case SinkKafka:
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = append(errs, errors.New("kafka.brokers and kafka.topic are required for the kafka sink"))
		}
	case SinkNATS:
		if c.NATS.URL == "" {
			errs = append(errs, errors.New("nats.url is required for the nats sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("activity.sink must be one of none, kafka, nats; got %q", c.Activity.Sink))
	}
	return errors.Join(errs...)
}
