package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the environment configuration shared by every Lambda.
// Secrets are not part of it; they come from SSM through data.SSMDao.
type Config struct {
	Region   string `env:"REGION"    env-default:"us-east-2"`
	IsLocal  bool   `env:"IS_LOCAL"  env-default:"false"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	// LocalEndpoint is the LocalStack endpoint used when IsLocal is set.
	LocalEndpoint string `env:"LOCAL_ENDPOINT" env-default:"http://docker.for.mac.host.internal:4566"`

	SecretPath string `env:"SECRET_PATH" env-default:"/lambdakit"`

	Profile   ProfileConfig
	Buckets   BucketConfig
	RateLimit RateLimitConfig

	ResourcePrefix    string `env:"RESOURCE_PREFIX"`
	SNSTopicARNPrefix string `env:"SNS_TOPIC_ARN_PREFIX"`
	APIName           string `env:"API_NAME"`
}

// ProfileConfig selects the key-value profile store.
type ProfileConfig struct {
	Store     string `env:"PROFILE_STORE"      env-default:"dynamodb"`
	TableName string `env:"PROFILE_TABLE_NAME" env-default:"profile"`
	// PostgresDSN is only read when Store is "postgres".
	PostgresDSN string `env:"PROFILE_POSTGRES_DSN"`
}

// BucketConfig names the S3 buckets used for solutions and the cache.
type BucketConfig struct {
	Solution string `env:"S3_BUCKET_NAME_SOLUTION"`
	Cache    string `env:"S3_BUCKET_NAME_CACHE"`
}

// RateLimitConfig configures the limiter. A non-empty RedisAddr switches
// to the shared Redis limiter.
type RateLimitConfig struct {
	Duration        time.Duration `env:"RATE_LIMIT_DURATION"          env-default:"1s"`
	PointsPerPeriod int           `env:"RATE_LIMIT_POINTS_PER_SECOND" env-default:"2"`
	RedisAddr       string        `env:"RATE_LIMIT_REDIS_ADDR"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks values cleanenv cannot check on its own.
func (c *Config) Validate() error {
	switch c.Profile.Store {
	case "dynamodb":
	case "postgres":
		if c.Profile.PostgresDSN == "" {
			return fmt.Errorf("PROFILE_POSTGRES_DSN is required when PROFILE_STORE=postgres")
		}
	default:
		return fmt.Errorf("unknown PROFILE_STORE %q", c.Profile.Store)
	}
	if c.RateLimit.Duration <= 0 {
		return fmt.Errorf("RATE_LIMIT_DURATION must be positive")
	}
	if c.RateLimit.PointsPerPeriod <= 0 {
		return fmt.Errorf("RATE_LIMIT_POINTS_PER_SECOND must be positive")
	}
	return nil
}
