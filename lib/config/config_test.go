package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "dynamodb", cfg.Profile.Store)
	assert.Equal(t, "profile", cfg.Profile.TableName)
	assert.Equal(t, time.Second, cfg.RateLimit.Duration)
	assert.Equal(t, 2, cfg.RateLimit.PointsPerPeriod)
	assert.Equal(t, "/lambdakit", cfg.SecretPath)
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_DURATION", "5s")
	t.Setenv("RATE_LIMIT_POINTS_PER_SECOND", "10")
	t.Setenv("RESOURCE_PREFIX", "acme-prod")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RateLimit.Duration)
	assert.Equal(t, 10, cfg.RateLimit.PointsPerPeriod)
	assert.Equal(t, "acme-prod", cfg.ResourcePrefix)
}

func Test_Load_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("PROFILE_STORE", "postgres")

	_, err := Load()

	assert.ErrorContains(t, err, "PROFILE_POSTGRES_DSN")
}

func Test_Validate_UnknownStore(t *testing.T) {
	cfg := &Config{
		Profile:   ProfileConfig{Store: "mongo"},
		RateLimit: RateLimitConfig{Duration: time.Second, PointsPerPeriod: 2},
	}

	assert.ErrorContains(t, cfg.Validate(), "unknown PROFILE_STORE")
}
