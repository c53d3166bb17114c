package clients

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

// Settings carries what every AWS client constructor needs.
type Settings struct {
	Region        string
	IsLocal       bool
	LocalEndpoint string
}

// LoadAWSConfig loads the default credential chain for the region and
// points it at LocalStack when running locally.
func LoadAWSConfig(ctx context.Context, settings Settings, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
	opts := append([]func(*config.LoadOptions) error{config.WithRegion(settings.Region)}, optFns...)
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if settings.IsLocal {
		cfg.BaseEndpoint = aws.String(settings.LocalEndpoint)
	}
	return cfg, nil
}

// mustLoad panics on configuration errors; constructors run from init().
func mustLoad(settings Settings, optFns ...func(*config.LoadOptions) error) aws.Config {
	cfg, err := LoadAWSConfig(context.Background(), settings, optFns...)
	if err != nil {
		panic(err)
	}
	return cfg
}

