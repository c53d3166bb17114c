package main

import (
	"context"

	"lambdakit/lib/clients"
	"lambdakit/lib/config"
	"lambdakit/lib/messaging"
	"lambdakit/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var (
	logger     *logrus.Logger
	dispatcher *messaging.Dispatcher
)

// LambdaHandler republishes action notifications queued by S3 to the
// SNS topic of each action. Failed messages are returned for retry.
func LambdaHandler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	logger.WithFields(logrus.Fields{
		"operation": "LambdaHandler",
		"records":   len(event.Records),
	}).Info("Action notifications received")

	response := dispatcher.HandleActionSQS(ctx, event)
	if len(response.BatchItemFailures) > 0 {
		logger.WithFields(logrus.Fields{
			"operation": "LambdaHandler",
			"failed":    len(response.BatchItemFailures),
		}).Warn("Some action notifications were not published")
	}
	return response, nil
}

func main() {
	lambda.Start(LambdaHandler)
}

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error while loading configuration")
	}

	logger = util.NewLogger(cfg.LogLevel, cfg.IsLocal)
	if cfg.SNSTopicARNPrefix == "" {
		logger.WithField("operation", "init").Fatal("SNS_TOPIC_ARN_PREFIX is not set")
	}

	awsSettings := clients.Settings{Region: cfg.Region, IsLocal: cfg.IsLocal, LocalEndpoint: cfg.LocalEndpoint}
	dispatcher = &messaging.Dispatcher{
		S3:                clients.NewS3Client(awsSettings),
		SNS:               clients.NewSNSClient(awsSettings),
		ResourcePrefix:    cfg.ResourcePrefix,
		SNSTopicARNPrefix: cfg.SNSTopicARNPrefix,
		Logger:            logger,
	}

	logger.WithField("operation", "init").Info("Action Dispatcher Lambda initialization completed successfully")
}
