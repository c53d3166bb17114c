package main

import (
	"context"
	"strings"

	"lambdakit/lib/clients"
	"lambdakit/lib/config"
	"lambdakit/lib/constants"
	"lambdakit/lib/data"
	"lambdakit/lib/util"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/sirupsen/logrus"
)

var (
	logger         *logrus.Logger
	allowedOrigins []string
)

func handler(request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	requestOrigin := originOf(request.Headers)
	if requestOrigin == "" {
		logger.WithField("operation", "handler").Warn("origin is not present in the request headers")
		return events.APIGatewayProxyResponse{
			StatusCode: 500,
		}, nil
	}

	if isAllowed(requestOrigin, allowedOrigins) {
		return events.APIGatewayProxyResponse{
			StatusCode: 200,
			Headers: map[string]string{
				"Access-Control-Allow-Origin":      requestOrigin,
				"Access-Control-Allow-Headers":     "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,apiToken,accessToken,solutionId,recaptchaToken",
				"Access-Control-Allow-Methods":     "GET, PUT, DELETE, POST, OPTIONS, PATCH",
				"Access-Control-Allow-Credentials": "true",
			},
		}, nil
	}

	logger.WithFields(logrus.Fields{
		"operation": "handler",
		"origin":    requestOrigin,
	}).Warn("unauthorized origin from request header")

	return events.APIGatewayProxyResponse{
		StatusCode: 400,
	}, nil
}

// originOf reads the Origin header regardless of its case.
func originOf(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, "origin") {
			return v
		}
	}
	return ""
}

func isAllowed(origin string, allowed []string) bool {
	for _, allowedOrigin := range allowed {
		allowedOrigin = strings.TrimSpace(allowedOrigin)
		if allowedOrigin == "*" || allowedOrigin == origin {
			return true
		}
	}
	return false
}

func main() {
	lambda.Start(handler)
}

func init() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Error while loading configuration")
	}

	logger = util.NewLogger(cfg.LogLevel, cfg.IsLocal)

	// Setup SSM client
	ssmRepository := &data.SSMDao{
		SSM:    clients.NewSSMClient(clients.Settings{Region: cfg.Region, IsLocal: cfg.IsLocal, LocalEndpoint: cfg.LocalEndpoint}),
		Logger: logger,
		Path:   cfg.SecretPath,
	}

	origins, err := ssmRepository.GetSecretValue(context.Background(), constants.ALLOWED_ORIGINS)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Fatal("Error while getting allowed origins from param store")
	}
	allowedOrigins = strings.Split(origins, ",")

	logger.WithField("allowed_origins", allowedOrigins).Debug("CORS origins loaded")
}
