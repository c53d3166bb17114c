package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/models"
)

func corsHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                 "application/json",
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token,apiToken,accessToken,solutionId,recaptchaToken",
		"Access-Control-Allow-Methods": "GET,POST,PUT,DELETE,OPTIONS",
	}
}

// OnSuccess renders data as a 200 response.
func OnSuccess(data interface{}, logger *logrus.Logger) events.APIGatewayProxyResponse {
	body, err := json.Marshal(data)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal response data")
		return OnError(models.NewLambdaError(models.HTTPERROR_500, constants.ERROR_UNEXPECTED, "api.onSuccess", nil), err, logger)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Body:       string(body),
		Headers:    corsHeaders(),
	}
}

// ErrorOption adjusts an error response before it is rendered.
type ErrorOption func(*models.LambdaError)

// Redact strips detail and the inner error so internal identifiers and
// settings do not reach untrusted clients.
func Redact() ErrorOption {
	return func(e *models.LambdaError) {
		e.Detail = nil
		e.Inner = nil
	}
}

// OnError renders current as an error response. When inner carries its own
// status (a *models.LambdaError), that status wins and its type is used if
// current has none. The type defaults to ERROR_UNEXPECTED and the status to 500.
func OnError(current *models.LambdaError, inner error, logger *logrus.Logger, opts ...ErrorOption) events.APIGatewayProxyResponse {
	lambdaErr := models.LambdaError{}
	if current != nil {
		lambdaErr = *current
	}

	if inner != nil {
		var innerErr *models.LambdaError
		if errors.As(inner, &innerErr) {
			if innerErr.StatusCode != 0 {
				lambdaErr.StatusCode = innerErr.StatusCode
			}
			if innerErr.StatusName != "" {
				lambdaErr.StatusName = innerErr.StatusName
			}
			if lambdaErr.Type == "" {
				lambdaErr.Type = innerErr.Type
			}
			if innerErr.Type != "" && innerErr.Type != lambdaErr.Type {
				lambdaErr.Types = append([]string{innerErr.Type}, innerErr.Types...)
			}
			lambdaErr.Inner = innerErr
		} else {
			lambdaErr.Inner = inner.Error()
		}
	}

	if lambdaErr.Type == "" {
		lambdaErr.Type = constants.ERROR_UNEXPECTED
	}
	if lambdaErr.StatusCode == 0 {
		lambdaErr.StatusCode = http.StatusInternalServerError
	}
	if lambdaErr.StatusName == "" {
		lambdaErr.StatusName = lambdaErr.Type
	}

	logger.WithFields(logrus.Fields{
		"operation":   "OnError",
		"status_code": lambdaErr.StatusCode,
		"type":        lambdaErr.Type,
		"source":      lambdaErr.Source,
		"error":       lambdaErr.ToJSON(),
	}).Error("Request failed")

	for _, opt := range opts {
		opt(&lambdaErr)
	}

	body, err := json.Marshal(lambdaErr)
	if err != nil {
		logger.WithError(err).Error("Failed to marshal error response")
		body = []byte(`{"statusCode":500,"type":"ERROR_UNEXPECTED"}`)
	}

	return events.APIGatewayProxyResponse{
		StatusCode: lambdaErr.StatusCode,
		Body:       string(body),
		Headers:    corsHeaders(),
	}
}

// FromCheckCaller renders a non-CONTINUE pipeline outcome. It returns false
// when the request should proceed.
func FromCheckCaller(result *models.CheckCallerResult, err error, logger *logrus.Logger, opts ...ErrorOption) (events.APIGatewayProxyResponse, bool) {
	if err != nil {
		return OnError(nil, err, logger, opts...), true
	}
	switch result.Type {
	case models.CheckCallerError:
		return OnError(result.Error, nil, logger, opts...), true
	case models.CheckCallerStop:
		return OnSuccess(map[string]interface{}{}, logger), true
	}
	return events.APIGatewayProxyResponse{}, false
}
