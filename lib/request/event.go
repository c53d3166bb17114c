// Package request normalizes Lambda payloads into models.Event and reads
// named parameters from it.
package request

import (
	"encoding/base64"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/models"
)

// FromAPIGatewayRequest builds an Event from an API Gateway proxy request.
// A body that is not a JSON object is logged and ignored.
func FromAPIGatewayRequest(req events.APIGatewayProxyRequest, logger *logrus.Logger) *models.Event {
	evt := &models.Event{
		Headers: req.Headers,
		Path:    req.PathParameters,
		Query:   req.QueryStringParameters,
		Identity: models.Identity{
			SourceIP:  req.RequestContext.Identity.SourceIP,
			UserAgent: req.RequestContext.Identity.UserAgent,
		},
	}

	body := req.Body
	if req.IsBase64Encoded && body != "" {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"operation": "FromAPIGatewayRequest",
				"error":     err.Error(),
			}).Warn("Request body is not valid base64")
			return evt
		}
		body = string(decoded)
	}
	if body != "" {
		if err := json.Unmarshal([]byte(body), &evt.Body); err != nil {
			logger.WithFields(logrus.Fields{
				"operation": "FromAPIGatewayRequest",
				"path":      req.Path,
				"error":     err.Error(),
			}).Warn("Request body is not a JSON object")
			evt.Body = nil
		}
	}
	return evt
}

// FromCloudWatchEvent builds an Event for a scheduled invocation. The
// detail object becomes the body so handlers can still read parameters.
// A detail that is not a JSON object is logged and ignored.
func FromCloudWatchEvent(evt events.CloudWatchEvent, logger *logrus.Logger) *models.Event {
	result := &models.Event{Source: evt.Source}
	if result.Source == "" {
		result.Source = constants.AWS_EVENTS_SOURCE
	}
	if len(evt.Detail) > 0 {
		if err := json.Unmarshal(evt.Detail, &result.Body); err != nil {
			logger.WithFields(logrus.Fields{
				"operation":   "FromCloudWatchEvent",
				"detail_type": evt.DetailType,
				"error":       err.Error(),
			}).Warn("Event detail is not a JSON object")
			result.Body = nil
		}
	}
	return result
}

// CallFromAWSEvents reports whether evt is a scheduled (EventBridge) invocation.
func CallFromAWSEvents(evt *models.Event) bool {
	return evt != nil && evt.Source == constants.AWS_EVENTS_SOURCE
}
