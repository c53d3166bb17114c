package request

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lambdakit/lib/constants"
)

func Test_FromAPIGatewayRequest(t *testing.T) {
	//Arrange
	req := events.APIGatewayProxyRequest{
		Path:                  "/context",
		Headers:               map[string]string{"Authorization": "abc"},
		PathParameters:        map[string]string{"id": "1"},
		QueryStringParameters: map[string]string{"page": "2"},
		Body:                  `{"name":"value"}`,
		RequestContext: events.APIGatewayProxyRequestContext{
			Identity: events.APIGatewayRequestIdentity{SourceIP: "10.0.0.1", UserAgent: "curl"},
		},
	}

	//Act
	evt := FromAPIGatewayRequest(req, logrus.New())

	//Assert
	assert.Equal(t, "abc", evt.Headers["Authorization"])
	assert.Equal(t, "1", evt.Path["id"])
	assert.Equal(t, "2", evt.Query["page"])
	assert.Equal(t, "value", evt.Body["name"])
	assert.Equal(t, "10.0.0.1", evt.Identity.SourceIP)
	assert.Equal(t, "curl", evt.Identity.UserAgent)
	assert.False(t, CallFromAWSEvents(evt))
}

func Test_FromAPIGatewayRequest_Base64Body(t *testing.T) {
	req := events.APIGatewayProxyRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(`{"n":1}`)),
		IsBase64Encoded: true,
	}

	evt := FromAPIGatewayRequest(req, logrus.New())

	assert.Equal(t, float64(1), evt.Body["n"])
}

func Test_FromAPIGatewayRequest_MalformedBody(t *testing.T) {
	logger, hook := test.NewNullLogger()

	evt := FromAPIGatewayRequest(events.APIGatewayProxyRequest{Body: "not json"}, logger)

	assert.Nil(t, evt.Body)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func Test_FromCloudWatchEvent(t *testing.T) {
	evt := FromCloudWatchEvent(events.CloudWatchEvent{
		Source: constants.AWS_EVENTS_SOURCE,
		Detail: json.RawMessage(`{"job":"nightly"}`),
	}, logrus.New())

	assert.True(t, CallFromAWSEvents(evt))
	assert.Equal(t, "nightly", evt.Body["job"])
	assert.False(t, CallFromAWSEvents(nil))
}

func Test_FromCloudWatchEvent_DetailNotObject(t *testing.T) {
	logger, hook := test.NewNullLogger()

	evt := FromCloudWatchEvent(events.CloudWatchEvent{
		DetailType: "Scheduled Event",
		Detail:     json.RawMessage(`["not","an","object"]`),
	}, logger)

	assert.Equal(t, constants.AWS_EVENTS_SOURCE, evt.Source)
	assert.Nil(t, evt.Body)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "FromCloudWatchEvent", hook.LastEntry().Data["operation"])
}
