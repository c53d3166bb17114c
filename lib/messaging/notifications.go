package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/constants"
	"lambdakit/lib/models"
)

// TopicFromKey returns the topic segment of an action key.
func TopicFromKey(key string) (string, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 4 || parts[2] == "" {
		return "", fmt.Errorf("object key %q is not an action key", key)
	}
	return parts[2], nil
}

// HandleActionSQS unpacks the S3 notifications carried in each SQS message
// and publishes {bucketName, fileName} to the topic named by the key. Every
// message with at least one failed record is reported back so SQS retries it.
func (d *Dispatcher) HandleActionSQS(ctx context.Context, event events.SQSEvent) events.SQSEventResponse {
	var response events.SQSEventResponse

	for _, message := range event.Records {
		var notification events.S3Event
		if err := json.Unmarshal([]byte(message.Body), &notification); err != nil {
			d.Logger.WithFields(logrus.Fields{
				"operation":  "HandleActionSQS",
				"message_id": message.MessageId,
				"error":      err.Error(),
			}).Error("SQS message is not an S3 notification")
			continue
		}

		failed := false
		for _, record := range notification.Records {
			if err := d.publishAction(ctx, record.S3.Bucket.Name, record.S3.Object.Key); err != nil {
				d.Logger.WithFields(logrus.Fields{
					"operation":  "HandleActionSQS",
					"message_id": message.MessageId,
					"bucket":     record.S3.Bucket.Name,
					"key":        record.S3.Object.Key,
					"error":      err.Error(),
				}).Error("Failed to publish action")
				failed = true
			}
		}
		if failed {
			response.BatchItemFailures = append(response.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: message.MessageId})
		}
	}
	return response
}

func (d *Dispatcher) publishAction(ctx context.Context, bucket, rawKey string) error {
	key, err := url.QueryUnescape(rawKey)
	if err != nil {
		key = rawKey
	}
	topic, err := TopicFromKey(key)
	if err != nil {
		return err
	}

	body, err := json.Marshal(models.ActionNotification{BucketName: bucket, FileName: key})
	if err != nil {
		return err
	}
	topicArn := fmt.Sprintf("%s-%s", d.SNSTopicARNPrefix, topic)
	if _, err := d.SNS.Publish(ctx, &sns.PublishInput{
		Message:  aws.String(string(body)),
		TopicArn: aws.String(topicArn),
	}); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topicArn, err)
	}

	d.Logger.WithFields(logrus.Fields{
		"operation": "HandleActionSQS",
		"topic_arn": topicArn,
		"key":       key,
	}).Debug("Action published")
	return nil
}

// SNSMessageResult is one processed SNS record.
type SNSMessageResult struct {
	Message map[string]interface{} `json:"message"`
	Error   string                 `json:"error,omitempty"`
}

// SNSProcessResult splits processed records into finished and failed.
type SNSProcessResult struct {
	Finished []SNSMessageResult `json:"finished"`
	Failed   []SNSMessageResult `json:"failed"`
}

// ProcessSNSRecords decodes each record's JSON message and hands it to
// onMessage. Records whose message cannot be decoded or whose handler fails
// land in Failed; onError, when set, is told about each failure.
func ProcessSNSRecords(
	ctx context.Context,
	records []events.SNSEventRecord,
	onMessage func(ctx context.Context, message map[string]interface{}) error,
	onError func(ctx context.Context, err error, record events.SNSEventRecord),
) SNSProcessResult {
	result := SNSProcessResult{Finished: []SNSMessageResult{}, Failed: []SNSMessageResult{}}

	for _, record := range records {
		var message map[string]interface{}
		err := json.Unmarshal([]byte(record.SNS.Message), &message)
		if err == nil && onMessage != nil {
			err = onMessage(ctx, message)
		}
		if err != nil {
			if onError != nil {
				onError(ctx, err, record)
			}
			result.Failed = append(result.Failed, SNSMessageResult{Message: message, Error: err.Error()})
			continue
		}
		result.Finished = append(result.Finished, SNSMessageResult{Message: message})
	}
	return result
}

// GetActionDataFromSNSRecord reads the action record a notification points at.
func (d *Dispatcher) GetActionDataFromSNSRecord(ctx context.Context, notification models.ActionNotification) (*models.Action, error) {
	if notification.BucketName == "" || notification.FileName == "" {
		return nil, errors.New("notification has no bucketName or fileName")
	}
	body, err := d.S3.GetObject(ctx, notification.BucketName, notification.FileName)
	if err != nil {
		return nil, fmt.Errorf("failed to read action %s: %w", notification.FileName, err)
	}
	var action models.Action
	if err := json.Unmarshal(body, &action); err != nil {
		return nil, fmt.Errorf("failed to decode action %s: %w", notification.FileName, err)
	}
	return &action, nil
}

// ValidateActionDataFromSNSRecord applies RequireUserID and
// RequireOrganizationID to the settings of a received action, filling the
// organization id from the user profile when possible.
func ValidateActionDataFromSNSRecord(action *models.Action, settings *models.ActionSettings) error {
	if err := resolveRequiredIDs(settings); err != nil {
		actionID := ""
		if action != nil {
			actionID = action.ID
		}
		return models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, "sns.validateActionDataFromSNSRecord", map[string]interface{}{
			"paramName": err.Error(),
			"actionId":  actionID,
		})
	}
	return nil
}
