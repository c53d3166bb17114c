// Package messaging stores action records in S3 and fans them out over SNS.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"lambdakit/lib/clients"
	"lambdakit/lib/constants"
	"lambdakit/lib/models"
	"lambdakit/lib/util"
)

// SNSClientInterface is the subset of the SNS client the dispatcher calls.
type SNSClientInterface interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

var _ SNSClientInterface = (*sns.Client)(nil)

// Dispatcher writes action records to "<ResourcePrefix>-<type>" buckets and
// republishes their S3 notifications to "<SNSTopicARNPrefix>-<topic>".
type Dispatcher struct {
	S3                clients.S3ClientInterface
	SNS               SNSClientInterface
	ResourcePrefix    string
	SNSTopicARNPrefix string
	Logger            *logrus.Logger
	Now               func() time.Time
	NewID             func() string
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return util.NewGuid()
}

// ActionKey is the object key of an action:
// <solutionId>/<organizationId>/<topic>/[<name>/]<id>.json
func ActionKey(solutionID, organizationID, topic, name, id string) string {
	if name != "" {
		return fmt.Sprintf("%s/%s/%s/%s/%s.json", solutionID, organizationID, topic, name, id)
	}
	return fmt.Sprintf("%s/%s/%s/%s.json", solutionID, organizationID, topic, id)
}

// SendAction stores an action record for topic. The record is picked up by
// the S3 notification pipeline and republished to the topic's SNS subscribers.
func (d *Dispatcher) SendAction(ctx context.Context, topic string, data map[string]interface{}, settings models.ActionSettings) (*models.Action, error) {
	const source = "messaging.sendAction"
	detail := func(paramName string) map[string]interface{} {
		return map[string]interface{}{"paramName": paramName, "snsTopic": topic, "settings": settings}
	}

	if settings.SolutionID == "" {
		return nil, models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, source, detail("solutionId"))
	}
	if topic == "" {
		return nil, models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, source, detail("snsTopic"))
	}
	if err := resolveRequiredIDs(&settings); err != nil {
		return nil, models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, source, detail(err.Error()))
	}

	if data == nil {
		data = map[string]interface{}{}
	}
	if settings.Type == "" {
		settings.Type = "action"
	}
	organizationID := util.ConditionalString(settings.OrganizationID != "", settings.OrganizationID, constants.GUID_EMPTY)
	id := util.ConditionalString(settings.ID != "", settings.ID, d.newID())

	action := &models.Action{
		ID:             id,
		Name:           settings.Name,
		CreatedOn:      util.UTCISOString(d.now()),
		CreatedBy:      settings.UserID,
		SolutionID:     settings.SolutionID,
		OrganizationID: organizationID,
		User:           settings.User,
		Organization:   settings.Organization,
		Data:           data,
		Settings:       settings,
		SNSTopic:       topic,
		S3BucketName:   fmt.Sprintf("%s-%s", d.ResourcePrefix, settings.Type),
		S3FileName:     ActionKey(settings.SolutionID, organizationID, topic, settings.Name, id),
	}

	body, err := json.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}
	if err := d.S3.PutObject(ctx, action.S3BucketName, action.S3FileName, body, "application/json"); err != nil {
		d.Logger.WithFields(logrus.Fields{
			"operation": "SendAction",
			"bucket":    action.S3BucketName,
			"key":       action.S3FileName,
			"error":     err.Error(),
		}).Error("Failed to store action")
		lambdaErr := models.NewLambdaError(models.HTTPERROR_500, constants.ERROR_S3, source, map[string]interface{}{
			"functionName": "s3PutObject",
			"snsTopic":     topic,
			"s3BucketName": action.S3BucketName,
			"s3FileName":   action.S3FileName,
		})
		lambdaErr.Inner = err.Error()
		return nil, lambdaErr
	}

	d.Logger.WithFields(logrus.Fields{
		"operation": "SendAction",
		"bucket":    action.S3BucketName,
		"key":       action.S3FileName,
	}).Debug("Action stored")
	return action, nil
}

// SendMessage stores one "message" action per delivery method. Methods
// default to the content keys present (email, sms, fcm, chat).
func (d *Dispatcher) SendMessage(ctx context.Context, template *models.MessageTemplate, settings models.ActionSettings) ([]*models.Action, error) {
	const source = "messaging.sendMessage"
	missing := func(paramName string) error {
		return models.NewLambdaError(models.HTTPERROR_400, constants.ERROR_PARAMETER_MISSING, source, map[string]interface{}{
			"paramName": paramName,
			"settings":  settings,
		})
	}

	if template == nil {
		return nil, missing("template")
	}
	if len(template.Content) == 0 {
		return nil, missing("template.content")
	}
	methods := template.Methods
	if len(methods) == 0 {
		methods = methodsFromContent(template.Content)
	}
	if len(methods) == 0 {
		return nil, missing("template.methods")
	}
	if template.Recipients == nil || len(template.Recipients.To) == 0 {
		return nil, missing("template.recipients.to")
	}
	if template.Sender == "" {
		return nil, missing("template.sender")
	}

	if settings.Organization != nil && template.ContextOrganizationProps != "" {
		settings.Organization = util.GetSubObject(settings.Organization, template.ContextOrganizationProps)
	}
	if settings.User != nil && template.ContextUserProps != "" {
		settings.User = util.GetSubObject(settings.User, template.ContextUserProps)
	}
	if settings.Type == "" {
		settings.Type = "message"
	}

	resolved := *template
	resolved.Methods = methods
	data, err := toMap(resolved)
	if err != nil {
		return nil, err
	}

	actions := make([]*models.Action, 0, len(methods))
	for _, method := range methods {
		action, err := d.SendAction(ctx, strings.ToLower(method), data, settings)
		if err != nil {
			return actions, err
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func methodsFromContent(content map[string]interface{}) []string {
	var methods []string
	for _, candidate := range []struct{ key, method string }{
		{"email", "email"},
		{"sms", "sms"},
		{"fcm", "fcm"},
		{"chat", "chat.fifo"},
	} {
		if v, ok := content[candidate.key]; ok && v != nil && v != "" && v != false {
			methods = append(methods, candidate.method)
		}
	}
	return methods
}

// resolveRequiredIDs enforces RequireUserID and RequireOrganizationID. A
// missing organization id falls back to user.organizationId. The returned
// error text is the missing parameter name.
func resolveRequiredIDs(settings *models.ActionSettings) error {
	if settings.RequireUserID && settings.UserID == "" {
		return errors.New("settings.userId")
	}
	if settings.RequireOrganizationID && settings.OrganizationID == "" {
		orgID, _ := settings.User["organizationId"].(string)
		if orgID == "" {
			return errors.New("settings.organizationId")
		}
		settings.OrganizationID = orgID
	}
	return nil
}

func toMap(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
