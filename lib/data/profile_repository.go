package data

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"
)

var (
	// ErrProfileNotFound is returned when no record exists under the id.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrProfileConflict is returned when a versioned write lost a race.
	ErrProfileConflict = errors.New("profile was modified concurrently")
)

// ProfileRepository is the key-value profile store. Records are JSON shaped
// documents addressed by composite ids such as "user.<id>" or "tokens.<id>".
type ProfileRepository interface {
	// GetProfile decodes the record into out, or returns ErrProfileNotFound.
	GetProfile(ctx context.Context, id string, out interface{}) error
	// PutProfile creates or replaces the record.
	PutProfile(ctx context.Context, id string, item interface{}) error
	// PutProfileIfVersion writes only when the stored version still equals
	// expectedVersion (0 means the record must not exist yet).
	PutProfileIfVersion(ctx context.Context, id string, item interface{}, expectedVersion int64) error
}

// DynamoDBClientInterface is the subset of the SDK client the profile store calls.
type DynamoDBClientInterface interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

var _ DynamoDBClientInterface = (*dynamodb.Client)(nil)

// ProfileDao implements ProfileRepository on a DynamoDB table keyed by "id".
type ProfileDao struct {
	DynamoDB  DynamoDBClientInterface
	TableName string
	Logger    *logrus.Logger
}

func jsonTags(o *attributevalue.EncoderOptions) { o.TagKey = "json" }
func jsonTagsDecode(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func (dao *ProfileDao) GetProfile(ctx context.Context, id string, out interface{}) error {
	output, err := dao.DynamoDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(dao.TableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "GetProfile",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to get profile")
		return fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	if len(output.Item) == 0 {
		return ErrProfileNotFound
	}
	if err := attributevalue.UnmarshalMapWithOptions(output.Item, out, jsonTagsDecode); err != nil {
		return fmt.Errorf("failed to decode profile %s: %w", id, err)
	}
	return nil
}

func (dao *ProfileDao) PutProfile(ctx context.Context, id string, item interface{}) error {
	input, err := dao.putInput(id, item)
	if err != nil {
		return err
	}
	if _, err := dao.DynamoDB.PutItem(ctx, input); err != nil {
		dao.Logger.WithFields(logrus.Fields{
			"operation": "PutProfile",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to put profile")
		return fmt.Errorf("failed to put profile %s: %w", id, err)
	}
	return nil
}

func (dao *ProfileDao) PutProfileIfVersion(ctx context.Context, id string, item interface{}, expectedVersion int64) error {
	input, err := dao.putInput(id, item)
	if err != nil {
		return err
	}
	if expectedVersion == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(id) OR attribute_not_exists(version) OR version = :v")
	} else {
		input.ConditionExpression = aws.String("version = :v")
	}
	input.ExpressionAttributeValues = map[string]types.AttributeValue{
		":v": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}

	if _, err := dao.DynamoDB.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			dao.Logger.WithFields(logrus.Fields{
				"operation":        "PutProfileIfVersion",
				"id":               id,
				"expected_version": expectedVersion,
			}).Warn("Profile version changed since it was read")
			return ErrProfileConflict
		}
		dao.Logger.WithFields(logrus.Fields{
			"operation": "PutProfileIfVersion",
			"id":        id,
			"error":     err.Error(),
		}).Error("Failed to put profile")
		return fmt.Errorf("failed to put profile %s: %w", id, err)
	}
	return nil
}

func (dao *ProfileDao) putInput(id string, item interface{}) (*dynamodb.PutItemInput, error) {
	av, err := attributevalue.MarshalMapWithOptions(item, jsonTags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile %s: %w", id, err)
	}
	av["id"] = &types.AttributeValueMemberS{Value: id}
	return &dynamodb.PutItemInput{
		TableName: aws.String(dao.TableName),
		Item:      av,
	}, nil
}
