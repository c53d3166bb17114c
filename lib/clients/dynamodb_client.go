package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewDynamoDBClient creates the client for the profile table.
func NewDynamoDBClient(settings Settings) *dynamodb.Client {
	return dynamodb.NewFromConfig(mustLoad(settings))
}
