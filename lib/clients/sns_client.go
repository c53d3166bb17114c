package clients

import (
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// NewSNSClient creates the client used to fan out action notifications.
func NewSNSClient(settings Settings) *sns.Client {
	return sns.NewFromConfig(mustLoad(settings))
}
